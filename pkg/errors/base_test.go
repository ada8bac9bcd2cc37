package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	first := stderrors.New("not a list")
	second := stderrors.New("not an envelope")

	err := Join("parse log file", first, second)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parse log file (2 attempts)")
	assert.Contains(t, err.Error(), "not a list")
	assert.Contains(t, err.Error(), "not an envelope")

	assert.True(t, stderrors.Is(err, first))
	assert.True(t, stderrors.Is(err, second))
}

func TestJoinSkipsNilAttempts(t *testing.T) {
	only := stderrors.New("boom")

	err := Join("op", nil, only, nil)

	var joined *Joined
	assert.True(t, stderrors.As(err, &joined))
	assert.Len(t, joined.Attempts, 1)
}

func TestJoinAllNilIsNil(t *testing.T) {
	assert.NoError(t, Join("op", nil, nil))
}
