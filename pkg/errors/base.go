package errors

import (
	"fmt"
	"strings"
)

/*
Joined aggregates the errors of every attempt at one operation, for
callers that try several acceptable shapes and want to report all of
the failures at once. Unwrap exposes the attempts to errors.Is and
errors.As.
*/
type Joined struct {
	Op       string
	Attempts []error
}

// Join collects the non-nil attempts under one operation name. It
// returns nil when every attempt is nil.
func Join(op string, attempts ...error) error {
	joined := &Joined{Op: op}

	for _, attempt := range attempts {
		if attempt != nil {
			joined.Attempts = append(joined.Attempts, attempt)
		}
	}

	if len(joined.Attempts) == 0 {
		return nil
	}

	return joined
}

func (joined *Joined) Error() string {
	builder := &strings.Builder{}

	fmt.Fprintf(builder, "%s (%d attempts)", joined.Op, len(joined.Attempts))

	for _, attempt := range joined.Attempts {
		builder.WriteString("\n  ")
		builder.WriteString(attempt.Error())
	}

	return builder.String()
}

func (joined *Joined) Unwrap() []error {
	return joined.Attempts
}
