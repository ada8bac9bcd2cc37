package utils

import (
	"bufio"
	"errors"
	"strings"
)

/*
ReadSSE consumes one line of an event stream and returns its data
payload. Blank lines, comment heartbeats, and non-data fields (event:,
id:, retry:) yield an empty string so callers can keep scanning.
*/
func ReadSSE(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')

	if err != nil {
		return "", err
	}

	line = strings.TrimSpace(line)

	switch {
	case line == "", strings.HasPrefix(line, ":"):
		return "", nil
	case strings.HasPrefix(line, "event:"),
		strings.HasPrefix(line, "id:"),
		strings.HasPrefix(line, "retry:"):
		return "", nil
	case strings.HasPrefix(line, "data:"):
		return strings.TrimSpace(strings.TrimPrefix(line, "data:")), nil
	}

	return "", errors.New("unrecognized event stream line")
}
