package errors

import "fmt"

/*
ParseError reports an inbound payload that does not match the required
shape for its kind. Parse failures are dropped by the pipeline after
logging; they never fail a session.
*/
type ParseError struct {
	Kind   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Kind, e.Reason)
}

/*
TranslationError reports a well-formed payload carrying a state or
inputType combination the translator does not recognize. Translation
degrades to a no-op for that payload.
*/
type TranslationError struct {
	Kind   string
	Detail string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translate %s: %s", e.Kind, e.Detail)
}

/*
TransitionError reports an event that targets a session in an
incompatible or terminal state. The session keeps its prior state and
the event is not forwarded.
*/
type TransitionError struct {
	SessionID string
	From      string
	Event     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session %s: event %s rejected in state %s", e.SessionID, e.Event, e.From)
}
