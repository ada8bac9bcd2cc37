package agui

/*
Event is a discriminated union over every client-facing event the
bridge emits.  We keep it simple by embedding all optional fields in a
single struct – this avoids heavy custom JSON marshalling logic while
remaining protocol‑compliant. Only the fields relevant to Type are
populated.
*/
type Event struct {
	Type EventType `json:"type"`

	// Run lifecycle.
	ThreadID string `json:"threadId,omitempty"`
	RunID    string `json:"runId,omitempty"`
	Result   string `json:"result,omitempty"`
	Message  string `json:"message,omitempty"`

	// Streamed text. Delta is shared with TOOL_CALL_ARGS.
	MessageID string `json:"messageId,omitempty"`
	Role      string `json:"role,omitempty"`
	Delta     string `json:"delta,omitempty"`

	// Tool calls.
	ToolCallID   string `json:"toolCallId,omitempty"`
	ToolCallName string `json:"toolCallName,omitempty"`

	// Session state.
	Snapshot any `json:"snapshot,omitempty"`
	State    any `json:"state,omitempty"`

	// Custom events.
	Name  string `json:"name,omitempty"`
	Value any    `json:"value,omitempty"`
}

// EventType is the discriminator for an Event union.
type EventType string

const (
	EventTypeRunStarted         EventType = "RUN_STARTED"
	EventTypeRunFinished        EventType = "RUN_FINISHED"
	EventTypeRunError           EventType = "RUN_ERROR"
	EventTypeTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTypeTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTypeTextMessageEnd     EventType = "TEXT_MESSAGE_END"
	EventTypeToolCallStart      EventType = "TOOL_CALL_START"
	EventTypeToolCallArgs       EventType = "TOOL_CALL_ARGS"
	EventTypeToolCallEnd        EventType = "TOOL_CALL_END"
	EventTypeToolCallResult     EventType = "TOOL_CALL_RESULT"
	EventTypeStateSnapshot      EventType = "STATE_SNAPSHOT"
	EventTypeStateDelta         EventType = "STATE_DELTA"
	EventTypeCustom             EventType = "CUSTOM"
)

// Names carried by CUSTOM events.
const (
	CustomQuestionPending = "QuestionPending"
	CustomPlanPending     = "PlanPending"
)

func NewRunStarted(threadID, runID string) Event {
	return Event{Type: EventTypeRunStarted, ThreadID: threadID, RunID: runID}
}

func NewRunFinished(threadID, runID, result string) Event {
	return Event{Type: EventTypeRunFinished, ThreadID: threadID, RunID: runID, Result: result}
}

func NewRunError(threadID, runID, message string) Event {
	return Event{Type: EventTypeRunError, ThreadID: threadID, RunID: runID, Message: message}
}

func NewTextMessageStart(messageID, role string) Event {
	return Event{Type: EventTypeTextMessageStart, MessageID: messageID, Role: role}
}

func NewTextMessageContent(messageID, delta string) Event {
	return Event{Type: EventTypeTextMessageContent, MessageID: messageID, Delta: delta}
}

func NewTextMessageEnd(messageID string) Event {
	return Event{Type: EventTypeTextMessageEnd, MessageID: messageID}
}

func NewToolCallStart(toolCallID, toolCallName string) Event {
	return Event{Type: EventTypeToolCallStart, ToolCallID: toolCallID, ToolCallName: toolCallName}
}

func NewToolCallArgs(toolCallID, delta string) Event {
	return Event{Type: EventTypeToolCallArgs, ToolCallID: toolCallID, Delta: delta}
}

func NewToolCallEnd(toolCallID string) Event {
	return Event{Type: EventTypeToolCallEnd, ToolCallID: toolCallID}
}

func NewToolCallResult(toolCallID, result string) Event {
	return Event{Type: EventTypeToolCallResult, ToolCallID: toolCallID, Result: result}
}

func NewStateSnapshot(snapshot any) Event {
	return Event{Type: EventTypeStateSnapshot, Snapshot: snapshot}
}

func NewStateDelta(state any) Event {
	return Event{Type: EventTypeStateDelta, State: state}
}

func NewCustom(name string, value any) Event {
	return Event{Type: EventTypeCustom, Name: name, Value: value}
}
