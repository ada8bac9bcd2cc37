package a2a

import (
	"encoding/json"
	"fmt"

	"github.com/cohesivestack/valgo"
	"github.com/theapemachine/agui-go/pkg/errors"
)

// EventKind discriminates the inbound payload union.
type EventKind string

const (
	EventKindTask         EventKind = "task"
	EventKindMessage      EventKind = "message"
	EventKindStatusUpdate EventKind = "status-update"
)

/*
Event is a discriminated union over the three lifecycle payloads the
agent emits. Exactly one pointer is populated according to Kind.
*/
type Event struct {
	Kind EventKind `json:"kind"`

	Task         *Task                  `json:"task,omitempty"`
	Message      *Message               `json:"message,omitempty"`
	StatusUpdate *TaskStatusUpdateEvent `json:"statusUpdate,omitempty"`
}

/*
ContextID returns the session context the payload belongs to.
*/
func (ev *Event) ContextID() string {
	switch ev.Kind {
	case EventKindTask:
		return ev.Task.ContextID
	case EventKindMessage:
		return ev.Message.ContextID
	case EventKindStatusUpdate:
		return ev.StatusUpdate.ContextID
	}

	return ""
}

var partKinds = []string{
	string(PartKindText),
	string(PartKindFile),
	string(PartKindData),
}

/*
ParseEvent decodes one raw payload into the typed union. Additive
unknown fields are tolerated, missing required ones are not. Failures
come back as *errors.ParseError naming the violated requirements.
*/
func ParseEvent(kind string, payload []byte) (*Event, error) {
	switch EventKind(kind) {
	case EventKindTask:
		return parseTask(payload)
	case EventKindMessage:
		return parseMessage(payload)
	case EventKindStatusUpdate:
		return parseStatusUpdate(payload)
	}

	return nil, &errors.ParseError{Kind: kind, Reason: "unknown event kind"}
}

func parseTask(payload []byte) (*Event, error) {
	var task Task

	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, &errors.ParseError{Kind: string(EventKindTask), Reason: err.Error()}
	}

	val := valgo.Is(
		valgo.String(task.ID, "id").Not().Blank(),
		valgo.String(task.ContextID, "contextId").Not().Blank(),
		valgo.String(string(task.Status.State), "status.state").Not().Blank(),
	)

	if !val.Valid() {
		return nil, parseError(EventKindTask, val)
	}

	return &Event{Kind: EventKindTask, Task: &task}, nil
}

func parseMessage(payload []byte) (*Event, error) {
	var msg Message

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, &errors.ParseError{Kind: string(EventKindMessage), Reason: err.Error()}
	}

	val := valgo.Is(
		valgo.String(msg.MessageID, "messageId").Not().Blank(),
		valgo.String(msg.Role, "role").Not().Blank(),
		valgo.String(msg.ContextID, "contextId").Not().Blank(),
	)

	if len(msg.Parts) == 0 {
		val.AddErrorMessage("parts", "Parts can't be empty")
	}

	for i, part := range msg.Parts {
		val.Is(valgo.String(string(part.Kind), fmt.Sprintf("parts[%d].kind", i)).InSlice(partKinds))
	}

	if !val.Valid() {
		return nil, parseError(EventKindMessage, val)
	}

	return &Event{Kind: EventKindMessage, Message: &msg}, nil
}

func parseStatusUpdate(payload []byte) (*Event, error) {
	var update TaskStatusUpdateEvent

	if err := json.Unmarshal(payload, &update); err != nil {
		return nil, &errors.ParseError{Kind: string(EventKindStatusUpdate), Reason: err.Error()}
	}

	val := valgo.Is(
		valgo.String(update.TaskID, "taskId").Not().Blank(),
		valgo.String(update.ContextID, "contextId").Not().Blank(),
		valgo.String(string(update.Status.State), "status.state").Not().Blank(),
	)

	if !val.Valid() {
		return nil, parseError(EventKindStatusUpdate, val)
	}

	return &Event{Kind: EventKindStatusUpdate, StatusUpdate: &update}, nil
}

func parseError(kind EventKind, val *valgo.Validation) *errors.ParseError {
	// valgo errors marshal to {"field": ["message", ...]}.
	reason, err := json.Marshal(val.Error())

	if err != nil {
		return &errors.ParseError{Kind: string(kind), Reason: "invalid payload"}
	}

	return &errors.ParseError{Kind: string(kind), Reason: string(reason)}
}
