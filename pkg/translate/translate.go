package translate

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/theapemachine/agui-go/pkg/a2a"
	"github.com/theapemachine/agui-go/pkg/agui"
	"github.com/theapemachine/agui-go/pkg/errors"
)

/*
Event translates one parsed payload into zero or more client-facing
events. The returned error is always an *errors.TranslationError; the
caller decides how loudly to log it. Translation never mutates its
input and never touches session state.
*/
func Event(ev *a2a.Event, sessionID string) ([]agui.Event, error) {
	switch ev.Kind {
	case a2a.EventKindTask:
		return Task(ev.Task, sessionID), nil
	case a2a.EventKindMessage:
		return Message(ev.Message, sessionID), nil
	case a2a.EventKindStatusUpdate:
		return StatusUpdate(ev.StatusUpdate, sessionID, ev.StatusUpdate.TaskID)
	}

	return nil, &errors.TranslationError{Kind: string(ev.Kind), Detail: "unknown event kind"}
}

/*
Task maps a task payload. A submitted task starts a run; every other
task state is carried by status updates instead, so it yields nothing.
*/
func Task(task *a2a.Task, sessionID string) []agui.Event {
	if task.Status.State != a2a.TaskStateSubmitted {
		return nil
	}

	return []agui.Event{agui.NewRunStarted(sessionID, task.ID)}
}

/*
Message maps an agent or user message part by part, in source order.
Consecutive text parts share one Start/Content/End triple; a tool part
closes the open triple first, so triples for different message ids
never interleave. Thinking-tagged data streams as its own text triple.
*/
func Message(msg *a2a.Message, sessionID string) []agui.Event {
	tr := &textTripleWriter{
		messageID: msg.MessageID,
		role:      mapRole(msg.Role),
	}

	var events []agui.Event

	for _, part := range msg.Parts {
		switch part.Kind {
		case a2a.PartKindText:
			events = tr.write(events, part.Text)

		case a2a.PartKindData:
			switch part.DataKind() {
			case a2a.DataKindThinking:
				events = tr.close(events)
				events = appendThinking(events, &part)

			case a2a.DataKindToolUse:
				events = tr.close(events)
				events = appendToolCall(events, &part)

			case a2a.DataKindToolResult:
				events = tr.close(events)
				events = appendToolResult(events, &part)
			}
			// Untagged data parts carry nothing renderable.
		}
		// Unknown part kinds are tolerated and skipped.
	}

	return tr.close(events)
}

/*
StatusUpdate maps a lifecycle transition reported by the agent. runID
is the caller's fallback for updates that omit their task id.
*/
func StatusUpdate(update *a2a.TaskStatusUpdateEvent, sessionID, runID string) ([]agui.Event, error) {
	rid := update.TaskID

	if rid == "" {
		rid = runID
	}

	switch update.Status.State {
	case a2a.TaskStateSubmitted:
		return []agui.Event{agui.NewRunStarted(sessionID, rid)}, nil

	case a2a.TaskStateWorking:
		// The run is already started; nothing to tell the client.
		return nil, nil

	case a2a.TaskStateCompleted:
		if !update.Final {
			return nil, &errors.TranslationError{
				Kind:   string(a2a.EventKindStatusUpdate),
				Detail: "completed status without final flag",
			}
		}

		return []agui.Event{agui.NewRunFinished(sessionID, rid, statusText(update))}, nil

	case a2a.TaskStateFailed:
		if !update.Final {
			return nil, &errors.TranslationError{
				Kind:   string(a2a.EventKindStatusUpdate),
				Detail: "failed status without final flag",
			}
		}

		return []agui.Event{agui.NewRunError(sessionID, rid, statusText(update))}, nil

	case a2a.TaskStateInputReq:
		return translateInputRequired(update)

	case a2a.TaskStateCanceled:
		// Cancellation is acknowledged locally when the stop was requested.
		return nil, nil
	}

	return nil, &errors.TranslationError{
		Kind:   string(a2a.EventKindStatusUpdate),
		Detail: "unrecognized task state " + string(update.Status.State),
	}
}

func translateInputRequired(update *a2a.TaskStatusUpdateEvent) ([]agui.Event, error) {
	inputType, _ := update.Metadata["inputType"].(string)

	switch inputType {
	case a2a.InputTypeQuestion:
		var prompt agui.QuestionPrompt

		if err := remarshal(update.Metadata, &prompt); err != nil {
			return nil, &errors.TranslationError{
				Kind:   string(a2a.EventKindStatusUpdate),
				Detail: "malformed question metadata: " + err.Error(),
			}
		}

		return []agui.Event{agui.NewCustom(agui.CustomQuestionPending, prompt)}, nil

	case a2a.InputTypePlanApproval:
		var proposal agui.PlanProposal

		if err := remarshal(update.Metadata, &proposal); err != nil {
			return nil, &errors.TranslationError{
				Kind:   string(a2a.EventKindStatusUpdate),
				Detail: "malformed plan metadata: " + err.Error(),
			}
		}

		return []agui.Event{agui.NewCustom(agui.CustomPlanPending, proposal)}, nil
	}

	return nil, &errors.TranslationError{
		Kind:   string(a2a.EventKindStatusUpdate),
		Detail: "unrecognized inputType " + inputType,
	}
}

/*
textTripleWriter accumulates consecutive text deltas under one message
id. The first triple keeps the source message id; reopened triples get
generated ids so no two triples share one.
*/
type textTripleWriter struct {
	messageID string
	role      string
	open      bool
	used      bool
}

func (tr *textTripleWriter) write(events []agui.Event, delta string) []agui.Event {
	if !tr.open {
		if tr.used {
			tr.messageID = uuid.NewString()
		}

		events = append(events, agui.NewTextMessageStart(tr.messageID, tr.role))
		tr.open = true
		tr.used = true
	}

	return append(events, agui.NewTextMessageContent(tr.messageID, delta))
}

func (tr *textTripleWriter) close(events []agui.Event) []agui.Event {
	if !tr.open {
		return events
	}

	tr.open = false

	return append(events, agui.NewTextMessageEnd(tr.messageID))
}

func appendThinking(events []agui.Event, part *a2a.Part) []agui.Event {
	messageID := uuid.NewString()

	return append(events,
		agui.NewTextMessageStart(messageID, "assistant"),
		agui.NewTextMessageContent(messageID, part.DataString("thinking")),
		agui.NewTextMessageEnd(messageID),
	)
}

func appendToolCall(events []agui.Event, part *a2a.Part) []agui.Event {
	id := part.DataString("id")

	if id == "" {
		id = uuid.NewString()
	}

	events = append(events, agui.NewToolCallStart(id, part.DataString("name")))

	// The input arrives complete, so it ships as a single args chunk.
	if input := part.DataValue("input"); input != nil {
		events = append(events, agui.NewToolCallArgs(id, stringify(input)))
	}

	return append(events, agui.NewToolCallEnd(id))
}

func appendToolResult(events []agui.Event, part *a2a.Part) []agui.Event {
	id := part.DataString("toolUseId")

	return append(events, agui.NewToolCallResult(id, stringify(part.DataValue("content"))))
}

func mapRole(role string) string {
	if role == a2a.RoleAgent {
		return "assistant"
	}

	return role
}

func statusText(update *a2a.TaskStatusUpdateEvent) string {
	if update.Status.Message == nil {
		return ""
	}

	return update.Status.Message.String()
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	}

	b, err := json.Marshal(value)

	if err != nil {
		return ""
	}

	return string(b)
}

func remarshal(src any, dst any) error {
	b, err := json.Marshal(src)

	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}
