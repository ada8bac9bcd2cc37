package upstream

import (
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberClient "github.com/gofiber/fiber/v3/client"
	"github.com/google/uuid"
	"github.com/theapemachine/agui-go/pkg/a2a"
	"github.com/theapemachine/agui-go/pkg/errors"
)

/*
Forwarder is the JSON-RPC caller the control surface uses to reach the
upstream agent. Session control never mutates the agent directly; it
sends `message/send` and `tasks/cancel` requests and lets the agent's
event stream report the outcome.
*/
type Forwarder struct {
	baseURL string
	conn    *fiberClient.Client
}

/*
NewForwarder creates a forwarder for the agent at baseURL.
*/
func NewForwarder(baseURL string) *Forwarder {
	return &Forwarder{
		baseURL: baseURL,
		conn:    fiberClient.New().SetBaseURL(baseURL),
	}
}

/*
SendMessage forwards user text to the agent. The permission mode rides
along as message metadata when set.
*/
func (forwarder *Forwarder) SendMessage(
	sessionID string, text string, permissionMode string,
) *errors.RpcError {
	msg := a2a.NewTextMessage(a2a.RoleUser, text)
	msg.ContextID = sessionID

	if permissionMode != "" {
		msg.Metadata = map[string]any{"permissionMode": permissionMode}
	}

	return forwarder.call("message/send", fiber.Map{"message": msg})
}

/*
AnswerQuestion forwards the user's answers to a pending question as a
structured data part.
*/
func (forwarder *Forwarder) AnswerQuestion(
	sessionID string, answers json.RawMessage,
) *errors.RpcError {
	msg := a2a.NewDataMessage(a2a.RoleUser, map[string]any{
		"type":    "answers",
		"answers": answers,
	})
	msg.ContextID = sessionID

	return forwarder.call("message/send", fiber.Map{"message": msg})
}

/*
ExecutePlan approves the pending plan and asks the agent to start
executing it.
*/
func (forwarder *Forwarder) ExecutePlan(
	sessionID string, clearContext bool,
) *errors.RpcError {
	msg := a2a.NewDataMessage(a2a.RoleUser, map[string]any{
		"type":         "plan_approval",
		"approved":     true,
		"clearContext": clearContext,
	})
	msg.ContextID = sessionID

	return forwarder.call("message/send", fiber.Map{"message": msg})
}

/*
Cancel asks the agent to stop working on the session's current task.
Both stop and interrupt land here; the reason tells the agent which one
the user meant.
*/
func (forwarder *Forwarder) Cancel(sessionID string, reason string) *errors.RpcError {
	return forwarder.call("tasks/cancel", fiber.Map{
		"id":     sessionID,
		"reason": reason,
	})
}

/*
call sends a JSON-RPC request and surfaces the agent's error member,
if any.
*/
func (forwarder *Forwarder) call(method string, params any) *errors.RpcError {
	res, err := forwarder.conn.Post(
		"/rpc",
		fiberClient.Config{
			Header: map[string]string{
				"Content-Type": "application/json",
			},
			Body: fiber.Map{
				"jsonrpc": "2.0",
				"id":      uuid.NewString(),
				"method":  method,
				"params":  params,
			},
		},
	)

	if err != nil {
		log.Error("upstream call failed", "method", method, "error", err)
		return errors.ErrUpstreamUnavailable.WithMessagef(
			"%s: %s", method, err.Error(),
		)
	}

	fm := fiber.Map{}

	if err := res.JSON(&fm); err != nil {
		log.Error("upstream returned malformed response", "method", method, "error", err)
		return errors.ErrUpstreamUnavailable.WithMessagef(
			"%s: malformed response", method,
		)
	}

	if errMap, ok := fm["error"].(map[string]any); ok {
		rpcErr := &errors.RpcError{Code: -32000, Message: "upstream error"}

		if code, ok := errMap["code"].(float64); ok {
			rpcErr.Code = int(code)
		}

		if msg, ok := errMap["message"].(string); ok {
			rpcErr.Message = msg
		}

		return rpcErr
	}

	return nil
}
