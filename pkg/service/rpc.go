package service

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	"github.com/theapemachine/agui-go/pkg/errors"
)

// authHeaderKey carries the Authorization header through the RPC
// dispatch context.
type authHeaderKey struct{}

/*
handleRPC is the HTTP side of the control surface: it feeds the raw
body to the JSON-RPC server and writes whatever comes back. Batches
and notifications are handled by the dispatcher.
*/
func (srv *BridgeServer) handleRPC(c fiber.Ctx) error {
	c.Set("Content-Type", "application/json")

	ctx := context.WithValue(c.RequestCtx(), authHeaderKey{}, c.Get(fiber.HeaderAuthorization))

	out := srv.rpc.Process(ctx, c.Body())

	// All notifications – nothing to send back.
	if out == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.Send(out)
}

type sendParams struct {
	SessionID      string `json:"sessionId"`
	Text           string `json:"text"`
	PermissionMode string `json:"permissionMode,omitempty"`
}

type sessionParams struct {
	SessionID string `json:"sessionId"`
}

type answerParams struct {
	SessionID string          `json:"sessionId"`
	Answers   json.RawMessage `json:"answers"`
}

type executePlanParams struct {
	SessionID    string `json:"sessionId"`
	ClearContext bool   `json:"clearContext,omitempty"`
}

/*
handleMethod routes one control-surface call. Mutating methods pass
through authorization first; methods that reach the agent need a
forwarder.
*/
func (srv *BridgeServer) handleMethod(
	ctx context.Context, method string, params json.RawMessage,
) (any, *errors.RpcError) {
	switch method {
	case "sessions/send":
		if rpcErr := srv.authorize(ctx); rpcErr != nil {
			return nil, rpcErr
		}
		return srv.sessionsSend(params)

	case "sessions/stop":
		if rpcErr := srv.authorize(ctx); rpcErr != nil {
			return nil, rpcErr
		}
		return srv.sessionsStop(params)

	case "sessions/interrupt":
		if rpcErr := srv.authorize(ctx); rpcErr != nil {
			return nil, rpcErr
		}
		return srv.sessionsInterrupt(params)

	case "sessions/answer":
		if rpcErr := srv.authorize(ctx); rpcErr != nil {
			return nil, rpcErr
		}
		return srv.sessionsAnswer(params)

	case "sessions/executePlan":
		if rpcErr := srv.authorize(ctx); rpcErr != nil {
			return nil, rpcErr
		}
		return srv.sessionsExecutePlan(params)

	case "sessions/get":
		return srv.sessionsGet(params)

	case "sessions/log":
		return srv.sessionsLog(params)
	}

	return nil, errors.ErrMethodNotFound.WithMessagef(
		"%s: %s", errors.ErrMethodNotFound.Message, method,
	)
}

// authorize checks the bearer header for mutating methods. With no
// auth service configured every call passes.
func (srv *BridgeServer) authorize(ctx context.Context) *errors.RpcError {
	if srv.auth == nil {
		return nil
	}

	header, _ := ctx.Value(authHeaderKey{}).(string)

	if err := srv.auth.Authorize(header); err != nil {
		return errors.ErrUnauthorized.WithMessagef("%v", err)
	}

	return nil
}

/*
sessionsSend forwards user text to the agent. There is no local state
transition: the agent acknowledges by emitting events, which flow back
through ingestion.
*/
func (srv *BridgeServer) sessionsSend(params json.RawMessage) (any, *errors.RpcError) {
	var p sendParams

	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	if rpcErr := requireSessionID(p.SessionID); rpcErr != nil {
		return nil, rpcErr
	}

	if p.Text == "" {
		return nil, errors.ErrInvalidParams.WithMessagef("text must not be empty")
	}

	if rpcErr := srv.rejectStopped(p.SessionID); rpcErr != nil {
		return nil, rpcErr
	}

	if srv.forwarder == nil {
		return nil, errors.ErrUpstreamUnavailable
	}

	if rpcErr := srv.forwarder.SendMessage(p.SessionID, p.Text, p.PermissionMode); rpcErr != nil {
		return nil, rpcErr
	}

	return fiber.Map{"sessionId": p.SessionID, "forwarded": true}, nil
}

/*
sessionsStop marks the session stopped locally, archives its final
snapshot, and tells the agent to cancel. The local stop holds even
when the agent is unreachable.
*/
func (srv *BridgeServer) sessionsStop(params json.RawMessage) (any, *errors.RpcError) {
	var p sessionParams

	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	if rpcErr := requireSessionID(p.SessionID); rpcErr != nil {
		return nil, rpcErr
	}

	snapshot, rpcErr := srv.registry.Stop(p.SessionID)

	if rpcErr != nil {
		return nil, rpcErr
	}

	srv.archive.Put(snapshot)

	if srv.forwarder != nil {
		if rpcErr := srv.forwarder.Cancel(p.SessionID, "stop"); rpcErr != nil {
			log.Warn("upstream cancel failed after local stop",
				"session", p.SessionID, "error", rpcErr)
		}
	}

	return snapshot, nil
}

/*
sessionsInterrupt asks the agent to break off the current run without
stopping the session. The session state follows from whatever events
the agent emits next.
*/
func (srv *BridgeServer) sessionsInterrupt(params json.RawMessage) (any, *errors.RpcError) {
	var p sessionParams

	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	if rpcErr := requireSessionID(p.SessionID); rpcErr != nil {
		return nil, rpcErr
	}

	snapshot, rpcErr := srv.registry.Get(p.SessionID)

	if rpcErr != nil {
		return nil, rpcErr
	}

	if snapshot.Status.Terminal() {
		return nil, errors.ErrSessionStopped
	}

	if srv.forwarder == nil {
		return nil, errors.ErrUpstreamUnavailable
	}

	if rpcErr := srv.forwarder.Cancel(p.SessionID, "interrupt"); rpcErr != nil {
		return nil, rpcErr
	}

	return fiber.Map{"sessionId": p.SessionID, "interrupted": true}, nil
}

/*
sessionsAnswer resolves the pending question locally, then forwards
the answers. A failed forward leaves the session working; the caller
can resend the answers as a plain message.
*/
func (srv *BridgeServer) sessionsAnswer(params json.RawMessage) (any, *errors.RpcError) {
	var p answerParams

	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	if rpcErr := requireSessionID(p.SessionID); rpcErr != nil {
		return nil, rpcErr
	}

	if len(p.Answers) == 0 {
		return nil, errors.ErrInvalidParams.WithMessagef("answers must not be empty")
	}

	if rpcErr := srv.registry.ResolveQuestion(p.SessionID); rpcErr != nil {
		return nil, rpcErr
	}

	if srv.forwarder == nil {
		return nil, errors.ErrUpstreamUnavailable
	}

	if rpcErr := srv.forwarder.AnswerQuestion(p.SessionID, p.Answers); rpcErr != nil {
		return nil, rpcErr
	}

	return fiber.Map{"sessionId": p.SessionID, "answered": true}, nil
}

/*
sessionsExecutePlan approves the pending plan locally, then asks the
agent to execute it.
*/
func (srv *BridgeServer) sessionsExecutePlan(params json.RawMessage) (any, *errors.RpcError) {
	var p executePlanParams

	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	if rpcErr := requireSessionID(p.SessionID); rpcErr != nil {
		return nil, rpcErr
	}

	if rpcErr := srv.registry.ResolvePlan(p.SessionID); rpcErr != nil {
		return nil, rpcErr
	}

	if srv.forwarder == nil {
		return nil, errors.ErrUpstreamUnavailable
	}

	if rpcErr := srv.forwarder.ExecutePlan(p.SessionID, p.ClearContext); rpcErr != nil {
		return nil, rpcErr
	}

	return fiber.Map{"sessionId": p.SessionID, "executing": true}, nil
}

/*
sessionsGet returns the live snapshot, falling back to the archive for
sessions already swept out of the registry.
*/
func (srv *BridgeServer) sessionsGet(params json.RawMessage) (any, *errors.RpcError) {
	var p sessionParams

	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	if rpcErr := requireSessionID(p.SessionID); rpcErr != nil {
		return nil, rpcErr
	}

	snapshot, rpcErr := srv.registry.Get(p.SessionID)

	if rpcErr == nil {
		return snapshot, nil
	}

	if archived, ok := srv.archive.Get(p.SessionID); ok {
		return archived, nil
	}

	return nil, rpcErr
}

/*
sessionsLog returns the session's normalized message log, the input of
client-side reconstruction and the gap-recovery path for late joiners.
*/
func (srv *BridgeServer) sessionsLog(params json.RawMessage) (any, *errors.RpcError) {
	var p sessionParams

	if rpcErr := unmarshalParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	if rpcErr := requireSessionID(p.SessionID); rpcErr != nil {
		return nil, rpcErr
	}

	return fiber.Map{
		"sessionId": p.SessionID,
		"messages":  srv.messages.Snapshot(p.SessionID),
	}, nil
}

// rejectStopped blocks control calls against sessions already stopped.
// Unknown sessions pass: the agent may be about to create them.
func (srv *BridgeServer) rejectStopped(sessionID string) *errors.RpcError {
	snapshot, rpcErr := srv.registry.Get(sessionID)

	if rpcErr != nil {
		return nil
	}

	if snapshot.Status.Terminal() {
		return errors.ErrSessionStopped
	}

	return nil
}

func unmarshalParams(params json.RawMessage, out any) *errors.RpcError {
	if len(params) == 0 {
		return errors.ErrInvalidParams.WithMessagef("missing params")
	}

	if err := json.Unmarshal(params, out); err != nil {
		log.Error("failed to unmarshal params", "error", err, "params", string(params))
		return errors.ErrInvalidParams.WithMessagef("failed to unmarshal params: %v", err)
	}

	return nil
}

func requireSessionID(id string) *errors.RpcError {
	if id == "" {
		return errors.ErrInvalidParams.WithMessagef("sessionId must not be empty")
	}

	return nil
}
