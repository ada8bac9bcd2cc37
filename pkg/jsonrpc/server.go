package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/theapemachine/agui-go/pkg/errors"
)

/*
HandlerFunc resolves one JSON-RPC method call. Implementations return
the result value or an *errors.RpcError, never both.
*/
type HandlerFunc func(ctx context.Context, method string, params json.RawMessage) (any, *errors.RpcError)

/*
Server decodes JSON-RPC 2.0 payloads, including batches, and dispatches
each call to a HandlerFunc. Transport is the caller's concern, so the
same server works behind fiber handlers and tests alike.
*/
type Server struct {
	handle HandlerFunc
}

func NewServer(handle HandlerFunc) *Server {
	return &Server{handle: handle}
}

/*
Process handles one request body and returns the encoded response body.
A nil return means every request in the payload was a notification and
no body should be written.
*/
func (srv *Server) Process(ctx context.Context, body []byte) []byte {
	body = bytes.TrimSpace(body)

	if len(body) == 0 {
		return encode(newErrorResponse(nil, errors.ErrInvalidRequest))
	}

	// Support batch requests if the first byte is '['
	if body[0] == '[' {
		var batch []RPCRequest

		if err := json.Unmarshal(body, &batch); err != nil {
			return encode(newErrorResponse(nil, errors.ErrParseError))
		}

		var responses []RPCResponse

		for _, req := range batch {
			resp := srv.dispatch(ctx, &req)

			// Notifications expect no response.
			if !req.Notification() {
				responses = append(responses, resp)
			}
		}

		if len(responses) == 0 {
			return nil
		}

		return encode(responses)
	}

	var req RPCRequest

	if err := json.Unmarshal(body, &req); err != nil {
		return encode(newErrorResponse(nil, errors.ErrParseError))
	}

	resp := srv.dispatch(ctx, &req)

	if req.Notification() {
		return nil
	}

	return encode(resp)
}

func (srv *Server) dispatch(ctx context.Context, req *RPCRequest) RPCResponse {
	if req.JSONRPC != "2.0" {
		return newErrorResponse(req.ID, errors.ErrInvalidRequest)
	}

	result, rpcErr := srv.handle(ctx, req.Method, req.Params)

	if rpcErr != nil {
		return newErrorResponse(req.ID, rpcErr)
	}

	return RPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

func newErrorResponse(id json.RawMessage, e *errors.RpcError) RPCResponse {
	// Ensure mandatory Code/Message.
	if e == nil {
		e = errors.ErrInternal
	}

	return RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}

func encode(v any) []byte {
	b, err := json.Marshal(v)

	if err != nil {
		b, _ = json.Marshal(newErrorResponse(nil, errors.ErrInternal))
	}

	return b
}
