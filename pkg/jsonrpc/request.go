package jsonrpc

import "encoding/json"

// RPCRequest is one JSON-RPC 2.0 call frame. ID stays raw because the
// protocol allows string, number or null ids.
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification reports whether the request carries no id and therefore
// expects no response.
func (req *RPCRequest) Notification() bool {
	return len(req.ID) == 0
}
