package display

import (
	"encoding/json"

	"github.com/theapemachine/agui-go/pkg/a2a"
)

/*
FromA2A converts a protocol message into the block form the session
log stores and Reconstruct consumes. Parts that carry nothing
renderable are skipped. An interleaving index is read from the part's
"index" metadata when present.
*/
func FromA2A(msg *a2a.Message) Message {
	out := Message{
		ID:   msg.MessageID,
		Role: normalizeRole(msg.Role),
	}

	for i := range msg.Parts {
		if block, ok := blockFromPart(&msg.Parts[i]); ok {
			out.Blocks = append(out.Blocks, block)
		}
	}

	return out
}

func blockFromPart(part *a2a.Part) (Block, bool) {
	var block Block

	switch part.Kind {
	case a2a.PartKindText:
		block = Block{Type: BlockTypeText, Text: part.Text}

	case a2a.PartKindData:
		switch part.DataKind() {
		case a2a.DataKindToolUse:
			block = Block{
				Type:      BlockTypeToolUse,
				ToolUseID: part.DataString("id"),
				ToolName:  part.DataString("name"),
				ToolInput: dataMap(part.DataValue("input")),
			}

		case a2a.DataKindToolResult:
			block = Block{
				Type:       BlockTypeToolResult,
				ToolUseID:  part.DataString("toolUseId"),
				ToolResult: stringify(part.DataValue("content")),
				IsError:    dataBool(part.DataValue("isError")),
			}

		case a2a.DataKindThinking:
			block = Block{Type: BlockTypeThinking, Thinking: part.DataString("thinking")}

		default:
			return Block{}, false
		}

	default:
		return Block{}, false
	}

	block.Index = indexOf(part)

	return block, true
}

func indexOf(part *a2a.Part) *int {
	raw, ok := part.Metadata["index"]

	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case float64:
		idx := int(v)
		return &idx
	case int:
		idx := v
		return &idx
	}

	return nil
}

func normalizeRole(role string) string {
	if role == a2a.RoleAgent {
		return "assistant"
	}

	return role
}

func dataMap(value any) map[string]any {
	m, _ := value.(map[string]any)
	return m
}

func dataBool(value any) bool {
	b, _ := value.(bool)
	return b
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
