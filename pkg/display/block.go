package display

/*
Block is one content block inside a logged message.  We keep it simple
by embedding all optional fields in a single struct – only the fields
relevant to Type are populated. Index, when present, carries the source
interleaving order; blocks without a valid index sort after those with
one.
*/
type Block struct {
	Type BlockType `json:"type"`

	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`

	ToolUseID string         `json:"toolUseId,omitempty"`
	ToolName  string         `json:"toolName,omitempty"`
	ToolInput map[string]any `json:"toolInput,omitempty"`

	ToolResult string `json:"toolResult,omitempty"`
	IsError    bool   `json:"isError,omitempty"`

	Index *int `json:"index,omitempty"`
}

// BlockType is the discriminator for a Block union.
type BlockType string

const (
	BlockTypeText       BlockType = "text"
	BlockTypeThinking   BlockType = "thinking"
	BlockTypeToolUse    BlockType = "tool_use"
	BlockTypeToolResult BlockType = "tool_result"
)

/*
Message is one entry of the ordered session log.
*/
type Message struct {
	ID     string  `json:"id"`
	Role   string  `json:"role"`
	Blocks []Block `json:"blocks"`
}

/*
Unit is one renderable element of the reconstructed log: a standalone
message or a group of tool executions.
*/
type Unit struct {
	Type UnitType `json:"type"`

	Message    *Message         `json:"message,omitempty"`
	Executions []*ToolExecution `json:"executions,omitempty"`
}

// UnitType is the discriminator for a Unit union.
type UnitType string

const (
	UnitTypeMessage        UnitType = "message"
	UnitTypeToolExecutions UnitType = "tool_executions"
)

/*
ToolExecution pairs a tool call with its eventual result. Fallback
marks pairs made by the oldest-open heuristic rather than an id match,
so corrective pairings stay visible in the output.
*/
type ToolExecution struct {
	ToolUse    Block  `json:"toolUse"`
	ToolResult *Block `json:"toolResult,omitempty"`
	Fallback   bool   `json:"fallback,omitempty"`
}
