package a2a

import (
	"strings"

	"github.com/google/uuid"
)

// Message roles defined by the protocol.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

/*
Message represents all non‑artifact communication between client & agent.
*/
type Message struct {
	MessageID string         `json:"messageId"`
	Role      string         `json:"role"` // "user" or "agent"
	Parts     []Part         `json:"parts"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewTextMessage(role string, text string) *Message {
	return &Message{
		MessageID: uuid.NewString(),
		Role:      role,
		Parts: []Part{
			{Kind: PartKindText, Text: text},
		},
	}
}

func NewDataMessage(role string, data map[string]any) *Message {
	return &Message{
		MessageID: uuid.NewString(),
		Role:      role,
		Parts: []Part{
			{Kind: PartKindData, Data: data},
		},
	}
}

/*
String concatenates the text content of every text part. Data and file
parts contribute nothing.
*/
func (msg *Message) String() string {
	var sb strings.Builder

	for _, part := range msg.Parts {
		if part.Kind == PartKindText {
			sb.WriteString(part.Text)
		}
	}

	return sb.String()
}
