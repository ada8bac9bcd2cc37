package a2a

import "encoding/base64"

/*
Part is a discriminated union over Text, File and Data parts.  We keep it
simple by embedding all optional fields in a single struct – this avoids
heavy custom JSON marshalling logic while remaining spec‑compliant.

NOTE: Exactly ONE of Text, File, or Data should be populated according to
the Kind field. This is not enforced at the struct level, but producers
should ensure the constraint is respected when creating Parts.
*/
type Part struct {
	Kind PartKind `json:"kind"`

	// Exactly one of the following should be populated depending on Kind.
	Text string         `json:"text,omitempty"`
	File *FilePart      `json:"file,omitempty"`
	Data map[string]any `json:"data,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartKind is the discriminator for a Part union.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindFile PartKind = "file"
	PartKindData PartKind = "data"
)

// Tags carried in a data part's "type" key. They mirror the content
// block grammar coding agents stream: tool invocations, their results,
// and reasoning text.
const (
	DataKindToolUse    = "tool_use"
	DataKindToolResult = "tool_result"
	DataKindThinking   = "thinking"
)

type FilePart struct {
	Name     *string `json:"name,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
	Data     string  `json:"bytes,omitempty"`
	URI      string  `json:"uri,omitempty"`
}

func NewTextPart(text string) Part {
	return Part{
		Kind: PartKindText,
		Text: text,
	}
}

func NewFilePart(name string, mimeType string, data []byte) Part {
	return Part{
		Kind: PartKindFile,
		File: &FilePart{
			Name:     &name,
			MimeType: &mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		},
	}
}

func NewDataPart(data map[string]any) Part {
	return Part{
		Kind: PartKindData,
		Data: data,
	}
}

/*
DataKind returns the tag stored in a data part's "type" key, or the
empty string for untagged or non-data parts.
*/
func (part *Part) DataKind() string {
	if part.Kind != PartKindData || part.Data == nil {
		return ""
	}

	kind, _ := part.Data["type"].(string)
	return kind
}

/*
DataString returns the named data field as a string, or the empty
string when the field is absent or not a string.
*/
func (part *Part) DataString(key string) string {
	if part.Data == nil {
		return ""
	}

	value, _ := part.Data[key].(string)
	return value
}

/*
DataValue returns the named data field untyped, or nil when absent.
*/
func (part *Part) DataValue(key string) any {
	if part.Data == nil {
		return nil
	}

	return part.Data[key]
}
