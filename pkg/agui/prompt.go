package agui

/*
QuestionPrompt is the value of a QuestionPending custom event: the
agent paused and wants the user to answer one or more questions before
it continues.
*/
type QuestionPrompt struct {
	Questions []Question `json:"questions"`
	ToolUseID string     `json:"toolUseId,omitempty"`
}

type Question struct {
	Question    string           `json:"question"`
	Header      string           `json:"header,omitempty"`
	Options     []QuestionOption `json:"options,omitempty"`
	MultiSelect bool             `json:"multiSelect"`
}

type QuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

/*
PlanProposal is the value of a PlanPending custom event: the agent
drafted a plan and is waiting for the user's go-ahead.
*/
type PlanProposal struct {
	Plan         string `json:"plan"`
	PlanFilePath string `json:"planFilePath,omitempty"`
}
