package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/theapemachine/agui-go/pkg/display"
	"github.com/theapemachine/agui-go/pkg/errors"
)

var replayCmd = &cobra.Command{
	Use:   "replay <log.json>",
	Short: "Reconstruct a session log into display units",
	Long: `Read a message-log JSON file (the output of sessions/log), run the
display reconstruction over it, and print the resulting units. Useful
for inspecting how a transcript will group on screen.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(args[0])
	},
}

func runReplay(path string) error {
	raw, err := os.ReadFile(path)

	if err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	var messages []display.Message

	if listErr := json.Unmarshal(raw, &messages); listErr != nil {
		// sessions/log wraps the list in an envelope; accept that too.
		var envelope struct {
			Messages []display.Message `json:"messages"`
		}

		if envelopeErr := json.Unmarshal(raw, &envelope); envelopeErr != nil {
			return errors.Join("parse log file", listErr, envelopeErr)
		}

		messages = envelope.Messages
	}

	for i, unit := range display.Reconstruct(messages) {
		fmt.Printf("%d. %s\n", i+1, formatUnit(&unit))
	}

	return nil
}

func formatUnit(unit *display.Unit) string {
	if unit.Type == display.UnitTypeMessage {
		return fmt.Sprintf("[%s] %s", unit.Message.Role, messageText(unit.Message))
	}

	parts := make([]string, 0, len(unit.Executions))

	for _, exec := range unit.Executions {
		state := "pending"

		if exec.ToolResult != nil {
			state = "done"

			if exec.ToolResult.IsError {
				state = "error"
			}
		}

		if exec.Fallback {
			state += ", fallback-paired"
		}

		parts = append(parts, fmt.Sprintf("%s (%s)", exec.ToolUse.ToolName, state))
	}

	return "[tools] " + strings.Join(parts, ", ")
}

func messageText(msg *display.Message) string {
	var b strings.Builder

	for _, block := range msg.Blocks {
		switch block.Type {
		case display.BlockTypeText:
			b.WriteString(block.Text)
		case display.BlockTypeThinking:
			b.WriteString("(thinking) ")
			b.WriteString(block.Thinking)
		}
	}

	return b.String()
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
