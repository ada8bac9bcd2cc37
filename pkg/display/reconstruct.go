package display

import "sort"

/*
Reconstruct turns an ordered message log into a flat sequence of
display units, re-interleaving streamed text with tool calls and their
possibly delayed results. The function is pure and deterministic:
identical input always yields identical output.

Walk order follows the log; inside one message, blocks follow their
Index (valid indexes ascending, invalid ones last, ties stable). A
message made only of tool results delivers results into open
executions and renders nothing of its own. A real user turn closes any
open tool group. Text accumulated before a tool call is emitted ahead
of the group that call opens, preserving causality.
*/
func Reconstruct(messages []Message) []Unit {
	rec := &reconstructor{units: []Unit{}}

	for i := range messages {
		rec.message(&messages[i])
	}

	rec.flushGroup()

	return rec.units
}

type reconstructor struct {
	units []Unit

	// pending is the group still accepting new tool calls; open holds
	// every execution without a result yet, oldest first, including
	// ones inside already emitted groups.
	pending []*ToolExecution
	open    []*ToolExecution
}

func (rec *reconstructor) message(msg *Message) {
	blocks := sortBlocks(msg.Blocks)

	// A message of nothing but tool results is result delivery, not a
	// turn: it pairs results and leaves the open group alone.
	if isResultDelivery(blocks) {
		for _, block := range blocks {
			rec.pairResult(block)
		}

		return
	}

	if msg.Role != "user" && hasToolUse(blocks) {
		rec.assistantTurn(msg, blocks)
		return
	}

	rec.standaloneTurn(msg, blocks)
}

/*
assistantTurn walks a tool-using assistant message block by block.
Encountering a tool call after accumulated text flushes the open group
and emits the text first, so output order matches causal order.
*/
func (rec *reconstructor) assistantTurn(msg *Message, blocks []Block) {
	var textRun []Block

	for _, block := range blocks {
		switch block.Type {
		case BlockTypeText, BlockTypeThinking:
			textRun = append(textRun, block)

		case BlockTypeToolUse:
			if len(textRun) > 0 {
				rec.flushGroup()
				rec.emitMessage(msg, textRun)
				textRun = nil
			}

			exec := &ToolExecution{ToolUse: block}
			rec.pending = append(rec.pending, exec)
			rec.open = append(rec.open, exec)

		case BlockTypeToolResult:
			rec.pairResult(block)
		}
	}

	if len(textRun) > 0 {
		rec.flushGroup()
		rec.emitMessage(msg, textRun)
	}
}

/*
standaloneTurn renders a message that is a turn of its own. Embedded
tool results are delivered first, then the turn closes the open group
and is emitted with its remaining blocks.
*/
func (rec *reconstructor) standaloneTurn(msg *Message, blocks []Block) {
	rest := blocks[:0:0]

	for _, block := range blocks {
		if block.Type == BlockTypeToolResult {
			rec.pairResult(block)
			continue
		}

		rest = append(rest, block)
	}

	rec.flushGroup()
	rec.emitMessage(msg, rest)
}

/*
pairResult finds the execution a result belongs to: id match first,
then the oldest open execution, then a synthesized one as the
defensive default.
*/
func (rec *reconstructor) pairResult(block Block) {
	result := block

	for i, exec := range rec.open {
		if exec.ToolUse.ToolUseID == block.ToolUseID {
			exec.ToolResult = &result
			rec.open = append(rec.open[:i], rec.open[i+1:]...)

			return
		}
	}

	if len(rec.open) > 0 {
		exec := rec.open[0]
		exec.ToolResult = &result
		exec.Fallback = true
		rec.open = rec.open[1:]

		return
	}

	exec := &ToolExecution{
		ToolUse:    Block{Type: BlockTypeToolUse, ToolUseID: block.ToolUseID},
		ToolResult: &result,
	}

	if rec.pending != nil {
		rec.pending = append(rec.pending, exec)
		return
	}

	rec.units = append(rec.units, Unit{
		Type:       UnitTypeToolExecutions,
		Executions: []*ToolExecution{exec},
	})
}

/*
flushGroup closes the pending group to further tool calls and emits it.
Executions inside it stay open for result pairing.
*/
func (rec *reconstructor) flushGroup() {
	if len(rec.pending) == 0 {
		rec.pending = nil
		return
	}

	rec.units = append(rec.units, Unit{
		Type:       UnitTypeToolExecutions,
		Executions: rec.pending,
	})
	rec.pending = nil
}

func (rec *reconstructor) emitMessage(msg *Message, blocks []Block) {
	rec.units = append(rec.units, Unit{
		Type: UnitTypeMessage,
		Message: &Message{
			ID:     msg.ID,
			Role:   msg.Role,
			Blocks: blocks,
		},
	})
}

/*
sortBlocks orders blocks by Index ascending, keeping blocks without a
valid index after indexed ones and preserving source order on ties.
*/
func sortBlocks(blocks []Block) []Block {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)

	sort.SliceStable(sorted, func(i, j int) bool {
		vi, vj := validIndex(&sorted[i]), validIndex(&sorted[j])

		switch {
		case vi && vj:
			return *sorted[i].Index < *sorted[j].Index
		case vi:
			return true
		default:
			return false
		}
	})

	return sorted
}

func validIndex(block *Block) bool {
	return block.Index != nil && *block.Index >= 0
}

func isResultDelivery(blocks []Block) bool {
	if len(blocks) == 0 {
		return false
	}

	for _, block := range blocks {
		if block.Type != BlockTypeToolResult {
			return false
		}
	}

	return true
}

func hasToolUse(blocks []Block) bool {
	for _, block := range blocks {
		if block.Type == BlockTypeToolUse {
			return true
		}
	}

	return false
}
