package display

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func intPtr(i int) *int {
	return &i
}

func textBlock(text string) Block {
	return Block{Type: BlockTypeText, Text: text}
}

func toolUse(id, name string) Block {
	return Block{Type: BlockTypeToolUse, ToolUseID: id, ToolName: name}
}

func toolResult(id, content string) Block {
	return Block{Type: BlockTypeToolResult, ToolUseID: id, ToolResult: content}
}

func TestReconstructPlainConversation(t *testing.T) {
	Convey("Given a conversation without tool calls", t, func() {
		log := []Message{
			{ID: "u1", Role: "user", Blocks: []Block{textBlock("hi")}},
			{ID: "a1", Role: "assistant", Blocks: []Block{textBlock("hello")}},
		}

		units := Reconstruct(log)

		Convey("Every message is emitted standalone, in order", func() {
			So(units, ShouldHaveLength, 2)
			So(units[0].Type, ShouldEqual, UnitTypeMessage)
			So(units[0].Message.ID, ShouldEqual, "u1")
			So(units[1].Message.ID, ShouldEqual, "a1")
		})
	})
}

func TestReconstructToolPairing(t *testing.T) {
	Convey("Given a tool call answered after intervening messages", t, func() {
		log := []Message{
			{ID: "a1", Role: "assistant", Blocks: []Block{
				toolUse("t1", "bash"),
			}},
			{ID: "a2", Role: "assistant", Blocks: []Block{
				toolUse("t2", "read_file"),
			}},
			{ID: "r1", Role: "user", Blocks: []Block{
				toolResult("t1", "exit 0"),
			}},
		}

		units := Reconstruct(log)

		Convey("Both calls share one group and t1 is paired by id", func() {
			So(units, ShouldHaveLength, 1)
			So(units[0].Type, ShouldEqual, UnitTypeToolExecutions)
			So(units[0].Executions, ShouldHaveLength, 2)

			So(units[0].Executions[0].ToolUse.ToolUseID, ShouldEqual, "t1")
			So(units[0].Executions[0].ToolResult, ShouldNotBeNil)
			So(units[0].Executions[0].ToolResult.ToolResult, ShouldEqual, "exit 0")
			So(units[0].Executions[0].Fallback, ShouldBeFalse)

			So(units[0].Executions[1].ToolUse.ToolUseID, ShouldEqual, "t2")
			So(units[0].Executions[1].ToolResult, ShouldBeNil)
		})
	})

	Convey("Given a result whose id matches nothing", t, func() {
		log := []Message{
			{ID: "a1", Role: "assistant", Blocks: []Block{
				toolUse("t1", "bash"),
				toolUse("t2", "read_file"),
			}},
			{ID: "r1", Role: "user", Blocks: []Block{
				toolResult("t-unknown", "output"),
			}},
		}

		units := Reconstruct(log)

		Convey("It falls back to the oldest unpaired execution, marked", func() {
			So(units, ShouldHaveLength, 1)
			So(units[0].Executions[0].ToolUse.ToolUseID, ShouldEqual, "t1")
			So(units[0].Executions[0].ToolResult, ShouldNotBeNil)
			So(units[0].Executions[0].Fallback, ShouldBeTrue)
			So(units[0].Executions[1].ToolResult, ShouldBeNil)
		})
	})

	Convey("Given a result with no open execution anywhere", t, func() {
		log := []Message{
			{ID: "r1", Role: "user", Blocks: []Block{
				toolResult("t9", "late output"),
			}},
		}

		units := Reconstruct(log)

		Convey("A standalone execution is synthesized", func() {
			So(units, ShouldHaveLength, 1)
			So(units[0].Type, ShouldEqual, UnitTypeToolExecutions)
			So(units[0].Executions, ShouldHaveLength, 1)
			So(units[0].Executions[0].ToolUse.ToolUseID, ShouldEqual, "t9")
			So(units[0].Executions[0].ToolResult.ToolResult, ShouldEqual, "late output")
		})
	})
}

func TestReconstructCausalInterleaving(t *testing.T) {
	Convey("Given text interleaved with tool calls in one message", t, func() {
		log := []Message{
			{ID: "a1", Role: "assistant", Blocks: []Block{
				textBlock("Let me look."),
				toolUse("t1", "read_file"),
				textBlock("Now the tests."),
				toolUse("t2", "bash"),
			}},
		}

		units := Reconstruct(log)

		Convey("Output interleaves text and groups causally", func() {
			So(units, ShouldHaveLength, 4)

			So(units[0].Type, ShouldEqual, UnitTypeMessage)
			So(units[0].Message.Blocks[0].Text, ShouldEqual, "Let me look.")

			So(units[1].Type, ShouldEqual, UnitTypeToolExecutions)
			So(units[1].Executions[0].ToolUse.ToolUseID, ShouldEqual, "t1")

			So(units[2].Type, ShouldEqual, UnitTypeMessage)
			So(units[2].Message.Blocks[0].Text, ShouldEqual, "Now the tests.")

			So(units[3].Type, ShouldEqual, UnitTypeToolExecutions)
			So(units[3].Executions[0].ToolUse.ToolUseID, ShouldEqual, "t2")
		})

		Convey("A late result still lands in its already emitted group", func() {
			late := append(log, Message{ID: "r1", Role: "user", Blocks: []Block{
				toolResult("t1", "contents"),
			}})

			units := Reconstruct(late)

			So(units, ShouldHaveLength, 4)
			So(units[1].Executions[0].ToolResult, ShouldNotBeNil)
			So(units[1].Executions[0].ToolResult.ToolResult, ShouldEqual, "contents")
		})
	})
}

func TestReconstructBlockOrdering(t *testing.T) {
	Convey("Given blocks carrying explicit interleaving indexes", t, func() {
		log := []Message{
			{ID: "a1", Role: "assistant", Blocks: []Block{
				{Type: BlockTypeToolUse, ToolUseID: "t2", ToolName: "bash", Index: intPtr(3)},
				{Type: BlockTypeText, Text: "first", Index: intPtr(1)},
				{Type: BlockTypeToolUse, ToolUseID: "t1", ToolName: "read_file", Index: intPtr(2)},
				{Type: BlockTypeText, Text: "unindexed"},
			}},
		}

		units := Reconstruct(log)

		Convey("Indexed blocks run ascending, unindexed ones last", func() {
			So(units, ShouldHaveLength, 3)

			So(units[0].Type, ShouldEqual, UnitTypeMessage)
			So(units[0].Message.Blocks[0].Text, ShouldEqual, "first")

			So(units[1].Type, ShouldEqual, UnitTypeToolExecutions)
			So(units[1].Executions[0].ToolUse.ToolUseID, ShouldEqual, "t1")
			So(units[1].Executions[1].ToolUse.ToolUseID, ShouldEqual, "t2")

			So(units[2].Type, ShouldEqual, UnitTypeMessage)
			So(units[2].Message.Blocks[0].Text, ShouldEqual, "unindexed")
		})
	})
}

func TestReconstructUserTurnFlushes(t *testing.T) {
	Convey("Given a real user turn after an open tool group", t, func() {
		log := []Message{
			{ID: "a1", Role: "assistant", Blocks: []Block{
				toolUse("t1", "bash"),
			}},
			{ID: "u1", Role: "user", Blocks: []Block{
				textBlock("actually, stop"),
			}},
			{ID: "a2", Role: "assistant", Blocks: []Block{
				toolUse("t2", "bash"),
			}},
		}

		units := Reconstruct(log)

		Convey("The turn closes the group; later calls open a new one", func() {
			So(units, ShouldHaveLength, 3)
			So(units[0].Type, ShouldEqual, UnitTypeToolExecutions)
			So(units[1].Type, ShouldEqual, UnitTypeMessage)
			So(units[1].Message.ID, ShouldEqual, "u1")
			So(units[2].Type, ShouldEqual, UnitTypeToolExecutions)
			So(units[2].Executions[0].ToolUse.ToolUseID, ShouldEqual, "t2")
		})
	})

	Convey("Given a mixed user message with a result and text", t, func() {
		log := []Message{
			{ID: "a1", Role: "assistant", Blocks: []Block{
				toolUse("t1", "bash"),
			}},
			{ID: "u1", Role: "user", Blocks: []Block{
				toolResult("t1", "exit 0"),
				textBlock("looks good"),
			}},
		}

		units := Reconstruct(log)

		Convey("The result pairs first, then the turn emits standalone", func() {
			So(units, ShouldHaveLength, 2)
			So(units[0].Executions[0].ToolResult, ShouldNotBeNil)
			So(units[1].Type, ShouldEqual, UnitTypeMessage)
			So(units[1].Message.Blocks, ShouldHaveLength, 1)
			So(units[1].Message.Blocks[0].Text, ShouldEqual, "looks good")
		})
	})
}

func TestReconstructDeterminism(t *testing.T) {
	Convey("Given any log", t, func() {
		log := []Message{
			{ID: "a1", Role: "assistant", Blocks: []Block{
				textBlock("thinking out loud"),
				toolUse("t1", "bash"),
			}},
			{ID: "r1", Role: "user", Blocks: []Block{
				toolResult("t-unknown", "output"),
			}},
			{ID: "u1", Role: "user", Blocks: []Block{
				textBlock("thanks"),
			}},
		}

		Convey("Reconstruct is deterministic and leaves its input alone", func() {
			first := Reconstruct(log)
			second := Reconstruct(log)

			So(second, ShouldResemble, first)
		})
	})

	Convey("Given an empty log", t, func() {
		So(Reconstruct(nil), ShouldBeEmpty)
		So(Reconstruct([]Message{}), ShouldBeEmpty)
	})
}
