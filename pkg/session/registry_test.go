package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/agui-go/pkg/agui"
	"github.com/theapemachine/agui-go/pkg/hub"
)

func newTestRegistry() (*Registry, *hub.Hub) {
	h := hub.New()
	return NewRegistry(h), h
}

func drain(sub *hub.Subscriber) []agui.Event {
	var out []agui.Event

	for {
		select {
		case ev := <-sub.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRunStartedCreatesSession(t *testing.T) {
	reg, _ := newTestRegistry()

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))

	snapshot, rpcErr := reg.Get("s1")
	require.Nil(t, rpcErr)
	assert.Equal(t, StatusWorking, snapshot.Status)
	assert.Equal(t, "run-1", snapshot.RunID)
}

func TestUnknownSessionRejectsNonStartEvents(t *testing.T) {
	reg, _ := newTestRegistry()

	err := reg.ApplyEvent("ghost", agui.NewTextMessageStart("m1", "assistant"))
	assert.Error(t, err)

	_, rpcErr := reg.Get("ghost")
	assert.NotNil(t, rpcErr)
}

func TestDuplicateRunStartedIsIdempotent(t *testing.T) {
	reg, _ := newTestRegistry()

	snapshot, sub := reg.Join("s1")
	assert.Equal(t, StatusIdle, snapshot.Status)

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))
	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))

	var started int

	for _, ev := range drain(sub) {
		if ev.Type == agui.EventTypeRunStarted {
			started++
		}
	}

	assert.Equal(t, 1, started, "subscribers observe RUN_STARTED only once")

	after, rpcErr := reg.Get("s1")
	require.Nil(t, rpcErr)
	assert.Equal(t, StatusWorking, after.Status)
	assert.Equal(t, "run-1", after.RunID)
}

func TestRunLifecycleTransitions(t *testing.T) {
	reg, _ := newTestRegistry()

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))
	require.NoError(t, reg.ApplyEvent("s1", agui.NewTextMessageStart("m1", "assistant")))
	require.NoError(t, reg.ApplyEvent("s1", agui.NewTextMessageContent("m1", "done")))
	require.NoError(t, reg.ApplyEvent("s1", agui.NewTextMessageEnd("m1")))
	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunFinished("s1", "run-1", "done")))

	snapshot, rpcErr := reg.Get("s1")
	require.Nil(t, rpcErr)
	assert.Equal(t, StatusCompleted, snapshot.Status)

	// Text after the run ended is rejected, state is untouched.
	assert.Error(t, reg.ApplyEvent("s1", agui.NewTextMessageStart("m2", "assistant")))

	after, _ := reg.Get("s1")
	assert.Equal(t, StatusCompleted, after.Status)

	// A completed session admits a new run.
	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-2")))

	again, _ := reg.Get("s1")
	assert.Equal(t, StatusWorking, again.Status)
	assert.Equal(t, "run-2", again.RunID)
}

func TestRunErrorMovesToFailed(t *testing.T) {
	reg, _ := newTestRegistry()

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))
	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunError("s1", "run-1", "boom")))

	snapshot, _ := reg.Get("s1")
	assert.Equal(t, StatusFailed, snapshot.Status)
}

func TestQuestionPendingFlow(t *testing.T) {
	reg, _ := newTestRegistry()

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))

	prompt := agui.QuestionPrompt{
		Questions: []agui.Question{{Question: "Proceed?"}},
		ToolUseID: "t1",
	}
	require.NoError(t, reg.ApplyEvent("s1", agui.NewCustom(agui.CustomQuestionPending, prompt)))

	snapshot, _ := reg.Get("s1")
	assert.Equal(t, StatusWaitingForQuestion, snapshot.Status)
	require.NotNil(t, snapshot.PendingQuestion)
	assert.Equal(t, "Proceed?", snapshot.PendingQuestion.Questions[0].Question)

	// Tool traffic while waiting is rejected.
	assert.Error(t, reg.ApplyEvent("s1", agui.NewToolCallStart("t2", "bash")))

	require.Nil(t, reg.ResolveQuestion("s1"))

	after, _ := reg.Get("s1")
	assert.Equal(t, StatusWorking, after.Status)
	assert.Nil(t, after.PendingQuestion)

	// Answering twice fails: nothing is pending anymore.
	rpcErr := reg.ResolveQuestion("s1")
	require.NotNil(t, rpcErr)
	assert.Equal(t, -32002, rpcErr.Code)
}

func TestPlanPendingFlow(t *testing.T) {
	reg, _ := newTestRegistry()

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))

	proposal := agui.PlanProposal{Plan: "do the thing", PlanFilePath: "plan.md"}
	require.NoError(t, reg.ApplyEvent("s1", agui.NewCustom(agui.CustomPlanPending, proposal)))

	snapshot, _ := reg.Get("s1")
	assert.Equal(t, StatusWaitingForPlanApproval, snapshot.Status)
	require.NotNil(t, snapshot.PendingPlan)
	assert.Equal(t, "do the thing", snapshot.PendingPlan.Plan)

	require.Nil(t, reg.ResolvePlan("s1"))

	after, _ := reg.Get("s1")
	assert.Equal(t, StatusWorking, after.Status)
	assert.Nil(t, after.PendingPlan)
}

func TestStopIsTerminal(t *testing.T) {
	reg, _ := newTestRegistry()

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))

	snapshot, rpcErr := reg.Stop("s1")
	require.Nil(t, rpcErr)
	assert.Equal(t, StatusStopped, snapshot.Status)

	// Everything after the stop is discarded, even a new run.
	assert.Error(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-2")))
	assert.Error(t, reg.ApplyEvent("s1", agui.NewRunFinished("s1", "run-1", "")))

	after, _ := reg.Get("s1")
	assert.Equal(t, StatusStopped, after.Status)
	assert.Equal(t, "run-1", after.RunID)
}

func TestToolResultFallbackPairing(t *testing.T) {
	reg, _ := newTestRegistry()

	_, sub := reg.Join("s1")

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))
	require.NoError(t, reg.ApplyEvent("s1", agui.NewToolCallStart("t1", "bash")))
	require.NoError(t, reg.ApplyEvent("s1", agui.NewToolCallStart("t2", "read_file")))

	// The result id matches nothing, so it re-points at the oldest open
	// call before being forwarded.
	require.NoError(t, reg.ApplyEvent("s1", agui.NewToolCallResult("t-unknown", "output")))

	var results []agui.Event

	for _, ev := range drain(sub) {
		if ev.Type == agui.EventTypeToolCallResult {
			results = append(results, ev)
		}
	}

	require.Len(t, results, 1)
	assert.Equal(t, "t1", results[0].ToolCallID)
	assert.Equal(t, "output", results[0].Result)
}

func TestJoinSnapshotMatchesCommitOrder(t *testing.T) {
	reg, h := newTestRegistry()

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))

	// Joining after the first commit sees Working in the snapshot and
	// only later events live.
	snapshot, sub := reg.Join("s1")
	defer h.Unsubscribe(sub)

	assert.Equal(t, StatusWorking, snapshot.Status)

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunFinished("s1", "run-1", "done")))

	events := drain(sub)
	require.NotEmpty(t, events)
	assert.Equal(t, agui.EventTypeRunFinished, events[0].Type)
}

func TestSessionsProceedIndependently(t *testing.T) {
	reg, _ := newTestRegistry()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			id := fmt.Sprintf("s%d", i)
			runID := fmt.Sprintf("run-%d", i)

			assert.NoError(t, reg.ApplyEvent(id, agui.NewRunStarted(id, runID)))
			assert.NoError(t, reg.ApplyEvent(id, agui.NewRunFinished(id, runID, "ok")))
		}(i)
	}

	wg.Wait()

	for i := 0; i < 8; i++ {
		snapshot, rpcErr := reg.Get(fmt.Sprintf("s%d", i))
		require.Nil(t, rpcErr)
		assert.Equal(t, StatusCompleted, snapshot.Status)
	}
}

func TestSweepEvictsStoppedSessions(t *testing.T) {
	reg, h := newTestRegistry()

	require.NoError(t, reg.ApplyEvent("s1", agui.NewRunStarted("s1", "run-1")))
	require.NoError(t, reg.ApplyEvent("s2", agui.NewRunStarted("s2", "run-2")))

	_, rpcErr := reg.Stop("s1")
	require.Nil(t, rpcErr)

	evicted := reg.Sweep(0)

	require.Len(t, evicted, 1)
	assert.Equal(t, "s1", evicted[0].ID)
	assert.Equal(t, StatusStopped, evicted[0].Status)
	assert.Equal(t, 0, h.SubscriberCount("s1"))

	// The working session survives the sweep.
	_, rpcErr = reg.Get("s2")
	assert.Nil(t, rpcErr)
}
