package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohitkumar/agentflow/agent"
	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/persistence/memory"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine   *Engine
	metadata metadata.MetadataService
	ledger   persistence.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ms := metadata.NewMetadataService(memory.NewInmemMetadataStorage(), false)
	ledger := memory.NewInmemLedger()
	return &fixture{
		engine:   NewEngine(ms, ledger, nil, nil, RunOptions{}),
		metadata: ms,
		ledger:   ledger,
	}
}

func (f *fixture) define(t *testing.T, id string, steps ...model.StepSpec) {
	t.Helper()
	_, err := f.metadata.Define(context.Background(), id, id, steps, false)
	require.NoError(t, err)
}

func (f *fixture) ledgerCount(t *testing.T) int {
	n, err := f.ledger.Count(context.Background())
	require.NoError(t, err)
	return n
}

func step(id string, agentId string, deps ...string) model.StepSpec {
	return model.StepSpec{Id: id, AgentId: agentId, TaskType: "work", DependsOn: deps}
}

func agents(list ...agent.Agent) map[string]agent.Agent {
	m := make(map[string]agent.Agent, len(list))
	for _, a := range list {
		m[a.Id()] = a
	}
	return m
}

func failing(id string) *agent.FuncAgent {
	return agent.NewFuncAgent(id, id, func(ctx context.Context, task *model.Task) model.TaskResult {
		return model.Failed("boom")
	})
}

func outcome(t *testing.T, rec *model.ExecutionRecord, stepId string) model.StepOutcome {
	t.Helper()
	o, ok := rec.Outcome(stepId)
	require.True(t, ok, "missing outcome for %s", stepId)
	return o
}

func TestFailedStepSkipsDependents(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w1", step("A", "echo"), step("B", "bad"), step("C", "echo", "B"))

	rec, err := f.engine.Execute(context.Background(), "w1", agents(agent.NewEchoAgent("echo", "Echo"), failing("bad")))
	require.NoError(t, err)

	require.Equal(t, model.STEP_COMPLETED, outcome(t, rec, "A").Status)
	b := outcome(t, rec, "B")
	require.Equal(t, model.STEP_FAILED, b.Status)
	require.Equal(t, model.ERROR_KIND_AGENT_EXECUTION, b.ErrorKind)
	require.Contains(t, b.Error, "boom")
	c := outcome(t, rec, "C")
	require.Equal(t, model.STEP_SKIPPED, c.Status)
	require.Equal(t, model.ERROR_KIND_UPSTREAM, c.ErrorKind)
	require.Equal(t, 0, c.Attempts)
	require.False(t, rec.Cancelled)
	require.Equal(t, 1, f.ledgerCount(t))
}

func TestMixedPredecessorsSkipDependent(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w1", step("A", "echo"), step("B", "bad"), step("C", "echo", "A", "B"))

	rec, err := f.engine.Execute(context.Background(), "w1", agents(agent.NewEchoAgent("echo", "Echo"), failing("bad")))
	require.NoError(t, err)

	require.Equal(t, model.STEP_COMPLETED, outcome(t, rec, "A").Status)
	require.Equal(t, model.STEP_FAILED, outcome(t, rec, "B").Status)
	c := outcome(t, rec, "C")
	require.Equal(t, model.STEP_SKIPPED, c.Status)
	require.Equal(t, model.ERROR_KIND_UPSTREAM, c.ErrorKind)
	require.Contains(t, c.Error, "B")
	require.Empty(t, c.TaskId)
}

func TestSkipPropagatesTransitively(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w",
		step("A", "bad"),
		step("B", "echo", "A"),
		step("C", "echo", "B"),
		step("D", "echo"),
		step("E", "echo", "D", "C"),
	)
	rec, err := f.engine.Execute(context.Background(), "w", agents(agent.NewEchoAgent("echo", "Echo"), failing("bad")))
	require.NoError(t, err)

	require.Equal(t, model.STEP_FAILED, outcome(t, rec, "A").Status)
	require.Equal(t, model.STEP_SKIPPED, outcome(t, rec, "B").Status)
	require.Equal(t, model.STEP_SKIPPED, outcome(t, rec, "C").Status)
	require.Equal(t, model.STEP_COMPLETED, outcome(t, rec, "D").Status)
	require.Equal(t, model.STEP_SKIPPED, outcome(t, rec, "E").Status)
	for _, o := range rec.Steps {
		require.True(t, o.Status.IsTerminal())
	}
}

func TestMissingAgentFailsWithoutRetry(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w", step("A", "ghost"), step("B", "echo", "A"), step("C", "echo"))

	rec, err := f.engine.Execute(context.Background(), "w", agents(agent.NewEchoAgent("echo", "Echo")),
		WithRetryPolicy(model.RetryPolicy{MaxRetries: 3, Policy: model.RETRY_POLICY_FIXED}))
	require.NoError(t, err)

	a := outcome(t, rec, "A")
	require.Equal(t, model.STEP_FAILED, a.Status)
	require.Equal(t, model.ERROR_KIND_AGENT_NOT_FOUND, a.ErrorKind)
	require.Equal(t, 0, a.Attempts)
	require.Equal(t, model.STEP_SKIPPED, outcome(t, rec, "B").Status)
	require.Equal(t, model.STEP_COMPLETED, outcome(t, rec, "C").Status)
}

func TestStepTimeout(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w", step("slow", "sleepy"), step("after", "echo", "slow"))
	sleepy := agent.NewFuncAgent("sleepy", "Sleepy", func(ctx context.Context, task *model.Task) model.TaskResult {
		time.Sleep(300 * time.Millisecond)
		return model.Succeeded("late")
	})

	rec, err := f.engine.Execute(context.Background(), "w", agents(sleepy, agent.NewEchoAgent("echo", "Echo")), WithStepTimeout(20*time.Millisecond))
	require.NoError(t, err)

	slow := outcome(t, rec, "slow")
	require.Equal(t, model.STEP_FAILED, slow.Status)
	require.Equal(t, model.ERROR_KIND_TIMEOUT, slow.ErrorKind)
	require.Less(t, slow.Duration, 250*time.Millisecond)
	require.Equal(t, model.STEP_SKIPPED, outcome(t, rec, "after").Status)
}

func TestTimedOutAgentKeepsItsTask(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w", step("slow", "sleepy"))
	seen := make(chan model.TaskStatus, 1)
	sleepy := agent.NewFuncAgent("sleepy", "Sleepy", func(ctx context.Context, task *model.Task) model.TaskResult {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		seen <- task.Status
		return model.Succeeded(nil)
	})

	rec, err := f.engine.Execute(context.Background(), "w", agents(sleepy), WithStepTimeout(10*time.Millisecond))
	require.NoError(t, err)
	require.Equal(t, model.ERROR_KIND_TIMEOUT, outcome(t, rec, "slow").ErrorKind)
	require.Equal(t, model.TASK_RUNNING, <-seen)
}

func TestStoredRecordIsolatedFromReturnedResult(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w", step("A", "mapper"))
	mapper := agent.NewFuncAgent("mapper", "Mapper", func(ctx context.Context, task *model.Task) model.TaskResult {
		return model.Succeeded(map[string]any{"k": "v"})
	})

	rec, err := f.engine.Execute(context.Background(), "w", agents(mapper))
	require.NoError(t, err)
	rec.Steps[0].Result.(map[string]any)["k"] = "changed"

	stored, err := f.ledger.Get(context.Background(), rec.Id)
	require.NoError(t, err)
	require.Equal(t, "v", stored.Steps[0].Result.(map[string]any)["k"])
}

func TestRetryPolicy(t *testing.T) {
	flaky := func() *agent.FuncAgent {
		var calls int32
		return agent.NewFuncAgent("flaky", "Flaky", func(ctx context.Context, task *model.Task) model.TaskResult {
			if atomic.AddInt32(&calls, 1) < 3 {
				return model.Failed("not yet")
			}
			return model.Succeeded(task.Attempt)
		})
	}

	f := newFixture(t)
	f.define(t, "w", step("A", "flaky"))

	rec, err := f.engine.Execute(context.Background(), "w", agents(flaky()),
		WithRetryPolicy(model.RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond, Policy: model.RETRY_POLICY_BACKOFF}))
	require.NoError(t, err)
	a := outcome(t, rec, "A")
	require.Equal(t, model.STEP_COMPLETED, a.Status)
	require.Equal(t, 3, a.Attempts)
	require.Equal(t, 3, a.Result)

	rec, err = f.engine.Execute(context.Background(), "w", agents(flaky()),
		WithRetryPolicy(model.RetryPolicy{MaxRetries: 1, Backoff: time.Millisecond, Policy: model.RETRY_POLICY_FIXED}))
	require.NoError(t, err)
	a = outcome(t, rec, "A")
	require.Equal(t, model.STEP_FAILED, a.Status)
	require.Equal(t, 2, a.Attempts)
	require.Contains(t, a.Error, "not yet")

	rec, err = f.engine.Execute(context.Background(), "w", agents(flaky()))
	require.NoError(t, err)
	require.Equal(t, 1, outcome(t, rec, "A").Attempts)
}

func TestMaxParallelismIsRespected(t *testing.T) {
	f := newFixture(t)
	var steps []model.StepSpec
	for i := 0; i < 8; i++ {
		steps = append(steps, step(fmt.Sprintf("S%d", i), "busy"))
	}
	f.define(t, "w", steps...)

	var current, peak int32
	busy := agent.NewFuncAgent("busy", "Busy", func(ctx context.Context, task *model.Task) model.TaskResult {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return model.Succeeded(nil)
	})

	rec, err := f.engine.Execute(context.Background(), "w", agents(busy), WithMaxParallelism(2))
	require.NoError(t, err)
	require.True(t, rec.Succeeded())
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestStepsRunInTopologicalOrder(t *testing.T) {
	f := newFixture(t)
	f.define(t, "diamond",
		step("D", "rec", "B", "C"),
		step("B", "rec", "A"),
		step("C", "rec", "A"),
		step("A", "rec"),
	)
	var mu sync.Mutex
	var calls []string
	recorder := agent.NewFuncAgent("rec", "Recorder", func(ctx context.Context, task *model.Task) model.TaskResult {
		mu.Lock()
		calls = append(calls, task.Parameters["step"].(string))
		mu.Unlock()
		return model.Succeeded(nil)
	})
	// every step tells the recorder who it is
	wf, err := f.metadata.Get(context.Background(), "diamond")
	require.NoError(t, err)
	for i := range wf.Steps {
		wf.Steps[i].Parameters = map[string]any{"step": wf.Steps[i].Id}
	}
	_, err = f.metadata.Define(context.Background(), "diamond", "diamond", wf.Steps, true)
	require.NoError(t, err)

	rec, err := f.engine.Execute(context.Background(), "diamond", agents(recorder), WithMaxParallelism(1))
	require.NoError(t, err)
	require.True(t, rec.Succeeded())
	require.Equal(t, []string{"A", "B", "C", "D"}, calls)
	require.Equal(t, 2, rec.WorkflowVersion)
}

func TestParametersResolveFromUpstreamResults(t *testing.T) {
	f := newFixture(t)
	_, err := f.metadata.Define(context.Background(), "w", "w", []model.StepSpec{
		{Id: "A", AgentId: "echo", TaskType: "say", Parameters: map[string]any{"n": 5, "name": "ann"}},
		{Id: "B", AgentId: "echo", TaskType: "say", DependsOn: []string{"A"}, Parameters: map[string]any{
			"fromA": "{$.A.result.n}",
			"msg":   "hello {$.A.result.name}",
			"keep":  "{$.Z.result}",
		}},
	}, false)
	require.NoError(t, err)

	rec, err := f.engine.Execute(context.Background(), "w", agents(agent.NewEchoAgent("echo", "Echo")))
	require.NoError(t, err)
	b := outcome(t, rec, "B").Result.(map[string]any)
	require.Equal(t, 5, b["fromA"])
	require.Equal(t, "hello ann", b["msg"])
	require.Equal(t, "{$.Z.result}", b["keep"])

	wf, err := f.metadata.Get(context.Background(), "w")
	require.NoError(t, err)
	require.Equal(t, "{$.A.result.n}", wf.Steps[1].Parameters["fromA"])
}

func TestAgentCanNotMutateDefinition(t *testing.T) {
	f := newFixture(t)
	_, err := f.metadata.Define(context.Background(), "w", "w", []model.StepSpec{
		{Id: "A", AgentId: "mut", Parameters: map[string]any{"list": []any{"x"}}},
	}, false)
	require.NoError(t, err)
	mut := agent.NewFuncAgent("mut", "Mutator", func(ctx context.Context, task *model.Task) model.TaskResult {
		task.Parameters["list"].([]any)[0] = "changed"
		task.Parameters["extra"] = true
		return model.Succeeded(nil)
	})

	_, err = f.engine.Execute(context.Background(), "w", agents(mut))
	require.NoError(t, err)
	wf, err := f.metadata.Get(context.Background(), "w")
	require.NoError(t, err)
	require.Equal(t, []any{"x"}, wf.Steps[0].Parameters["list"])
	require.NotContains(t, wf.Steps[0].Parameters, "extra")
}

func TestPanickingAgentFailsStep(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w", step("A", "panic"), step("B", "echo"))
	p := agent.NewFuncAgent("panic", "Panic", func(ctx context.Context, task *model.Task) model.TaskResult {
		panic("kaboom")
	})
	rec, err := f.engine.Execute(context.Background(), "w", agents(p, agent.NewEchoAgent("echo", "Echo")))
	require.NoError(t, err)
	a := outcome(t, rec, "A")
	require.Equal(t, model.STEP_FAILED, a.Status)
	require.Equal(t, model.ERROR_KIND_AGENT_EXECUTION, a.ErrorKind)
	require.Contains(t, a.Error, "kaboom")
	require.Equal(t, model.STEP_COMPLETED, outcome(t, rec, "B").Status)
}

func TestExecuteMissingWorkflow(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Execute(context.Background(), "missing", nil)
	var nf model.NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, 0, f.ledgerCount(t))
}

func TestRepeatedExecutionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w", step("A", "echo"))
	echo := agents(agent.NewEchoAgent("echo", "Echo"))

	first, err := f.engine.Execute(context.Background(), "w", echo)
	require.NoError(t, err)
	second, err := f.engine.Execute(context.Background(), "w", echo)
	require.NoError(t, err)
	require.NotEqual(t, first.Id, second.Id)
	require.Equal(t, 2, f.ledgerCount(t))

	first.Steps[0].Status = model.STEP_FAILED
	stored, err := f.ledger.Get(context.Background(), first.Id)
	require.NoError(t, err)
	require.Equal(t, model.STEP_COMPLETED, stored.Steps[0].Status)
}

func TestCancelSkipsPendingSteps(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w", step("A", "block"), step("B", "echo", "A"), step("C", "echo", "B"))

	started := make(chan struct{})
	release := make(chan struct{})
	block := agent.NewFuncAgent("block", "Block", func(ctx context.Context, task *model.Task) model.TaskResult {
		close(started)
		<-release
		return model.Succeeded("done")
	})

	exec, err := f.engine.Start(context.Background(), "w", agents(block, agent.NewEchoAgent("echo", "Echo")))
	require.NoError(t, err)
	<-started
	require.Contains(t, f.engine.Running(), exec.Id())
	require.NoError(t, f.engine.Cancel(exec.Id()))
	close(release)

	rec, err := exec.Wait()
	require.NoError(t, err)
	require.True(t, rec.Cancelled)
	require.Equal(t, model.STEP_COMPLETED, outcome(t, rec, "A").Status)
	b := outcome(t, rec, "B")
	require.Equal(t, model.STEP_SKIPPED, b.Status)
	require.Equal(t, model.ERROR_KIND_CANCELLED, b.ErrorKind)
	require.Equal(t, model.STEP_SKIPPED, outcome(t, rec, "C").Status)
	require.Equal(t, 1, f.ledgerCount(t))

	var nf model.NotFoundError
	require.True(t, errors.As(f.engine.Cancel(exec.Id()), &nf))
	require.True(t, errors.As(f.engine.Cancel("unknown"), &nf))
	require.Empty(t, f.engine.Running())
}

func TestCancelledContextSkipsEverything(t *testing.T) {
	f := newFixture(t)
	f.define(t, "w", step("A", "echo"), step("B", "echo", "A"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := f.engine.Execute(ctx, "w", agents(agent.NewEchoAgent("echo", "Echo")))
	require.NoError(t, err)
	require.True(t, rec.Cancelled)
	for _, o := range rec.Steps {
		require.Equal(t, model.STEP_SKIPPED, o.Status)
	}
}

func TestEmptyWorkflowProducesEmptyRecord(t *testing.T) {
	f := newFixture(t)
	f.define(t, "empty")
	rec, err := f.engine.Execute(context.Background(), "empty", nil)
	require.NoError(t, err)
	require.Empty(t, rec.Steps)
	require.True(t, rec.Succeeded())
	require.Equal(t, 1, f.ledgerCount(t))
}
