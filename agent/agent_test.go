package agent

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/agentflow/model"
	"github.com/stretchr/testify/require"
)

func task(taskType string, params map[string]any) *model.Task {
	return &model.Task{Id: "t1", TaskType: taskType, Parameters: params, Status: model.TASK_RUNNING}
}

func TestEchoAgentReturnsParameters(t *testing.T) {
	a := NewEchoAgent("echo", "Echo")
	params := map[string]any{"text": "hi", "nested": map[string]any{"n": 1}}
	res := a.ExecuteTask(context.Background(), task("say", params))
	require.True(t, res.Success)
	require.Equal(t, params, res.Result)

	params["nested"].(map[string]any)["n"] = 2
	require.Equal(t, 1, res.Result.(map[string]any)["nested"].(map[string]any)["n"])

	status := a.Status()
	require.Equal(t, int64(1), status["succeeded"])
	require.Equal(t, "echo", status["kind"])
}

func TestFuncAgentTracksFailures(t *testing.T) {
	a := NewFuncAgent("f", "F", func(ctx context.Context, task *model.Task) model.TaskResult {
		return model.Failed("")
	})
	res := a.ExecuteTask(context.Background(), task("x", nil))
	require.False(t, res.Success)
	require.NotEmpty(t, res.Error)
	require.Equal(t, int64(1), a.Status()["failed"])
	require.Equal(t, "f", a.Id())
	require.Equal(t, "F", a.Name())
}

func TestJsAgentRunsScriptForTaskType(t *testing.T) {
	a, err := NewJsAgent("js", "Js", map[string]string{
		"sum": "$.total = $.a + $.b;",
	})
	require.NoError(t, err)

	res := a.ExecuteTask(context.Background(), task("sum", map[string]any{"a": 2, "b": 3}))
	require.True(t, res.Success, res.Error)
	out := res.Result.(map[string]any)
	require.Equal(t, float64(5), out["total"])

	res = a.ExecuteTask(context.Background(), task("other", nil))
	require.False(t, res.Success)
}

func TestJsAgentRejectsBadScripts(t *testing.T) {
	_, err := NewJsAgent("js", "Js", nil)
	require.Error(t, err)
	_, err = NewJsAgent("js", "Js", map[string]string{"t": "var = ;"})
	require.Error(t, err)

	a, err := NewJsAgent("js", "Js", map[string]string{"t": "throw new Error('boom');"})
	require.NoError(t, err)
	res := a.ExecuteTask(context.Background(), task("t", nil))
	require.False(t, res.Success)
	require.Contains(t, res.Error, "boom")
}

func TestJsAgentInterruptedByContext(t *testing.T) {
	a, err := NewJsAgent("js", "Js", map[string]string{"spin": "while (true) {}"})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := a.ExecuteTask(ctx, task("spin", nil))
	require.False(t, res.Success)
}

func TestSwitchAgent(t *testing.T) {
	a, err := NewSwitchAgent("sw", "Switch", "{$.kind}", map[string]any{"1": "one", "b": "bee", "default": "other"})
	require.NoError(t, err)

	res := a.ExecuteTask(context.Background(), task("route", map[string]any{"kind": float64(1)}))
	require.True(t, res.Success)
	require.Equal(t, "one", res.Result)

	res = a.ExecuteTask(context.Background(), task("route", map[string]any{"kind": "b"}))
	require.Equal(t, "bee", res.Result)

	res = a.ExecuteTask(context.Background(), task("route", map[string]any{"kind": "z"}))
	require.Equal(t, "other", res.Result)

	res = a.ExecuteTask(context.Background(), task("route", map[string]any{}))
	require.False(t, res.Success)

	_, err = NewSwitchAgent("sw", "Switch", "$.kind", map[string]any{"a": 1})
	require.Error(t, err)
	_, err = NewSwitchAgent("sw", "Switch", "{$.kind}", nil)
	require.Error(t, err)
}
