package agent

import (
	"context"

	"github.com/mohitkumar/agentflow/model"
)

type TaskFunc func(ctx context.Context, task *model.Task) model.TaskResult

var _ Agent = new(FuncAgent)

// FuncAgent adapts a plain function to the Agent contract.
type FuncAgent struct {
	baseAgent
	fn TaskFunc
}

func NewFuncAgent(id string, name string, fn TaskFunc) *FuncAgent {
	return &FuncAgent{
		baseAgent: newBaseAgent(id, name, "func"),
		fn:        fn,
	}
}

func (fa *FuncAgent) ExecuteTask(ctx context.Context, task *model.Task) model.TaskResult {
	return fa.track(fa.fn(ctx, task))
}
