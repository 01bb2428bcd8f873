package agent

import (
	"context"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"go.uber.org/zap"
)

var _ Agent = new(EchoAgent)

// EchoAgent completes every task with its resolved parameters as the result.
type EchoAgent struct {
	baseAgent
}

func NewEchoAgent(id string, name string) *EchoAgent {
	return &EchoAgent{
		baseAgent: newBaseAgent(id, name, "echo"),
	}
}

func (ea *EchoAgent) ExecuteTask(ctx context.Context, task *model.Task) model.TaskResult {
	logger.Debug("running task", zap.String("agent", ea.id), zap.String("task", task.Id), zap.String("taskType", task.TaskType))
	return ea.track(model.Succeeded(model.CloneParams(task.Parameters)))
}
