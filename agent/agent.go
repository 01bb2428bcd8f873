package agent

import (
	"context"
	"sync/atomic"

	"github.com/mohitkumar/agentflow/model"
)

// Agent executes tasks of one or more task types. ctx carries cancellation
// and the step timeout; agents are free to ignore it.
type Agent interface {
	Id() string
	Name() string
	ExecuteTask(ctx context.Context, task *model.Task) model.TaskResult
}

// StatusReporter is implemented by agents that contribute to the system report.
type StatusReporter interface {
	Status() map[string]any
}

type baseAgent struct {
	id        string
	name      string
	kind      string
	succeeded int64
	failed    int64
}

func newBaseAgent(id string, name string, kind string) baseAgent {
	return baseAgent{id: id, name: name, kind: kind}
}

func (ba *baseAgent) Id() string {
	return ba.id
}

func (ba *baseAgent) Name() string {
	return ba.name
}

func (ba *baseAgent) Status() map[string]any {
	return map[string]any{
		"kind":      ba.kind,
		"succeeded": atomic.LoadInt64(&ba.succeeded),
		"failed":    atomic.LoadInt64(&ba.failed),
	}
}

func (ba *baseAgent) track(res model.TaskResult) model.TaskResult {
	if res.Success {
		atomic.AddInt64(&ba.succeeded, 1)
	} else {
		atomic.AddInt64(&ba.failed, 1)
	}
	return res
}
