package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"go.uber.org/zap"
)

var _ Agent = new(JsAgent)

// JsAgent runs a javascript snippet per task type. The task parameters are
// bound to $ before the snippet runs and the final value of $ is the result.
type JsAgent struct {
	baseAgent
	scripts map[string]string
}

func NewJsAgent(id string, name string, scripts map[string]string) (*JsAgent, error) {
	if len(scripts) == 0 {
		return nil, fmt.Errorf("agent %s: at least one script is required", id)
	}
	compiled := make(map[string]string, len(scripts))
	for taskType, script := range scripts {
		if len(script) == 0 {
			return nil, fmt.Errorf("agent %s: script for task type %s can not be empty", id, taskType)
		}
		if _, err := goja.Compile(taskType, script, false); err != nil {
			return nil, fmt.Errorf("agent %s: invalid script for task type %s: %w", id, taskType, err)
		}
		compiled[taskType] = script
	}
	return &JsAgent{
		baseAgent: newBaseAgent(id, name, "js"),
		scripts:   compiled,
	}, nil
}

func (ja *JsAgent) ExecuteTask(ctx context.Context, task *model.Task) model.TaskResult {
	script, ok := ja.scripts[task.TaskType]
	if !ok {
		return ja.track(model.Failed(fmt.Sprintf("unsupported task type %s", task.TaskType)))
	}
	logger.Debug("running script", zap.String("agent", ja.id), zap.String("task", task.Id), zap.String("taskType", task.TaskType))
	data, err := json.Marshal(task.Parameters)
	if err != nil {
		return ja.track(model.Failed(err.Error()))
	}
	if task.Parameters == nil {
		data = []byte("{}")
	}

	vm := goja.New()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	if _, err := vm.RunString(fmt.Sprintf("var $ = %s;\n%s", data, script)); err != nil {
		return ja.track(model.Failed(fmt.Sprintf("error executing javascript: %v", err)))
	}
	val, err := vm.RunString("$")
	if err != nil {
		return ja.track(model.Failed(fmt.Sprintf("error executing javascript: %v", err)))
	}
	res, err := json.Marshal(val.Export())
	if err != nil {
		return ja.track(model.Failed(err.Error()))
	}
	var output any
	if err := json.Unmarshal(res, &output); err != nil {
		return ja.track(model.Failed(err.Error()))
	}
	return ja.track(model.Succeeded(output))
}
