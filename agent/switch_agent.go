package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohitkumar/agentflow/model"
	"github.com/oliveagle/jsonpath"
)

var _ Agent = new(SwitchAgent)

// SwitchAgent evaluates a jsonpath expression such as "{$.order.kind}"
// against the task parameters and completes with the matching case value.
// Unmatched values fall back to the "default" case when one is declared.
type SwitchAgent struct {
	baseAgent
	expression string
	cases      map[string]any
}

func NewSwitchAgent(id string, name string, expression string, cases map[string]any) (*SwitchAgent, error) {
	if len(expression) == 0 {
		return nil, fmt.Errorf("agent %s: expression can not be empty", id)
	}
	if !strings.HasPrefix(expression, "{") || !strings.HasSuffix(expression, "}") {
		return nil, fmt.Errorf("agent %s: expression should be enclosed in {}", id)
	}
	path := strings.TrimSuffix(strings.TrimPrefix(expression, "{"), "}")
	if _, err := jsonpath.Compile(path); err != nil {
		return nil, fmt.Errorf("agent %s: expression should be a valid jsonpath expression", id)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("agent %s: switch agent should have at least one case", id)
	}
	return &SwitchAgent{
		baseAgent:  newBaseAgent(id, name, "switch"),
		expression: path,
		cases:      cases,
	}, nil
}

func (sa *SwitchAgent) ExecuteTask(ctx context.Context, task *model.Task) model.TaskResult {
	value, err := jsonpath.JsonPathLookup(task.Parameters, sa.expression)
	if err != nil {
		return sa.track(model.Failed(err.Error()))
	}
	key := caseKey(value)
	if out, ok := sa.cases[key]; ok {
		return sa.track(model.Succeeded(out))
	}
	if out, ok := sa.cases["default"]; ok {
		return sa.track(model.Succeeded(out))
	}
	return sa.track(model.Failed(fmt.Sprintf("no case for value %s", key)))
}

func caseKey(value any) string {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.Itoa(int(v))
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
