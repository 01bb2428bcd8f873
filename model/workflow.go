package model

import "time"

type WorkflowDefinition struct {
	Id        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Steps     []StepSpec `json:"steps" yaml:"steps"`
	Version   int        `json:"version" yaml:"version"`
	CreatedAt time.Time  `json:"createdAt" yaml:"createdAt"`
}

type StepSpec struct {
	Id         string         `json:"id" yaml:"id"`
	AgentId    string         `json:"agentId" yaml:"agent"`
	TaskType   string         `json:"taskType" yaml:"task"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	DependsOn  []string       `json:"dependsOn,omitempty" yaml:"depends_on,omitempty"`
}

// Clone returns a deep copy of the definition. Stored definitions are only
// ever handed out as clones so callers can not mutate them.
func (wf WorkflowDefinition) Clone() WorkflowDefinition {
	clone := wf
	if wf.Steps != nil {
		clone.Steps = CloneSteps(wf.Steps)
	}
	return clone
}

func (wf WorkflowDefinition) StepIds() []string {
	ids := make([]string, 0, len(wf.Steps))
	for _, step := range wf.Steps {
		ids = append(ids, step.Id)
	}
	return ids
}

func (s StepSpec) Clone() StepSpec {
	clone := s
	if s.DependsOn != nil {
		clone.DependsOn = append([]string{}, s.DependsOn...)
	}
	if s.Parameters != nil {
		clone.Parameters = CloneParams(s.Parameters)
	}
	return clone
}

func CloneSteps(steps []StepSpec) []StepSpec {
	out := make([]StepSpec, len(steps))
	for i, step := range steps {
		out[i] = step.Clone()
	}
	return out
}

// CloneParams deep copies nested maps and slices; leaf values are shared.
func CloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep copies a map[string]any or []any tree; other values are
// returned as is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneParams(val)
	case []any:
		list := make([]any, len(val))
		for i, item := range val {
			list[i] = CloneValue(item)
		}
		return list
	default:
		return v
	}
}
