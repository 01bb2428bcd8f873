package flow

import "github.com/mohitkumar/agentflow/model"

// Chain makes every step without declared predecessors depend on the step
// declared right before it, which gives plain sequential execution. The
// first step stays a root. The input is not modified.
func Chain(steps []model.StepSpec) []model.StepSpec {
	out := model.CloneSteps(steps)
	for i := 1; i < len(out); i++ {
		if len(out[i].DependsOn) == 0 {
			out[i].DependsOn = []string{out[i-1].Id}
		}
	}
	return out
}
