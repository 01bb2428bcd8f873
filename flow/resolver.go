package flow

import (
	"container/heap"
	"strings"

	"github.com/mohitkumar/agentflow/model"
)

// Plan is the resolved dependency graph of a workflow definition.
type Plan struct {
	WorkflowId   string
	steps        []model.StepSpec
	index        map[string]int
	predecessors map[string][]string
	dependents   map[string][]string
	order        []string
}

// Validate checks step identity, predecessor references and acyclicity.
func Validate(workflowId string, steps []model.StepSpec) error {
	index := make(map[string]int, len(steps))
	for i, step := range steps {
		if strings.TrimSpace(step.Id) == "" {
			return model.InvalidStepError{Index: i, StepId: step.Id, Reason: "step id can not be empty"}
		}
		if _, ok := index[step.Id]; ok {
			return model.InvalidStepError{Index: i, StepId: step.Id, Reason: "duplicate step id"}
		}
		if strings.TrimSpace(step.AgentId) == "" {
			return model.InvalidStepError{Index: i, StepId: step.Id, Reason: "agent id can not be empty"}
		}
		index[step.Id] = i
	}
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := index[dep]; !ok {
				return model.MissingDependencyError{StepId: step.Id, Dependency: dep}
			}
		}
	}
	if cycle := findCycle(steps, index); cycle != nil {
		return model.CyclicDependencyError{WorkflowId: workflowId, Cycle: cycle}
	}
	return nil
}

const (
	white = iota
	grey
	black
)

func findCycle(steps []model.StepSpec, index map[string]int) []string {
	color := make([]int, len(steps))
	var stack []string
	var visit func(i int) []string
	visit = func(i int) []string {
		color[i] = grey
		stack = append(stack, steps[i].Id)
		for _, dep := range steps[i].DependsOn {
			j := index[dep]
			switch color[j] {
			case grey:
				start := 0
				for k := len(stack) - 1; k >= 0; k-- {
					if stack[k] == dep {
						start = k
						break
					}
				}
				cycle := append([]string{}, stack[start:]...)
				return append(cycle, dep)
			case white:
				if cycle := visit(j); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return nil
	}
	for i := range steps {
		if color[i] == white {
			if cycle := visit(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Resolve validates the definition and computes its execution order. Steps
// with no ordering constraint between them keep their declaration order.
func Resolve(def model.WorkflowDefinition) (*Plan, error) {
	if err := Validate(def.Id, def.Steps); err != nil {
		return nil, err
	}
	p := &Plan{
		WorkflowId:   def.Id,
		steps:        model.CloneSteps(def.Steps),
		index:        make(map[string]int, len(def.Steps)),
		predecessors: make(map[string][]string, len(def.Steps)),
		dependents:   make(map[string][]string, len(def.Steps)),
	}
	for i, step := range p.steps {
		p.index[step.Id] = i
	}
	for _, step := range p.steps {
		seen := make(map[string]bool, len(step.DependsOn))
		for _, dep := range step.DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			p.predecessors[step.Id] = append(p.predecessors[step.Id], dep)
			p.dependents[dep] = append(p.dependents[dep], step.Id)
		}
	}
	p.order = p.topologicalOrder()
	return p, nil
}

func (p *Plan) topologicalOrder() []string {
	indegree := make([]int, len(p.steps))
	ready := &indexHeap{}
	for i, step := range p.steps {
		indegree[i] = len(p.predecessors[step.Id])
		if indegree[i] == 0 {
			heap.Push(ready, i)
		}
	}
	order := make([]string, 0, len(p.steps))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		id := p.steps[i].Id
		order = append(order, id)
		for _, dependent := range p.dependents[id] {
			j := p.index[dependent]
			indegree[j]--
			if indegree[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}
	return order
}

func (p *Plan) Len() int {
	return len(p.steps)
}

// Order returns step ids in execution order.
func (p *Plan) Order() []string {
	return append([]string{}, p.order...)
}

func (p *Plan) Step(id string) (model.StepSpec, bool) {
	i, ok := p.index[id]
	if !ok {
		return model.StepSpec{}, false
	}
	return p.steps[i].Clone(), true
}

// Index returns the declaration index of a step, or -1.
func (p *Plan) Index(id string) int {
	i, ok := p.index[id]
	if !ok {
		return -1
	}
	return i
}

func (p *Plan) Predecessors(id string) []string {
	return append([]string{}, p.predecessors[id]...)
}

// Dependents returns the steps that directly depend on id, in declaration order.
func (p *Plan) Dependents(id string) []string {
	return append([]string{}, p.dependents[id]...)
}

// Roots returns the steps without predecessors in declaration order.
func (p *Plan) Roots() []string {
	var roots []string
	for _, step := range p.steps {
		if len(p.predecessors[step.Id]) == 0 {
			roots = append(roots, step.Id)
		}
	}
	return roots
}

type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *indexHeap) Push(x any) {
	*h = append(*h, x.(int))
}

func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
