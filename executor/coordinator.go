package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mohitkumar/agentflow/agent"
	"github.com/mohitkumar/agentflow/analytics"
	"github.com/mohitkumar/agentflow/flow"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

var now = time.Now

type stepJob struct {
	pos    int
	step   model.StepSpec
	agent  agent.Agent
	params map[string]any
}

type stepResult struct {
	pos     int
	outcome model.StepOutcome
}

// coordinator owns the step state of one execution. Only the goroutine
// running run touches outcomes; agent calls happen on the worker pool.
type coordinator struct {
	executionId string
	def         *model.WorkflowDefinition
	plan        *flow.Plan
	agents      map[string]agent.Agent
	opts        RunOptions
	collector   analytics.StepCollector

	order    []string
	position map[string]int
	outcomes []model.StepOutcome
	waiting  []int
	ready    []int
}

func newCoordinator(executionId string, def *model.WorkflowDefinition, plan *flow.Plan, agents map[string]agent.Agent, opts RunOptions, collector analytics.StepCollector) *coordinator {
	order := plan.Order()
	c := &coordinator{
		executionId: executionId,
		def:         def,
		plan:        plan,
		agents:      agents,
		opts:        opts,
		collector:   collector,
		order:       order,
		position:    make(map[string]int, len(order)),
		outcomes:    make([]model.StepOutcome, len(order)),
		waiting:     make([]int, len(order)),
	}
	for pos, id := range order {
		step, _ := plan.Step(id)
		c.position[id] = pos
		c.outcomes[pos] = model.StepOutcome{
			StepId:   id,
			AgentId:  step.AgentId,
			TaskType: step.TaskType,
			Status:   model.STEP_PENDING,
		}
		c.waiting[pos] = len(plan.Predecessors(id))
		if c.waiting[pos] == 0 {
			c.ready = append(c.ready, pos)
		}
	}
	return c
}

func (c *coordinator) run(ctx context.Context) model.ExecutionRecord {
	rec := model.ExecutionRecord{
		Id:              c.executionId,
		WorkflowId:      c.def.Id,
		WorkflowVersion: c.def.Version,
		StartedAt:       now(),
	}

	parallelism := c.opts.MaxParallelism
	results := make(chan stepResult, len(c.order))
	var wg sync.WaitGroup
	pool := util.NewWorkerPool("execution-"+c.executionId, parallelism, &wg, func(j util.Job) error {
		job := j.(stepJob)
		results <- stepResult{pos: job.pos, outcome: c.dispatch(ctx, job)}
		return nil
	}, len(c.order))
	pool.Start()
	defer func() {
		pool.Stop()
		wg.Wait()
	}()

	inFlight := 0
	cancelled := false
	ctxDone := ctx.Done()
	for {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
		}
		for !cancelled && len(c.ready) > 0 && inFlight < parallelism {
			pos := c.ready[0]
			c.ready = c.ready[1:]
			if job, ok := c.prepare(pos); ok {
				inFlight++
				pool.Sender() <- job
			}
		}
		if inFlight == 0 && (cancelled || len(c.ready) == 0) {
			break
		}
		select {
		case res := <-results:
			inFlight--
			c.finish(res.pos, res.outcome)
		case <-ctxDone:
			ctxDone = nil
			cancelled = true
		}
	}

	if cancelled {
		for pos := range c.outcomes {
			if c.outcomes[pos].Status == model.STEP_PENDING {
				c.skip(pos, model.ERROR_KIND_CANCELLED, "execution cancelled")
			}
		}
	}
	rec.Cancelled = cancelled
	rec.CompletedAt = now()
	rec.Steps = make([]model.StepOutcome, len(c.order))
	copy(rec.Steps, c.outcomes)
	return rec
}

// prepare decides what happens to a step whose predecessors are all
// terminal. It returns a job when the agent must be called.
func (c *coordinator) prepare(pos int) (stepJob, bool) {
	id := c.order[pos]
	step, _ := c.plan.Step(id)
	for _, pred := range c.plan.Predecessors(id) {
		predOutcome := c.outcomes[c.position[pred]]
		if predOutcome.Status != model.STEP_COMPLETED {
			c.skip(pos, model.ERROR_KIND_UPSTREAM, fmt.Sprintf("upstream step %s is %s", pred, predOutcome.Status))
			c.release(pos)
			return stepJob{}, false
		}
	}
	ag, found := c.agents[step.AgentId]
	if !found {
		c.transition(pos, model.STEP_RUNNING)
		c.outcomes[pos].StartedAt = now()
		c.finish(pos, model.StepOutcome{
			Status:      model.STEP_FAILED,
			Error:       model.AgentNotFoundError{AgentId: step.AgentId}.Error(),
			ErrorKind:   model.ERROR_KIND_AGENT_NOT_FOUND,
			StartedAt:   c.outcomes[pos].StartedAt,
			CompletedAt: now(),
		})
		return stepJob{}, false
	}
	c.transition(pos, model.STEP_RUNNING)
	c.outcomes[pos].StartedAt = now()
	return stepJob{
		pos:    pos,
		step:   step,
		agent:  ag,
		params: util.ResolveParams(c.upstreamData(id), step.Parameters),
	}, true
}

// upstreamData exposes the results of every ancestor of a step as
// $.<stepId>.result for parameter resolution.
func (c *coordinator) upstreamData(id string) map[string]any {
	data := make(map[string]any)
	stack := c.plan.Predecessors(id)
	for len(stack) > 0 {
		pred := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := data[pred]; seen {
			continue
		}
		data[pred] = map[string]any{"result": c.outcomes[c.position[pred]].Result}
		stack = append(stack, c.plan.Predecessors(pred)...)
	}
	return data
}

func (c *coordinator) finish(pos int, outcome model.StepOutcome) {
	current := &c.outcomes[pos]
	c.transition(pos, outcome.Status)
	current.TaskId = outcome.TaskId
	current.Result = outcome.Result
	current.Error = outcome.Error
	current.ErrorKind = outcome.ErrorKind
	current.Attempts = outcome.Attempts
	current.StartedAt = outcome.StartedAt
	current.CompletedAt = outcome.CompletedAt
	current.Duration = outcome.CompletedAt.Sub(outcome.StartedAt)

	if current.Status == model.STEP_COMPLETED {
		logger.Info("step completed", zap.String("workflow", c.def.Id), zap.String("executionId", c.executionId), zap.String("step", current.StepId), zap.Int("attempts", current.Attempts), zap.Duration("duration", current.Duration))
		c.collector.RecordStepSuccess(c.def.Id, c.executionId, current.StepId, current.AgentId, current.Attempts, current.Result)
	} else {
		logger.Error("step failed", zap.String("workflow", c.def.Id), zap.String("executionId", c.executionId), zap.String("step", current.StepId), zap.String("errorKind", string(current.ErrorKind)), zap.String("error", current.Error))
		c.collector.RecordStepFailure(c.def.Id, c.executionId, current.StepId, current.AgentId, current.Attempts, current.Error)
	}
	c.release(pos)
}

func (c *coordinator) skip(pos int, kind model.ErrorKind, reason string) {
	c.transition(pos, model.STEP_SKIPPED)
	c.outcomes[pos].ErrorKind = kind
	c.outcomes[pos].Error = reason
	logger.Info("step skipped", zap.String("workflow", c.def.Id), zap.String("executionId", c.executionId), zap.String("step", c.order[pos]), zap.String("reason", reason))
	c.collector.RecordStepSkipped(c.def.Id, c.executionId, c.order[pos], reason)
}

// release marks a terminal step as done for its dependents; dependents whose
// predecessors are now all terminal become ready in topological order.
func (c *coordinator) release(pos int) {
	for _, dependent := range c.plan.Dependents(c.order[pos]) {
		dpos := c.position[dependent]
		c.waiting[dpos]--
		if c.waiting[dpos] == 0 {
			i := sort.SearchInts(c.ready, dpos)
			c.ready = append(c.ready, 0)
			copy(c.ready[i+1:], c.ready[i:])
			c.ready[i] = dpos
		}
	}
}

func (c *coordinator) transition(pos int, to model.StepStatus) {
	from := c.outcomes[pos].Status
	if !from.CanTransition(to) {
		panic(fmt.Sprintf("illegal step transition %s -> %s for step %s", from, to, c.order[pos]))
	}
	c.outcomes[pos].Status = to
}
