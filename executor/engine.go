package executor

import (
	"context"

	"github.com/google/uuid"
	"github.com/mohitkumar/agentflow/agent"
	"github.com/mohitkumar/agentflow/analytics"
	"github.com/mohitkumar/agentflow/cache"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"go.uber.org/zap"
)

type Engine struct {
	metadataService metadata.MetadataService
	ledger          persistence.Ledger
	runs            *cache.RunCache
	collector       analytics.StepCollector
	defaults        RunOptions
}

func NewEngine(metadataService metadata.MetadataService, ledger persistence.Ledger, runs *cache.RunCache, collector analytics.StepCollector, defaults RunOptions) *Engine {
	if runs == nil {
		runs = cache.NewRunCache()
	}
	if collector == nil {
		collector = analytics.NoopCollector{}
	}
	return &Engine{
		metadataService: metadataService,
		ledger:          ledger,
		runs:            runs,
		collector:       collector,
		defaults:        defaults,
	}
}

// Execution is a handle on a started run.
type Execution struct {
	id         string
	workflowId string
	done       chan struct{}
	record     *model.ExecutionRecord
	err        error
}

func (e *Execution) Id() string {
	return e.id
}

func (e *Execution) WorkflowId() string {
	return e.workflowId
}

func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until every step is terminal and the record is in the ledger.
// The record is returned even when appending it to the ledger failed.
func (e *Execution) Wait() (*model.ExecutionRecord, error) {
	<-e.done
	rec := e.record.Clone()
	return &rec, e.err
}

// Execute runs a workflow to completion.
func (e *Engine) Execute(ctx context.Context, workflowId string, agents map[string]agent.Agent, opts ...Option) (*model.ExecutionRecord, error) {
	exec, err := e.Start(ctx, workflowId, agents, opts...)
	if err != nil {
		return nil, err
	}
	return exec.Wait()
}

// Start loads the definition and runs it in the background. A workflow that
// does not exist fails here and nothing is recorded.
func (e *Engine) Start(ctx context.Context, workflowId string, agents map[string]agent.Agent, opts ...Option) (*Execution, error) {
	def, plan, err := e.metadataService.GetPlan(ctx, workflowId)
	if err != nil {
		logger.Error("can not start workflow", zap.String("workflow", workflowId), zap.Error(err))
		return nil, err
	}
	runOpts := e.defaults.apply(opts)

	snapshot := make(map[string]agent.Agent, len(agents))
	for id, a := range agents {
		if a != nil {
			snapshot[id] = a
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	exec := &Execution{
		id:         uuid.NewString(),
		workflowId: workflowId,
		done:       make(chan struct{}),
	}
	e.runs.Add(exec.id, workflowId, cancel)

	c := newCoordinator(exec.id, def, plan, snapshot, runOpts, e.collector)
	logger.Info("starting workflow", zap.String("workflow", workflowId), zap.String("executionId", exec.id), zap.Int("steps", plan.Len()), zap.Int("parallelism", runOpts.MaxParallelism))
	go func() {
		defer close(exec.done)
		defer cancel()
		rec := c.run(runCtx)
		exec.record = &rec
		// the run context may already be cancelled
		if err := e.ledger.Record(context.Background(), rec); err != nil {
			logger.Error("error recording execution", zap.String("workflow", workflowId), zap.String("executionId", exec.id), zap.Error(err))
			exec.err = err
		}
		e.runs.Delete(exec.id)
		logger.Info("workflow finished", zap.String("workflow", workflowId), zap.String("executionId", exec.id), zap.Bool("succeeded", rec.Succeeded()), zap.Bool("cancelled", rec.Cancelled), zap.Duration("duration", rec.CompletedAt.Sub(rec.StartedAt)))
	}()
	return exec, nil
}

// Cancel stops a running execution. Steps not yet started are skipped and
// steps in flight are allowed to finish.
func (e *Engine) Cancel(executionId string) error {
	if !e.runs.Cancel(executionId) {
		return model.NotFoundError{Kind: "execution", Id: executionId}
	}
	logger.Info("cancelling execution", zap.String("executionId", executionId))
	return nil
}

func (e *Engine) Running() []string {
	return e.runs.Running()
}

func (e *Engine) Ledger() persistence.Ledger {
	return e.ledger
}
