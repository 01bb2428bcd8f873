package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/mohitkumar/agentflow/agent"
	"github.com/mohitkumar/agentflow/executor"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/model"
	"go.uber.org/zap"
)

// SystemOrchestrator owns the agent registry and fronts the definition store
// and the execution engine.
type SystemOrchestrator struct {
	metadataService metadata.MetadataService
	engine          *executor.Engine
	agentsLock      sync.RWMutex
	agents          map[string]agent.Agent
	agentOrder      []string
	shutdown        bool
	shutdownLock    sync.Mutex
	wg              sync.WaitGroup
}

func New(metadataService metadata.MetadataService, engine *executor.Engine) *SystemOrchestrator {
	logger.Info("system orchestrator initialized")
	return &SystemOrchestrator{
		metadataService: metadataService,
		engine:          engine,
		agents:          make(map[string]agent.Agent),
	}
}

// RegisterAgent adds an agent, replacing any agent registered under the
// same id. Agents without an id are rejected.
func (o *SystemOrchestrator) RegisterAgent(a agent.Agent) bool {
	if a == nil || a.Id() == "" {
		logger.Warn("rejecting agent without id")
		return false
	}
	o.agentsLock.Lock()
	defer o.agentsLock.Unlock()
	if _, found := o.agents[a.Id()]; !found {
		o.agentOrder = append(o.agentOrder, a.Id())
	} else {
		logger.Warn("replacing registered agent", zap.String("agent", a.Id()))
	}
	o.agents[a.Id()] = a
	logger.Info("agent registered", zap.String("agent", a.Id()), zap.String("name", a.Name()))
	return true
}

func (o *SystemOrchestrator) Agents() map[string]agent.Agent {
	o.agentsLock.RLock()
	defer o.agentsLock.RUnlock()
	out := make(map[string]agent.Agent, len(o.agents))
	for id, a := range o.agents {
		out[id] = a
	}
	return out
}

func (o *SystemOrchestrator) DefineWorkflow(ctx context.Context, id string, name string, steps []model.StepSpec, replace bool) (*model.WorkflowDefinition, error) {
	return o.metadataService.Define(ctx, id, name, steps, replace)
}

func (o *SystemOrchestrator) GetWorkflow(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	return o.metadataService.Get(ctx, id)
}

func (o *SystemOrchestrator) DeleteWorkflow(ctx context.Context, id string) error {
	return o.metadataService.Delete(ctx, id)
}

func (o *SystemOrchestrator) ListWorkflows(ctx context.Context) ([]string, error) {
	return o.metadataService.List(ctx)
}

// ExecuteWorkflow runs a workflow against the agents registered at call time.
func (o *SystemOrchestrator) ExecuteWorkflow(ctx context.Context, id string, opts ...executor.Option) (*model.ExecutionRecord, error) {
	exec, err := o.StartWorkflow(ctx, id, opts...)
	if err != nil {
		return nil, err
	}
	return exec.Wait()
}

func (o *SystemOrchestrator) StartWorkflow(ctx context.Context, id string, opts ...executor.Option) (*executor.Execution, error) {
	o.shutdownLock.Lock()
	defer o.shutdownLock.Unlock()
	if o.shutdown {
		return nil, ErrShutdown
	}
	exec, err := o.engine.Start(ctx, id, o.Agents(), opts...)
	if err != nil {
		return nil, err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		<-exec.Done()
	}()
	return exec, nil
}

func (o *SystemOrchestrator) CancelExecution(executionId string) error {
	return o.engine.Cancel(executionId)
}

func (o *SystemOrchestrator) GetExecution(ctx context.Context, executionId string) (*model.ExecutionRecord, error) {
	return o.engine.Ledger().Get(ctx, executionId)
}

func (o *SystemOrchestrator) ListExecutions(ctx context.Context) ([]model.ExecutionRecord, error) {
	return o.engine.Ledger().List(ctx)
}

func (o *SystemOrchestrator) GetStats(ctx context.Context) (model.Stats, error) {
	ids, err := o.metadataService.List(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	count, err := o.metadataService.Count(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	executions, err := o.engine.Ledger().Count(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	return model.Stats{
		DefinitionsCount: count,
		ExecutionsCount:  executions,
		DefinitionIds:    ids,
	}, nil
}

func (o *SystemOrchestrator) GetSystemReport(ctx context.Context) (model.SystemReport, error) {
	stats, err := o.GetStats(ctx)
	if err != nil {
		return model.SystemReport{}, err
	}
	o.agentsLock.RLock()
	statuses := make([]model.AgentStatus, 0, len(o.agentOrder))
	for _, id := range o.agentOrder {
		a := o.agents[id]
		status := model.AgentStatus{Id: a.Id(), Name: a.Name()}
		if reporter, ok := a.(agent.StatusReporter); ok {
			status.Status = reporter.Status()
		}
		statuses = append(statuses, status)
	}
	o.agentsLock.RUnlock()

	return model.SystemReport{
		Timestamp:         time.Now(),
		TotalAgents:       len(statuses),
		AgentStatuses:     statuses,
		WorkflowStats:     stats,
		RunningExecutions: o.engine.Running(),
	}, nil
}

// Shutdown cancels running executions and waits for them to be recorded.
func (o *SystemOrchestrator) Shutdown() error {
	o.shutdownLock.Lock()
	if o.shutdown {
		o.shutdownLock.Unlock()
		return nil
	}
	o.shutdown = true
	o.shutdownLock.Unlock()

	logger.Info("shutting down orchestrator")
	for _, id := range o.engine.Running() {
		_ = o.engine.Cancel(id)
	}
	logger.Info("waiting for running executions to finish...")
	o.wg.Wait()
	return nil
}
