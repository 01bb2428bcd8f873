package metadata

import (
	"context"
	"strings"
	"time"

	"github.com/mohitkumar/agentflow/flow"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"go.uber.org/zap"
)

type MetadataService interface {
	Define(ctx context.Context, id string, name string, steps []model.StepSpec, replace bool) (*model.WorkflowDefinition, error)
	Get(ctx context.Context, id string) (*model.WorkflowDefinition, error)
	Delete(ctx context.Context, id string) error
	GetPlan(ctx context.Context, id string) (*model.WorkflowDefinition, *flow.Plan, error)
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	ValidateFlow(id string, steps []model.StepSpec) error
	GetMetadataStorage() MetadataStorage
}

type MetadataServiceImpl struct {
	storage MetadataStorage
	linear  bool
	now     func() time.Time
}

var _ MetadataService = new(MetadataServiceImpl)

// NewMetadataService creates the definition store. With linear set, steps
// declaring no predecessors run after the step declared before them.
func NewMetadataService(storage MetadataStorage, linear bool) *MetadataServiceImpl {
	return &MetadataServiceImpl{
		storage: storage,
		linear:  linear,
		now:     time.Now,
	}
}

func (s *MetadataServiceImpl) Define(ctx context.Context, id string, name string, steps []model.StepSpec, replace bool) (*model.WorkflowDefinition, error) {
	if strings.TrimSpace(id) == "" {
		return nil, model.InvalidDefinitionError{Reason: "workflow id can not be empty"}
	}
	if s.linear {
		steps = flow.Chain(steps)
	}
	if err := s.ValidateFlow(id, steps); err != nil {
		logger.Error("error validating workflow", zap.String("workflow", id), zap.Error(err))
		return nil, err
	}
	wf := model.WorkflowDefinition{
		Id:        id,
		Name:      name,
		Steps:     model.CloneSteps(steps),
		CreatedAt: s.now(),
	}
	saved, err := s.storage.SaveWorkflowDefinition(ctx, wf, replace)
	if err != nil {
		logger.Error("error saving workflow", zap.String("workflow", id), zap.Bool("replace", replace), zap.Error(err))
		return nil, err
	}
	logger.Info("workflow defined", zap.String("workflow", id), zap.String("name", name), zap.Int("version", saved.Version), zap.Int("steps", len(saved.Steps)))
	return saved, nil
}

func (s *MetadataServiceImpl) Get(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	return s.storage.GetWorkflowDefinition(ctx, id)
}

// Delete removes a definition. Executions already started keep the plan
// they resolved at start.
func (s *MetadataServiceImpl) Delete(ctx context.Context, id string) error {
	if err := s.storage.DeleteWorkflowDefinition(ctx, id); err != nil {
		logger.Error("error deleting workflow", zap.String("workflow", id), zap.Error(err))
		return err
	}
	logger.Info("workflow deleted", zap.String("workflow", id))
	return nil
}

// GetPlan loads a definition and resolves its execution plan.
func (s *MetadataServiceImpl) GetPlan(ctx context.Context, id string) (*model.WorkflowDefinition, *flow.Plan, error) {
	wf, err := s.storage.GetWorkflowDefinition(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	plan, err := flow.Resolve(*wf)
	if err != nil {
		return nil, nil, err
	}
	return wf, plan, nil
}

func (s *MetadataServiceImpl) List(ctx context.Context) ([]string, error) {
	return s.storage.ListWorkflowDefinitions(ctx)
}

func (s *MetadataServiceImpl) Count(ctx context.Context) (int, error) {
	return s.storage.CountWorkflowDefinitions(ctx)
}

func (s *MetadataServiceImpl) ValidateFlow(id string, steps []model.StepSpec) error {
	return flow.Validate(id, steps)
}

func (s *MetadataServiceImpl) GetMetadataStorage() MetadataStorage {
	return s.storage
}
