package memory

import (
	"context"
	"sync"

	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/model"
)

var _ metadata.MetadataStorage = new(inmemMetadataStorage)

type inmemMetadataStorage struct {
	mu        sync.RWMutex
	workflows map[string]model.WorkflowDefinition
	order     []string
}

func NewInmemMetadataStorage() *inmemMetadataStorage {
	return &inmemMetadataStorage{
		workflows: make(map[string]model.WorkflowDefinition),
	}
}

func (s *inmemMetadataStorage) SaveWorkflowDefinition(ctx context.Context, wf model.WorkflowDefinition, replace bool) (*model.WorkflowDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, found := s.workflows[wf.Id]
	if found && !replace {
		return nil, model.DuplicateWorkflowError{WorkflowId: wf.Id}
	}
	stored := wf.Clone()
	stored.Version = 1
	if found {
		stored.Version = existing.Version + 1
	} else {
		s.order = append(s.order, wf.Id)
	}
	s.workflows[wf.Id] = stored
	out := stored.Clone()
	return &out, nil
}

func (s *inmemMetadataStorage) DeleteWorkflowDefinition(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.workflows[id]; !found {
		return model.NotFoundError{Kind: "workflow", Id: id}
	}
	delete(s.workflows, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *inmemMetadataStorage) GetWorkflowDefinition(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, found := s.workflows[id]
	if !found {
		return nil, model.NotFoundError{Kind: "workflow", Id: id}
	}
	out := wf.Clone()
	return &out, nil
}

func (s *inmemMetadataStorage) ListWorkflowDefinitions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.order...), nil
}

func (s *inmemMetadataStorage) CountWorkflowDefinitions(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workflows), nil
}
