package metadata

import (
	"context"

	"github.com/mohitkumar/agentflow/model"
)

// MetadataStorage keeps workflow definitions. SaveWorkflowDefinition must
// detect an existing id atomically: with replace=false it returns
// model.DuplicateWorkflowError, with replace=true it stores the definition
// under the next version. Implementations store and return copies.
type MetadataStorage interface {
	SaveWorkflowDefinition(ctx context.Context, wf model.WorkflowDefinition, replace bool) (*model.WorkflowDefinition, error)
	DeleteWorkflowDefinition(ctx context.Context, id string) error
	GetWorkflowDefinition(ctx context.Context, id string) (*model.WorkflowDefinition, error)
	ListWorkflowDefinitions(ctx context.Context) ([]string, error)
	CountWorkflowDefinitions(ctx context.Context) (int, error)
}
