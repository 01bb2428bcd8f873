package persistence

import (
	"context"
	"fmt"

	"github.com/mohitkumar/agentflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

// Ledger is the append-only history of workflow executions. Implementations
// must accept concurrent Record calls.
type Ledger interface {
	Record(ctx context.Context, rec model.ExecutionRecord) error
	Get(ctx context.Context, id string) (*model.ExecutionRecord, error)
	List(ctx context.Context) ([]model.ExecutionRecord, error)
	Count(ctx context.Context) (int, error)
}
