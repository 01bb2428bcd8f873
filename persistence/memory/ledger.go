package memory

import (
	"context"
	"sync"

	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
)

var _ persistence.Ledger = new(inmemLedger)

type inmemLedger struct {
	mu      sync.RWMutex
	records []model.ExecutionRecord
	index   map[string]int
}

func NewInmemLedger() *inmemLedger {
	return &inmemLedger{
		index: make(map[string]int),
	}
}

func (l *inmemLedger) Record(ctx context.Context, rec model.ExecutionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.index[rec.Id] = len(l.records)
	l.records = append(l.records, rec.Clone())
	return nil
}

func (l *inmemLedger) Get(ctx context.Context, id string) (*model.ExecutionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, found := l.index[id]
	if !found {
		return nil, model.NotFoundError{Kind: "execution", Id: id}
	}
	rec := l.records[i].Clone()
	return &rec, nil
}

func (l *inmemLedger) List(ctx context.Context) ([]model.ExecutionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.ExecutionRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (l *inmemLedger) Count(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records), nil
}
