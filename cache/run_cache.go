package cache

import (
	"context"
	"sort"
	"time"

	c "github.com/patrickmn/go-cache"
)

type runEntry struct {
	workflowId string
	startedAt  time.Time
	cancel     context.CancelFunc
}

// RunCache tracks executions that are still running so they can be
// cancelled by id and listed in the system report.
type RunCache struct {
	cache *c.Cache
}

func NewRunCache() *RunCache {
	return &RunCache{
		cache: c.New(c.NoExpiration, 10*time.Minute),
	}
}

// Add registers a running execution. It returns false if the id is taken.
func (ch *RunCache) Add(executionId string, workflowId string, cancel context.CancelFunc) bool {
	entry := runEntry{workflowId: workflowId, startedAt: time.Now(), cancel: cancel}
	return ch.cache.Add(executionId, entry, c.NoExpiration) == nil
}

// Cancel fires the cancel handle of a running execution.
func (ch *RunCache) Cancel(executionId string) bool {
	v, found := ch.cache.Get(executionId)
	if !found {
		return false
	}
	v.(runEntry).cancel()
	return true
}

func (ch *RunCache) Delete(executionId string) {
	ch.cache.Delete(executionId)
}

func (ch *RunCache) IsRunning(executionId string) bool {
	_, found := ch.cache.Get(executionId)
	return found
}

// Running returns the ids of running executions, oldest first.
func (ch *RunCache) Running() []string {
	items := ch.cache.Items()
	type started struct {
		id string
		at time.Time
	}
	all := make([]started, 0, len(items))
	for id, item := range items {
		all = append(all, started{id: id, at: item.Object.(runEntry).startedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].at.Equal(all[j].at) {
			return all[i].id < all[j].id
		}
		return all[i].at.Before(all[j].at)
	})
	ids := make([]string, len(all))
	for i, s := range all {
		ids[i] = s.id
	}
	return ids
}

func (ch *RunCache) Count() int {
	return ch.cache.ItemCount()
}
