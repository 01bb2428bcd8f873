package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/model"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.RedisStorageConfig {
	conf := config.RedisStorageConfig{
		Addrs:     []string{"localhost:6379"},
		Namespace: "agentflow-test-" + uuid.NewString(),
	}
	dao := newBaseDao(conf)
	defer dao.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := dao.Ping(ctx); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() {
		dao := newBaseDao(conf)
		defer dao.Close()
		ctx := context.Background()
		dao.redisClient.Del(ctx,
			dao.getNamespaceKey(WORKFLOW_DEF),
			dao.getNamespaceKey(WORKFLOW_ORDER),
			dao.getNamespaceKey(EXECUTION),
			dao.getNamespaceKey(EXECUTION_ORDER))
	})
	return conf
}

func TestRedisMetadataStorage(t *testing.T) {
	conf := testConfig(t)
	ctx := context.Background()
	s := NewRedisMetadataStorage(conf)
	defer s.Close()

	wf := model.WorkflowDefinition{
		Id:    "w1",
		Name:  "first",
		Steps: []model.StepSpec{{Id: "A", AgentId: "x", TaskType: "t"}},
	}
	saved, err := s.SaveWorkflowDefinition(ctx, wf, false)
	require.NoError(t, err)
	require.Equal(t, 1, saved.Version)

	_, err = s.SaveWorkflowDefinition(ctx, model.WorkflowDefinition{Id: "w2"}, false)
	require.NoError(t, err)

	_, err = s.SaveWorkflowDefinition(ctx, wf, false)
	var dup model.DuplicateWorkflowError
	require.True(t, errors.As(err, &dup))

	wf.Name = "replaced"
	saved, err = s.SaveWorkflowDefinition(ctx, wf, true)
	require.NoError(t, err)
	require.Equal(t, 2, saved.Version)

	got, err := s.GetWorkflowDefinition(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "replaced", got.Name)
	require.Equal(t, "A", got.Steps[0].Id)

	ids, err := s.ListWorkflowDefinitions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"w1", "w2"}, ids)

	count, err := s.CountWorkflowDefinitions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, s.DeleteWorkflowDefinition(ctx, "w1"))
	_, err = s.GetWorkflowDefinition(ctx, "w1")
	var nf model.NotFoundError
	require.True(t, errors.As(err, &nf))
	require.True(t, errors.As(s.DeleteWorkflowDefinition(ctx, "w1"), &nf))
}

func TestRedisLedger(t *testing.T) {
	conf := testConfig(t)
	ctx := context.Background()
	l := NewRedisLedger(conf)
	defer l.Close()

	for _, id := range []string{"e1", "e2"} {
		err := l.Record(ctx, model.ExecutionRecord{
			Id:         id,
			WorkflowId: "w",
			Steps:      []model.StepOutcome{{StepId: "A", Status: model.STEP_COMPLETED, Attempts: 1}},
		})
		require.NoError(t, err)
	}

	count, err := l.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	list, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "e1", list[0].Id)
	require.Equal(t, model.STEP_COMPLETED, list[1].Steps[0].Status)

	rec, err := l.Get(ctx, "e2")
	require.NoError(t, err)
	require.Equal(t, "w", rec.WorkflowId)

	_, err = l.Get(ctx, "e3")
	var nf model.NotFoundError
	require.True(t, errors.As(err, &nf))
}
