package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

const WORKFLOW_DEF string = "WORKFLOW"
const WORKFLOW_ORDER string = "WORKFLOW_ORDER"

// optimistic transaction retries before giving up on a contended save
const maxTxRetries = 10

var _ metadata.MetadataStorage = new(redisMetadataStorage)

type redisMetadataStorage struct {
	*baseDao
	workflowEncoderDecoder util.EncoderDecoder[model.WorkflowDefinition]
}

func NewRedisMetadataStorage(conf config.RedisStorageConfig) *redisMetadataStorage {
	return &redisMetadataStorage{
		baseDao:                newBaseDao(conf),
		workflowEncoderDecoder: util.NewJsonEncoderDecoder[model.WorkflowDefinition](),
	}
}

func (rfd *redisMetadataStorage) SaveWorkflowDefinition(ctx context.Context, wf model.WorkflowDefinition, replace bool) (*model.WorkflowDefinition, error) {
	key := rfd.getNamespaceKey(WORKFLOW_DEF)
	orderKey := rfd.getNamespaceKey(WORKFLOW_ORDER)
	var saved model.WorkflowDefinition

	txf := func(tx *rd.Tx) error {
		existingStr, err := tx.HGet(ctx, key, wf.Id).Result()
		found := true
		if err != nil {
			if !errors.Is(err, rd.Nil) {
				return err
			}
			found = false
		}
		if found && !replace {
			return model.DuplicateWorkflowError{WorkflowId: wf.Id}
		}
		saved = wf.Clone()
		saved.Version = 1
		if found {
			existing, err := rfd.workflowEncoderDecoder.Decode([]byte(existingStr))
			if err != nil {
				return err
			}
			saved.Version = existing.Version + 1
		}
		data, err := rfd.workflowEncoderDecoder.Encode(saved)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.HSet(ctx, key, wf.Id, string(data))
			if !found {
				pipe.RPush(ctx, orderKey, wf.Id)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := rfd.redisClient.Watch(ctx, txf, key)
		if err == nil {
			return &saved, nil
		}
		if errors.Is(err, rd.TxFailedErr) {
			continue
		}
		var dup model.DuplicateWorkflowError
		if errors.As(err, &dup) {
			return nil, err
		}
		logger.Error("error in saving workflow definition", zap.String("workflow", wf.Id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return nil, persistence.StorageLayerError{Message: "too many concurrent updates to workflow " + wf.Id}
}

func (rfd *redisMetadataStorage) DeleteWorkflowDefinition(ctx context.Context, id string) error {
	key := rfd.getNamespaceKey(WORKFLOW_DEF)
	orderKey := rfd.getNamespaceKey(WORKFLOW_ORDER)
	var deleted *rd.IntCmd
	_, err := rfd.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		deleted = pipe.HDel(ctx, key, id)
		pipe.LRem(ctx, orderKey, 0, id)
		return nil
	})
	if err != nil {
		logger.Error("error in deleting workflow definition", zap.String("workflow", id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	if deleted.Val() == 0 {
		return model.NotFoundError{Kind: "workflow", Id: id}
	}
	return nil
}

func (rfd *redisMetadataStorage) GetWorkflowDefinition(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	key := rfd.getNamespaceKey(WORKFLOW_DEF)
	val, err := rfd.redisClient.HGet(ctx, key, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.NotFoundError{Kind: "workflow", Id: id}
		}
		logger.Error("error in getting workflow definition", zap.String("workflow", id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rfd.workflowEncoderDecoder.Decode([]byte(val))
}

func (rfd *redisMetadataStorage) ListWorkflowDefinitions(ctx context.Context) ([]string, error) {
	ids, err := rfd.redisClient.LRange(ctx, rfd.getNamespaceKey(WORKFLOW_ORDER), 0, -1).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return []string{}, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return ids, nil
}

func (rfd *redisMetadataStorage) CountWorkflowDefinitions(ctx context.Context) (int, error) {
	n, err := rfd.redisClient.HLen(ctx, rfd.getNamespaceKey(WORKFLOW_DEF)).Result()
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	return int(n), nil
}
