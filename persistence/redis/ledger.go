package redis

import (
	"context"
	"errors"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

const EXECUTION string = "EXECUTION"
const EXECUTION_ORDER string = "EXECUTION_ORDER"

var _ persistence.Ledger = new(redisLedger)

// redisLedger keeps records in a hash keyed by execution id and the
// append order in a list.
type redisLedger struct {
	*baseDao
	encoderDecoder util.EncoderDecoder[model.ExecutionRecord]
}

func NewRedisLedger(conf config.RedisStorageConfig) *redisLedger {
	return &redisLedger{
		baseDao:        newBaseDao(conf),
		encoderDecoder: util.NewJsonEncoderDecoder[model.ExecutionRecord](),
	}
}

func (l *redisLedger) Record(ctx context.Context, rec model.ExecutionRecord) error {
	data, err := l.encoderDecoder.Encode(rec)
	if err != nil {
		return err
	}
	key := l.getNamespaceKey(EXECUTION)
	orderKey := l.getNamespaceKey(EXECUTION_ORDER)
	_, err = l.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, key, rec.Id, string(data))
		pipe.RPush(ctx, orderKey, rec.Id)
		return nil
	})
	if err != nil {
		logger.Error("error in recording execution", zap.String("executionId", rec.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (l *redisLedger) Get(ctx context.Context, id string) (*model.ExecutionRecord, error) {
	val, err := l.redisClient.HGet(ctx, l.getNamespaceKey(EXECUTION), id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, model.NotFoundError{Kind: "execution", Id: id}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return l.encoderDecoder.Decode([]byte(val))
}

func (l *redisLedger) List(ctx context.Context) ([]model.ExecutionRecord, error) {
	ids, err := l.redisClient.LRange(ctx, l.getNamespaceKey(EXECUTION_ORDER), 0, -1).Result()
	if err != nil && !errors.Is(err, rd.Nil) {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return []model.ExecutionRecord{}, nil
	}
	values, err := l.redisClient.HMGet(ctx, l.getNamespaceKey(EXECUTION), ids...).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	records := make([]model.ExecutionRecord, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			logger.Warn("execution missing from ledger hash", zap.String("executionId", ids[i]))
			continue
		}
		rec, err := l.encoderDecoder.Decode([]byte(s))
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (l *redisLedger) Count(ctx context.Context) (int, error) {
	n, err := l.redisClient.LLen(ctx, l.getNamespaceKey(EXECUTION_ORDER)).Result()
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	return int(n), nil
}
