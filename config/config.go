package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/mohitkumar/agentflow/analytics"
	"github.com/mohitkumar/agentflow/model"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	StorageType        StorageType
	RedisConfig        RedisStorageConfig
	MaxParallelism     int
	StepTimeout        time.Duration
	RetryPolicy        model.RetryPolicy
	LinearDependencies bool
	AnalyticsConfig    analytics.DataCollectorConfig
	LogLevel           string
	Development        bool
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
	PoolSize  int
	Password  string
}

func Default() Config {
	return Config{
		StorageType: STORAGE_TYPE_INMEM,
		RedisConfig: RedisStorageConfig{
			Addrs:     []string{"localhost:6379"},
			Namespace: "agentflow",
		},
		MaxParallelism: runtime.NumCPU(),
		RetryPolicy: model.RetryPolicy{
			Policy: model.RETRY_POLICY_FIXED,
		},
		AnalyticsConfig: analytics.DataCollectorConfig{
			CollectorType: analytics.NOOP_DATA_COLLECTOR,
		},
		LogLevel: "info",
	}
}

func (c Config) Validate() error {
	switch c.StorageType {
	case STORAGE_TYPE_INMEM:
	case STORAGE_TYPE_REDIS:
		if len(c.RedisConfig.Addrs) == 0 || strings.TrimSpace(c.RedisConfig.Addrs[0]) == "" {
			return fmt.Errorf("redis storage needs at least one address")
		}
	default:
		return fmt.Errorf("unknown storage implementation %s", c.StorageType)
	}
	if c.MaxParallelism < 1 {
		return fmt.Errorf("max parallelism must be positive, got %d", c.MaxParallelism)
	}
	if c.StepTimeout < 0 {
		return fmt.Errorf("step timeout can not be negative")
	}
	if c.RetryPolicy.MaxRetries < 0 {
		return fmt.Errorf("retry count can not be negative")
	}
	switch c.RetryPolicy.Policy {
	case model.RETRY_POLICY_FIXED, model.RETRY_POLICY_BACKOFF:
	default:
		return fmt.Errorf("unknown retry policy %s", c.RetryPolicy.Policy)
	}
	return nil
}
