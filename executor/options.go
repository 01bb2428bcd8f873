package executor

import (
	"runtime"
	"time"

	"github.com/mohitkumar/agentflow/model"
)

// RunOptions controls a single execution. Zero values mean unlimited step
// time, no retries and runtime.NumCPU() parallel agent calls.
type RunOptions struct {
	MaxParallelism int
	Retry          model.RetryPolicy
	StepTimeout    time.Duration
}

type Option func(*RunOptions)

func WithMaxParallelism(n int) Option {
	return func(o *RunOptions) {
		o.MaxParallelism = n
	}
}

func WithRetryPolicy(policy model.RetryPolicy) Option {
	return func(o *RunOptions) {
		o.Retry = policy
	}
}

func WithStepTimeout(timeout time.Duration) Option {
	return func(o *RunOptions) {
		o.StepTimeout = timeout
	}
}

func (o RunOptions) apply(opts []Option) RunOptions {
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxParallelism < 1 {
		o.MaxParallelism = runtime.NumCPU()
	}
	if o.Retry.MaxRetries < 0 {
		o.Retry.MaxRetries = 0
	}
	if o.Retry.Policy == "" {
		o.Retry.Policy = model.RETRY_POLICY_FIXED
	}
	return o
}
