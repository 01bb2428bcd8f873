package model

import "time"

type TaskStatus string

const TASK_PENDING TaskStatus = "PENDING"
const TASK_RUNNING TaskStatus = "RUNNING"
const TASK_COMPLETED TaskStatus = "COMPLETED"
const TASK_FAILED TaskStatus = "FAILED"

// Task is the unit handed to an agent for a single step attempt.
type Task struct {
	Id         string         `json:"id"`
	TaskType   string         `json:"taskType"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Status     TaskStatus     `json:"status"`
	Attempt    int            `json:"attempt"`
}

type TaskResult struct {
	Success  bool          `json:"success"`
	Result   any           `json:"result,omitempty"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

func Succeeded(result any) TaskResult {
	return TaskResult{Success: true, Result: result}
}

func Failed(reason string) TaskResult {
	if reason == "" {
		reason = "task failed"
	}
	return TaskResult{Success: false, Error: reason}
}

type RetryPolicyType string

const RETRY_POLICY_FIXED RetryPolicyType = "FIXED"
const RETRY_POLICY_BACKOFF RetryPolicyType = "BACKOFF"

// RetryPolicy is applied per step. MaxRetries counts attempts after the
// first one, so MaxRetries=2 means at most three calls to the agent.
type RetryPolicy struct {
	MaxRetries int             `json:"maxRetries" yaml:"max_retries"`
	Backoff    time.Duration   `json:"backoff" yaml:"backoff"`
	Policy     RetryPolicyType `json:"policy" yaml:"policy"`
}
