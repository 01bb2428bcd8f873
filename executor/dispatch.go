package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/mohitkumar/agentflow/agent"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"go.uber.org/zap"
)

// dispatch runs every attempt of one step and returns its terminal outcome.
func (c *coordinator) dispatch(ctx context.Context, job stepJob) model.StepOutcome {
	startedAt := now()
	attempts := 0
	var taskId string
	var result any
	var lastErr error

	operation := func() error {
		attempts++
		task := &model.Task{
			Id:         uuid.NewString(),
			TaskType:   job.step.TaskType,
			Parameters: model.CloneParams(job.params),
			Status:     model.TASK_PENDING,
			Attempt:    attempts,
		}
		taskId = task.Id
		res, err := c.attempt(ctx, job.step, job.agent, task)
		lastErr = err
		if err != nil {
			return err
		}
		result = res.Result
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying step", zap.String("workflow", c.def.Id), zap.String("executionId", c.executionId), zap.String("step", job.step.Id), zap.Int("attempt", attempts), zap.Duration("wait", wait), zap.Error(err))
	}

	err := backoff.RetryNotify(operation, c.retryBackOff(ctx), notify)
	if err != nil && lastErr != nil {
		err = lastErr
	}

	outcome := model.StepOutcome{
		TaskId:      taskId,
		Attempts:    attempts,
		StartedAt:   startedAt,
		CompletedAt: now(),
	}
	if err != nil {
		outcome.Status = model.STEP_FAILED
		outcome.Error = err.Error()
		outcome.ErrorKind = errorKind(err)
		return outcome
	}
	outcome.Status = model.STEP_COMPLETED
	outcome.Result = result
	return outcome
}

func (c *coordinator) retryBackOff(ctx context.Context) backoff.BackOff {
	policy := c.opts.Retry
	var b backoff.BackOff
	switch policy.Policy {
	case model.RETRY_POLICY_BACKOFF:
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = policy.Backoff
		eb.RandomizationFactor = 0
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	default:
		b = backoff.NewConstantBackOff(policy.Backoff)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(policy.MaxRetries)), ctx)
}

// attempt makes a single agent call, bounded by the step timeout. The task
// belongs to the agent once handed over; an agent outliving its timeout may
// still hold it.
func (c *coordinator) attempt(ctx context.Context, step model.StepSpec, ag agent.Agent, task *model.Task) (model.TaskResult, error) {
	var callCtx context.Context
	var cancel context.CancelFunc
	if c.opts.StepTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.opts.StepTimeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	task.Status = model.TASK_RUNNING
	start := now()
	resc := make(chan model.TaskResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("agent panicked", zap.String("agent", ag.Id()), zap.String("step", step.Id), zap.Any("panic", r))
				resc <- model.Failed(fmt.Sprintf("agent panicked: %v", r))
			}
		}()
		resc <- ag.ExecuteTask(callCtx, task)
	}()

	var res model.TaskResult
	if c.opts.StepTimeout > 0 {
		timer := time.NewTimer(c.opts.StepTimeout)
		defer timer.Stop()
		select {
		case res = <-resc:
		case <-timer.C:
			return model.TaskResult{Success: false, Duration: now().Sub(start)}, model.TimeoutError{StepId: step.Id, Timeout: c.opts.StepTimeout}
		}
	} else {
		res = <-resc
	}
	res.Duration = now().Sub(start)
	if !res.Success {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return res, model.TimeoutError{StepId: step.Id, Timeout: c.opts.StepTimeout}
		}
		reason := res.Error
		if reason == "" {
			reason = "task failed"
		}
		return res, model.AgentExecutionError{AgentId: ag.Id(), Reason: reason}
	}
	return res, nil
}

func errorKind(err error) model.ErrorKind {
	var timeout model.TimeoutError
	if errors.As(err, &timeout) {
		return model.ERROR_KIND_TIMEOUT
	}
	var notFound model.AgentNotFoundError
	if errors.As(err, &notFound) {
		return model.ERROR_KIND_AGENT_NOT_FOUND
	}
	return model.ERROR_KIND_AGENT_EXECUTION
}
