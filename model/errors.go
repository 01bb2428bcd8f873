package model

import (
	"fmt"
	"strings"
	"time"
)

type DuplicateWorkflowError struct {
	WorkflowId string
}

func (e DuplicateWorkflowError) Error() string {
	return fmt.Sprintf("workflow %s already defined", e.WorkflowId)
}

type NotFoundError struct {
	Kind string
	Id   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Id)
}

type CyclicDependencyError struct {
	WorkflowId string
	Cycle      []string
}

func (e CyclicDependencyError) Error() string {
	return fmt.Sprintf("workflow %s has cyclic dependency %s", e.WorkflowId, strings.Join(e.Cycle, " -> "))
}

type MissingDependencyError struct {
	StepId     string
	Dependency string
}

func (e MissingDependencyError) Error() string {
	return fmt.Sprintf("step %s depends on undefined step %s", e.StepId, e.Dependency)
}

type InvalidStepError struct {
	Index  int
	StepId string
	Reason string
}

func (e InvalidStepError) Error() string {
	return fmt.Sprintf("step[%d] %s invalid: %s", e.Index, e.StepId, e.Reason)
}

type InvalidDefinitionError struct {
	Reason string
}

func (e InvalidDefinitionError) Error() string {
	return fmt.Sprintf("invalid workflow definition: %s", e.Reason)
}

type AgentNotFoundError struct {
	AgentId string
}

func (e AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent %s not found", e.AgentId)
}

type TimeoutError struct {
	StepId  string
	Timeout time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("step %s timed out after %s", e.StepId, e.Timeout)
}

type AgentExecutionError struct {
	AgentId string
	Reason  string
}

func (e AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s failed: %s", e.AgentId, e.Reason)
}
