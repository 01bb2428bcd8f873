package model

import "time"

type StepStatus string

const STEP_PENDING StepStatus = "PENDING"
const STEP_RUNNING StepStatus = "RUNNING"
const STEP_COMPLETED StepStatus = "COMPLETED"
const STEP_FAILED StepStatus = "FAILED"
const STEP_SKIPPED StepStatus = "SKIPPED"

var stepTransitions = map[StepStatus][]StepStatus{
	STEP_PENDING: {STEP_RUNNING, STEP_SKIPPED},
	STEP_RUNNING: {STEP_COMPLETED, STEP_FAILED},
}

func (s StepStatus) IsTerminal() bool {
	return s == STEP_COMPLETED || s == STEP_FAILED || s == STEP_SKIPPED
}

func (s StepStatus) CanTransition(to StepStatus) bool {
	for _, next := range stepTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type ErrorKind string

const ERROR_KIND_AGENT_NOT_FOUND ErrorKind = "AGENT_NOT_FOUND"
const ERROR_KIND_TIMEOUT ErrorKind = "TIMEOUT"
const ERROR_KIND_AGENT_EXECUTION ErrorKind = "AGENT_EXECUTION"
const ERROR_KIND_UPSTREAM ErrorKind = "UPSTREAM"
const ERROR_KIND_CANCELLED ErrorKind = "CANCELLED"

type StepOutcome struct {
	StepId      string        `json:"stepId"`
	AgentId     string        `json:"agentId"`
	TaskType    string        `json:"taskType"`
	TaskId      string        `json:"taskId,omitempty"`
	Status      StepStatus    `json:"status"`
	Result      any           `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	ErrorKind   ErrorKind     `json:"errorKind,omitempty"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
	StartedAt   time.Time     `json:"startedAt,omitempty"`
	CompletedAt time.Time     `json:"completedAt,omitempty"`
}

type ExecutionRecord struct {
	Id              string        `json:"id"`
	WorkflowId      string        `json:"workflowId"`
	WorkflowVersion int           `json:"workflowVersion"`
	StartedAt       time.Time     `json:"startedAt"`
	CompletedAt     time.Time     `json:"completedAt"`
	Cancelled       bool          `json:"cancelled"`
	Steps           []StepOutcome `json:"steps"`
}

func (r ExecutionRecord) Clone() ExecutionRecord {
	clone := r
	if r.Steps != nil {
		clone.Steps = make([]StepOutcome, len(r.Steps))
		for i, o := range r.Steps {
			o.Result = CloneValue(o.Result)
			clone.Steps[i] = o
		}
	}
	return clone
}

// Outcome returns the outcome for a step id.
func (r ExecutionRecord) Outcome(stepId string) (StepOutcome, bool) {
	for _, o := range r.Steps {
		if o.StepId == stepId {
			return o, true
		}
	}
	return StepOutcome{}, false
}

// Succeeded reports whether every step completed.
func (r ExecutionRecord) Succeeded() bool {
	for _, o := range r.Steps {
		if o.Status != STEP_COMPLETED {
			return false
		}
	}
	return true
}

type Stats struct {
	DefinitionsCount int      `json:"definitionsCount"`
	ExecutionsCount  int      `json:"executionsCount"`
	DefinitionIds    []string `json:"definitionIds"`
}

type AgentStatus struct {
	Id     string         `json:"id"`
	Name   string         `json:"name"`
	Status map[string]any `json:"status,omitempty"`
}

type SystemReport struct {
	Timestamp         time.Time     `json:"timestamp"`
	TotalAgents       int           `json:"totalAgents"`
	AgentStatuses     []AgentStatus `json:"agents"`
	WorkflowStats     Stats         `json:"workflows"`
	RunningExecutions []string      `json:"runningExecutions"`
}
