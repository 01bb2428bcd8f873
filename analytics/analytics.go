package analytics

import "fmt"

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP_DATA_COLLECTOR"

// StepCollector receives the terminal outcome of every step.
type StepCollector interface {
	RecordStepSuccess(wfId string, executionId string, stepId string, agentId string, attempts int, result any)
	RecordStepFailure(wfId string, executionId string, stepId string, agentId string, attempts int, reason string)
	RecordStepSkipped(wfId string, executionId string, stepId string, reason string)
}

func NewDataCollector(config DataCollectorConfig) (StepCollector, error) {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return nil, err
		}
		return c, nil
	case NOOP_DATA_COLLECTOR, "":
		return NoopCollector{}, nil
	}
	return nil, fmt.Errorf("unknown data collector type %s", config.CollectorType)
}

type NoopCollector struct{}

func (NoopCollector) RecordStepSuccess(wfId string, executionId string, stepId string, agentId string, attempts int, result any) {
}

func (NoopCollector) RecordStepFailure(wfId string, executionId string, stepId string, agentId string, attempts int, reason string) {
}

func (NoopCollector) RecordStepSkipped(wfId string, executionId string, stepId string, reason string) {
}
