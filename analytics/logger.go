package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ StepCollector = new(LogFileDataCollector)

// LogFileDataCollector appends one JSON line per step outcome to a file.
type LogFileDataCollector struct {
	fileName string
	logger   *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return newCollector(fileName, zapcore.AddSync(logFile)), nil
}

func newCollector(fileName string, writer zapcore.WriteSyncer) *LogFileDataCollector {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, zapcore.InfoLevel)
	return &LogFileDataCollector{
		fileName: fileName,
		logger:   zap.New(core),
	}
}

func (lc *LogFileDataCollector) RecordStepSuccess(wfId string, executionId string, stepId string, agentId string, attempts int, result any) {
	lc.logger.Info("success", zap.String("workflow", wfId), zap.String("executionId", executionId), zap.String("step", stepId), zap.String("agent", agentId), zap.Int("attempts", attempts), zap.Any("result", result))
}

func (lc *LogFileDataCollector) RecordStepFailure(wfId string, executionId string, stepId string, agentId string, attempts int, reason string) {
	lc.logger.Info("failure", zap.String("workflow", wfId), zap.String("executionId", executionId), zap.String("step", stepId), zap.String("agent", agentId), zap.Int("attempts", attempts), zap.String("reason", reason))
}

func (lc *LogFileDataCollector) RecordStepSkipped(wfId string, executionId string, stepId string, reason string) {
	lc.logger.Info("skipped", zap.String("workflow", wfId), zap.String("executionId", executionId), zap.String("step", stepId), zap.String("reason", reason))
}

func (lc *LogFileDataCollector) Sync() error {
	return lc.logger.Sync()
}
