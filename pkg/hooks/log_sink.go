package hooks

import (
	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/logger"
)

// LogSink writes step transitions at debug level and a one-line summary
// when the execution ends.
type LogSink struct{}

func NewLogSink() LogSink {
	return LogSink{}
}

func (LogSink) Record(snapshot *command.Execution, final bool) {
	if !final {
		if step := snapshot.CurrentStep(); step != nil {
			logger.DebugCF("engine", "Step update", map[string]interface{}{
				"execution_id": snapshot.ID,
				"step":         step.Number,
				"status":       string(step.Status),
				"completion":   snapshot.CompletionPercentage,
			})
		}
		return
	}

	fields := map[string]interface{}{
		"execution_id": snapshot.ID,
		"status":       string(snapshot.OverallStatus),
		"steps":        len(snapshot.Steps),
		"completed":    snapshot.CountByStatus(command.StepCompleted),
		"failed":       snapshot.CountByStatus(command.StepFailed),
		"interrupted":  snapshot.CountByStatus(command.StepInterrupted),
		"completion":   snapshot.CompletionPercentage,
		"accuracy":     snapshot.AccuracyPercentage,
		"duration_ms":  snapshot.Duration().Milliseconds(),
	}
	switch snapshot.OverallStatus {
	case command.ExecutionCompleted:
		logger.InfoCF("engine", "Execution completed", fields)
	default:
		logger.WarnCF("engine", "Execution "+string(snapshot.OverallStatus), fields)
	}
}
