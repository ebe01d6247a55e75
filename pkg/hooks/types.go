// Package hooks delivers execution snapshots to observers: the JSONL audit
// trail, the summary log, and anything else that implements Sink.
package hooks

import (
	"time"

	"github.com/neuroassist/neuroassist/pkg/command"
)

// Event says why a snapshot was recorded.
type Event string

const (
	EventStepUpdate Event = "step_update"
	EventFinal      Event = "final"
)

func EventFor(final bool) Event {
	if final {
		return EventFinal
	}
	return EventStepUpdate
}

// Sink receives execution snapshots. The snapshot is a private copy; sinks
// must not block the engine for long.
type Sink interface {
	Record(snapshot *command.Execution, final bool)
}

type SinkFunc func(snapshot *command.Execution, final bool)

func (f SinkFunc) Record(snapshot *command.Execution, final bool) {
	f(snapshot, final)
}

// Fanout forwards each snapshot to every non-nil sink in order.
type Fanout []Sink

func (f Fanout) Record(snapshot *command.Execution, final bool) {
	for _, s := range f {
		if s != nil {
			s.Record(snapshot, final)
		}
	}
}

// StepSummary is the audited view of one step.
type StepSummary struct {
	Number     int                `json:"number"`
	Desc       string             `json:"description"`
	Status     command.StepStatus `json:"status"`
	Source     command.PlanSource `json:"source,omitempty"`
	Action     string             `json:"action,omitempty"`
	Result     string             `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	ErrorKind  command.ErrorKind  `json:"error_kind,omitempty"`
	Completion float64            `json:"completion"`
	Accuracy   float64            `json:"accuracy"`
	Recovered  bool               `json:"recovered,omitempty"`
}

// AuditEntry is persisted for reproducibility and troubleshooting.
type AuditEntry struct {
	ExecutionID string                  `json:"execution_id"`
	Event       Event                   `json:"event"`
	CommandText string                  `json:"command_text"`
	Status      command.ExecutionStatus `json:"status"`
	Completion  float64                 `json:"completion"`
	Accuracy    float64                 `json:"accuracy"`
	CurrentStep int                     `json:"current_step"`
	Steps       []StepSummary           `json:"steps"`
	DurationMs  int64                   `json:"duration_ms"`
	Timestamp   time.Time               `json:"timestamp"`
}

// NewAuditEntry flattens a snapshot, redacting secrets from free text.
func NewAuditEntry(snapshot *command.Execution, final bool, now time.Time) AuditEntry {
	entry := AuditEntry{
		ExecutionID: snapshot.ID,
		Event:       EventFor(final),
		CommandText: Redact(snapshot.CommandText),
		Status:      snapshot.OverallStatus,
		Completion:  snapshot.CompletionPercentage,
		Accuracy:    snapshot.AccuracyPercentage,
		CurrentStep: snapshot.CurrentStepIndex + 1,
		Steps:       make([]StepSummary, 0, len(snapshot.Steps)),
		DurationMs:  snapshot.Duration().Milliseconds(),
		Timestamp:   now,
	}
	for _, s := range snapshot.Steps {
		sum := StepSummary{
			Number:     s.Number,
			Desc:       Redact(s.Description),
			Status:     s.Status,
			Result:     Redact(s.Result),
			Error:      Redact(s.Error),
			ErrorKind:  s.ErrorKind,
			Completion: s.CompletionPercentage,
			Accuracy:   s.AccuracyPercentage,
			Recovered:  s.Recovered,
		}
		if s.Plan != nil {
			sum.Source = s.Plan.Source
			sum.Action = s.Plan.ActionID
		}
		entry.Steps = append(entry.Steps, sum)
	}
	return entry
}
