package command

import (
	"fmt"
	"time"
)

type StepStatus string

const (
	StepPending     StepStatus = "pending"
	StepInProgress  StepStatus = "in_progress"
	StepCompleted   StepStatus = "completed"
	StepFailed      StepStatus = "failed"
	StepInterrupted StepStatus = "interrupted"
)

func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepInterrupted
}

type ExecutionStatus string

const (
	ExecutionInProgress  ExecutionStatus = "in_progress"
	ExecutionCompleted   ExecutionStatus = "completed"
	ExecutionFailed      ExecutionStatus = "failed"
	ExecutionInterrupted ExecutionStatus = "interrupted"
)

// DefaultAccuracy is the confidence given to a step whose effect cannot be
// observed.
const DefaultAccuracy = 90.0

type Step struct {
	Number               int         `json:"step_number"`
	Description          string      `json:"description"`
	Status               StepStatus  `json:"status"`
	Result               string      `json:"result,omitempty"`
	Error                string      `json:"error,omitempty"`
	ErrorKind            ErrorKind   `json:"error_kind,omitempty"`
	ErrorCategory        Category    `json:"error_category,omitempty"`
	CompletionPercentage float64     `json:"completion_percentage"`
	AccuracyPercentage   float64     `json:"accuracy_percentage"`
	Verified             bool        `json:"verified"`
	VerifyMessage        string      `json:"verify_message,omitempty"`
	Plan                 *ActionPlan `json:"plan,omitempty"`
	RecoveryAttempted    bool        `json:"recovery_attempted,omitempty"`
	Recovered            bool        `json:"recovered,omitempty"`
	RecoveryError        string      `json:"recovery_error,omitempty"`
	StartedAt            *time.Time  `json:"started_at,omitempty"`
	FinishedAt           *time.Time  `json:"finished_at,omitempty"`
}

func NewStep(number int, description string) *Step {
	return &Step{
		Number:             number,
		Description:        description,
		Status:             StepPending,
		AccuracyPercentage: DefaultAccuracy,
	}
}

func (s *Step) transitionErr(to StepStatus) error {
	return fmt.Errorf("step %d %s -> %s: %w", s.Number, s.Status, to, ErrInvalidTransition)
}

func (s *Step) Start(now time.Time) error {
	if s.Status != StepPending {
		return s.transitionErr(StepInProgress)
	}
	s.Status = StepInProgress
	s.StartedAt = &now
	return nil
}

func (s *Step) Complete(now time.Time, result string, accuracy float64, message string) error {
	if s.Status != StepInProgress {
		return s.transitionErr(StepCompleted)
	}
	s.Status = StepCompleted
	s.Result = result
	s.CompletionPercentage = 100
	s.AccuracyPercentage = clampPercent(accuracy)
	s.Verified = true
	s.VerifyMessage = message
	s.FinishedAt = &now
	return nil
}

// Fail records a terminal failure. Failed steps earn no completion or
// accuracy credit regardless of which stage failed.
func (s *Step) Fail(now time.Time, result string, stepErr *StepError) error {
	if s.Status != StepInProgress {
		return s.transitionErr(StepFailed)
	}
	s.Status = StepFailed
	s.Result = result
	s.setError(stepErr)
	s.CompletionPercentage = 0
	s.AccuracyPercentage = 0
	s.Verified = false
	s.FinishedAt = &now
	return nil
}

// Interrupt stops a step that was never allowed to finish. A pending step
// keeps no result or error.
func (s *Step) Interrupt(now time.Time) error {
	if s.Status != StepPending && s.Status != StepInProgress {
		return s.transitionErr(StepInterrupted)
	}
	s.Status = StepInterrupted
	s.CompletionPercentage = 0
	s.AccuracyPercentage = 0
	s.Verified = false
	s.VerifyMessage = "cancelled"
	s.FinishedAt = &now
	return nil
}

// Recover is the single failed -> completed edge.
func (s *Step) Recover(now time.Time, result string, accuracy float64, message string) error {
	if s.Status != StepFailed || s.Recovered {
		return s.transitionErr(StepCompleted)
	}
	s.Status = StepCompleted
	s.Recovered = true
	s.Result = result
	s.Error = ""
	s.ErrorKind = ""
	s.ErrorCategory = ""
	s.RecoveryError = ""
	s.CompletionPercentage = 100
	s.AccuracyPercentage = clampPercent(accuracy)
	s.Verified = true
	s.VerifyMessage = message
	s.FinishedAt = &now
	return nil
}

func (s *Step) setError(stepErr *StepError) {
	if stepErr == nil {
		return
	}
	s.Error = stepErr.Error()
	s.ErrorKind = stepErr.Kind
	s.ErrorCategory = stepErr.Category
}

// StepError rebuilds the structured failure recorded on the step.
func (s *Step) StepError() *StepError {
	if s.Error == "" {
		return nil
	}
	return &StepError{Kind: s.ErrorKind, Category: s.ErrorCategory, Message: s.Error}
}

func (s *Step) clone() *Step {
	c := *s
	if s.Plan != nil {
		p := *s.Plan
		c.Plan = &p
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Execution is the aggregate root for one submitted command.
type Execution struct {
	ID                   string          `json:"id"`
	CommandText          string          `json:"command_text"`
	Steps                []*Step         `json:"steps"`
	StartTime            time.Time       `json:"start_time"`
	EndTime              *time.Time      `json:"end_time,omitempty"`
	OverallStatus        ExecutionStatus `json:"overall_status"`
	CompletionPercentage float64         `json:"completion_percentage"`
	AccuracyPercentage   float64         `json:"accuracy_percentage"`
	CurrentStepIndex     int             `json:"current_step_index"`
}

func NewExecution(id, text string, descriptions []string, now time.Time) *Execution {
	steps := make([]*Step, len(descriptions))
	for i, d := range descriptions {
		steps[i] = NewStep(i+1, d)
	}
	return &Execution{
		ID:            id,
		CommandText:   text,
		Steps:         steps,
		StartTime:     now,
		OverallStatus: ExecutionInProgress,
	}
}

func (e *Execution) Finalized() bool {
	return e.EndTime != nil
}

func (e *Execution) CurrentStep() *Step {
	if e.CurrentStepIndex < 0 || e.CurrentStepIndex >= len(e.Steps) {
		return nil
	}
	return e.Steps[e.CurrentStepIndex]
}

// InterruptFrom marks every non-terminal step at or after index as
// interrupted.
func (e *Execution) InterruptFrom(index int, now time.Time) {
	for i := index; i < len(e.Steps); i++ {
		if !e.Steps[i].Status.Terminal() {
			_ = e.Steps[i].Interrupt(now)
		}
	}
}

// Finalize fixes the overall status and end time. Interrupted outranks
// failed, which outranks completed.
func (e *Execution) Finalize(now time.Time) error {
	if e.Finalized() {
		return fmt.Errorf("execution %s already finalized: %w", e.ID, ErrInvalidTransition)
	}
	status := ExecutionCompleted
	for _, s := range e.Steps {
		switch s.Status {
		case StepInterrupted:
			status = ExecutionInterrupted
		case StepFailed:
			if status != ExecutionInterrupted {
				status = ExecutionFailed
			}
		case StepCompleted:
		default:
			return fmt.Errorf("execution %s: step %d still %s: %w", e.ID, s.Number, s.Status, ErrInvalidTransition)
		}
	}
	e.OverallStatus = status
	e.EndTime = &now
	e.Recompute()
	return nil
}

func (e *Execution) Duration() time.Duration {
	if e.EndTime == nil {
		return time.Since(e.StartTime)
	}
	return e.EndTime.Sub(e.StartTime)
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (e *Execution) Snapshot() *Execution {
	c := *e
	c.Steps = make([]*Step, len(e.Steps))
	for i, s := range e.Steps {
		c.Steps[i] = s.clone()
	}
	if e.EndTime != nil {
		t := *e.EndTime
		c.EndTime = &t
	}
	return &c
}

func (e *Execution) CountByStatus(status StepStatus) int {
	n := 0
	for _, s := range e.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}
