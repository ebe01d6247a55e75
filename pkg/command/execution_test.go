package command

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestNewExecution_NumbersStepsByPosition(t *testing.T) {
	exec := NewExecution("id", "a and b", []string{"a", "b", "c"}, t0)

	for i, s := range exec.Steps {
		if s.Number != i+1 {
			t.Errorf("step %d has number %d", i, s.Number)
		}
		if s.Status != StepPending {
			t.Errorf("step %d should start pending, got %s", s.Number, s.Status)
		}
		if s.AccuracyPercentage != DefaultAccuracy {
			t.Errorf("Expected default accuracy %v, got %v", DefaultAccuracy, s.AccuracyPercentage)
		}
	}
	if exec.OverallStatus != ExecutionInProgress {
		t.Errorf("Expected in_progress, got %s", exec.OverallStatus)
	}
}

func TestStepTransitions(t *testing.T) {
	s := NewStep(1, "open calculator")

	if err := s.Complete(t0, "ok", 90, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending -> completed should be rejected, got %v", err)
	}
	if err := s.Start(t0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(t0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double start should be rejected, got %v", err)
	}
	if err := s.Fail(t0, "", NewExecutionError(CategoryExitStatus, "exit status 1")); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if s.CompletionPercentage != 0 || s.AccuracyPercentage != 0 {
		t.Errorf("failed step must carry no credit, got %v/%v", s.CompletionPercentage, s.AccuracyPercentage)
	}
	if s.ErrorKind != KindExecution || s.ErrorCategory != CategoryExitStatus {
		t.Errorf("Unexpected error classification: %s/%s", s.ErrorKind, s.ErrorCategory)
	}
	if err := s.Start(t0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("failed -> in_progress must be rejected, got %v", err)
	}
	if err := s.Complete(t0, "ok", 90, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("failed -> completed only through Recover, got %v", err)
	}
	if err := s.Recover(t0, "fixed", 90, "verified"); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if s.Status != StepCompleted || s.Error != "" || !s.Recovered {
		t.Errorf("Unexpected recovered step: %+v", s)
	}
	if err := s.Recover(t0, "again", 90, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second recovery must be rejected, got %v", err)
	}
}

func TestInterruptPendingStepKeepsNoResult(t *testing.T) {
	exec := NewExecution("id", "x", []string{"a", "b", "c"}, t0)
	_ = exec.Steps[0].Start(t0)
	_ = exec.Steps[0].Complete(t0, "done", 90, "")

	exec.InterruptFrom(1, t0)

	for _, s := range exec.Steps[1:] {
		if s.Status != StepInterrupted {
			t.Errorf("step %d: expected interrupted, got %s", s.Number, s.Status)
		}
		if s.Result != "" || s.Error != "" {
			t.Errorf("step %d: interrupted step must have no result/error, got %q/%q", s.Number, s.Result, s.Error)
		}
	}
	if exec.Steps[0].Status != StepCompleted {
		t.Errorf("completed step must not be touched, got %s", exec.Steps[0].Status)
	}
}

func TestFinalize_StatusPriority(t *testing.T) {
	tests := []struct {
		name     string
		statuses []StepStatus
		want     ExecutionStatus
	}{
		{"all completed", []StepStatus{StepCompleted, StepCompleted}, ExecutionCompleted},
		{"one failed", []StepStatus{StepCompleted, StepFailed}, ExecutionFailed},
		{"interrupted beats failed", []StepStatus{StepFailed, StepInterrupted}, ExecutionInterrupted},
		{"interrupted beats completed", []StepStatus{StepCompleted, StepInterrupted}, ExecutionInterrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecution("id", "x", make([]string, len(tt.statuses)), t0)
			for i, st := range tt.statuses {
				exec.Steps[i].Status = st
			}
			if err := exec.Finalize(t0.Add(time.Second)); err != nil {
				t.Fatalf("Finalize: %v", err)
			}
			if exec.OverallStatus != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, exec.OverallStatus)
			}
			if !exec.Finalized() || exec.Duration() != time.Second {
				t.Errorf("Expected end time one second after start, got %v", exec.Duration())
			}
		})
	}
}

func TestFinalize_RejectsOpenSteps(t *testing.T) {
	exec := NewExecution("id", "x", []string{"a"}, t0)
	if err := exec.Finalize(t0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestAggregate(t *testing.T) {
	exec := NewExecution("id", "x", []string{"a", "b", "c", "d"}, t0)
	for _, s := range exec.Steps {
		_ = s.Start(t0)
	}
	_ = exec.Steps[0].Complete(t0, "", 100, "")
	_ = exec.Steps[1].Complete(t0, "", 80, "")
	_ = exec.Steps[2].Fail(t0, "", NewPlanningError(CategoryNoCodeBlock, "no plan", nil))
	exec.Steps[2].AccuracyPercentage = 75 // ignored: only completed steps count
	_ = exec.Steps[3].Interrupt(t0)

	exec.Recompute()
	if exec.CompletionPercentage != 50 {
		t.Errorf("Expected completion 50, got %v", exec.CompletionPercentage)
	}
	if exec.AccuracyPercentage != 90 {
		t.Errorf("Expected accuracy 90, got %v", exec.AccuracyPercentage)
	}
}

func TestAggregate_NoCompletedSteps(t *testing.T) {
	exec := NewExecution("id", "x", []string{"a", "b"}, t0)
	for _, s := range exec.Steps {
		_ = s.Start(t0)
		_ = s.Fail(t0, "", NewExecutionError(CategoryTimeout, "timed out"))
		s.AccuracyPercentage = 60
	}
	exec.Recompute()
	if exec.AccuracyPercentage != 0 {
		t.Errorf("accuracy must be 0 with no completed steps, got %v", exec.AccuracyPercentage)
	}
	if exec.CompletionPercentage < 0 || exec.CompletionPercentage > 100 {
		t.Errorf("completion out of range: %v", exec.CompletionPercentage)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	exec := NewExecution("id", "x", []string{"a"}, t0)
	exec.Steps[0].Plan = &ActionPlan{ActionID: "open_calculator"}
	snap := exec.Snapshot()

	exec.Steps[0].Description = "changed"
	exec.Steps[0].Plan.ActionID = "changed"

	if snap.Steps[0].Description != "a" || snap.Steps[0].Plan.ActionID != "open_calculator" {
		t.Errorf("snapshot shares state with live execution: %+v", snap.Steps[0])
	}
}

func TestOutcomeFailure(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		failed  bool
		cat     Category
		msg     string
	}{
		{"clean", Outcome{Raw: "ok"}, false, CategoryExitStatus, ""},
		{"error", Outcome{Error: "boom", Category: CategoryTimeout}, true, CategoryTimeout, "boom"},
		{"marker", Outcome{Raw: "window missing " + FailureMarker}, true, CategoryFailureMarker, "window missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.Failed(); got != tt.failed {
				t.Fatalf("Failed() = %v, want %v", got, tt.failed)
			}
			if !tt.failed {
				return
			}
			if got := tt.outcome.FailureCategory(); got != tt.cat {
				t.Errorf("FailureCategory() = %s, want %s", got, tt.cat)
			}
			if got := tt.outcome.FailureMessage(); got != tt.msg {
				t.Errorf("FailureMessage() = %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestStepErrorFormatting(t *testing.T) {
	err := NewPlanningError(CategoryCodegenUnavailable, "code generation failed", errors.New("dial tcp: refused"))
	if !strings.Contains(err.Error(), "planning error (codegen_unavailable)") {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if AsStepError(err) != err {
		t.Error("AsStepError should return the same *StepError")
	}
	wrapped := AsStepError(errors.New("plain"))
	if wrapped.Kind != KindPlanning || wrapped.Category != CategoryInternal {
		t.Errorf("Unexpected wrapping: %+v", wrapped)
	}
}
