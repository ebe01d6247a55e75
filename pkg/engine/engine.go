// Package engine runs submitted commands step by step: plan, execute,
// verify, one recovery attempt on failure, with cooperative cancellation
// checked before each step.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/config"
	"github.com/neuroassist/neuroassist/pkg/decompose"
	"github.com/neuroassist/neuroassist/pkg/executor"
	"github.com/neuroassist/neuroassist/pkg/hooks"
	"github.com/neuroassist/neuroassist/pkg/logger"
	"github.com/neuroassist/neuroassist/pkg/planner"
	"github.com/neuroassist/neuroassist/pkg/recovery"
	"github.com/neuroassist/neuroassist/pkg/verify"
)

var ErrUnknownExecution = errors.New("unknown execution")

// StepUpdateFunc is called after every step transition with a snapshot of
// the execution and the step that changed (a pointer into that snapshot).
type StepUpdateFunc func(exec *command.Execution, step *command.Step)

type Options struct {
	Decomposer *decompose.Decomposer
	Planner    recovery.Planner
	Executor   recovery.Executor
	Verifier   recovery.Verifier
	// Recovery is optional; nil disables remediation.
	Recovery *recovery.Recoverer
	Sink     hooks.Sink
	Now      func() time.Time
	NewID    func() string
}

type Engine struct {
	decomposer *decompose.Decomposer
	planner    recovery.Planner
	executor   recovery.Executor
	verifier   recovery.Verifier
	recovery   *recovery.Recoverer
	sink       hooks.Sink
	now        func() time.Time
	newID      func() string

	mu      sync.Mutex
	running map[string]*Handle
}

// New fills unset options with defaults: the default markers, a planner
// with no registry or code generation, a dispatcher with only the built-in
// actions and a verifier without an environment probe.
func New(opts Options) *Engine {
	e := &Engine{
		decomposer: opts.Decomposer,
		planner:    opts.Planner,
		executor:   opts.Executor,
		verifier:   opts.Verifier,
		recovery:   opts.Recovery,
		sink:       opts.Sink,
		now:        opts.Now,
		newID:      opts.NewID,
		running:    make(map[string]*Handle),
	}
	if e.decomposer == nil {
		e.decomposer = decompose.New(config.DefaultMarkers())
	}
	if e.planner == nil {
		e.planner = planner.New(nil, nil, planner.Manifest{})
	}
	if e.executor == nil {
		d := executor.NewDispatcher(nil)
		executor.RegisterBuiltins(d, nil)
		e.executor = d
	}
	if e.verifier == nil {
		e.verifier = verify.New(nil, nil)
	}
	if e.sink == nil {
		e.sink = hooks.Fanout{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

type submitConfig struct {
	handle   *Handle
	onUpdate StepUpdateFunc
}

type SubmitOption func(*submitConfig)

// WithHandle runs the execution under h, so the caller can cancel it.
func WithHandle(h *Handle) SubmitOption {
	return func(c *submitConfig) { c.handle = h }
}

func OnStepUpdate(fn StepUpdateFunc) SubmitOption {
	return func(c *submitConfig) { c.onUpdate = fn }
}

// Submit runs raw to completion and returns the finalized execution. Step
// failures are recorded on the steps; Submit itself never fails. Cancelling
// ctx has the same effect as cancelling the handle.
func (e *Engine) Submit(ctx context.Context, raw string, opts ...SubmitOption) *command.Execution {
	var sc submitConfig
	for _, opt := range opts {
		opt(&sc)
	}
	h := sc.handle
	if h == nil {
		h = NewHandle(e.newID())
	}
	e.track(h)
	defer func() {
		e.untrack(h)
		h.finish()
	}()

	cancelled := func() bool { return h.Cancelled() || ctx.Err() != nil }

	text := strings.TrimSpace(raw)
	exec := command.NewExecution(h.ID(), text, e.decomposer.Split(text), e.now())
	logger.InfoCF("engine", "Execution started", map[string]interface{}{
		"execution_id": exec.ID,
		"steps":        len(exec.Steps),
		"command":      hooks.Redact(text),
	})

	for i, step := range exec.Steps {
		exec.CurrentStepIndex = i
		if cancelled() {
			logger.InfoCF("engine", "Cancellation observed, interrupting remaining steps", map[string]interface{}{
				"execution_id": exec.ID,
				"step":         step.Number,
			})
			e.interruptFrom(exec, i, sc.onUpdate)
			break
		}

		e.runStep(ctx, exec, step, cancelled, sc.onUpdate)

		if step.Status == command.StepInterrupted {
			e.interruptFrom(exec, i+1, sc.onUpdate)
			break
		}
	}

	if err := exec.Finalize(e.now()); err != nil {
		// Unreachable unless a step was left open; keep the record consistent.
		logger.ErrorCF("engine", "Finalize failed", map[string]interface{}{
			"execution_id": exec.ID,
			"error":        err.Error(),
		})
	}
	e.sink.Record(exec.Snapshot(), true)
	return exec
}

// SubmitAsync starts the execution in its own goroutine. The handle is
// registered before SubmitAsync returns, so RequestCancel works at once.
// The channel yields the finalized execution and is then closed.
func (e *Engine) SubmitAsync(ctx context.Context, raw string, opts ...SubmitOption) (*Handle, <-chan *command.Execution) {
	var sc submitConfig
	for _, opt := range opts {
		opt(&sc)
	}
	h := sc.handle
	if h == nil {
		h = NewHandle(e.newID())
	}
	e.track(h)

	out := make(chan *command.Execution, 1)
	opts = append(opts, WithHandle(h))
	go func() {
		defer close(out)
		out <- e.Submit(ctx, raw, opts...)
	}()
	return h, out
}

// RequestCancel signals the running execution with the given ID.
func (e *Engine) RequestCancel(id string) error {
	e.mu.Lock()
	h, ok := e.running[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownExecution)
	}
	h.Cancel()
	logger.InfoCF("engine", "Cancellation requested", map[string]interface{}{"execution_id": id})
	return nil
}

// Running lists the IDs of executions that have not finished yet.
func (e *Engine) Running() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.running))
	for id := range e.running {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) track(h *Handle) {
	e.mu.Lock()
	e.running[h.ID()] = h
	e.mu.Unlock()
}

func (e *Engine) untrack(h *Handle) {
	e.mu.Lock()
	if e.running[h.ID()] == h {
		delete(e.running, h.ID())
	}
	e.mu.Unlock()
}

// interruptFrom interrupts the open steps at or after index one at a time,
// publishing each transition.
func (e *Engine) interruptFrom(exec *command.Execution, index int, onUpdate StepUpdateFunc) {
	for _, s := range exec.Steps[index:] {
		if s.Status.Terminal() {
			continue
		}
		if err := s.Interrupt(e.now()); err != nil {
			continue
		}
		e.publish(exec, s, onUpdate)
	}
}

func (e *Engine) runStep(ctx context.Context, exec *command.Execution, step *command.Step, cancelled command.CancelCheck, onUpdate StepUpdateFunc) {
	_ = step.Start(e.now())
	e.publish(exec, step, onUpdate)

	plan, err := e.planner.Plan(ctx, step.Description)
	if err != nil {
		if cancelled() {
			_ = step.Interrupt(e.now())
			e.publish(exec, step, onUpdate)
			return
		}
		se := command.AsStepError(err)
		if se == nil {
			se = command.NewPlanningError(command.CategoryInternal, err.Error(), err)
		}
		_ = step.Fail(e.now(), "", se)
		logger.WarnCF("engine", "Step planning failed", map[string]interface{}{
			"execution_id": exec.ID,
			"step":         step.Number,
			"category":     string(se.Category),
			"error":        se.Error(),
		})
		e.publish(exec, step, onUpdate)
		e.recover(ctx, exec, step, cancelled, onUpdate)
		return
	}
	step.Plan = &plan

	outcome := e.executor.Execute(ctx, plan, cancelled)
	wasCancelled := cancelled()
	verdict := e.verifier.Verify(ctx, step.Description, outcome, wasCancelled)

	switch {
	case wasCancelled:
		_ = step.Interrupt(e.now())
	case outcome.Failed():
		_ = step.Fail(e.now(), outcome.Raw, command.NewExecutionError(outcome.FailureCategory(), outcome.FailureMessage()))
	case !verdict.Verified:
		_ = step.Fail(e.now(), outcome.Raw, command.NewVerificationFailure(command.CategoryUnconfirmed, verdict.Message))
		step.VerifyMessage = verdict.Message
	default:
		_ = step.Complete(e.now(), outcome.Raw, verdict.Accuracy, verdict.Message)
	}

	logger.DebugCF("engine", "Step finished", map[string]interface{}{
		"execution_id": exec.ID,
		"step":         step.Number,
		"status":       string(step.Status),
		"source":       string(plan.Source),
		"accuracy":     step.AccuracyPercentage,
	})
	e.publish(exec, step, onUpdate)

	if step.Status == command.StepFailed {
		e.recover(ctx, exec, step, cancelled, onUpdate)
	}
}

// recover makes the single remediation attempt for a failed step. The
// step's original error stays on record when remediation fails.
func (e *Engine) recover(ctx context.Context, exec *command.Execution, step *command.Step, cancelled command.CancelCheck, onUpdate StepUpdateFunc) {
	if e.recovery == nil || step.RecoveryAttempted || cancelled() {
		return
	}
	res := e.recovery.Attempt(ctx, step, cancelled)
	if !res.Attempted {
		logger.DebugCF("engine", "No remediation for step", map[string]interface{}{
			"execution_id": exec.ID,
			"step":         step.Number,
			"rule":         res.Rule,
		})
		return
	}
	step.RecoveryAttempted = true

	if res.Recovered {
		if res.Plan != nil {
			step.Plan = res.Plan
		}
		_ = step.Recover(e.now(), res.Outcome.Raw, res.Verdict.Accuracy, res.Verdict.Message)
		logger.InfoCF("engine", "Step recovered", map[string]interface{}{
			"execution_id": exec.ID,
			"step":         step.Number,
			"rule":         res.Rule,
		})
	} else if res.Err != nil {
		step.RecoveryError = res.Err.Error()
		logger.WarnCF("engine", "Remediation failed", map[string]interface{}{
			"execution_id": exec.ID,
			"step":         step.Number,
			"rule":         res.Rule,
			"error":        res.Err.Error(),
		})
	}
	e.publish(exec, step, onUpdate)
}

func (e *Engine) publish(exec *command.Execution, step *command.Step, onUpdate StepUpdateFunc) {
	exec.Recompute()
	snap := exec.Snapshot()
	if onUpdate != nil {
		onUpdate(snap, snap.Steps[step.Number-1])
	}
	e.sink.Record(snap, false)
}
