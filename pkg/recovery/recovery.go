// Package recovery makes one bounded repair attempt for a failed step.
package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/executor"
	"github.com/neuroassist/neuroassist/pkg/logger"
	"github.com/neuroassist/neuroassist/pkg/verify"
)

type Planner interface {
	Plan(ctx context.Context, desc string) (command.ActionPlan, error)
	PlanRepair(ctx context.Context, desc, failure string, previous *command.ActionPlan) (command.ActionPlan, error)
}

type Executor interface {
	Execute(ctx context.Context, plan command.ActionPlan, cancelled command.CancelCheck) command.Outcome
}

type Verifier interface {
	Verify(ctx context.Context, desc string, outcome command.Outcome, cancelled bool) verify.Verdict
}

var ErrNoRemediation = errors.New("no remediation for this failure")

// Result describes the single remediation attempt. Err holds the
// remediation's own failure; the step's original error stays authoritative.
type Result struct {
	Attempted bool
	Rule      string
	Strategy  Strategy
	Recovered bool
	Plan      *command.ActionPlan
	Outcome   command.Outcome
	Verdict   verify.Verdict
	Err       error
}

type Recoverer struct {
	planner  Planner
	executor Executor
	verifier Verifier
	rules    []Rule
}

// New builds a recoverer. nil rules selects DefaultRules.
func New(p Planner, e Executor, v Verifier, rules []Rule) *Recoverer {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Recoverer{planner: p, executor: e, verifier: v, rules: rules}
}

// Select returns the first rule matching the failure, or the regenerate
// fallback.
func (r *Recoverer) Select(desc string, se *command.StepError) (string, Strategy) {
	for _, rule := range r.rules {
		if rule.matches(desc, se) {
			return rule.Name, rule.Strategy
		}
	}
	return "fallback", StrategyRegenerate
}

// Attempt runs at most one remediation for a failed step and reports what
// happened. It never mutates step.
func (r *Recoverer) Attempt(ctx context.Context, step *command.Step, cancelled command.CancelCheck) Result {
	se := step.StepError()
	if step.Status != command.StepFailed || se == nil {
		return Result{Err: fmt.Errorf("step %d is %s, not failed", step.Number, step.Status)}
	}

	rule, strategy := r.Select(step.Description, se)
	res := Result{Rule: rule, Strategy: strategy}
	if strategy == StrategyNone {
		res.Err = ErrNoRemediation
		return res
	}
	res.Attempted = true

	logger.InfoCF("recovery", "Attempting remediation", map[string]interface{}{
		"step":     step.Number,
		"rule":     rule,
		"strategy": string(strategy),
		"category": string(se.Category),
	})

	plan, err := r.plan(ctx, step, se, strategy)
	if err != nil {
		res.Err = err
		return res
	}
	res.Plan = &plan

	isCancelled := func() bool { return cancelled != nil && cancelled() }
	res.Outcome = r.executor.Execute(ctx, plan, cancelled)
	res.Verdict = r.verifier.Verify(ctx, step.Description, res.Outcome, isCancelled())
	if !res.Verdict.Verified {
		msg := res.Verdict.Message
		if msg == "" {
			msg = "remediation was not verified"
		}
		res.Err = errors.New(msg)
		return res
	}

	res.Recovered = true
	return res
}

func (r *Recoverer) plan(ctx context.Context, step *command.Step, se *command.StepError, strategy Strategy) (command.ActionPlan, error) {
	switch strategy {
	case StrategyArithmetic:
		expr, ok := executor.ExtractArithmetic(step.Description)
		if !ok {
			return command.ActionPlan{}, ErrNoRemediation
		}
		return command.ActionPlan{Source: command.SourceRecovery, ActionID: "calculate", Argument: expr}, nil
	case StrategyRetry:
		if step.Plan != nil && se.Kind != command.KindPlanning {
			plan := *step.Plan
			return plan, nil
		}
		return r.planner.Plan(ctx, step.Description)
	default:
		return r.planner.PlanRepair(ctx, step.Description, step.Error, step.Plan)
	}
}
