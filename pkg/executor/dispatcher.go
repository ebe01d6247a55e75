// Package executor runs action plans: registered actions by id, generated
// code through a child shell.
package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/logger"
)

// Handler runs one registered action.
type Handler interface {
	Run(ctx context.Context, plan command.ActionPlan, cancelled command.CancelCheck) command.Outcome
}

type HandlerFunc func(ctx context.Context, plan command.ActionPlan, cancelled command.CancelCheck) command.Outcome

func (f HandlerFunc) Run(ctx context.Context, plan command.ActionPlan, cancelled command.CancelCheck) command.Outcome {
	return f(ctx, plan, cancelled)
}

type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	shell    *ShellRunner
}

// NewDispatcher builds an empty dispatcher. Actions are added with Register;
// nothing is discovered implicitly.
func NewDispatcher(shell *ShellRunner) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		shell:    shell,
	}
}

// Register binds actionID to h, replacing any earlier binding.
func (d *Dispatcher) Register(actionID string, h Handler) *Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[actionID] = h
	return d
}

func (d *Dispatcher) Has(actionID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[actionID]
	return ok
}

func (d *Dispatcher) Actions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.handlers))
	for id := range d.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Dispatcher) Execute(ctx context.Context, plan command.ActionPlan, cancelled command.CancelCheck) command.Outcome {
	if plan.ActionID != "" {
		d.mu.RLock()
		h, ok := d.handlers[plan.ActionID]
		d.mu.RUnlock()
		if !ok {
			return command.Outcome{
				Error:    fmt.Sprintf("no handler registered for action %q", plan.ActionID),
				Category: command.CategoryUnknownAction,
			}
		}
		logger.DebugCF("executor", "Running action", map[string]interface{}{
			"action":   plan.ActionID,
			"argument": plan.Argument,
		})
		return h.Run(ctx, plan, cancelled)
	}

	if plan.Code != "" {
		if d.shell == nil {
			return command.Outcome{Error: "no shell runner configured", Category: command.CategoryUnsupported}
		}
		logger.DebugCF("executor", "Running generated code", map[string]interface{}{
			"lang":  plan.Language,
			"bytes": len(plan.Code),
		})
		return d.shell.Run(ctx, plan.Code, plan.Language, cancelled)
	}

	return command.Outcome{Error: "empty action plan", Category: command.CategoryUnknownAction}
}
