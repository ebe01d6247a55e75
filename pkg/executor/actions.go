package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neuroassist/neuroassist/pkg/catalog"
	"github.com/neuroassist/neuroassist/pkg/command"
)

// ShellAction runs a catalog template, substituting the quoted trailing
// argument for {{arg}}.
type ShellAction struct {
	Template string
	Runner   *ShellRunner
}

func (a ShellAction) Run(ctx context.Context, plan command.ActionPlan, cancelled command.CancelCheck) command.Outcome {
	script := a.Template
	if strings.Contains(script, catalog.ArgPlaceholder) {
		if strings.TrimSpace(plan.Argument) == "" {
			return command.Outcome{
				Error:    fmt.Sprintf("action %q needs an argument", plan.ActionID),
				Category: command.CategoryUnknownAction,
			}
		}
		script = strings.ReplaceAll(script, catalog.ArgPlaceholder, ShellQuote(plan.Argument))
	}
	return a.Runner.Run(ctx, script, "sh", cancelled)
}

// unavailable reports an action the catalog knows but this platform cannot run.
func unavailable(actionID, goos string) Handler {
	return HandlerFunc(func(ctx context.Context, plan command.ActionPlan, cancelled command.CancelCheck) command.Outcome {
		return command.Outcome{
			Error:    fmt.Sprintf("action %q is not available on %s", actionID, goos),
			Category: command.CategoryUnknownAction,
		}
	})
}

// RegisterCatalog binds every catalog action that has no handler yet to its
// shell template for goos.
func RegisterCatalog(d *Dispatcher, c *catalog.Catalog, goos string) {
	for _, id := range c.ActionIDs() {
		if d.Has(id) {
			continue
		}
		if tmpl, ok := c.Template(id, goos); ok {
			d.Register(id, ShellAction{Template: tmpl, Runner: d.shell})
			continue
		}
		d.Register(id, unavailable(id, goos))
	}
}

// RegisterBuiltins adds the actions implemented in-process. now may be nil.
func RegisterBuiltins(d *Dispatcher, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	d.Register("show_time", HandlerFunc(func(ctx context.Context, plan command.ActionPlan, cancelled command.CancelCheck) command.Outcome {
		return command.Outcome{Raw: "current time: " + now().Format("15:04:05")}
	}))
	d.Register("show_date", HandlerFunc(func(ctx context.Context, plan command.ActionPlan, cancelled command.CancelCheck) command.Outcome {
		return command.Outcome{Raw: "current date: " + now().Format("Monday, 02 January 2006")}
	}))
	d.Register("calculate", HandlerFunc(calculate))
}
