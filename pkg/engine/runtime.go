package engine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/neuroassist/neuroassist/pkg/catalog"
	"github.com/neuroassist/neuroassist/pkg/config"
	"github.com/neuroassist/neuroassist/pkg/decompose"
	"github.com/neuroassist/neuroassist/pkg/executor"
	"github.com/neuroassist/neuroassist/pkg/history"
	"github.com/neuroassist/neuroassist/pkg/hooks"
	"github.com/neuroassist/neuroassist/pkg/logger"
	"github.com/neuroassist/neuroassist/pkg/planner"
	"github.com/neuroassist/neuroassist/pkg/providers"
	"github.com/neuroassist/neuroassist/pkg/recovery"
	"github.com/neuroassist/neuroassist/pkg/registry"
	"github.com/neuroassist/neuroassist/pkg/verify"
)

// desktopTools are advertised to code generation when found on PATH.
var desktopTools = []string{
	"xdg-open", "xdotool", "wmctrl", "gnome-screenshot", "scrot", "espeak", "spd-say",
	"amixer", "pactl", "loginctl", "open", "say", "osascript", "screencapture",
	"powershell", "cmd",
}

// Runtime is an engine assembled from configuration, together with the
// collaborators callers may want to reach directly.
type Runtime struct {
	Engine     *Engine
	Catalog    *catalog.Catalog
	Registry   *registry.Registry
	Dispatcher *executor.Dispatcher
	Planner    *planner.Planner
	History    *history.Store
	Audit      *hooks.JSONLSink
}

// FromConfig builds the full engine described by cfg. Code generation is
// optional: a provider that cannot be created is logged and unmatched steps
// then fail with codegen_unavailable. extra sinks receive every snapshot
// after the configured ones.
func FromConfig(cfg *config.Config, extra ...hooks.Sink) (*Runtime, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	reg := registry.New(cat.Entries)

	workDir, _ := os.Getwd()
	shell := executor.NewShellRunner(workDir, cfg.Engine.ShellTimeout())
	dispatcher := executor.NewDispatcher(shell)
	executor.RegisterBuiltins(dispatcher, nil)
	executor.RegisterCatalog(dispatcher, cat, runtime.GOOS)

	var gen planner.CodeGenerator
	provider, model, err := providers.CreateProvider(cfg.Provider)
	if err != nil {
		logger.WarnCF("engine", "Code generation disabled", map[string]interface{}{
			"provider": cfg.Provider.Kind,
			"error":    err.Error(),
		})
	} else {
		gen = providers.NewCodeGenerator(provider, model, cfg.Provider.MaxTokens, cfg.Provider.Temperature)
	}

	plan := planner.New(reg, gen, planner.Manifest{
		OS:       runtime.GOOS,
		Language: cfg.Engine.Language,
		Actions:  dispatcher.Actions(),
		Tools:    availableTools(),
	})

	var probe verify.EnvironmentProbe
	if cfg.Verify.ProbeEnabled {
		probe = verify.NewWindowProbe()
	}
	verifier := verify.New(probe, verify.IntentsFromConfig(cfg.Verify.Intents))

	rt := &Runtime{
		Catalog:    cat,
		Registry:   reg,
		Dispatcher: dispatcher,
		Planner:    plan,
	}
	sinks := hooks.Fanout{hooks.NewLogSink()}
	if cfg.Audit.Enabled {
		audit, err := hooks.NewJSONLSink(config.ExpandHome(cfg.Audit.Path))
		if err != nil {
			return nil, err
		}
		rt.Audit = audit
		sinks = append(sinks, audit)
	}
	if cfg.History.Enabled {
		store, err := history.Open(config.ExpandHome(cfg.History.Path))
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.History = store
		sinks = append(sinks, store)
	}
	sinks = append(sinks, extra...)

	var rec *recovery.Recoverer
	if cfg.Engine.Recovery {
		rec = recovery.New(plan, dispatcher, verifier, nil)
	}

	rt.Engine = New(Options{
		Decomposer: decompose.New(cfg.Engine.Markers),
		Planner:    plan,
		Executor:   dispatcher,
		Verifier:   verifier,
		Recovery:   rec,
		Sink:       sinks,
	})
	return rt, nil
}

// Close flushes the audit trail and closes the history database.
func (r *Runtime) Close() error {
	var errs []error
	if r.Audit != nil {
		errs = append(errs, r.Audit.Close())
	}
	if r.History != nil {
		errs = append(errs, r.History.Close())
	}
	return errors.Join(errs...)
}

func availableTools() []string {
	var found []string
	for _, tool := range desktopTools {
		if _, err := exec.LookPath(tool); err == nil {
			found = append(found, tool)
		}
	}
	return found
}
