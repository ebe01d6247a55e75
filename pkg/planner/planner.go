// Package planner turns a step description into an action plan, either from
// the known-action registry or from generated code.
package planner

import (
	"context"
	"fmt"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/logger"
	"github.com/neuroassist/neuroassist/pkg/registry"
)

type Planner struct {
	registry  *registry.Registry
	generator CodeGenerator
	manifest  Manifest
}

// New builds a planner. generator may be nil, in which case unmatched steps
// fail with codegen_unavailable.
func New(reg *registry.Registry, generator CodeGenerator, manifest Manifest) *Planner {
	if reg == nil {
		reg = registry.New(nil)
	}
	if manifest.Language == "" {
		manifest.Language = "bash"
	}
	return &Planner{registry: reg, generator: generator, manifest: manifest}
}

func (p *Planner) Manifest() Manifest {
	return p.manifest
}

// Plan resolves desc. Failures are returned as *command.StepError of kind
// planning.
func (p *Planner) Plan(ctx context.Context, desc string) (command.ActionPlan, error) {
	if plan, ok := p.registry.Match(desc); ok {
		logger.DebugCF("planner", "Registry match", map[string]interface{}{
			"step":   desc,
			"action": plan.ActionID,
		})
		return plan, nil
	}

	return p.generate(ctx, PromptContext{Step: desc, Manifest: p.manifest}, command.SourceCodegen)
}

// PlanRepair asks the code generation backend for a corrected plan, with the
// failure message as context.
func (p *Planner) PlanRepair(ctx context.Context, desc, failure string, previous *command.ActionPlan) (command.ActionPlan, error) {
	pc := PromptContext{Step: desc, Manifest: p.manifest, Failure: failure}
	if previous != nil {
		pc.PreviousCode = previous.Code
	}
	return p.generate(ctx, pc, command.SourceRecovery)
}

func (p *Planner) generate(ctx context.Context, pc PromptContext, source command.PlanSource) (command.ActionPlan, error) {
	feas := CheckFeasibility(pc.Step)
	if !feas.Allowed {
		logger.WarnCF("planner", "Step refused by feasibility guard", map[string]interface{}{
			"step":    pc.Step,
			"keyword": feas.Keyword,
		})
		return command.ActionPlan{}, command.NewPlanningError(command.CategoryBlocked,
			fmt.Sprintf("step contains %q and cannot run unattended", feas.Keyword), nil)
	}

	if p.generator == nil {
		return command.ActionPlan{}, command.NewPlanningError(command.CategoryCodegenUnavailable,
			"no known action matches and code generation is not configured", nil)
	}

	resp, err := p.generator.Generate(ctx, pc)
	if err != nil {
		return command.ActionPlan{}, command.NewPlanningError(command.CategoryCodegenUnavailable, "code generation failed", err)
	}

	block, err := ExtractCodeBlock(resp, p.manifest.Language)
	if err != nil {
		logger.WarnCF("planner", "Code generation reply had no code block", map[string]interface{}{
			"step":        pc.Step,
			"reply_chars": len(resp),
		})
		return command.ActionPlan{}, command.NewPlanningError(command.CategoryNoCodeBlock, "no usable action plan", err)
	}

	lang := block.Language
	if lang == "" {
		lang = p.manifest.Language
	}
	if feas.RequiresConfirmation {
		logger.WarnCF("planner", "Generated plan needs confirmation", map[string]interface{}{
			"step":    pc.Step,
			"keyword": feas.Keyword,
		})
	}
	return command.ActionPlan{
		Source:               source,
		Language:             lang,
		Code:                 block.Code,
		RequiresConfirmation: feas.RequiresConfirmation,
	}, nil
}
