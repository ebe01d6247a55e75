package planner

import (
	"context"
	"fmt"
	"strings"
)

// Manifest describes what generated code may rely on.
type Manifest struct {
	OS       string
	Language string
	Actions  []string
	Tools    []string
}

// PromptContext is everything the code generation backend gets for one
// request. Failure and PreviousCode are only set for repair requests.
type PromptContext struct {
	Step         string
	Manifest     Manifest
	Failure      string
	PreviousCode string
}

func (pc PromptContext) Repair() bool {
	return pc.Failure != ""
}

// CodeGenerator is the code generation backend.
type CodeGenerator interface {
	Generate(ctx context.Context, pc PromptContext) (string, error)
}

// CodeGeneratorFunc adapts a function to CodeGenerator.
type CodeGeneratorFunc func(ctx context.Context, pc PromptContext) (string, error)

func (f CodeGeneratorFunc) Generate(ctx context.Context, pc PromptContext) (string, error) {
	return f(ctx, pc)
}

// Render builds the system and user prompts sent to a language model.
func (pc PromptContext) Render() (system, user string) {
	lang := pc.Manifest.Language
	if lang == "" {
		lang = "bash"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You turn one desktop automation step into a single %s script for %s.\n", lang, pc.Manifest.OS)
	sb.WriteString("Reply with exactly one fenced code block and nothing else.\n")
	sb.WriteString("The script must be non-interactive, finish on its own and print a short result line.\n")
	if len(pc.Manifest.Tools) > 0 {
		fmt.Fprintf(&sb, "Available tools: %s.\n", strings.Join(pc.Manifest.Tools, ", "))
	}
	if len(pc.Manifest.Actions) > 0 {
		fmt.Fprintf(&sb, "Built-in actions already handled elsewhere: %s.\n", strings.Join(pc.Manifest.Actions, ", "))
	}
	system = sb.String()

	if !pc.Repair() {
		return system, fmt.Sprintf("Step: %q", pc.Step)
	}

	var ub strings.Builder
	fmt.Fprintf(&ub, "Fix the script for this step: %q\n", pc.Step)
	fmt.Fprintf(&ub, "It failed with: %s\n", pc.Failure)
	if pc.PreviousCode != "" {
		fmt.Fprintf(&ub, "Previous script:\n```%s\n%s\n```\n", lang, pc.PreviousCode)
	}
	ub.WriteString("Return the corrected script as one fenced code block.")
	return system, ub.String()
}
