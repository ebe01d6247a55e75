package recovery

import (
	"strings"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/executor"
)

type Strategy string

const (
	// StrategyNone gives up without a remediation attempt.
	StrategyNone Strategy = "none"
	// StrategyRetry plans and runs the step again unchanged.
	StrategyRetry Strategy = "retry"
	// StrategyArithmetic evaluates an arithmetic expression found in the step.
	StrategyArithmetic Strategy = "arithmetic"
	// StrategyRegenerate asks the code generation backend for a corrected plan.
	StrategyRegenerate Strategy = "regenerate"
)

// Rule maps an error signature to a remediation strategy. Empty Kinds or
// Categories match anything; Match, when set, must also accept the step.
type Rule struct {
	Name       string
	Kinds      []command.ErrorKind
	Categories []command.Category
	Match      func(desc string) bool
	Strategy   Strategy
}

func (r Rule) matches(desc string, se *command.StepError) bool {
	if len(r.Kinds) > 0 && !containsKind(r.Kinds, se.Kind) {
		return false
	}
	if len(r.Categories) > 0 && !containsCategory(r.Categories, se.Category) {
		return false
	}
	if r.Match != nil && !r.Match(desc) {
		return false
	}
	return true
}

// DefaultRules is the built-in signature table. Unmatched failures fall
// through to StrategyRegenerate.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "refused",
			Categories: []command.Category{command.CategoryBlocked, command.CategoryCancelled},
			Strategy:   StrategyNone,
		},
		{
			Name:     "calculator-arithmetic",
			Match:    calculatorArithmetic,
			Strategy: StrategyArithmetic,
		},
		{
			Name:       "transient",
			Categories: []command.Category{command.CategoryTimeout, command.CategoryCodegenUnavailable},
			Strategy:   StrategyRetry,
		},
	}
}

func calculatorArithmetic(desc string) bool {
	lowered := strings.ToLower(desc)
	if !strings.Contains(lowered, "calculator") && !strings.Contains(lowered, "калькулятор") &&
		!strings.Contains(lowered, "calculate") && !strings.Contains(lowered, "посчитай") {
		return false
	}
	_, ok := executor.ExtractArithmetic(desc)
	return ok
}

func containsKind(list []command.ErrorKind, k command.ErrorKind) bool {
	for _, v := range list {
		if v == k {
			return true
		}
	}
	return false
}

func containsCategory(list []command.Category, c command.Category) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}
