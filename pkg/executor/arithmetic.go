package executor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/neuroassist/neuroassist/pkg/command"
)

var arithmeticPattern = regexp.MustCompile(`(-?\d+(?:[.,]\d+)?)\s*([+\-*/×x:])\s*(-?\d+(?:[.,]\d+)?)`)

// ExtractArithmetic finds the first binary arithmetic expression in text and
// returns it without spaces.
func ExtractArithmetic(text string) (string, bool) {
	m := arithmeticPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ReplaceAll(m, " ", ""), true
}

// EvalArithmetic evaluates a single binary expression such as "12*4".
func EvalArithmetic(expr string) (float64, error) {
	m := arithmeticPattern.FindStringSubmatch(expr)
	if m == nil {
		return 0, fmt.Errorf("no arithmetic expression in %q", expr)
	}
	a, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, err
	}
	b, err := strconv.ParseFloat(strings.ReplaceAll(m[3], ",", "."), 64)
	if err != nil {
		return 0, err
	}
	switch m[2] {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*", "×", "x":
		return a * b, nil
	default:
		if b == 0 {
			return 0, fmt.Errorf("division by zero in %q", expr)
		}
		return a / b, nil
	}
}

func calculate(ctx context.Context, plan command.ActionPlan, cancelled command.CancelCheck) command.Outcome {
	expr, ok := ExtractArithmetic(plan.Argument)
	if !ok {
		return command.Outcome{Error: fmt.Sprintf("no arithmetic expression in %q", plan.Argument), Category: command.CategoryUnknownAction}
	}
	v, err := EvalArithmetic(expr)
	if err != nil {
		return command.Outcome{Error: err.Error(), Category: command.CategoryExitStatus}
	}
	return command.Outcome{Raw: fmt.Sprintf("%s = %s", expr, strconv.FormatFloat(v, 'f', -1, 64))}
}
