package executor

import (
	"context"
	"testing"

	"github.com/neuroassist/neuroassist/pkg/command"
)

func TestExtractArithmetic(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"calculate 12 * 4 in calculator", "12*4", true},
		{"посчитай 7+8", "7+8", true},
		{"open calculator", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractArithmetic(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ExtractArithmetic(%q) = %q/%v, want %q/%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestEvalArithmetic(t *testing.T) {
	tests := map[string]float64{
		"2+3":   5,
		"10-4":  6,
		"6*7":   42,
		"9/2":   4.5,
		"1,5*2": 3,
	}
	for expr, want := range tests {
		got, err := EvalArithmetic(expr)
		if err != nil {
			t.Fatalf("EvalArithmetic(%q): %v", expr, err)
		}
		if got != want {
			t.Errorf("EvalArithmetic(%q) = %v, want %v", expr, got, want)
		}
	}
	if _, err := EvalArithmetic("1/0"); err == nil {
		t.Error("expected division by zero error")
	}
}

func TestCalculateAction(t *testing.T) {
	d := NewDispatcher(nil)
	RegisterBuiltins(d, nil)

	out := d.Execute(context.Background(), command.ActionPlan{ActionID: "calculate", Argument: "12 * 4"}, nil)
	if out.Failed() || out.Raw != "12*4 = 48" {
		t.Errorf("Unexpected outcome: %+v", out)
	}
	out = d.Execute(context.Background(), command.ActionPlan{ActionID: "calculate", Argument: "nothing"}, nil)
	if !out.Failed() {
		t.Error("expected failure without expression")
	}
}
