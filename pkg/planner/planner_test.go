package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neuroassist/neuroassist/pkg/catalog"
	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/registry"
)

type stubGenerator struct {
	reply string
	err   error
	calls []PromptContext
}

func (s *stubGenerator) Generate(ctx context.Context, pc PromptContext) (string, error) {
	s.calls = append(s.calls, pc)
	return s.reply, s.err
}

func newTestPlanner(gen CodeGenerator) *Planner {
	reg := registry.New([]catalog.Entry{
		{Phrase: "open calculator", Action: "open_calculator"},
		{Phrase: "speak", Action: "speak", Param: catalog.ParamTrailing},
	})
	return New(reg, gen, Manifest{OS: "linux", Language: "bash"})
}

func TestPlan_RegistryMatchSkipsCodegen(t *testing.T) {
	gen := &stubGenerator{}
	p := newTestPlanner(gen)

	plan, err := p.Plan(context.Background(), "open calculator")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.ActionID != "open_calculator" {
		t.Errorf("Expected open_calculator, got %+v", plan)
	}
	if len(gen.calls) != 0 {
		t.Errorf("code generation should not be called, got %d calls", len(gen.calls))
	}
}

func TestPlan_CodegenBlock(t *testing.T) {
	gen := &stubGenerator{reply: "Sure:\n```bash\necho hi\n```\n"}
	p := newTestPlanner(gen)

	plan, err := p.Plan(context.Background(), "print a greeting")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Source != command.SourceCodegen || plan.Code != "echo hi" || plan.Language != "bash" {
		t.Errorf("Unexpected plan: %+v", plan)
	}
	if len(gen.calls) != 1 || gen.calls[0].Step != "print a greeting" || gen.calls[0].Manifest.OS != "linux" {
		t.Errorf("Unexpected prompt context: %+v", gen.calls)
	}
}

func TestPlan_NoCodeBlockIsPlanningError(t *testing.T) {
	p := newTestPlanner(&stubGenerator{reply: "I am not sure what you mean."})

	_, err := p.Plan(context.Background(), "do something unknown")
	var se *command.StepError
	if !errors.As(err, &se) {
		t.Fatalf("Expected *command.StepError, got %v", err)
	}
	if se.Kind != command.KindPlanning || se.Category != command.CategoryNoCodeBlock {
		t.Errorf("Unexpected error: %+v", se)
	}
	if !errors.Is(err, ErrNoCodeBlock) {
		t.Errorf("Expected ErrNoCodeBlock in chain, got %v", err)
	}
}

func TestPlan_GeneratorError(t *testing.T) {
	p := newTestPlanner(&stubGenerator{err: errors.New("503 overloaded")})

	_, err := p.Plan(context.Background(), "do something unknown")
	var se *command.StepError
	if !errors.As(err, &se) || se.Category != command.CategoryCodegenUnavailable {
		t.Fatalf("Expected codegen_unavailable, got %v", err)
	}
}

func TestPlan_NoGenerator(t *testing.T) {
	_, err := newTestPlanner(nil).Plan(context.Background(), "do something unknown")
	var se *command.StepError
	if !errors.As(err, &se) || se.Category != command.CategoryCodegenUnavailable {
		t.Fatalf("Expected codegen_unavailable, got %v", err)
	}
}

func TestPlan_FeasibilityGuard(t *testing.T) {
	gen := &stubGenerator{reply: "```bash\nrm -rf /tmp/x\n```"}
	p := newTestPlanner(gen)

	_, err := p.Plan(context.Background(), "delete all my documents")
	var se *command.StepError
	if !errors.As(err, &se) || se.Category != command.CategoryBlocked {
		t.Fatalf("Expected blocked planning error, got %v", err)
	}
	if len(gen.calls) != 0 {
		t.Error("blocked step must not reach code generation")
	}

	plan, err := p.Plan(context.Background(), "install htop")
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !plan.RequiresConfirmation {
		t.Error("install should be flagged for confirmation")
	}
}

func TestPlanRepair_CarriesFailure(t *testing.T) {
	gen := &stubGenerator{reply: "```sh\necho fixed\n```"}
	p := newTestPlanner(gen)

	prev := &command.ActionPlan{Code: "ech fixed"}
	plan, err := p.PlanRepair(context.Background(), "print fixed", "ech: command not found", prev)
	if err != nil {
		t.Fatalf("PlanRepair: %v", err)
	}
	if plan.Source != command.SourceRecovery || plan.Code != "echo fixed" {
		t.Errorf("Unexpected plan: %+v", plan)
	}
	pc := gen.calls[0]
	if !pc.Repair() || pc.PreviousCode != "ech fixed" {
		t.Errorf("Unexpected repair context: %+v", pc)
	}
	_, user := pc.Render()
	if !strings.Contains(user, "ech: command not found") {
		t.Errorf("failure message should be embedded in the prompt, got %q", user)
	}
}

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		lang   string
		want   string
		wantOK bool
	}{
		{"none", "no code here", "bash", "", false},
		{"unterminated", "```bash\necho hi", "bash", "", false},
		{"untagged", "```\nls\n```", "bash", "ls", true},
		{"prefers language", "```python\nprint(1)\n```\n```bash\necho 1\n```", "bash", "echo 1", true},
		{"falls back to first", "```python\nprint(1)\n```", "bash", "print(1)", true},
		{"sh counts as bash", "```sh\ndate\n```", "bash", "date", true},
		{"empty block skipped", "```bash\n```\n```bash\nuptime\n```", "bash", "uptime", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := ExtractCodeBlock(tt.text, tt.lang)
			if (err == nil) != tt.wantOK {
				t.Fatalf("ExtractCodeBlock err = %v, wantOK %v", err, tt.wantOK)
			}
			if block.Code != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, block.Code)
			}
		})
	}
}

func TestCheckFeasibility(t *testing.T) {
	if f := CheckFeasibility("open calculator"); !f.Allowed || f.RequiresConfirmation {
		t.Errorf("Unexpected verdict: %+v", f)
	}
	if f := CheckFeasibility("Format disk C"); f.Allowed {
		t.Errorf("format should be refused: %+v", f)
	}
	if f := CheckFeasibility("перезагрузи компьютер"); !f.RequiresConfirmation {
		t.Errorf("reboot should require confirmation: %+v", f)
	}
}
