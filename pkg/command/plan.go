package command

import (
	"fmt"
	"strings"
)

// FailureMarker is written by actions that cannot report failure through an
// error. Any outcome containing it counts as failed.
const FailureMarker = "[[neuroassist:failed]]"

// CancelCheck reports whether the owning execution has been asked to stop.
type CancelCheck func() bool

type PlanSource string

const (
	SourceRegistry PlanSource = "registry"
	SourceCodegen  PlanSource = "codegen"
	SourceRecovery PlanSource = "recovery"
)

// ActionPlan is the concrete instruction set for one step. Registry plans
// carry an ActionID (and optional Argument); generated plans carry Code.
type ActionPlan struct {
	Source               PlanSource `json:"source"`
	ActionID             string     `json:"action_id,omitempty"`
	Argument             string     `json:"argument,omitempty"`
	Language             string     `json:"language,omitempty"`
	Code                 string     `json:"code,omitempty"`
	RequiresConfirmation bool       `json:"requires_confirmation,omitempty"`
}

func (p ActionPlan) String() string {
	if p.ActionID != "" {
		if p.Argument != "" {
			return fmt.Sprintf("%s(%q)", p.ActionID, p.Argument)
		}
		return p.ActionID
	}
	lang := p.Language
	if lang == "" {
		lang = "code"
	}
	return fmt.Sprintf("%s[%d bytes]", lang, len(p.Code))
}

// Outcome is what the executor reports back for one plan.
type Outcome struct {
	Raw      string   `json:"raw,omitempty"`
	Error    string   `json:"error,omitempty"`
	Category Category `json:"category,omitempty"`
}

func (o Outcome) Failed() bool {
	return o.Error != "" || strings.Contains(o.Raw, FailureMarker)
}

// FailureMessage is the text recorded on the step when the outcome failed.
func (o Outcome) FailureMessage() string {
	if o.Error != "" {
		return o.Error
	}
	if strings.Contains(o.Raw, FailureMarker) {
		msg := strings.TrimSpace(strings.ReplaceAll(o.Raw, FailureMarker, ""))
		if msg == "" {
			return "action reported failure"
		}
		return msg
	}
	return ""
}

// FailureCategory falls back to exit_status or failure_marker when the
// executor did not classify the failure.
func (o Outcome) FailureCategory() Category {
	if o.Category != "" {
		return o.Category
	}
	if o.Error == "" && strings.Contains(o.Raw, FailureMarker) {
		return CategoryFailureMarker
	}
	return CategoryExitStatus
}
