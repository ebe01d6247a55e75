package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/neuroassist/neuroassist/pkg/command"
)

var (
	colorAccent  = lipgloss.Color("#7B68EE")
	colorSuccess = lipgloss.Color("#50C878")
	colorWarning = lipgloss.Color("#FFB347")
	colorError   = lipgloss.Color("#FF6961")
	colorMuted   = lipgloss.Color("#808080")
	colorTitle   = lipgloss.Color("#C4B5FD")
)

var (
	styleOK     = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarn   = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleErr    = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(colorMuted)
	styleKey    = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	styleHint   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
)

func stepIcon(s command.StepStatus) string {
	switch s {
	case command.StepCompleted:
		return styleOK.Render("✓")
	case command.StepFailed:
		return styleErr.Render("✗")
	case command.StepInterrupted:
		return styleWarn.Render("■")
	case command.StepInProgress:
		return styleKey.Render("›")
	default:
		return styleDim.Render("·")
	}
}

func statusBadge(s command.ExecutionStatus) string {
	switch s {
	case command.ExecutionCompleted:
		return styleOK.Render(string(s))
	case command.ExecutionFailed:
		return styleErr.Render(string(s))
	case command.ExecutionInterrupted:
		return styleWarn.Render(string(s))
	default:
		return styleKey.Render(string(s))
	}
}

// renderStep is one line per step plus an indented detail line when there
// is something to say.
func renderStep(s *command.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d. %s", stepIcon(s.Status), s.Number, s.Description)
	if s.Plan != nil {
		b.WriteString(styleDim.Render("  [" + planLabel(s.Plan) + "]"))
	}
	if s.Recovered {
		b.WriteString(styleWarn.Render("  (recovered)"))
	}

	detail := ""
	switch {
	case s.Status == command.StepFailed:
		detail = styleErr.Render(s.Error)
		if s.RecoveryError != "" {
			detail += styleDim.Render("  repair: " + s.RecoveryError)
		}
	case s.Status == command.StepCompleted && s.Result != "":
		detail = firstLine(s.Result)
	}
	if detail != "" {
		b.WriteString("\n     " + detail)
	}
	return b.String()
}

func planLabel(p *command.ActionPlan) string {
	if p.ActionID != "" {
		return string(p.Source) + ":" + p.ActionID
	}
	return string(p.Source) + ":" + p.Language
}

func renderSummary(exec *command.Execution) string {
	return fmt.Sprintf("%s  completion %s  accuracy %s  %s",
		statusBadge(exec.OverallStatus),
		styleKey.Render(fmt.Sprintf("%.0f%%", exec.CompletionPercentage)),
		styleKey.Render(fmt.Sprintf("%.0f%%", exec.AccuracyPercentage)),
		styleDim.Render(exec.Duration().Round(time.Millisecond).String()),
	)
}

func renderExecution(exec *command.Execution) string {
	var b strings.Builder
	b.WriteString(styleHeader.Render(exec.CommandText))
	b.WriteString("\n")
	for _, s := range exec.Steps {
		b.WriteString(renderStep(s))
		b.WriteString("\n")
	}
	b.WriteString(renderSummary(exec))
	b.WriteString("\n")
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
