package planner

import "strings"

// Blocked keywords are refused outright; confirm keywords are allowed but the
// plan is flagged.
var (
	blockedKeywords = []string{
		"rm -rf", "delete", "удали", "format", "форматир",
	}
	confirmKeywords = []string{
		"shutdown", "выключ", "reboot", "перезагруз",
		"install", "установи", "download", "скачай",
		"update", "обнови", "compile", "компилируй",
	}
)

type Feasibility struct {
	Allowed              bool
	RequiresConfirmation bool
	Keyword              string
}

// CheckFeasibility screens a step before any code is generated for it.
func CheckFeasibility(step string) Feasibility {
	lowered := strings.ToLower(step)
	for _, kw := range blockedKeywords {
		if strings.Contains(lowered, kw) {
			return Feasibility{Allowed: false, Keyword: kw}
		}
	}
	for _, kw := range confirmKeywords {
		if strings.Contains(lowered, kw) {
			return Feasibility{Allowed: true, RequiresConfirmation: true, Keyword: kw}
		}
	}
	return Feasibility{Allowed: true}
}
