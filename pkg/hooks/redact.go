package hooks

import (
	"regexp"

	"github.com/neuroassist/neuroassist/pkg/command"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|pwd|пароль)(\s*[:=]\s*|\s+)(\S+)`),
	regexp.MustCompile(`(?i)\b(token|secret|api[_-]?key|apikey)(\s*[:=]\s*|\s+)(\S+)`),
	regexp.MustCompile(`(?i)\b(bearer)(\s+)([A-Za-z0-9._\-]+)`),
}

var keyPattern = regexp.MustCompile(`\b(sk-[A-Za-z0-9_\-]{8,})`)

// urlCredentials matches scheme://user:pass@ in links.
var urlCredentials = regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.\-]*://)([^\s:@/]+):([^\s@/]+)@`)

const redacted = "[REDACTED]"

// Redact masks credential-looking values in free text.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = urlCredentials.ReplaceAllString(s, "${1}"+redacted+":"+redacted+"@")
	for _, re := range secretPatterns {
		s = re.ReplaceAllString(s, "${1}${2}"+redacted)
	}
	return keyPattern.ReplaceAllString(s, redacted)
}

// RedactExecution returns a deep copy of exec with free text redacted.
func RedactExecution(exec *command.Execution) *command.Execution {
	c := exec.Snapshot()
	c.CommandText = Redact(c.CommandText)
	for _, s := range c.Steps {
		s.Description = Redact(s.Description)
		s.Result = Redact(s.Result)
		s.Error = Redact(s.Error)
		s.RecoveryError = Redact(s.RecoveryError)
		if s.Plan != nil {
			s.Plan.Argument = Redact(s.Plan.Argument)
			s.Plan.Code = Redact(s.Plan.Code)
		}
	}
	return c
}
