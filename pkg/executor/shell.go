package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/logger"
)

const maxOutputLen = 10000

// ShellRunner runs scripts in a child process. While the child runs it polls
// the cancel check and kills the child once cancellation is requested.
type ShellRunner struct {
	workingDir   string
	timeout      time.Duration
	pollInterval time.Duration
	denyPatterns []*regexp.Regexp
	extraEnv     map[string]string
}

func NewShellRunner(workingDir string, timeout time.Duration) *ShellRunner {
	denyPatterns := []*regexp.Regexp{
		regexp.MustCompile(`\brm\s+-[rf]{1,2}\b`),
		regexp.MustCompile(`\bdel\s+/[fq]\b`),
		regexp.MustCompile(`\brmdir\s+/s\b`),
		regexp.MustCompile(`\b(format|mkfs|diskpart)\b\s`),
		regexp.MustCompile(`\bdd\s+if=`),
		regexp.MustCompile(`>\s*/dev/sd[a-z]\b`),
		regexp.MustCompile(`\b(shutdown|reboot|poweroff)\b`),
		regexp.MustCompile(`:\(\)\s*\{.*\};\s*:`),
		regexp.MustCompile(`\breg\s+delete\b`),
		regexp.MustCompile(`system32`),
	}

	return &ShellRunner{
		workingDir:   workingDir,
		timeout:      timeout,
		pollInterval: 100 * time.Millisecond,
		denyPatterns: denyPatterns,
	}
}

func (r *ShellRunner) SetTimeout(timeout time.Duration) {
	r.timeout = timeout
}

func (r *ShellRunner) SetPollInterval(d time.Duration) {
	if d > 0 {
		r.pollInterval = d
	}
}

// SetExtraEnv injects variables into every child. Values override the
// inherited environment.
func (r *ShellRunner) SetExtraEnv(env map[string]string) {
	if len(env) == 0 {
		return
	}
	if r.extraEnv == nil {
		r.extraEnv = map[string]string{}
	}
	for k, v := range env {
		if strings.TrimSpace(k) == "" {
			continue
		}
		r.extraEnv[k] = v
	}
}

// Run executes script with the interpreter for lang.
func (r *ShellRunner) Run(ctx context.Context, script, lang string, cancelled command.CancelCheck) command.Outcome {
	if msg := r.guard(script); msg != "" {
		return command.Outcome{Error: msg, Category: command.CategoryBlocked}
	}

	argv, err := interpreter(lang)
	if err != nil {
		return command.Outcome{Error: err.Error(), Category: command.CategoryUnsupported}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], append(argv[1:], script)...)
	cmd.WaitDelay = 2 * time.Second
	cwd := r.workingDir
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}
	cmd.Dir = cwd
	if len(r.extraEnv) > 0 {
		cmd.Env = mergeEnv(os.Environ(), r.extraEnv)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return command.Outcome{Error: fmt.Sprintf("start %s: %v", argv[0], err), Category: command.CategoryCommandNotFound}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	killedByCancel := false
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
wait:
	for {
		select {
		case waitErr = <-done:
			break wait
		case <-ticker.C:
			if cancelled != nil && cancelled() {
				killedByCancel = true
				cancel()
				waitErr = <-done
				break wait
			}
		}
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\nSTDERR:\n" + stderr.String()
	}
	output = truncate(output)

	switch {
	case killedByCancel:
		logger.InfoCF("executor", "Child stopped on cancellation", map[string]interface{}{"lang": lang})
		return command.Outcome{Raw: output, Error: "cancelled while running", Category: command.CategoryCancelled}
	case runCtx.Err() == context.DeadlineExceeded:
		return command.Outcome{Raw: output, Error: fmt.Sprintf("command timed out after %v", r.timeout), Category: command.CategoryTimeout}
	case waitErr != nil:
		return command.Outcome{Raw: output, Error: describeExit(waitErr, stderr.String()), Category: classifyExit(waitErr)}
	}

	if strings.TrimSpace(output) == "" {
		output = "(no output)"
	}
	return command.Outcome{Raw: output}
}

func interpreter(lang string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "", "bash", "sh", "shell":
		if runtime.GOOS == "windows" {
			return []string{"powershell", "-NoProfile", "-NonInteractive", "-Command"}, nil
		}
		return []string{"sh", "-c"}, nil
	case "powershell", "ps1", "pwsh":
		return []string{"powershell", "-NoProfile", "-NonInteractive", "-Command"}, nil
	case "python", "python3", "py":
		if runtime.GOOS == "windows" {
			return []string{"python", "-c"}, nil
		}
		return []string{"python3", "-c"}, nil
	default:
		return nil, fmt.Errorf("unsupported script language %q", lang)
	}
}

func classifyExit(err error) command.Category {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 127 {
		return command.CategoryCommandNotFound
	}
	return command.CategoryExitStatus
}

func describeExit(err error, stderr string) string {
	msg := err.Error()
	if tail := lastLine(stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func truncate(output string) string {
	if len(output) > maxOutputLen {
		return output[:maxOutputLen] + fmt.Sprintf("\n... (truncated, %d more chars)", len(output)-maxOutputLen)
	}
	return output
}

func mergeEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		keep := true
		for k := range overrides {
			if strings.HasPrefix(kv, k+"=") {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, kv)
		}
	}
	for k, v := range overrides {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

func (r *ShellRunner) guard(script string) string {
	lower := strings.ToLower(strings.TrimSpace(script))
	if lower == "" {
		return "empty script"
	}
	for _, pattern := range r.denyPatterns {
		if pattern.MatchString(lower) {
			return "command blocked by safety guard (dangerous pattern detected)"
		}
	}
	return ""
}

// ShellQuote quotes s as a single POSIX shell word.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
