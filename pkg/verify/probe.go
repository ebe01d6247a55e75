package verify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// WindowLister returns a textual list of open windows, one per line.
type WindowLister func(ctx context.Context) (string, error)

// WindowProbe checks window titles using the platform's window listing tool.
type WindowProbe struct {
	list WindowLister
}

func NewWindowProbe() *WindowProbe {
	return &WindowProbe{list: systemWindowList}
}

func NewWindowProbeWithLister(list WindowLister) *WindowProbe {
	return &WindowProbe{list: list}
}

func (p *WindowProbe) WindowPresent(ctx context.Context, titles []string) (bool, error) {
	listing, err := p.list(ctx)
	if err != nil {
		return false, err
	}
	lowered := strings.ToLower(listing)
	for _, title := range titles {
		if title != "" && strings.Contains(lowered, strings.ToLower(title)) {
			return true, nil
		}
	}
	return false, nil
}

func systemWindowList(ctx context.Context) (string, error) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "tasklist", "/v", "/fo", "csv")
	case "darwin":
		cmd = exec.CommandContext(ctx, "osascript", "-e",
			`tell application "System Events" to get name of every process whose visible is true`)
	default:
		cmd = exec.CommandContext(ctx, "wmctrl", "-l")
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("list windows with %s: %w (%s)", cmd.Path, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
