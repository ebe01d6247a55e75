// Package verify judges step outcomes and assigns a confidence score.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/config"
	"github.com/neuroassist/neuroassist/pkg/logger"
)

const (
	AccuracyConfirmed   = 100.0
	AccuracyUnconfirmed = 50.0
)

// Intent is a step whose side effect can be observed: mentioning one of
// Keywords means a window matching one of WindowTitles should appear.
type Intent struct {
	Name         string
	Keywords     []string
	WindowTitles []string
}

func IntentsFromConfig(cfgs []config.IntentConfig) []Intent {
	out := make([]Intent, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, Intent{Name: c.Name, Keywords: c.Keywords, WindowTitles: c.WindowTitles})
	}
	return out
}

// EnvironmentProbe answers questions about the desktop.
type EnvironmentProbe interface {
	WindowPresent(ctx context.Context, titles []string) (bool, error)
}

type Verdict struct {
	Verified bool
	Accuracy float64
	Message  string
	// Probed is true when the environment probe gave an answer.
	Probed bool
}

type Verifier struct {
	probe    EnvironmentProbe
	intents  []Intent
	attempts int
	interval time.Duration
}

// New builds a verifier. probe may be nil, in which case every successful
// outcome gets the default confidence.
func New(probe EnvironmentProbe, intents []Intent) *Verifier {
	return &Verifier{
		probe:    probe,
		intents:  intents,
		attempts: 3,
		interval: 500 * time.Millisecond,
	}
}

// SetSettle controls how often and how far apart the probe is asked before
// a missing window counts as unconfirmed.
func (v *Verifier) SetSettle(attempts int, interval time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	v.attempts = attempts
	v.interval = interval
}

// Verify applies, in order: cancellation, reported failure, observable
// intent, default confidence.
func (v *Verifier) Verify(ctx context.Context, desc string, outcome command.Outcome, cancelled bool) Verdict {
	if cancelled {
		return Verdict{Verified: false, Accuracy: 0, Message: "cancelled"}
	}
	if outcome.Failed() {
		return Verdict{Verified: false, Accuracy: 0, Message: outcome.FailureMessage()}
	}

	if intent, ok := v.match(desc); ok && v.probe != nil {
		present, err := v.observe(ctx, intent)
		if err != nil {
			logger.WarnCF("verify", "Environment probe failed, using default confidence", map[string]interface{}{
				"intent": intent.Name,
				"error":  err.Error(),
			})
		} else if present {
			return Verdict{
				Verified: true,
				Accuracy: AccuracyConfirmed,
				Message:  fmt.Sprintf("%s window is present", intent.Name),
				Probed:   true,
			}
		} else {
			return Verdict{
				Verified: false,
				Accuracy: AccuracyUnconfirmed,
				Message:  fmt.Sprintf("no %s window found", intent.Name),
				Probed:   true,
			}
		}
	}

	return Verdict{Verified: true, Accuracy: command.DefaultAccuracy, Message: "no observable side effect"}
}

func (v *Verifier) match(desc string) (Intent, bool) {
	lowered := strings.ToLower(desc)
	for _, intent := range v.intents {
		for _, kw := range intent.Keywords {
			if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
				return intent, true
			}
		}
	}
	return Intent{}, false
}

func (v *Verifier) observe(ctx context.Context, intent Intent) (bool, error) {
	var lastErr error
	for i := 0; i < v.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(v.interval):
			}
		}
		present, err := v.probe.WindowPresent(ctx, intent.WindowTitles)
		if err != nil {
			lastErr = err
			continue
		}
		if present {
			return true, nil
		}
		lastErr = nil
	}
	if lastErr != nil {
		return false, lastErr
	}
	return false, nil
}
