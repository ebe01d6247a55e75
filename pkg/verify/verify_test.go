package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/config"
)

type staticProbe struct {
	present bool
	err     error
	calls   int
}

func (p *staticProbe) WindowPresent(ctx context.Context, titles []string) (bool, error) {
	p.calls++
	return p.present, p.err
}

func newTestVerifier(probe EnvironmentProbe) *Verifier {
	v := New(probe, IntentsFromConfig(config.DefaultIntents()))
	v.SetSettle(1, 0)
	return v
}

func TestVerify_Cancelled(t *testing.T) {
	v := newTestVerifier(&staticProbe{present: true})
	got := v.Verify(context.Background(), "open calculator", command.Outcome{Raw: "ok"}, true)
	if got.Verified || got.Accuracy != 0 || got.Message != "cancelled" {
		t.Errorf("Unexpected verdict: %+v", got)
	}
}

func TestVerify_Failure(t *testing.T) {
	probe := &staticProbe{present: true}
	v := newTestVerifier(probe)

	got := v.Verify(context.Background(), "open calculator", command.Outcome{Error: "exit status 1"}, false)
	if got.Verified || got.Accuracy != 0 || got.Message != "exit status 1" {
		t.Errorf("Unexpected verdict: %+v", got)
	}

	got = v.Verify(context.Background(), "whatever", command.Outcome{Raw: "bad " + command.FailureMarker}, false)
	if got.Verified || got.Accuracy != 0 {
		t.Errorf("failure marker must fail verification: %+v", got)
	}
	if probe.calls != 0 {
		t.Error("probe must not run for failed outcomes")
	}
}

func TestVerify_ProbeConfirmed(t *testing.T) {
	v := newTestVerifier(&staticProbe{present: true})
	got := v.Verify(context.Background(), "open calculator", command.Outcome{Raw: "ok"}, false)
	if !got.Verified || got.Accuracy != 100 || !got.Probed {
		t.Errorf("Unexpected verdict: %+v", got)
	}
}

func TestVerify_ProbeUnconfirmed(t *testing.T) {
	v := newTestVerifier(&staticProbe{present: false})
	got := v.Verify(context.Background(), "открой калькулятор", command.Outcome{Raw: "ok"}, false)
	if got.Verified || got.Accuracy != 50 {
		t.Errorf("Unexpected verdict: %+v", got)
	}
}

func TestVerify_ProbeErrorFallsBackToDefault(t *testing.T) {
	v := newTestVerifier(&staticProbe{err: errors.New("wmctrl: not found")})
	got := v.Verify(context.Background(), "open calculator", command.Outcome{Raw: "ok"}, false)
	if !got.Verified || got.Accuracy != command.DefaultAccuracy {
		t.Errorf("Unexpected verdict: %+v", got)
	}
}

func TestVerify_DefaultOptimistic(t *testing.T) {
	probe := &staticProbe{present: false}
	v := newTestVerifier(probe)
	got := v.Verify(context.Background(), "take screenshot", command.Outcome{Raw: "saved"}, false)
	if !got.Verified || got.Accuracy != 90 {
		t.Errorf("Expected verified=true accuracy=90, got %+v", got)
	}
	if probe.calls != 0 {
		t.Error("probe must not run for steps without an observable intent")
	}
}

func TestVerify_NoProbe(t *testing.T) {
	v := newTestVerifier(nil)
	got := v.Verify(context.Background(), "open calculator", command.Outcome{Raw: "ok"}, false)
	if !got.Verified || got.Accuracy != 90 {
		t.Errorf("Unexpected verdict: %+v", got)
	}
}

func TestVerify_SettleRetries(t *testing.T) {
	probe := &staticProbe{present: false}
	v := New(probe, IntentsFromConfig(config.DefaultIntents()))
	v.SetSettle(3, 0)
	v.Verify(context.Background(), "open browser", command.Outcome{Raw: "ok"}, false)
	if probe.calls != 3 {
		t.Errorf("Expected 3 probe attempts, got %d", probe.calls)
	}
}

func TestWindowProbe(t *testing.T) {
	listing := "0x03a00003  0 host Calculator\n0x04000007  0 host Terminal\n"
	p := NewWindowProbeWithLister(func(ctx context.Context) (string, error) { return listing, nil })

	ok, err := p.WindowPresent(context.Background(), []string{"calculator"})
	if err != nil || !ok {
		t.Errorf("Expected calculator window, got %v/%v", ok, err)
	}
	ok, _ = p.WindowPresent(context.Background(), []string{"Firefox"})
	if ok {
		t.Error("Firefox is not in the listing")
	}

	failing := NewWindowProbeWithLister(func(ctx context.Context) (string, error) { return "", errors.New("no display") })
	if _, err := failing.WindowPresent(context.Background(), []string{"x"}); err == nil {
		t.Error("lister error should propagate")
	}
}
