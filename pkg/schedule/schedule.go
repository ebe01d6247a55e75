// Package schedule submits configured commands on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/config"
	"github.com/neuroassist/neuroassist/pkg/engine"
	"github.com/neuroassist/neuroassist/pkg/logger"
)

const defaultTick = 15 * time.Second

type Submitter interface {
	Submit(ctx context.Context, raw string, opts ...engine.SubmitOption) *command.Execution
}

type Entry struct {
	Name    string
	Expr    string
	Command string
}

type Scheduler struct {
	entries []Entry
	submit  Submitter
	now     func() time.Time
	tick    time.Duration

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// New validates every cron expression up front. Entries without a name are
// named after their position.
func New(entries []config.ScheduleEntry, submit Submitter) (*Scheduler, error) {
	g := gronx.New()
	out := make([]Entry, 0, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = fmt.Sprintf("schedule-%d", i+1)
		}
		if !g.IsValid(e.Expr) {
			return nil, fmt.Errorf("schedule %q: invalid cron expression %q", name, e.Expr)
		}
		if strings.TrimSpace(e.Command) == "" {
			return nil, fmt.Errorf("schedule %q: command is required", name)
		}
		out = append(out, Entry{Name: name, Expr: e.Expr, Command: e.Command})
	}
	return &Scheduler{
		entries: out,
		submit:  submit,
		now:     time.Now,
		tick:    defaultTick,
		lastRun: map[string]time.Time{},
	}, nil
}

func (s *Scheduler) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Next reports when each entry fires next after ref, keyed by name.
func (s *Scheduler) Next(ref time.Time) map[string]time.Time {
	next := make(map[string]time.Time, len(s.entries))
	for _, e := range s.entries {
		t, err := gronx.NextTickAfter(e.Expr, ref, false)
		if err != nil {
			continue
		}
		next[e.Name] = t
	}
	return next
}

// Run checks for due entries until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		<-ctx.Done()
		return nil
	}
	logger.InfoCF("schedule", "Scheduler started", map[string]interface{}{"entries": len(s.entries)})

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		s.RunDue(ctx, s.now())
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunDue submits every entry due in the minute containing now, at most once
// per entry per minute, in name order. Executions run one after another.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) []*command.Execution {
	minute := now.Truncate(time.Minute)
	g := gronx.New()

	due := make([]Entry, 0)
	s.mu.Lock()
	for _, e := range s.entries {
		if last, ok := s.lastRun[e.Name]; ok && !minute.After(last) {
			continue
		}
		ok, err := g.IsDue(e.Expr, minute)
		if err != nil {
			logger.WarnCF("schedule", "Cron check failed", map[string]interface{}{
				"name":  e.Name,
				"error": err.Error(),
			})
			continue
		}
		if ok {
			s.lastRun[e.Name] = minute
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].Name < due[j].Name })

	var results []*command.Execution
	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		logger.InfoCF("schedule", "Running scheduled command", map[string]interface{}{"name": e.Name})
		exec := s.submit.Submit(ctx, e.Command)
		results = append(results, exec)
	}
	return results
}
