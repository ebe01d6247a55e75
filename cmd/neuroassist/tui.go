package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/engine"
)

type stepUpdateMsg struct {
	exec *command.Execution
}

type executionDoneMsg struct {
	exec *command.Execution
}

// progressModel mirrors the live snapshot of a single execution.
type progressModel struct {
	text    string
	exec    *command.Execution
	spinner spinner.Model
	cancel  context.CancelFunc
	done    bool
}

func newProgressModel(text string, cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styleKey
	return progressModel{text: text, spinner: s, cancel: cancel}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if m.done {
				return m, tea.Quit
			}
			m.cancel()
			return m, nil
		case "q", "enter":
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil

	case stepUpdateMsg:
		m.exec = msg.exec
		return m, nil

	case executionDoneMsg:
		m.exec = msg.exec
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(styleHeader.Render(m.text))
	b.WriteString("\n\n")
	if m.exec == nil {
		b.WriteString(m.spinner.View() + " decomposing…\n")
		return b.String()
	}
	for _, s := range m.exec.Steps {
		if s.Status == command.StepInProgress {
			fmt.Fprintf(&b, "%s %d. %s\n", m.spinner.View(), s.Number, s.Description)
			continue
		}
		b.WriteString(renderStep(s))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(renderSummary(m.exec))
	b.WriteString("\n")
	if !m.done {
		b.WriteString(styleHint.Render("esc/ctrl+c to cancel"))
		b.WriteString("\n")
	}
	return b.String()
}

// runWithTUI submits text and renders progress until the execution is
// final. Cancelling from the UI interrupts the remaining steps.
func runWithTUI(eng *engine.Engine, text string) (*command.Execution, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(newProgressModel(text, cancel), tea.WithAltScreen())

	result := make(chan *command.Execution, 1)
	go func() {
		exec := eng.Submit(ctx, text, engine.OnStepUpdate(func(snap *command.Execution, _ *command.Step) {
			p.Send(stepUpdateMsg{exec: snap})
		}))
		result <- exec
		p.Send(executionDoneMsg{exec: exec})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-result
		return nil, fmt.Errorf("error running progress view: %w", err)
	}
	return <-result, nil
}
