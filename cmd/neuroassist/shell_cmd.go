package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/engine"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Read commands interactively and run each one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}
		rt, err := engine.FromConfig(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		fmt.Printf("%s %s interactive shell (type 'exit' to quit)\n\n", logo, displayName)
		interactiveMode(rt.Engine)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func interactiveMode(eng *engine.Engine) {
	prompt := fmt.Sprintf("%s > ", logo)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".neuroassist_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(eng)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !handleShellLine(eng, line) {
			return
		}
	}
}

func simpleInteractiveMode(eng *engine.Engine) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s > ", logo)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !handleShellLine(eng, line) {
			return
		}
	}
}

// handleShellLine runs one line and reports whether the shell should keep
// going. Ctrl+C while a command runs interrupts that command only.
func handleShellLine(eng *engine.Engine, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if input == "exit" || input == "quit" {
		fmt.Println("Goodbye!")
		return false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exec := eng.Submit(ctx, input, engine.OnStepUpdate(func(_ *command.Execution, step *command.Step) {
		if step.Status.Terminal() {
			fmt.Println(renderStep(step))
		}
	}))
	fmt.Printf("%s\n\n", renderSummary(exec))
	return true
}
