package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neuroassist/neuroassist/pkg/command"
	"github.com/neuroassist/neuroassist/pkg/engine"
)

var (
	runTUI  bool
	runJSON bool
)

var runCmd = &cobra.Command{
	Use:   "run <command...>",
	Short: "Run one command and print the outcome of every step",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := joinArgs(args)
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}
		rt, err := engine.FromConfig(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		if runTUI {
			exec, err := runWithTUI(rt.Engine, text)
			if err != nil {
				return err
			}
			fmt.Print(renderExecution(exec))
			return exitForStatus(exec)
		}

		// Ctrl+C cancels the execution at the next step boundary.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var opts []engine.SubmitOption
		if !runJSON {
			opts = append(opts, engine.OnStepUpdate(func(snap *command.Execution, step *command.Step) {
				if step.Status.Terminal() {
					fmt.Println(renderStep(step))
				}
			}))
			fmt.Println(styleHeader.Render(text))
		}
		exec := rt.Engine.Submit(ctx, text, opts...)

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(exec); err != nil {
				return err
			}
		} else {
			fmt.Println(renderSummary(exec))
		}
		return exitForStatus(exec)
	},
}

type statusError struct {
	status command.ExecutionStatus
}

func (e statusError) Error() string {
	return "execution " + string(e.status)
}

func exitForStatus(exec *command.Execution) error {
	if exec.OverallStatus == command.ExecutionCompleted {
		return nil
	}
	return statusError{status: exec.OverallStatus}
}

func init() {
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "show live progress in a terminal UI")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the final execution as JSON")
	rootCmd.AddCommand(runCmd)
}
