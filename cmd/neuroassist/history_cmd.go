package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuroassist/neuroassist/pkg/config"
	"github.com/neuroassist/neuroassist/pkg/history"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past executions",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent executions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		rows, err := store.List(context.Background(), historyLimit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println(styleHint.Render("No executions recorded yet."))
			return nil
		}
		fmt.Print(renderHistory(rows))
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show every step of one execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		exec, err := store.Get(context.Background(), args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no execution with id %s", args[0])
		}
		if err != nil {
			return err
		}
		if historyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(exec)
		}
		fmt.Print(renderExecution(exec))
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of executions to list")
	historyShowCmd.Flags().BoolVar(&historyJSON, "json", false, "print the execution as JSON")
	historyCmd.AddCommand(historyListCmd, historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.Store, error) {
	cfg, err := loadConfig(true)
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled (set history.enabled in %s)", getConfigPath())
	}
	return history.Open(config.ExpandHome(cfg.History.Path))
}

func renderHistory(rows []history.Summary) string {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s  %s  %-11s %3.0f%% / %3.0f%%  %s\n",
			styleDim.Render(r.StartedAt.Local().Format("2006-01-02 15:04")),
			styleKey.Render(r.ID),
			string(r.Status),
			r.Completion, r.Accuracy,
			firstLine(r.CommandText),
		)
	}
	return b.String()
}
