// NeuroAssist - natural-language command execution engine
// License: MIT
//
// Copyright (c) 2026 NeuroAssist contributors

package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuroassist/neuroassist/pkg/config"
	"github.com/neuroassist/neuroassist/pkg/logger"
)

var (
	version   = "dev"
	buildTime string
	goVersion string
)

const logo = "🧠"
const displayName = "NeuroAssist"
const cliName = "neuroassist"

var (
	cfgFile string
	verbose bool
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: "Turn natural-language commands into verified desktop actions",
	Long: `NeuroAssist splits a command such as "open calculator and take screenshot"
into steps, runs each step through a known action or generated code, verifies
the outcome and makes one repair attempt when a step fails.

Examples:
  neuroassist run "open notepad then show time"
  neuroassist run --tui "search for weather in Berlin and take screenshot"
  neuroassist shell
  neuroassist serve`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.neuroassist/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine progress")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and applies logging settings. Interactive
// commands stay quiet unless asked otherwise.
func loadConfig(quiet bool) (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := logger.ParseLevel(cfg.Log.Level)
	if quiet && level < logger.WARN {
		level = logger.WARN
	}
	if verbose {
		level = logger.INFO
	}
	if debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)

	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(config.ExpandHome(cfg.Log.File)); err != nil {
			return nil, fmt.Errorf("enable file logging: %w", err)
		}
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

func printVersion() {
	fmt.Printf("%s %s (%s) v%s\n", logo, displayName, cliName, version)
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
	fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
