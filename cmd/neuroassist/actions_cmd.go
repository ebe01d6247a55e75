package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neuroassist/neuroassist/pkg/catalog"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the phrases the action registry understands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}
		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		fmt.Print(renderCatalog(cat, runtime.GOOS))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(actionsCmd)
}

// renderCatalog groups phrases by action. Actions without a template for
// goos are marked builtin since the executor serves them directly.
func renderCatalog(cat *catalog.Catalog, goos string) string {
	phrases := map[string][]string{}
	for _, e := range cat.Entries {
		p := e.Phrase
		if e.Parameterized() {
			p += " <arg>"
		}
		phrases[e.Action] = append(phrases[e.Action], p)
	}

	var b strings.Builder
	for _, id := range cat.ActionIDs() {
		where := styleDim.Render("builtin")
		if _, ok := cat.Template(id, goos); ok {
			where = styleDim.Render(goos)
		}
		fmt.Fprintf(&b, "%s %s\n", styleKey.Render(id), where)
		for _, p := range phrases[id] {
			fmt.Fprintf(&b, "    %s\n", p)
		}
	}
	return b.String()
}
