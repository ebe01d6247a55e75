// Package catalog loads the declarative action catalog: which phrases map to
// which action, and how each action runs on each platform.
package catalog

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ParamNone     = "none"
	ParamTrailing = "trailing"
)

// ArgPlaceholder marks where a trailing argument is substituted into a shell
// template.
const ArgPlaceholder = "{{arg}}"

//go:embed defaults/actions.yaml
var defaultFS embed.FS

// Entry maps one literal phrase to an action.
type Entry struct {
	Phrase   string `yaml:"phrase"`
	Action   string `yaml:"action"`
	Param    string `yaml:"param,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
}

func (e Entry) Parameterized() bool {
	return e.Param == ParamTrailing
}

// Action holds shell templates keyed by GOOS.
type Action map[string]string

type Catalog struct {
	Entries []Entry           `yaml:"entries"`
	Actions map[string]Action `yaml:"actions"`
}

// Default returns the embedded built-in catalog.
func Default() (*Catalog, error) {
	data, err := defaultFS.ReadFile("defaults/actions.yaml")
	if err != nil {
		return nil, fmt.Errorf("read default catalog: %w", err)
	}
	return Parse(data)
}

// Load reads a catalog file. An empty path selects the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Entries))
	for i, e := range c.Entries {
		phrase := strings.ToLower(strings.TrimSpace(e.Phrase))
		if phrase == "" {
			return fmt.Errorf("entries[%d]: phrase is required", i)
		}
		if strings.TrimSpace(e.Action) == "" {
			return fmt.Errorf("entries[%d] (%s): action is required", i, e.Phrase)
		}
		switch e.Param {
		case "", ParamNone, ParamTrailing:
		default:
			return fmt.Errorf("entries[%d] (%s): unknown param rule %q", i, e.Phrase, e.Param)
		}
		if seen[phrase] {
			return fmt.Errorf("entries[%d]: duplicate phrase %q", i, e.Phrase)
		}
		seen[phrase] = true
	}
	return nil
}

// Template returns the shell template of action for goos.
func (c *Catalog) Template(action, goos string) (string, bool) {
	a, ok := c.Actions[action]
	if !ok {
		return "", false
	}
	tmpl, ok := a[goos]
	return tmpl, ok && strings.TrimSpace(tmpl) != ""
}

// ActionIDs lists every action referenced by an entry, in first-seen order.
func (c *Catalog) ActionIDs() []string {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		if !seen[e.Action] {
			seen[e.Action] = true
			ids = append(ids, e.Action)
		}
	}
	return ids
}
