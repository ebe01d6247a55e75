package registry

import (
	"testing"

	"github.com/neuroassist/neuroassist/pkg/catalog"
	"github.com/neuroassist/neuroassist/pkg/command"
)

func testEntries() []catalog.Entry {
	return []catalog.Entry{
		{Phrase: "open", Action: "open_generic", Param: catalog.ParamTrailing},
		{Phrase: "open calculator", Action: "open_calculator"},
		{Phrase: "take screenshot", Action: "take_screenshot"},
		{Phrase: "speak", Action: "speak", Param: catalog.ParamTrailing},
		{Phrase: "type", Action: "type_text", Param: catalog.ParamTrailing, Priority: -1},
		{Phrase: "type hello", Action: "greeting"},
	}
}

func TestMatch_LongestPhraseWins(t *testing.T) {
	r := New(testEntries())

	plan, ok := r.Match("please open calculator now")
	if !ok {
		t.Fatal("expected a match")
	}
	if plan.ActionID != "open_calculator" {
		t.Errorf("Expected open_calculator, got %s", plan.ActionID)
	}
	if plan.Source != command.SourceRegistry {
		t.Errorf("Expected registry source, got %s", plan.Source)
	}
}

func TestMatch_PriorityBeatsLength(t *testing.T) {
	entries := []catalog.Entry{
		{Phrase: "type hello world", Action: "long", Priority: -1},
		{Phrase: "type", Action: "short", Param: catalog.ParamTrailing},
	}
	plan, ok := New(entries).Match("type hello world")
	if !ok || plan.ActionID != "short" {
		t.Errorf("higher priority entry should win, got %+v", plan)
	}
}

func TestMatch_TrailingArgument(t *testing.T) {
	r := New(testEntries())

	tests := []struct {
		in     string
		action string
		arg    string
	}{
		{"speak Hello World", "speak", "Hello World"},
		{"Speak: good morning", "speak", "good morning"},
		{"open Firefox", "open_generic", "Firefox"},
		{"type something else", "type_text", "something else"},
	}
	for _, tt := range tests {
		plan, ok := r.Match(tt.in)
		if !ok {
			t.Fatalf("Match(%q): no match", tt.in)
		}
		if plan.ActionID != tt.action || plan.Argument != tt.arg {
			t.Errorf("Match(%q) = %s(%q), want %s(%q)", tt.in, plan.ActionID, plan.Argument, tt.action, tt.arg)
		}
	}
}

func TestMatch_NonParameterizedHasNoArgument(t *testing.T) {
	plan, ok := New(testEntries()).Match("take screenshot of desktop")
	if !ok || plan.Argument != "" {
		t.Errorf("Expected no argument, got %+v", plan)
	}
}

func TestMatch_CaseInsensitive(t *testing.T) {
	plan, ok := New(testEntries()).Match("OPEN CALCULATOR")
	if !ok || plan.ActionID != "open_calculator" {
		t.Errorf("Expected case-insensitive match, got %+v", plan)
	}
}

func TestMatch_RequiresWordBoundary(t *testing.T) {
	r := New([]catalog.Entry{{Phrase: "type", Action: "type_text", Param: catalog.ParamTrailing}})
	if plan, ok := r.Match("build a prototype"); ok {
		t.Errorf("phrase inside a word must not match, got %+v", plan)
	}
}

func TestMatch_Cyrillic(t *testing.T) {
	r := New([]catalog.Entry{{Phrase: "скажи", Action: "speak", Param: catalog.ParamTrailing}})
	plan, ok := r.Match("Скажи Привет")
	if !ok || plan.Argument != "Привет" {
		t.Errorf("Expected speak(Привет), got %+v", plan)
	}
}

func TestMatch_ArgumentAfterWidthChangingRunes(t *testing.T) {
	r := New([]catalog.Entry{{Phrase: "speak", Action: "speak", Param: catalog.ParamTrailing}})

	// Ⱥ is two bytes, its lowercase ⱥ is three; ẞ is three, ß is two.
	tests := []struct {
		in  string
		arg string
	}{
		{"ȺȺ speak Hello World ẞẞ", "Hello World ẞẞ"},
		{"speak Ⱥbc Hello", "Ⱥbc Hello"},
		{"ẞẞẞ, speak Ärger", "Ärger"},
		{"SPEAK ȺȺ", "ȺȺ"},
	}
	for _, tt := range tests {
		plan, ok := r.Match(tt.in)
		if !ok {
			t.Fatalf("Match(%q): no match", tt.in)
		}
		if plan.Argument != tt.arg {
			t.Errorf("Match(%q) argument = %q, want %q", tt.in, plan.Argument, tt.arg)
		}
	}
}

func TestMatch_NoMatch(t *testing.T) {
	if _, ok := New(testEntries()).Match("do something unknown"); ok {
		t.Error("expected no match")
	}
}

func TestEntries_Ordered(t *testing.T) {
	got := New(testEntries()).Entries()
	if got[0].Phrase != "open calculator" && got[0].Phrase != "take screenshot" {
		t.Errorf("longest priority-0 phrase should come first, got %q", got[0].Phrase)
	}
	if last := got[len(got)-1]; last.Priority != -1 {
		t.Errorf("negative priority entries should sort last, got %+v", last)
	}
}
