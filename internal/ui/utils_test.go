package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestHeading(t *testing.T) {
	tests := map[string]string{
		"code generation":   "Code Generation",
		"clarify":           "Clarify",
		"regenerate_script": "Regenerate Script",
	}
	for in, want := range tests {
		if got := Heading(in); got != want {
			t.Errorf("Heading(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPanel(t *testing.T) {
	out := Panel{Title: "Test Result", Content: "passed", BorderColor: ColorSuccess}.Render()
	if !strings.Contains(out, "Test Result") || !strings.Contains(out, "passed") {
		t.Errorf("Panel.Render() = %q", out)
	}
	if !strings.Contains(out, "╭") {
		t.Errorf("Panel.Render() has no rounded border: %q", out)
	}

	untitled := Panel{Content: "body only"}.Render()
	if strings.Contains(untitled, "Test Result") || !strings.Contains(untitled, "body only") {
		t.Errorf("untitled Panel.Render() = %q", untitled)
	}
}

func TestRenderVerdict_Wraps(t *testing.T) {
	long := strings.Repeat("issue ", 30)
	out := RenderVerdict("Test Result", long, false)
	for _, line := range strings.Split(out, "\n") {
		if w := lipgloss.Width(line); w > contentWidth+2 {
			t.Errorf("line width %d exceeds %d: %q", w, contentWidth+2, line)
		}
	}
	if !strings.Contains(out, "Test Result") {
		t.Errorf("RenderVerdict() = %q", out)
	}
}

func TestWrap(t *testing.T) {
	text := strings.Repeat("notify the assignee ", 10)
	out := Wrap(text)
	if lines := strings.Split(out, "\n"); len(lines) < 2 {
		t.Errorf("Wrap() did not wrap: %q", out)
	}
	if !strings.Contains(out, "notify the assignee") {
		t.Errorf("Wrap() = %q", out)
	}
}

func TestRenderCode(t *testing.T) {
	out := RenderCode("javascript", "exports.rule = 1;")
	if !strings.Contains(out, "javascript") || !strings.Contains(out, "exports.rule = 1;") {
		t.Errorf("RenderCode() = %q", out)
	}
}
