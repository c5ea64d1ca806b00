package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// IsInteractive reports whether both stdin and stdout are terminals.
// Prompts are skipped when piping output or running in CI.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Heading title-cases a stage or section name ("code generation" -> "Code Generation").
func Heading(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// RenderPageHeader writes a consistent styled header for commands
func RenderPageHeader(w io.Writer, title, subtitle string) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSecondary).
		MarginBottom(1)

	_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("🤖 %s", title)))
	if subtitle != "" {
		_, _ = fmt.Fprintf(w, "  ⚡  %s\n", subtitle)
	}
}

// contentWidth is where prose in panels and sections wraps.
const contentWidth = 80

// Panel is a bordered box with an optional bold title. Content wraps at Width
// when it is set.
type Panel struct {
	Title       string
	Content     string
	BorderColor lipgloss.Color
	Width       int
}

// Render returns the styled panel.
func (p Panel) Render() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.BorderColor).
		Padding(0, 1)
	if p.Width > 0 {
		style = style.Width(p.Width)
	}

	content := p.Content
	if p.Title != "" {
		content = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Render(p.Title) + "\n" + content
	}
	return style.Render(content)
}

// RenderVerdict shows a test outcome in a green panel when it passed and a red one otherwise.
func RenderVerdict(title, body string, passed bool) string {
	color := ColorError
	if passed {
		color = ColorSuccess
	}
	return Panel{Title: title, Content: body, BorderColor: color, Width: contentWidth}.Render()
}

// Wrap soft-wraps prose such as prompts at the content width.
func Wrap(text string) string {
	return lipgloss.NewStyle().Width(contentWidth).Render(text)
}

// RenderCode renders a script inside a bordered box with a language label.
func RenderCode(language, code string) string {
	label := StyleSubtle.Render(language)
	return label + "\n" + StyleCodeBox.Render(code)
}
