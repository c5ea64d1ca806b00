package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrInputCancelled is returned when the user presses Esc or Ctrl+C.
var ErrInputCancelled = errors.New("input cancelled")

// PromptAPIKey prompts the user to enter the API key for provider.
func PromptAPIKey(provider string) (string, error) {
	return runInput(inputModel{
		title: fmt.Sprintf("🔑 %s API key required", provider),
		hint:  "It will be stored locally in ~/.ytflow/config.yaml",
	}, "api-key", true)
}

// PromptText asks a single free-text question.
func PromptText(title, placeholder string) (string, error) {
	return runInput(inputModel{title: title}, placeholder, false)
}

func runInput(m inputModel, placeholder string, secret bool) (string, error) {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 70
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.CharLimit = 256
		ti.Width = 50
	}
	m.textInput = ti

	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		return "", fmt.Errorf("error running prompt: %w", err)
	}

	result := finalModel.(inputModel)
	if result.quit {
		return "", ErrInputCancelled
	}
	return result.value, nil
}

type inputModel struct {
	textInput textinput.Model
	title     string
	hint      string
	value     string
	quit      bool
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.value = m.textInput.Value()
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quit = true
			return m, tea.Quit
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	s := "\n" + titleStyle.Render(m.title) + "\n"
	if m.hint != "" {
		s += dimStyle.Render(m.hint) + "\n"
	}
	s += "\n" + m.textInput.View() + "\n\n"
	s += dimStyle.Render("Press Enter to confirm • Esc to cancel") + "\n"

	return s
}
