package ui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/josephgoksu/ytflow/internal/config"
	"github.com/josephgoksu/ytflow/internal/llm"
)

// ErrSelectionCancelled is returned when the user leaves a menu without choosing.
var ErrSelectionCancelled = errors.New("selection cancelled")

// SelectOption is one entry of a selection menu.
type SelectOption struct {
	ID          string
	Name        string
	Description string
	Default     bool
}

// Select shows a menu and returns the chosen option's ID.
func Select(title string, options []SelectOption) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("nothing to select")
	}
	m := newSelectModel(title, options)

	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		return "", fmt.Errorf("error running selection: %w", err)
	}
	result := finalModel.(selectModel)
	if result.quit {
		return "", ErrSelectionCancelled
	}
	return result.selectedID, nil
}

// ProviderOptions builds the provider menu, flagging hosted providers without a key.
func ProviderOptions() []SelectOption {
	providers := llm.Providers()
	options := make([]SelectOption, 0, len(providers))
	for _, p := range providers {
		desc := "default model " + llm.DefaultModelForProvider(p.ID)
		switch {
		case p.IsLocal:
			desc = "Local, private, free • " + desc
		case config.ResolveAPIKey(llm.Provider(p.ID)) == "":
			desc += " • key not set"
		}
		options = append(options, SelectOption{
			ID:          p.ID,
			Name:        p.DisplayName,
			Description: desc,
			Default:     p.ID == llm.DefaultProvider,
		})
	}
	return options
}

// PromptLLMProvider prompts the user to select an LLM provider.
func PromptLLMProvider() (string, error) {
	return Select("🤖 Select AI Provider", ProviderOptions())
}

type selectModel struct {
	title      string
	options    []SelectOption
	cursor     int
	selectedID string
	quit       bool
}

func newSelectModel(title string, options []SelectOption) selectModel {
	m := selectModel{title: title, options: options}
	for i, o := range options {
		if o.Default {
			m.cursor = i
			break
		}
	}
	return m
}

func (m selectModel) Init() tea.Cmd {
	return nil
}

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quit = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case "enter":
			m.selectedID = m.options[m.cursor].ID
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m selectModel) View() string {
	s := "\n" + StyleSelectTitle.Render(m.title) + "\n\n"

	for i, opt := range m.options {
		cursor := "  "
		style := StyleSelectNormal
		if m.cursor == i {
			cursor = "▶ "
			style = StyleSelectActive
		}

		line := fmt.Sprintf("%s%s", cursor, style.Render(fmt.Sprintf("%-10s", opt.Name)))
		if opt.Default {
			line += StyleSelectBadge.Render(" (default)")
		}
		line += StyleSelectDim.Render(" " + opt.Description)
		s += line + "\n"
	}

	s += "\n" + StyleSelectDim.Render("↑/↓ navigate • enter select • esc cancel") + "\n"
	return s
}
