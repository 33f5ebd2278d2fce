package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Yes):
			return m, m.decide(true)
		case key.Matches(msg, m.keys.No), key.Matches(msg, m.keys.Quit):
			return m, m.decide(false)
		case key.Matches(msg, m.keys.Select):
			item, ok := m.choices.SelectedItem().(choiceItem)
			return m, m.decide(ok && item.value)
		}

	case tea.WindowSizeMsg:
		m.choices.SetWidth(msg.Width)
		m.help.Width = msg.Width
	}

	var cmd tea.Cmd
	m.choices, cmd = m.choices.Update(msg)
	return m, cmd
}
