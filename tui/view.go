package tui

import (
	"strings"
)

func (m *model) View() string {
	if m.answered {
		if m.answer {
			return confirmedStyle.Render("已确认") + "\n"
		}
		return declinedStyle.Render("已取消") + "\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(title(m.prompt.Kind)) + "\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", 60)) + "\n\n")

	lines := strings.Split(m.prompt.Message(), "\n")
	b.WriteString(countStyle.Render(lines[0]) + "\n")
	for _, line := range lines[1:] {
		b.WriteString(sampleStyle.Render(line) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(choicesStyle.Render(m.choices.View()) + "\n")
	b.WriteString(helpStyle.Render(m.help.View(m.keys)) + "\n")

	return b.String()
}
