package tui

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/banyuechenjiang/cardsort/pkg/logger"
	"github.com/banyuechenjiang/cardsort/pkg/pipeline"
)

type teaModel struct {
	m *model
}

func (tm teaModel) Init() tea.Cmd {
	return nil
}

func (tm teaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	_, cmd := tm.m.Update(msg)
	return tm, cmd
}

func (tm teaModel) View() string {
	return tm.m.View()
}

// Confirm 在终端中询问用户；界面无法启动或用户中断时视为拒绝
func Confirm(p pipeline.Prompt) bool {
	m := newModel(p)
	prog := tea.NewProgram(teaModel{m: m}, tea.WithOutput(os.Stderr))

	if _, err := prog.Run(); err != nil {
		logger.Get().Error().Err(err).Msg("确认界面运行错误")
		return false
	}

	logger.Get().Debug().Msgf("用户选择: %v", m.answer)
	return m.answer
}
