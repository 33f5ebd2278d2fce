package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/banyuechenjiang/cardsort/pkg/pipeline"
)

type model struct {
	prompt   pipeline.Prompt
	choices  list.Model
	keys     keyMap
	help     help.Model
	answered bool
	answer   bool
}

// newModel 默认选中“否”，直接回车不会改动文件
func newModel(p pipeline.Prompt) *model {
	items := []list.Item{
		choiceItem{title: "否", desc: noDescription(p.Kind), value: false},
		choiceItem{title: "是", desc: yesDescription(p.Kind), value: true},
	}

	choices := list.New(items, list.NewDefaultDelegate(), 60, 8)
	choices.SetShowTitle(false)
	choices.SetShowStatusBar(false)
	choices.SetShowHelp(false)
	choices.SetShowPagination(false)
	choices.SetFilteringEnabled(false)

	return &model{
		prompt:  p,
		choices: choices,
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) decide(answer bool) tea.Cmd {
	m.answered = true
	m.answer = answer
	return tea.Quit
}

func title(kind pipeline.PromptKind) string {
	switch kind {
	case pipeline.PromptRenameNonASCII:
		return "重命名确认"
	case pipeline.PromptFullPairwise:
		return "全库比较确认"
	default:
		return "确认"
	}
}

func yesDescription(kind pipeline.PromptKind) string {
	if kind == pipeline.PromptFullPairwise {
		return "逐对比较所有角色卡，文件较多时耗时较长"
	}
	return "按统一规则重命名这些文件"
}

func noDescription(kind pipeline.PromptKind) string {
	if kind == pipeline.PromptFullPairwise {
		return "跳过，直接生成报告"
	}
	return "保留原文件名"
}

type choiceItem struct {
	title string
	desc  string
	value bool
}

func (c choiceItem) Title() string       { return c.title }
func (c choiceItem) Description() string { return c.desc }
func (c choiceItem) FilterValue() string { return c.title }
