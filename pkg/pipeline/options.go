package pipeline

import (
	"fmt"
	"strings"

	"github.com/banyuechenjiang/cardsort/internal"
)

// Options 流水线选项
type Options struct {
	// ParamSetADir / ParamSetBDir 两类生成图移入的子目录（相对扫描根目录）
	ParamSetADir string
	ParamSetBDir string
	Extensions   []string
	// FullPairwise 是否在确认后执行全库两两比较
	FullPairwise  bool
	PromptSamples int
}

func DefaultOptions() Options {
	return Options{
		ParamSetADir:  internal.DefaultParamSetADir,
		ParamSetBDir:  internal.DefaultParamSetBDir,
		Extensions:    internal.DefaultExtensions,
		PromptSamples: internal.DefaultPromptSamples,
	}
}

// PromptKind 需要用户确认的事项
type PromptKind int

const (
	// PromptRenameNonASCII 是否重命名文件名含非 ASCII 文字的普通图片
	PromptRenameNonASCII PromptKind = iota
	// PromptFullPairwise 是否执行全库两两比较
	PromptFullPairwise
)

// Prompt 一次确认请求
type Prompt struct {
	Kind    PromptKind
	Count   int
	Samples []string
}

// Message 给用户看的提示文字
func (p Prompt) Message() string {
	switch p.Kind {
	case PromptRenameNonASCII:
		var b strings.Builder
		fmt.Fprintf(&b, "发现 %d 个文件名含非 ASCII 文字的普通图片，是否统一重命名？", p.Count)
		for _, s := range p.Samples {
			fmt.Fprintf(&b, "\n  - %s", s)
		}
		if p.Count > len(p.Samples) {
			fmt.Fprintf(&b, "\n  ... 以及另外 %d 个", p.Count-len(p.Samples))
		}
		return b.String()
	case PromptFullPairwise:
		return fmt.Sprintf("是否对 %d 张角色卡执行全库两两比较？（共 %d 对）", p.Count, p.Count*(p.Count-1)/2)
	default:
		return "是否继续？"
	}
}

// Confirmer 向用户确认，返回 true 表示同意
type Confirmer func(Prompt) bool

// Decline 始终拒绝
func Decline(Prompt) bool { return false }

// Accept 始终同意
func Accept(Prompt) bool { return true }
