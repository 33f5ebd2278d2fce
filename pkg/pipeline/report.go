package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/pkg/classifier"
	"github.com/banyuechenjiang/cardsort/pkg/dedup"
)

// Report 一次运行的汇总
type Report struct {
	RunID      string
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time

	Categories map[classifier.Category]int
	Errors     internal.ErrorCounts

	Renamed   int
	Moved     int
	Unchanged int
	// Deferred 用户拒绝后保留原名的文件数
	Deferred int

	ExactGroups []dedup.Group
	NearPairs   []dedup.Pair
	PairwiseRan bool
	Pairwise    []dedup.ClassifiedPair

	// 分组键到显示名称
	labels map[string]string
}

func newReport() *Report {
	return &Report{
		RunID:      uuid.New().String(),
		StartedAt:  time.Now(),
		Categories: make(map[classifier.Category]int),
		Errors:     make(internal.ErrorCounts),
		labels:     make(map[string]string),
	}
}

// Label 分组键对应的显示名称
func (r *Report) Label(key string) string {
	if l, ok := r.labels[key]; ok {
		return l
	}
	return key
}

// Total 处理的文件总数
func (r *Report) Total() int {
	n := 0
	for _, c := range r.Categories {
		n += c
	}
	return n
}

func (r *Report) rel(path string) string {
	if r.Root == "" {
		return path
	}
	if rel, err := filepath.Rel(r.Root, path); err == nil {
		return rel
	}
	return path
}

func (r *Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "运行 ID: %s\n", r.RunID)
	fmt.Fprintf(&b, "目录: %s\n", r.Root)

	b.WriteString("\n== 第一阶段：分类与重命名 ==\n")
	for _, c := range classifier.Categories {
		fmt.Fprintf(&b, "%s: %d\n", c.Label(), r.Categories[c])
	}
	fmt.Fprintf(&b, "重命名: %d, 移动: %d, 无需改名: %d, 保留原名: %d\n", r.Renamed, r.Moved, r.Unchanged, r.Deferred)

	b.WriteString("\n== 第二阶段：完全重复 ==\n")
	if len(r.ExactGroups) == 0 {
		b.WriteString("无\n")
	}
	for i, g := range r.ExactGroups {
		fmt.Fprintf(&b, "[%d] %s (%d 个文件)\n", i+1, r.Label(g.Key), len(g.Paths))
		for _, p := range g.Paths {
			fmt.Fprintf(&b, "    %s\n", r.rel(p))
		}
	}

	b.WriteString("\n== 第三阶段：近似重复 ==\n")
	if len(r.NearPairs) == 0 {
		b.WriteString("无\n")
	}
	for _, p := range r.NearPairs {
		fmt.Fprintf(&b, "%s: %s <-> %s (距离 %d)\n", r.Label(p.Key), r.rel(p.A), r.rel(p.B), p.Distance)
	}

	if r.PairwiseRan {
		b.WriteString("\n== 第四阶段：全库两两比较 ==\n")
		if len(r.Pairwise) == 0 {
			b.WriteString("无\n")
		}
		for _, p := range r.Pairwise {
			if p.Distance >= 0 {
				fmt.Fprintf(&b, "%s: %s <-> %s (距离 %d)\n", p.Kind, r.rel(p.A), r.rel(p.B), p.Distance)
			} else {
				fmt.Fprintf(&b, "%s: %s <-> %s\n", p.Kind, r.rel(p.A), r.rel(p.B))
			}
		}
	}

	b.WriteString("\n== 汇总 ==\n")
	fmt.Fprintf(&b, "文件总数: %d\n", r.Total())
	fmt.Fprintf(&b, "完全重复: %d 组, 近似重复: %d 对\n", len(r.ExactGroups), len(r.NearPairs))
	fmt.Fprintf(&b, "错误: %s\n", r.Errors)
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "耗时: %v\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	return b.String()
}
