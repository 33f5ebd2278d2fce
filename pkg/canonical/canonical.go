// Package canonical 把角色卡载荷中与身份相关的字段规范化，
// 使比较不受条目顺序和首尾空白影响。
package canonical

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// EntrySeparator 条目拼接使用的分隔符
const EntrySeparator = "||"

// Form 规范形式，三个字段逐一做精确字符串比较
type Form struct {
	// Name 小写并去除首尾空白，缺失时为 nil
	Name        *string
	OpeningText string
	Entries     string
}

// Normalize 从载荷中提取规范形式；载荷为 nil 时返回 nil
func Normalize(payload map[string]any) *Form {
	if payload == nil {
		return nil
	}
	data, _ := payload["data"].(map[string]any)

	f := &Form{}
	if name, ok := lookupString(data, payload, "name"); ok {
		n := strings.ToLower(strings.TrimSpace(name))
		f.Name = &n
	} else if name, ok := lookupString(nil, payload, "char_name"); ok {
		n := strings.ToLower(strings.TrimSpace(name))
		f.Name = &n
	}

	if first, ok := lookupString(data, payload, "first_mes"); ok {
		f.OpeningText = strings.TrimSpace(first)
	}

	f.Entries = normalizeEntries(bookEntries(data, payload))
	return f
}

// Equal 字段逐一相等；nil 与 nil 相等，nil 与非 nil 不等
func Equal(a, b *Form) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if (a.Name == nil) != (b.Name == nil) {
		return false
	}
	if a.Name != nil && *a.Name != *b.Name {
		return false
	}
	return a.OpeningText == b.OpeningText && a.Entries == b.Entries
}

// Key 规范形式的摘要，用于分桶；同桶内仍需 Equal 确认
func (f *Form) Key() uint64 {
	if f == nil {
		return 0
	}
	d := xxhash.New()
	if f.Name != nil {
		_, _ = d.WriteString("n")
		_, _ = d.WriteString(*f.Name)
	}
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(f.OpeningText)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(f.Entries)
	return d.Sum64()
}

func (f *Form) String() string {
	if f == nil {
		return "<nil>"
	}
	name := "<无>"
	if f.Name != nil {
		name = *f.Name
	}
	return name + " | " + f.OpeningText + " | " + f.Entries
}

// lookupString 先在嵌套的 data 中找，再回退到顶层
func lookupString(data, top map[string]any, key string) (string, bool) {
	for _, m := range []map[string]any{data, top} {
		if m == nil {
			continue
		}
		if s, ok := m[key].(string); ok {
			return s, true
		}
	}
	return "", false
}

func bookEntries(data, top map[string]any) []any {
	for _, m := range []map[string]any{data, top} {
		if m == nil {
			continue
		}
		book, ok := m["character_book"].(map[string]any)
		if !ok {
			continue
		}
		if entries, ok := book["entries"].([]any); ok {
			return entries
		}
	}
	return nil
}

func normalizeEntries(entries []any) string {
	seen := make(map[string]struct{}, len(entries))
	var out []string
	for _, e := range entries {
		var s string
		switch v := e.(type) {
		case string:
			s = v
		case map[string]any:
			s, _ = v["content"].(string)
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return strings.Join(out, EntrySeparator)
}
