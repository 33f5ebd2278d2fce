package classifier

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/pkg/pngchunk"
)

// IdentityReason 角色卡身份的来源
type IdentityReason int

const (
	// Named 从载荷里取到了名字
	Named IdentityReason = iota
	// NameUnknown 载荷可解析但没有可用的名字
	NameUnknown
	// ParseError 载荷无法解码
	ParseError
)

func (r IdentityReason) String() string {
	switch r {
	case Named:
		return "Named"
	case NameUnknown:
		return "NameUnknown"
	default:
		return "ParseError"
	}
}

// Identity 角色卡的分组键
type Identity struct {
	Name   string
	Reason IdentityReason
}

// Key 分组用的键；未命名和解析失败的卡各自归为一组
func (id Identity) Key() string {
	switch id.Reason {
	case Named:
		return "name:" + id.Name
	case NameUnknown:
		return "unknown"
	default:
		return "parse-error"
	}
}

func (id Identity) String() string {
	switch id.Reason {
	case Named:
		return id.Name
	case NameUnknown:
		return "<未知名称>"
	default:
		return "<解析失败>"
	}
}

// decodeStep 解码流水线中的一步
type decodeStep struct {
	name string
	fn   func([]byte) ([]byte, error)
}

var (
	stepInflate = decodeStep{"zlib", pngchunk.Inflate}
	stepBase64  = decodeStep{"base64", decodeBase64}
	stepUTF8    = decodeStep{"utf-8", checkUTF8}
)

// cardAttempts 依次尝试的解码方案，第一个成功的方案胜出
var cardAttempts = [][]decodeStep{
	{stepInflate, stepBase64, stepUTF8},
	{stepBase64, stepUTF8},
}

// DecodeCard 解码 chara 区块：可选 zlib 解压 → base64 → UTF-8 → JSON 对象。
// 所有方案都失败时返回包装了 internal.ErrDecode 的错误。
func DecodeCard(raw []byte) (map[string]any, error) {
	var errs []error
	for _, attempt := range cardAttempts {
		payload, err := runAttempt(attempt, raw)
		if err == nil {
			return payload, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %w", internal.ErrDecode, errors.Join(errs...))
}

func runAttempt(steps []decodeStep, raw []byte) (map[string]any, error) {
	data := raw
	for _, s := range steps {
		out, err := s.fn(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		data = out
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	if payload == nil {
		return nil, errors.New("json: 载荷不是对象")
	}
	return payload, nil
}

func decodeBase64(p []byte) ([]byte, error) {
	s := strings.TrimSpace(string(p))
	if out, err := base64.StdEncoding.DecodeString(s); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func checkUTF8(p []byte) ([]byte, error) {
	p = bytes.TrimPrefix(p, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(p) {
		return nil, errors.New("不是合法的 UTF-8")
	}
	return p, nil
}

// DisplayName 先取嵌套的 data.name，再取顶层的 name / char_name
func DisplayName(payload map[string]any) (string, bool) {
	if data, ok := payload["data"].(map[string]any); ok {
		if name, ok := nonEmptyString(data["name"]); ok {
			return name, true
		}
	}
	for _, k := range []string{"name", "char_name"} {
		if name, ok := nonEmptyString(payload[k]); ok {
			return name, true
		}
	}
	return "", false
}

func identityFromPayload(payload map[string]any) Identity {
	name, ok := DisplayName(payload)
	if !ok {
		return Identity{Reason: NameUnknown}
	}
	key := Sanitize(name)
	if key == "" {
		return Identity{Reason: NameUnknown}
	}
	return Identity{Name: key, Reason: Named}
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Sanitize 把名字变成可用于文件名的形式
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`\/:*?"<>|`, r), unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(strings.TrimSpace(b.String()), ". ")
}
