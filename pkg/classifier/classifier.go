package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/pkg/logger"
	"github.com/banyuechenjiang/cardsort/pkg/pngchunk"
)

// 识别用到的区块关键字（比较时不区分大小写）
const (
	KeyChara      = "chara"
	KeyComment    = "comment"
	KeyParameters = "parameters"
	KeySoftware   = "software"
	KeySource     = "source"
)

// Category 文件分类，一经确定不再改变
type Category int

const (
	// IdentityCard 带 chara 区块的角色卡
	IdentityCard Category = iota
	// ParamSetA NovelAI 生成图（Software + Comment JSON）
	ParamSetA
	// ParamSetB SD WebUI 生成图（parameters 文本）
	ParamSetB
	// MixedSource Software 与 Source 指向不同工具
	MixedSource
	// PlainImage 没有任何文本区块
	PlainImage
	// Unclassified 有文本区块但无法识别
	Unclassified
	// ReadError 无法读取或容器损坏
	ReadError
)

// Categories 按报告顺序列出全部分类
var Categories = []Category{IdentityCard, ParamSetA, ParamSetB, MixedSource, PlainImage, Unclassified, ReadError}

func (c Category) String() string {
	switch c {
	case IdentityCard:
		return "IdentityCard"
	case ParamSetA:
		return "ParamSetA"
	case ParamSetB:
		return "ParamSetB"
	case MixedSource:
		return "MixedSource"
	case PlainImage:
		return "PlainImage"
	case Unclassified:
		return "Unclassified"
	case ReadError:
		return "ReadError"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Label 报告里显示的中文名称
func (c Category) Label() string {
	switch c {
	case IdentityCard:
		return "角色卡"
	case ParamSetA:
		return "NovelAI 图片"
	case ParamSetB:
		return "SD WebUI 图片"
	case MixedSource:
		return "混合来源"
	case PlainImage:
		return "普通图片"
	case Unclassified:
		return "未识别元数据"
	case ReadError:
		return "读取失败"
	default:
		return c.String()
	}
}

// Result 单个文件的分类结果
type Result struct {
	Category       Category
	Identity       Identity
	MetadataSizeKB uint64
	// Payload 仅在角色卡载荷解析成功时存在
	Payload map[string]any
	// Err 记录降级原因（角色卡解码失败、文件读取失败）
	Err error
}

// Rules 分类规则中的固定集合
type Rules struct {
	VendorTag        string
	CommentKeys      []string
	ParameterMarkers []string
	MinMarkers       int
	KnownTools       []string
}

// DefaultRules 默认规则
func DefaultRules() Rules {
	return Rules{
		VendorTag:        "novelai",
		CommentKeys:      []string{"prompt", "steps", "sampler", "seed", "strength", "noise", "scale", "uc"},
		ParameterMarkers: []string{"steps:", "sampler:", "cfg scale:", "seed:", "size:", "model hash:", "negative prompt:"},
		MinMarkers:       2,
		KnownTools:       []string{"stable diffusion", "comfyui", "midjourney", "dall-e", "invokeai", "fooocus"},
	}
}

// Classifier 元数据分类器，本身无状态，可重复调用
type Classifier struct {
	rules Rules
}

func NewClassifier() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

func NewClassifierWithRules(rules Rules) *Classifier {
	return &Classifier{rules: rules}
}

// ClassifyFile 读取文件的文本区块并分类，任何读取错误都归为 ReadError
func (c *Classifier) ClassifyFile(fs afero.Fs, path string) Result {
	chunks, err := pngchunk.ReadAll(fs, path)
	if err != nil {
		logger.Get().Debug().Err(err).Msgf("读取区块失败: %s", path)
		return Result{Category: ReadError, Err: err}
	}
	return c.Classify(chunks)
}

// Classify 按优先级依次套用规则，先命中者胜出
func (c *Classifier) Classify(chunks []pngchunk.TextChunk) Result {
	if len(chunks) == 0 {
		return Result{Category: PlainImage}
	}

	res := Result{MetadataSizeKB: metadataSizeKB(chunks)}
	byKey := indexChunks(chunks)

	if chara, ok := byKey[KeyChara]; ok {
		res.Category = IdentityCard
		payload, err := DecodeCard(chara)
		if err != nil {
			res.Identity = Identity{Reason: ParseError}
			res.Err = err
			return res
		}
		res.Payload = payload
		res.Identity = identityFromPayload(payload)
		return res
	}

	software := strings.ToLower(string(byKey[KeySoftware]))
	hasVendor := c.rules.VendorTag != "" && strings.Contains(software, c.rules.VendorTag)
	paramsMatch := c.matchParameters(byKey)

	if hasVendor && c.matchComment(byKey) {
		// parameters 同时命中时以 parameters 为准
		if paramsMatch {
			res.Category = ParamSetB
		} else {
			res.Category = ParamSetA
		}
		return res
	}

	if paramsMatch {
		res.Category = ParamSetB
		return res
	}

	if hasVendor && c.namesOtherTool(byKey) {
		res.Category = MixedSource
		return res
	}

	res.Category = Unclassified
	return res
}

// LoadCard 重新从文件读取并解码 chara 载荷，供规范化时按需使用
func (c *Classifier) LoadCard(fs afero.Fs, path string) (map[string]any, error) {
	chunks, err := pngchunk.ReadAll(fs, path)
	if err != nil {
		return nil, err
	}
	chara, ok := indexChunks(chunks)[KeyChara]
	if !ok {
		return nil, errors.New("文件中没有 chara 区块")
	}
	return DecodeCard(chara)
}

func (c *Classifier) matchComment(byKey map[string][]byte) bool {
	raw, ok := byKey[KeyComment]
	if !ok {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	hits := 0
	for _, k := range c.rules.CommentKeys {
		if _, ok := fields[k]; ok {
			hits++
		}
	}
	return hits >= len(c.rules.CommentKeys)-1
}

func (c *Classifier) matchParameters(byKey map[string][]byte) bool {
	raw, ok := byKey[KeyParameters]
	if !ok {
		return false
	}
	text := strings.ToLower(string(raw))
	hits := 0
	for _, m := range c.rules.ParameterMarkers {
		if strings.Contains(text, m) {
			hits++
		}
	}
	return hits >= c.rules.MinMarkers
}

func (c *Classifier) namesOtherTool(byKey map[string][]byte) bool {
	source := strings.ToLower(string(byKey[KeySource]))
	if source == "" {
		return false
	}
	for _, tool := range c.rules.KnownTools {
		if tool != c.rules.VendorTag && strings.Contains(source, tool) {
			return true
		}
	}
	return false
}

// indexChunks 关键字转小写后建立索引，同名区块只保留第一个
func indexChunks(chunks []pngchunk.TextChunk) map[string][]byte {
	byKey := make(map[string][]byte, len(chunks))
	for _, ch := range chunks {
		k := strings.ToLower(ch.Keyword)
		if _, exists := byKey[k]; !exists {
			byKey[k] = ch.Value
		}
	}
	return byKey
}

func metadataSizeKB(chunks []pngchunk.TextChunk) uint64 {
	var total uint64
	for _, ch := range chunks {
		total += uint64(ch.PayloadLen)
	}
	return (total + 1023) / 1024
}
