// Package pipeline 把分类、重命名与去重串成一次完整的整理流程。
//
// 一次运行依次经过：
//
//	Scanning → Phase1Complete → Phase2Complete → Phase3Complete → [Phase4Complete] → Done
//
// 阶段必须按顺序调用，否则返回 ErrPhaseOrder。记录只由调用方所在的 goroutine 修改；
// 指纹计算可以并发，但结果统一回到这里写入记录。
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"
	"unicode"

	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/pkg/canonical"
	"github.com/banyuechenjiang/cardsort/pkg/classifier"
	"github.com/banyuechenjiang/cardsort/pkg/dedup"
	"github.com/banyuechenjiang/cardsort/pkg/fingerprint"
	"github.com/banyuechenjiang/cardsort/pkg/logger"
	"github.com/banyuechenjiang/cardsort/pkg/renamer"
	"github.com/banyuechenjiang/cardsort/pkg/scanner"
)

// ErrPhaseOrder 阶段调用顺序错误
var ErrPhaseOrder = errors.New("阶段调用顺序错误")

// State 流水线所处阶段
type State int

const (
	Scanning State = iota
	Phase1Complete
	Phase2Complete
	Phase3Complete
	Phase4Complete
	Done
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "Scanning"
	case Phase1Complete:
		return "Phase1Complete"
	case Phase2Complete:
		return "Phase2Complete"
	case Phase3Complete:
		return "Phase3Complete"
	case Phase4Complete:
		return "Phase4Complete"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// 固定前缀
const (
	prefixParamSetA    = "NAI"
	prefixParamSetB    = "SD"
	prefixMixed        = "Mixed"
	prefixUnclassified = "Other"
	prefixPlain        = "Image"
	prefixUnknownCard  = "UnknownCard"
	prefixBrokenCard   = "BrokenCard"
)

type sequenceKey struct {
	dir    string
	prefix string
}

// Orchestrator 单次运行的流水线，不可重复使用
type Orchestrator struct {
	fs         afero.Fs
	opts       Options
	engine     *fingerprint.Engine
	confirm    Confirmer
	classifier *classifier.Classifier
	renamer    *renamer.Renamer

	state     State
	root      string
	records   []*FileRecord
	byPath    map[string]*FileRecord
	sequences map[sequenceKey]map[int]bool
	exact     []dedup.Group
	report    *Report
}

// New 创建流水线；engine 为 nil 时使用默认阈值的顺序引擎，confirm 为 nil 时一律拒绝
func New(fs afero.Fs, opts Options, engine *fingerprint.Engine, confirm Confirmer) *Orchestrator {
	if engine == nil {
		engine = fingerprint.NewEngine(fs, internal.DefaultSimilarityThreshold, 1, nil)
	}
	if confirm == nil {
		confirm = Decline
	}
	if opts.ParamSetADir == "" {
		opts.ParamSetADir = internal.DefaultParamSetADir
	}
	if opts.ParamSetBDir == "" {
		opts.ParamSetBDir = internal.DefaultParamSetBDir
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = internal.DefaultExtensions
	}
	if opts.PromptSamples <= 0 {
		opts.PromptSamples = internal.DefaultPromptSamples
	}

	return &Orchestrator{
		fs:         fs,
		opts:       opts,
		engine:     engine,
		confirm:    confirm,
		classifier: classifier.NewClassifier(),
		renamer:    renamer.New(fs),
		state:      Scanning,
		byPath:     make(map[string]*FileRecord),
		sequences:  make(map[sequenceKey]map[int]bool),
		report:     newReport(),
	}
}

func (o *Orchestrator) State() State {
	return o.state
}

// Records 按处理顺序返回全部记录
func (o *Orchestrator) Records() []*FileRecord {
	return o.records
}

// Lookup 按当前路径查找记录
func (o *Orchestrator) Lookup(path string) (*FileRecord, bool) {
	r, ok := o.byPath[filepath.Clean(path)]
	return r, ok
}

func (o *Orchestrator) Report() *Report {
	return o.report
}

func (o *Orchestrator) expect(s State) error {
	if o.state != s {
		return fmt.Errorf("%w: 当前 %s, 需要 %s", ErrPhaseOrder, o.state, s)
	}
	return nil
}

// Run 依次执行全部阶段并返回报告
func (o *Orchestrator) Run(root string) (*Report, error) {
	if err := o.ScanAndPlace(root); err != nil {
		return o.report, err
	}
	if _, err := o.FindExactDuplicates(); err != nil {
		return o.report, err
	}
	if _, err := o.FindNearDuplicates(); err != nil {
		return o.report, err
	}

	if o.opts.FullPairwise {
		n := len(o.liveCards())
		if n >= 2 && o.confirm(Prompt{Kind: PromptFullPairwise, Count: n}) {
			if _, err := o.ClassifyAllPairs(); err != nil {
				return o.report, err
			}
		} else {
			logger.Get().Info().Msg("跳过全库两两比较")
		}
	}

	if err := o.Finish(); err != nil {
		return o.report, err
	}
	return o.report, nil
}

// Finish 结束运行；第三或第四阶段完成后才能调用
func (o *Orchestrator) Finish() error {
	if o.state != Phase3Complete && o.state != Phase4Complete {
		return fmt.Errorf("%w: 当前 %s, 无法结束", ErrPhaseOrder, o.state)
	}
	o.state = Done
	o.report.FinishedAt = time.Now()
	logger.Get().Info().Msgf("整理完成，耗时 %v", o.report.FinishedAt.Sub(o.report.StartedAt))
	return nil
}

// ScanAndPlace 第一阶段：遍历、分类、重命名并移动
func (o *Orchestrator) ScanAndPlace(root string) error {
	if err := o.expect(Scanning); err != nil {
		return err
	}
	o.root = filepath.Clean(root)
	o.report.Root = o.root

	candidates, err := scanner.NewFileWalker(o.fs, o.opts.Extensions).Collect(o.root)
	if err != nil {
		return err
	}

	logger.Get().Info().Msgf("第一阶段：分类并重命名 %d 个文件", len(candidates))

	var pending, deferred []*FileRecord
	for _, c := range candidates {
		res := o.classify(c)
		rec := newRecord(c.Path, c.Size, res)
		o.add(rec)
		o.report.Categories[rec.Category]++

		if res.Err != nil {
			o.report.Errors.Add(res.Err)
			logger.Get().Warn().Err(res.Err).Msgf("%s: %s", rec.Category.Label(), c.Path)
		}

		switch {
		case rec.Category == classifier.ReadError:
			continue
		case rec.Category == classifier.PlainImage && hasNonASCIILetters(filepath.Base(c.Path)):
			deferred = append(deferred, rec)
			continue
		}
		if !o.reserve(rec) {
			pending = append(pending, rec)
		}
	}

	// 先保留已命名文件的序号，再给其余文件分配，重复运行不会打乱已有编号
	for _, rec := range pending {
		o.place(rec)
	}

	if len(deferred) > 0 {
		prompt := Prompt{Kind: PromptRenameNonASCII, Count: len(deferred)}
		for _, rec := range deferred {
			if len(prompt.Samples) >= o.opts.PromptSamples {
				break
			}
			prompt.Samples = append(prompt.Samples, filepath.Base(rec.CurrentPath()))
		}

		if o.confirm(prompt) {
			for _, rec := range deferred {
				o.place(rec)
			}
		} else {
			o.report.Deferred = len(deferred)
			logger.Get().Info().Msgf("保留 %d 个非 ASCII 文件名的普通图片", len(deferred))
		}
	}

	o.state = Phase1Complete
	return nil
}

// classify 文件头不是 PNG 时直接判为读取失败，不再解析区块
func (o *Orchestrator) classify(c scanner.Candidate) classifier.Result {
	if c.LooksLikePNG() {
		return o.classifier.ClassifyFile(o.fs, c.Path)
	}
	mime := c.MIME
	if mime == "" {
		mime = "未知类型"
	}
	return classifier.Result{
		Category: classifier.ReadError,
		Err:      internal.Wrap(internal.ErrContainerFormat, "文件内容不是 PNG (%s)", mime),
	}
}

func (o *Orchestrator) add(rec *FileRecord) {
	o.records = append(o.records, rec)
	o.byPath[filepath.Clean(rec.CurrentPath())] = rec
}

func (o *Orchestrator) relocate(rec *FileRecord, dst string) {
	delete(o.byPath, filepath.Clean(rec.CurrentPath()))
	rec.relocate(dst)
	o.byPath[filepath.Clean(dst)] = rec
}

// placement 返回目标目录、前缀以及文件名是否包含元数据大小
func (o *Orchestrator) placement(rec *FileRecord) (string, string, bool) {
	here := filepath.Dir(rec.CurrentPath())
	switch rec.Category {
	case classifier.IdentityCard:
		switch rec.Identity.Reason {
		case classifier.Named:
			return here, rec.Identity.Name, true
		case classifier.NameUnknown:
			return here, prefixUnknownCard, true
		default:
			return here, prefixBrokenCard, true
		}
	case classifier.ParamSetA:
		return filepath.Join(o.root, o.opts.ParamSetADir), prefixParamSetA, true
	case classifier.ParamSetB:
		return filepath.Join(o.root, o.opts.ParamSetBDir), prefixParamSetB, true
	case classifier.MixedSource:
		return here, prefixMixed, true
	case classifier.PlainImage:
		return here, prefixPlain, false
	default:
		return here, prefixUnclassified, true
	}
}

// request 组装 placement 对应的重命名请求
func (o *Orchestrator) request(rec *FileRecord) (sequenceKey, renamer.Request) {
	dir, prefix, withMeta := o.placement(rec)
	return sequenceKey{dir: dir, prefix: prefix}, renamer.Request{
		Prefix:              prefix,
		TotalKB:             rec.TotalSizeKB,
		MetadataKB:          rec.MetadataSizeKB,
		IncludeMetadataSize: withMeta,
		TargetDir:           dir,
		CurrentPath:         rec.CurrentPath(),
	}
}

// used 某个 (目录, 前缀) 已占用的序号
func (o *Orchestrator) used(key sequenceKey) map[int]bool {
	seqs, ok := o.sequences[key]
	if !ok {
		seqs = make(map[int]bool)
		o.sequences[key] = seqs
	}
	return seqs
}

// reserve 文件已按规则命名且位于目标目录时，占用它的序号并保持原样
func (o *Orchestrator) reserve(rec *FileRecord) bool {
	key, req := o.request(rec)
	seq, ok := renamer.ParseSequence(req, rec.CurrentPath())
	if !ok {
		return false
	}
	o.used(key)[seq] = true
	o.report.Unchanged++
	return true
}

// place 取最小的空闲序号推导目标路径并移动；失败时不占用序号，保证成功处理的文件序号连续
func (o *Orchestrator) place(rec *FileRecord) {
	key, req := o.request(rec)
	used := o.used(key)
	seq := 1
	for used[seq] {
		seq++
	}
	req.Sequence = seq

	src := rec.CurrentPath()
	dst, err := o.renamer.DerivePath(req)
	if err == nil && dst != src {
		err = o.renamer.Move(src, dst)
	}
	if err != nil {
		o.report.Errors.Add(err)
		logger.Get().Error().Err(err).Msgf("重命名失败: %s", src)
		return
	}
	used[seq] = true

	if dst == src {
		o.report.Unchanged++
		return
	}
	if filepath.Dir(dst) != filepath.Dir(src) {
		o.report.Moved++
	} else {
		o.report.Renamed++
	}
	o.relocate(rec, dst)
	logger.Get().Debug().Msgf("%s -> %s", src, dst)
}

func hasNonASCIILetters(name string) bool {
	for _, r := range name {
		if r > unicode.MaxASCII && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// liveCards 当前仍存在的角色卡记录
func (o *Orchestrator) liveCards() []*FileRecord {
	var out []*FileRecord
	for _, rec := range o.records {
		if rec.Category != classifier.IdentityCard {
			continue
		}
		if ok, _ := afero.Exists(o.fs, rec.CurrentPath()); !ok {
			logger.Get().Warn().Msgf("文件已不存在，跳过: %s", rec.CurrentPath())
			continue
		}
		out = append(out, rec)
	}
	return out
}

// items 为存活的角色卡补齐指纹与规范形式，返回可比较的条目
func (o *Orchestrator) items() []dedup.Item {
	cards := o.liveCards()

	var pending []string
	for _, rec := range cards {
		if !rec.fingerprinted {
			pending = append(pending, rec.CurrentPath())
		}
	}
	if len(pending) > 0 {
		results := o.engine.ComputeAll(pending)
		for _, rec := range cards {
			res, ok := results[rec.CurrentPath()]
			if !ok || !rec.setFingerprint(res) {
				continue
			}
			if res.ContentErr != nil {
				o.report.Errors.Add(res.ContentErr)
			}
			if res.PerceptualErr != nil {
				o.report.Errors.Add(res.PerceptualErr)
			}
		}
	}

	items := make([]dedup.Item, 0, len(cards))
	for _, rec := range cards {
		content, ok := rec.ContentHash()
		if !ok {
			continue
		}
		if !rec.normalized {
			rec.setCanonical(o.normalize(rec))
		}
		key := rec.Identity.Key()
		o.report.labels[key] = rec.Identity.String()
		items = append(items, dedup.Item{
			Path:       rec.CurrentPath(),
			Key:        key,
			Content:    content,
			Perceptual: rec.PerceptualHash(),
			Canonical:  rec.Canonical(),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items
}

func (o *Orchestrator) normalize(rec *FileRecord) *canonical.Form {
	if rec.Identity.Reason == classifier.ParseError {
		return nil
	}
	payload, err := o.classifier.LoadCard(o.fs, rec.CurrentPath())
	if err != nil {
		logger.Get().Debug().Err(err).Msgf("重新读取载荷失败: %s", rec.CurrentPath())
		return nil
	}
	return canonical.Normalize(payload)
}

// FindExactDuplicates 第二阶段：同名角色卡中的完全重复
func (o *Orchestrator) FindExactDuplicates() ([]dedup.Group, error) {
	if err := o.expect(Phase1Complete); err != nil {
		return nil, err
	}
	logger.Get().Info().Msg("第二阶段：查找完全重复")

	o.exact = dedup.ExactGroups(o.items(), o.engine.Similar)
	o.report.ExactGroups = o.exact
	o.state = Phase2Complete

	logger.Get().Info().Msgf("找到 %d 组完全重复", len(o.exact))
	return o.exact, nil
}

// FindNearDuplicates 第三阶段：同名角色卡中的近似重复
func (o *Orchestrator) FindNearDuplicates() ([]dedup.Pair, error) {
	if err := o.expect(Phase2Complete); err != nil {
		return nil, err
	}
	logger.Get().Info().Msg("第三阶段：查找近似重复")

	pairs := dedup.NearPairs(o.items(), o.exact, o.engine.Similar)
	o.report.NearPairs = pairs
	o.state = Phase3Complete

	logger.Get().Info().Msgf("找到 %d 对近似重复", len(pairs))
	return pairs, nil
}

// ClassifyAllPairs 第四阶段：全库角色卡两两比较
func (o *Orchestrator) ClassifyAllPairs() ([]dedup.ClassifiedPair, error) {
	if err := o.expect(Phase3Complete); err != nil {
		return nil, err
	}
	logger.Get().Info().Msg("第四阶段：全库两两比较")

	pairs := dedup.ClassifyPairs(o.items(), o.engine.Similar)
	o.report.PairwiseRan = true
	o.report.Pairwise = pairs
	o.state = Phase4Complete

	logger.Get().Info().Msgf("两两比较得到 %d 条结果", len(pairs))
	return pairs, nil
}
