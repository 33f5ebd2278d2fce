package app

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"golang.org/x/term"

	"github.com/banyuechenjiang/cardsort/pkg/cache"
	"github.com/banyuechenjiang/cardsort/pkg/fingerprint"
	"github.com/banyuechenjiang/cardsort/pkg/logger"
	"github.com/banyuechenjiang/cardsort/pkg/pipeline"
	"github.com/banyuechenjiang/cardsort/tui"
)

type SortOptions struct {
	Root         string
	FullPairwise bool
	AssumeYes    bool
	Threshold    int
	Workers      int
	CachePath    string
	ParamSetADir string
	ParamSetBDir string
	Extensions   []string
	Verbose      bool
	LogLevel     string
	LogFile      string
	// Confirm 为 nil 时根据 AssumeYes 与终端状态选择
	Confirm pipeline.Confirmer
	// Fs 为 nil 时使用真实文件系统
	Fs afero.Fs
}

func RunSort(opts *SortOptions) (*pipeline.Report, error) {
	logLevel := opts.LogLevel
	if opts.Verbose {
		logLevel = "debug"
	}

	if err := logger.Init(logLevel, opts.LogFile); err != nil {
		return nil, err
	}

	logger.Get().Info().Msg("加载配置完成")
	logger.Get().Info().Msgf("整理目录: %s", opts.Root)
	logger.Get().Info().Msgf("相似度阈值: %d, 工作线程数: %d", opts.Threshold, opts.Workers)

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	store, err := cache.Open(opts.CachePath)
	if err != nil {
		return nil, fmt.Errorf("打开指纹缓存失败: %w", err)
	}
	defer store.Close()

	engine := fingerprint.NewEngine(fs, opts.Threshold, opts.Workers, store)

	confirm := opts.Confirm
	if confirm == nil {
		confirm = chooseConfirmer(opts.AssumeYes)
	}

	o := pipeline.New(fs, pipeline.Options{
		ParamSetADir: opts.ParamSetADir,
		ParamSetBDir: opts.ParamSetBDir,
		Extensions:   opts.Extensions,
		FullPairwise: opts.FullPairwise,
	}, engine, confirm)

	report, err := o.Run(opts.Root)
	if err != nil {
		return report, fmt.Errorf("整理失败: %w", err)
	}

	hits, misses := store.Stats()
	logger.Get().Debug().Msgf("指纹缓存命中 %d 次, 未命中 %d 次", hits, misses)

	return report, nil
}

// chooseConfirmer --yes 时一律同意；交互终端中弹出确认界面；否则一律拒绝
func chooseConfirmer(assumeYes bool) pipeline.Confirmer {
	if assumeYes {
		return pipeline.Accept
	}
	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd())) {
		return tui.Confirm
	}
	return func(p pipeline.Prompt) bool {
		logger.Get().Warn().Msgf("非交互环境，默认拒绝: %s", p.Message())
		return false
	}
}
