package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banyuechenjiang/cardsort/app"
	"github.com/banyuechenjiang/cardsort/config"
	"github.com/banyuechenjiang/cardsort/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run <directory>",
	Short: "分类、重命名并查找重复",
	Long: `遍历目录中的 PNG 文件，读取文本区块判断类别并按统一规则重命名:
1. 角色卡以角色名命名，留在原目录
2. NovelAI 生成图移入 NovelAI 子目录，SD WebUI 生成图移入 SD-WebUI 子目录
3. 同名角色卡中查找完全重复（内容相同，或元数据相同且视觉相似）
4. 同名角色卡中查找近似重复（元数据不同但视觉相似）
5. 可选：对全部角色卡两两比较（--full-pairwise）`,
	Args: cobra.ExactArgs(1),
	RunE: runSort,
}

func runSort(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts := &app.SortOptions{
		Root:         args[0],
		Threshold:    cfg.Similarity.Threshold,
		Workers:      cfg.Performance.Workers,
		CachePath:    cfg.Cache.Path,
		ParamSetADir: cfg.Layout.ParamSetADir,
		ParamSetBDir: cfg.Layout.ParamSetBDir,
		Extensions:   cfg.Scanner.Extensions,
		LogLevel:     cfg.Logging.Level,
		LogFile:      cfg.Logging.File,
	}

	opts.FullPairwise, _ = cmd.Flags().GetBool("full-pairwise")
	opts.AssumeYes, _ = cmd.Flags().GetBool("yes")
	opts.Verbose, _ = cmd.Flags().GetBool("verbose")
	if cmd.Flags().Changed("threshold") {
		opts.Threshold, _ = cmd.Flags().GetInt("threshold")
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("cache") {
		opts.CachePath, _ = cmd.Flags().GetString("cache")
	}

	report, err := app.RunSort(opts)
	defer logger.Close()
	if err != nil {
		return err
	}

	fmt.Println(report.String())

	return nil
}

func init() {
	runCmd.Flags().Bool("full-pairwise", false, "整理后对全部角色卡两两比较（需确认）")
	runCmd.Flags().BoolP("yes", "y", false, "自动同意所有确认")
	runCmd.Flags().Int("threshold", 0, "感知哈希相似度阈值（默认取配置，10）")
	runCmd.Flags().Int("workers", 0, "指纹计算并发数（默认取配置，1 为顺序计算）")
	runCmd.Flags().String("cache", "", "指纹缓存数据库路径（默认仅内存）")
	runCmd.Flags().BoolP("verbose", "v", false, "显示详细日志")

	rootCmd.AddCommand(runCmd)
}
