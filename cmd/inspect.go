package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/banyuechenjiang/cardsort/app"
	"github.com/banyuechenjiang/cardsort/config"
	"github.com/banyuechenjiang/cardsort/pkg/logger"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <files...>",
	Short: "查看 PNG 文件的文本区块与分类结果",
	Long: `读取每个文件的文本区块，输出区块列表、分类、角色名、规范形式与感知哈希。
只读操作，不会重命名或移动文件。`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")

	opts := &app.InspectOptions{
		Files:    args,
		Verbose:  verbose,
		LogLevel: cfg.Logging.Level,
		LogFile:  cfg.Logging.File,
	}

	defer logger.Close()
	return app.RunInspect(opts, os.Stdout)
}

func init() {
	inspectCmd.Flags().BoolP("verbose", "v", false, "显示详细日志")

	rootCmd.AddCommand(inspectCmd)
}
