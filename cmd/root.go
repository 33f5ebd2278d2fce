package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cardsort",
	Short: "一个用于整理 PNG 角色卡与 AI 生成图的工具",
	Long: `CardSort 是一个命令行工具，用于按内嵌元数据整理 PNG 图片并查找重复的角色卡。

主要功能:
- 读取 PNG 文本区块（tEXt / zTXt / iTXt）
- 识别角色卡、NovelAI 与 SD WebUI 生成图、混合来源图片和普通图片
- 按统一规则重命名，生成图移入独立子目录
- 基于 SHA-256 与差值哈希查找完全重复和近似重复的角色卡
- 指纹可缓存到 SQLite 数据库，重复运行时跳过未变化的文件`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
