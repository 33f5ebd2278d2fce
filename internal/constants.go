package internal

const (
	// 配置目录名（位于 $HOME 下）
	ConfigDirName = ".cardsort"

	// 相似度阈值：两个感知哈希的汉明距离不超过该值即视为相似
	DefaultSimilarityThreshold = 10

	// NovelAI 图片移入的子目录
	DefaultParamSetADir = "NovelAI"

	// SD WebUI 图片移入的子目录
	DefaultParamSetBDir = "SD-WebUI"

	// 非 ASCII 纯图片确认时展示的示例数量
	DefaultPromptSamples = 5

	// DefaultWorkers 指纹计算池的默认并发数，1 表示在调用方协程内顺序计算
	DefaultWorkers = 1

	// MaxInflatedSize 单个压缩区块解压后的上限
	MaxInflatedSize = 64 << 20
)

// DefaultExtensions 参与扫描的文件扩展名
var DefaultExtensions = []string{".png"}
