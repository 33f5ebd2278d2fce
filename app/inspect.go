package app

import (
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/pkg/canonical"
	"github.com/banyuechenjiang/cardsort/pkg/classifier"
	"github.com/banyuechenjiang/cardsort/pkg/fingerprint"
	"github.com/banyuechenjiang/cardsort/pkg/logger"
	"github.com/banyuechenjiang/cardsort/pkg/pngchunk"
)

// 单个区块值最多显示的字节数
const previewLimit = 80

type InspectOptions struct {
	Files    []string
	Verbose  bool
	LogLevel string
	LogFile  string
	Fs       afero.Fs
}

// RunInspect 打印每个文件的文本区块与分类结果，不修改任何文件
func RunInspect(opts *InspectOptions, w io.Writer) error {
	logLevel := opts.LogLevel
	if opts.Verbose {
		logLevel = "debug"
	}
	if err := logger.Init(logLevel, opts.LogFile); err != nil {
		return err
	}

	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	cls := classifier.NewClassifier()
	failed := 0
	for i, path := range opts.Files {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := inspectFile(fs, cls, path, w); err != nil {
			failed++
			fmt.Fprintf(w, "  错误: %v\n", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d 个文件无法读取", failed)
	}
	return nil
}

func inspectFile(fs afero.Fs, cls *classifier.Classifier, path string, w io.Writer) error {
	fmt.Fprintf(w, "== %s ==\n", path)

	info, err := fs.Stat(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  大小: %s\n", formatBytes(info.Size()))

	chunks, err := pngchunk.ReadAll(fs, path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "  文本区块: %d\n", len(chunks))
	for _, ch := range chunks {
		fmt.Fprintf(w, "    [%s] %s (%s): %s\n", ch.Type, ch.Keyword, formatBytes(int64(ch.PayloadLen)), preview(ch.Value))
	}

	res := cls.Classify(chunks)
	fmt.Fprintf(w, "  分类: %s\n", res.Category.Label())
	fmt.Fprintf(w, "  元数据: %d KB\n", res.MetadataSizeKB)

	if res.Category == classifier.IdentityCard {
		fmt.Fprintf(w, "  角色: %s\n", res.Identity)
		if res.Err != nil {
			fmt.Fprintf(w, "  解码失败: %v\n", res.Err)
		}
		if form := canonical.Normalize(res.Payload); form != nil {
			fmt.Fprintf(w, "  规范形式: %s\n", form)
		}
	}

	if hash, err := fingerprint.PerceptualHash(fs, path); err == nil {
		fmt.Fprintf(w, "  感知哈希: %016x\n", hash.GetHash())
	} else {
		fmt.Fprintf(w, "  感知哈希: 无 (%v)\n", err)
	}
	return nil
}

func preview(v []byte) string {
	s := []rune(string(v))
	if len(s) > previewLimit {
		return string(s[:previewLimit]) + "..."
	}
	return string(s)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
