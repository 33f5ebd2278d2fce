// Package scanner 遍历目录树，收集待处理的图片文件。
package scanner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/pkg/logger"
)

// 文件类型检测所需的头部字节数
const headerSize = 261

// Candidate 一个待处理的文件
type Candidate struct {
	Path string
	Size int64
	// MIME 按文件头检测到的类型，无法识别时为空
	MIME string
}

// LooksLikePNG 文件头是否为 PNG
func (c Candidate) LooksLikePNG() bool {
	return c.MIME == "image/png"
}

type FileWalker struct {
	fs            afero.Fs
	extensions    map[string]bool
	IncludeHidden bool
}

// NewFileWalker 创建遍历器；extensions 为空时接受所有文件
func NewFileWalker(fs afero.Fs, extensions []string) *FileWalker {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &FileWalker{
		fs:            fs,
		extensions:    exts,
		IncludeHidden: true,
	}
}

// Walk 遍历 root 下的所有普通文件，遍历错误被忽略
func (w *FileWalker) Walk(root string, callback func(path string, info os.FileInfo) error) error {
	return afero.Walk(w.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Get().Debug().Err(err).Msgf("跳过无法访问的路径: %s", path)
			return nil
		}

		if !w.IncludeHidden && path != root && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			return nil
		}

		return callback(path, info)
	})
}

// Collect 收集扩展名匹配的文件，按路径字典序返回
func (w *FileWalker) Collect(root string) ([]Candidate, error) {
	info, err := w.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internal.ErrFilesystem, err)
	}
	if !info.IsDir() {
		return nil, internal.Wrap(internal.ErrFilesystem, "不是目录: %s", root)
	}

	logger.Get().Info().Msgf("开始扫描目录: %s", root)

	var candidates []Candidate
	err = w.Walk(root, func(path string, info os.FileInfo) error {
		if !w.accepts(path) {
			return nil
		}
		c := Candidate{Path: path, Size: info.Size(), MIME: w.sniff(path)}
		if !c.LooksLikePNG() {
			logger.Get().Warn().Msgf("文件内容不是 PNG: %s (%s)", path, c.MIME)
		}
		candidates = append(candidates, c)
		return nil
	})
	if err != nil {
		logger.Get().Error().Err(err).Msgf("扫描目录失败: %s", root)
		return nil, fmt.Errorf("%w: %w", internal.ErrFilesystem, err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})

	logger.Get().Info().Msgf("扫描完成，共找到 %d 个文件", len(candidates))
	return candidates, nil
}

func (w *FileWalker) accepts(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

func (w *FileWalker) sniff(path string) string {
	file, err := w.fs.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ""
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
