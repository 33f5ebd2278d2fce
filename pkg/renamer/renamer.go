// Package renamer 生成确定且不冲突的目标文件名，并负责实际的移动操作。
package renamer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/pkg/logger"
)

// 冲突序号的上限，超过即认为目录状态异常
const maxConflictIndex = 10000

// Request 生成目标路径所需的信息
type Request struct {
	Prefix              string
	TotalKB             uint64
	MetadataKB          uint64
	IncludeMetadataSize bool
	TargetDir           string
	Sequence            int
	CurrentPath         string
}

// Renamer 在给定文件系统上推导目标路径
type Renamer struct {
	fs afero.Fs
}

func New(fs afero.Fs) *Renamer {
	return &Renamer{fs: fs}
}

// DerivePath 生成 {prefix}-{total}KB[&{meta}KB]-{seq}[_{i}]{ext}。
// i 从 0（省略）开始递增，直到路径不存在；候选路径与当前路径忽略大小写相同时直接返回当前路径。
// 只检查文件系统，不做任何修改。
func (r *Renamer) DerivePath(req Request) (string, error) {
	ext := filepath.Ext(req.CurrentPath)
	if ext == "" {
		ext = ".png"
	}

	stem := req.head() + strconv.Itoa(req.Sequence)

	for i := 0; i < maxConflictIndex; i++ {
		name := stem
		if i > 0 {
			name = fmt.Sprintf("%s_%d", stem, i)
		}
		candidate := filepath.Join(req.TargetDir, name+ext)

		if samePath(candidate, req.CurrentPath) {
			return req.CurrentPath, nil
		}

		exists, err := afero.Exists(r.fs, candidate)
		if err != nil {
			return "", fmt.Errorf("%w: 检查文件是否存在: %w", internal.ErrFilesystem, err)
		}
		if !exists {
			if i > 0 {
				logger.Get().Debug().Msgf("文件名冲突，使用: %s", candidate)
			}
			return candidate, nil
		}
	}

	return "", internal.Wrap(internal.ErrFilesystem, "无法为 %s 找到可用文件名", req.CurrentPath)
}

// head 文件名中序号之前的部分
func (req Request) head() string {
	h := fmt.Sprintf("%s-%dKB", req.Prefix, req.TotalKB)
	if req.IncludeMetadataSize {
		h += fmt.Sprintf("&%dKB", req.MetadataKB)
	}
	return h + "-"
}

// ParseSequence 判断 path 是否已经是 req 在 TargetDir 下生成的文件名（忽略 Sequence），
// 是则返回其中的序号。带冲突后缀 _i 的文件名同样算数。
func ParseSequence(req Request, path string) (int, bool) {
	if !samePath(filepath.Dir(path), req.TargetDir) {
		return 0, false
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	head := req.head()
	if len(stem) <= len(head) || !strings.EqualFold(stem[:len(head)], head) {
		return 0, false
	}

	seqPart, conflict, hasConflict := strings.Cut(stem[len(head):], "_")
	seq, ok := positive(seqPart)
	if !ok {
		return 0, false
	}
	if hasConflict {
		if _, ok := positive(conflict); !ok {
			return 0, false
		}
	}
	return seq, true
}

// positive 解析不带前导零和符号的正整数
func positive(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || strconv.Itoa(n) != s {
		return 0, false
	}
	return n, true
}

func samePath(a, b string) bool {
	return strings.EqualFold(filepath.Clean(a), filepath.Clean(b))
}
