package renamer

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/pkg/logger"
)

// Move 把 src 移动到 dst，必要时创建目标目录。
// dst 已存在时拒绝覆盖；Rename 失败（可能是跨卷移动）时改为复制后删除。
func (r *Renamer) Move(src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil
	}

	if err := r.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("%w: 创建目录失败: %w", internal.ErrFilesystem, err)
	}

	if !samePath(src, dst) {
		exists, err := afero.Exists(r.fs, dst)
		if err != nil {
			return fmt.Errorf("%w: 检查文件是否存在失败: %w", internal.ErrFilesystem, err)
		}
		if exists {
			return internal.Wrap(internal.ErrFilesystem, "目标文件已存在: %s", dst)
		}
	}

	if err := r.fs.Rename(src, dst); err != nil {
		logger.Get().Debug().
			Err(err).
			Str("source", src).
			Str("destination", dst).
			Msg("直接重命名失败，尝试复制后删除")

		if err := r.copyFile(src, dst); err != nil {
			return err
		}
		if err := r.fs.Remove(src); err != nil {
			return fmt.Errorf("%w: 删除原文件失败: %w", internal.ErrFilesystem, err)
		}
	}

	logger.Get().Debug().Str("source", src).Str("destination", dst).Msg("文件已移动")
	return nil
}

func (r *Renamer) copyFile(src, dst string) error {
	sourceFile, err := r.fs.Open(src)
	if err != nil {
		return fmt.Errorf("%w: 打开源文件失败: %w", internal.ErrFilesystem, err)
	}
	defer sourceFile.Close()

	destFile, err := r.fs.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: 创建目标文件失败: %w", internal.ErrFilesystem, err)
	}

	if _, err = io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		_ = r.fs.Remove(dst)
		return fmt.Errorf("%w: 复制文件内容失败: %w", internal.ErrFilesystem, err)
	}
	if err := destFile.Close(); err != nil {
		return fmt.Errorf("%w: 写入目标文件失败: %w", internal.ErrFilesystem, err)
	}
	return nil
}
