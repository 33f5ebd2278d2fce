package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/pkg/logger"
)

// dHash 采样尺寸：每行 9 个像素产生 8 位差分
const (
	hashWidth  = 9
	hashHeight = 8
)

// Hash256 文件内容的 SHA-256 摘要
type Hash256 [sha256.Size]byte

func (h Hash256) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash256 从十六进制字符串还原摘要
func ParseHash256(s string) (Hash256, error) {
	var h Hash256
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != sha256.Size {
		return h, fmt.Errorf("摘要长度错误: %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ContentHash 流式计算文件的 SHA-256
func ContentHash(fs afero.Fs, path string) (Hash256, error) {
	logger.Get().Debug().Msgf("计算内容哈希: %s", path)

	var h Hash256
	file, err := fs.Open(path)
	if err != nil {
		logger.Get().Error().Err(err).Msgf("无法打开文件: %s", path)
		return h, fmt.Errorf("%w: %s: %w", internal.ErrHashComputation, path, err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		logger.Get().Error().Err(err).Msgf("计算哈希失败: %s", path)
		return h, fmt.Errorf("%w: %s: %w", internal.ErrHashComputation, path, err)
	}

	copy(h[:], hash.Sum(nil))
	logger.Get().Trace().Msgf("内容哈希计算完成: %s -> %s", path, h)
	return h, nil
}

// PerceptualHash 计算 64 位差分哈希：灰度化后缩放到 9x8，
// 每行相邻像素左大于右记 1，按行优先、高位在前排列
func PerceptualHash(fs afero.Fs, path string) (*goimagehash.ImageHash, error) {
	logger.Get().Debug().Msgf("计算感知哈希: %s", path)

	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", internal.ErrHashComputation, path, err)
	}
	defer file.Close()

	img, err := imaging.Decode(file)
	if err != nil {
		logger.Get().Warn().Err(err).Msgf("图像解码失败: %s", path)
		return nil, fmt.Errorf("%w: 解码 %s: %w", internal.ErrHashComputation, path, err)
	}

	small := imaging.Resize(imaging.Grayscale(img), hashWidth, hashHeight, imaging.Lanczos)

	var bits uint64
	for y := 0; y < hashHeight; y++ {
		row := small.Pix[y*small.Stride:]
		for x := 0; x < hashWidth-1; x++ {
			bits <<= 1
			// 灰度图 R=G=B，取 R 通道即可
			if row[x*4] > row[(x+1)*4] {
				bits |= 1
			}
		}
	}

	hash := goimagehash.NewImageHash(bits, goimagehash.DHash)
	logger.Get().Trace().Msgf("感知哈希计算完成: %s -> %s", path, hash.ToString())
	return hash, nil
}

// Similar 汉明距离不超过阈值即视为视觉相似；任一侧缺失或种类不同时不相似
func Similar(a, b *goimagehash.ImageHash, threshold int) bool {
	if a == nil || b == nil {
		return false
	}
	dist, err := a.Distance(b)
	if err != nil {
		return false
	}
	return dist <= threshold
}
