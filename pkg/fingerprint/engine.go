package fingerprint

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/pkg/cache"
	"github.com/banyuechenjiang/cardsort/pkg/logger"
)

// Cache 指纹缓存，由 pkg/cache 实现
type Cache interface {
	Lookup(path string, size, modTime int64) (cache.Entry, bool)
	Save(e cache.Entry) error
}

// Result 单个文件的指纹；两个哈希互相独立，一个失败不影响另一个
type Result struct {
	Path          string
	Content       Hash256
	ContentErr    error
	Perceptual    *goimagehash.ImageHash
	PerceptualErr error
}

var errNoPerceptual = errors.New("缓存记录中没有感知哈希")

// Engine 计算并缓存文件指纹
type Engine struct {
	fs        afero.Fs
	threshold int
	workers   int
	cache     Cache
}

// NewEngine 创建指纹引擎；c 为 nil 时不使用缓存，workers 小于 1 时按 1 处理
func NewEngine(fs afero.Fs, threshold, workers int, c Cache) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{fs: fs, threshold: threshold, workers: workers, cache: c}
}

func (e *Engine) Threshold() int {
	return e.threshold
}

// Similar 使用引擎阈值判断视觉相似
func (e *Engine) Similar(a, b *goimagehash.ImageHash) bool {
	return Similar(a, b, e.threshold)
}

// cacheKey 缓存以绝对路径为键，相对路径按当前工作目录展开
func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Compute 计算单个文件的内容哈希与感知哈希
func (e *Engine) Compute(path string) Result {
	key := cacheKey(path)
	info, statErr := e.fs.Stat(path)
	if statErr == nil && e.cache != nil {
		if entry, ok := e.cache.Lookup(key, info.Size(), info.ModTime().UnixNano()); ok {
			if r, err := fromEntry(path, entry); err == nil {
				return r
			}
		}
	}

	r := Result{Path: path}
	r.Content, r.ContentErr = ContentHash(e.fs, path)
	r.Perceptual, r.PerceptualErr = PerceptualHash(e.fs, path)

	if statErr == nil && e.cache != nil && r.ContentErr == nil {
		entry := cache.Entry{
			Path:        key,
			Size:        info.Size(),
			ModTime:     info.ModTime().UnixNano(),
			ContentHash: r.Content.String(),
		}
		if r.Perceptual != nil {
			entry.Perceptual = int64(r.Perceptual.GetHash())
			entry.HasPerceptual = true
		}
		if err := e.cache.Save(entry); err != nil {
			logger.Get().Warn().Err(err).Msgf("保存指纹缓存失败: %s", path)
		}
	}
	return r
}

func fromEntry(path string, entry cache.Entry) (Result, error) {
	content, err := ParseHash256(entry.ContentHash)
	if err != nil {
		return Result{}, err
	}
	r := Result{Path: path, Content: content}
	if entry.HasPerceptual {
		r.Perceptual = goimagehash.NewImageHash(entry.PerceptualBits(), goimagehash.DHash)
	} else {
		r.PerceptualErr = fmt.Errorf("%w: %w", internal.ErrHashComputation, errNoPerceptual)
	}
	return r, nil
}

// ComputeAll 用协程池并发计算一批文件的指纹，结果交回调用方
func (e *Engine) ComputeAll(paths []string) map[string]Result {
	results := make(map[string]Result, len(paths))
	if len(paths) == 0 {
		return results
	}

	if e.workers == 1 || len(paths) == 1 {
		for _, p := range paths {
			results[p] = e.Compute(p)
		}
		return results
	}

	pool, err := ants.NewPool(e.workers)
	if err != nil {
		logger.Get().Error().Err(err).Msg("创建 goroutine 池失败，改为顺序计算")
		for _, p := range paths {
			results[p] = e.Compute(p)
		}
		return results
	}
	defer pool.Release()

	logger.Get().Debug().Msgf("并发计算指纹: %d 个文件, %d 个工作线程", len(paths), e.workers)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range paths {
		path := p
		wg.Add(1)
		task := func() {
			defer wg.Done()
			r := e.Compute(path)
			mu.Lock()
			results[path] = r
			mu.Unlock()
		}
		if err := pool.Submit(task); err != nil {
			logger.Get().Warn().Err(err).Msg("提交任务失败，直接计算")
			task()
		}
	}
	wg.Wait()

	return results
}
