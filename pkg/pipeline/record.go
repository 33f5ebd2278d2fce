package pipeline

import (
	"github.com/corona10/goimagehash"

	"github.com/banyuechenjiang/cardsort/pkg/canonical"
	"github.com/banyuechenjiang/cardsort/pkg/classifier"
	"github.com/banyuechenjiang/cardsort/pkg/fingerprint"
)

// FileRecord 一个文件在整次运行中的记录。
// 除当前路径外的字段创建后不再修改；当前路径只能通过 relocate 改变。
type FileRecord struct {
	OriginalPath   string
	Category       classifier.Category
	Identity       classifier.Identity
	TotalSizeKB    uint64
	MetadataSizeKB uint64
	// Err 分类时的降级原因
	Err error

	currentPath string

	fingerprinted bool
	content       fingerprint.Hash256
	contentErr    error
	perceptual    *goimagehash.ImageHash
	perceptualErr error

	normalized bool
	canonical  *canonical.Form
}

func newRecord(path string, size int64, res classifier.Result) *FileRecord {
	return &FileRecord{
		OriginalPath:   path,
		Category:       res.Category,
		Identity:       res.Identity,
		TotalSizeKB:    kb(uint64(size)),
		MetadataSizeKB: res.MetadataSizeKB,
		Err:            res.Err,
		currentPath:    path,
	}
}

func kb(n uint64) uint64 {
	return (n + 1023) / 1024
}

// CurrentPath 最近一次成功移动后的路径
func (r *FileRecord) CurrentPath() string {
	return r.currentPath
}

func (r *FileRecord) relocate(path string) {
	r.currentPath = path
}

// ContentHash 内容哈希；未计算或计算失败时 ok 为 false
func (r *FileRecord) ContentHash() (fingerprint.Hash256, bool) {
	return r.content, r.fingerprinted && r.contentErr == nil
}

// PerceptualHash 感知哈希，缺失时为 nil
func (r *FileRecord) PerceptualHash() *goimagehash.ImageHash {
	return r.perceptual
}

// Canonical 规范形式，载荷无法解码时为 nil
func (r *FileRecord) Canonical() *canonical.Form {
	return r.canonical
}

// setFingerprint 只在首次调用时生效
func (r *FileRecord) setFingerprint(res fingerprint.Result) bool {
	if r.fingerprinted {
		return false
	}
	r.fingerprinted = true
	r.content, r.contentErr = res.Content, res.ContentErr
	r.perceptual, r.perceptualErr = res.Perceptual, res.PerceptualErr
	return true
}

func (r *FileRecord) setCanonical(f *canonical.Form) {
	if r.normalized {
		return
	}
	r.normalized = true
	r.canonical = f
}
