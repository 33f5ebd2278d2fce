package internal

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 错误分类，每个文件级错误都会归入其中一类并计数
var (
	ErrContainerFormat = errors.New("容器格式错误")
	ErrDecode          = errors.New("载荷解码失败")
	ErrFilesystem      = errors.New("文件系统操作失败")
	ErrHashComputation = errors.New("哈希计算失败")
)

// ErrorKind 错误种类
type ErrorKind string

const (
	KindContainerFormat ErrorKind = "ContainerFormatError"
	KindDecode          ErrorKind = "DecodeError"
	KindFilesystem      ErrorKind = "FilesystemError"
	KindHashComputation ErrorKind = "HashComputationError"
	KindOther           ErrorKind = "OtherError"
)

// KindOf 根据错误链判断错误种类
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrContainerFormat):
		return KindContainerFormat
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrFilesystem):
		return KindFilesystem
	case errors.Is(err, ErrHashComputation):
		return KindHashComputation
	default:
		return KindOther
	}
}

// Wrap 生成归入指定分类的错误
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// ErrorCounts 各类错误的计数
type ErrorCounts map[ErrorKind]int

// Add 记录一次错误
func (c ErrorCounts) Add(err error) {
	if err == nil {
		return
	}
	c[KindOf(err)]++
}

// Total 错误总数
func (c ErrorCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func (c ErrorCounts) String() string {
	if len(c) == 0 {
		return "无"
	}
	kinds := make([]string, 0, len(c))
	for k := range c {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, c[ErrorKind(k)]))
	}
	return strings.Join(parts, ", ")
}
