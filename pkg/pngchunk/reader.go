// Package pngchunk 按文件顺序惰性读取 PNG 的文本元数据区块（tEXt / zTXt / iTXt），
// 不解码像素数据。
package pngchunk

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal"
)

// Signature PNG 文件头
var Signature = []byte("\x89PNG\r\n\x1a\n")

const (
	// 单个区块允许的最大长度（PNG 规范 2^31-1）
	maxChunkLength = 1<<31 - 1
	crcSize        = 4
	headerSize     = 8
)

// TextChunk 一个文本区块
type TextChunk struct {
	Type    string // tEXt / zTXt / iTXt
	Keyword string
	Value   []byte
	// PayloadLen 区块数据在文件中的字节数（压缩前后不影响它）
	PayloadLen int
}

// Reader 以 Next/Chunk/Err 的方式迭代文本区块
type Reader struct {
	br        *bufio.Reader
	closer    io.Closer
	remaining int64 // 未读字节数，-1 表示未知
	started   bool
	done      bool
	chunk     TextChunk
	err       error
}

// NewReader 包装一个读取器；size 为整个文件的字节数，未知时传 -1
func NewReader(r io.Reader, size int64) *Reader {
	return &Reader{
		br:        bufio.NewReader(r),
		remaining: size,
	}
}

// Open 在给定文件系统上打开 PNG 文件
func Open(fs afero.Fs, path string) (*Reader, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取文件信息: %w", internal.ErrFilesystem, err)
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: 打开文件: %w", internal.ErrFilesystem, err)
	}
	r := NewReader(f, info.Size())
	r.closer = f
	return r, nil
}

// ReadAll 读取文件中全部文本区块
func ReadAll(fs afero.Fs, path string) ([]TextChunk, error) {
	r, err := Open(fs, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var chunks []TextChunk
	for r.Next() {
		chunks = append(chunks, r.Chunk())
	}
	return chunks, r.Err()
}

// Next 前进到下一个文本区块，没有更多区块或出错时返回 false
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}

	if !r.started {
		r.started = true
		sig := make([]byte, len(Signature))
		if _, err := io.ReadFull(r.br, sig); err != nil || !bytes.Equal(sig, Signature) {
			r.fail("PNG 签名不匹配")
			return false
		}
		r.consume(int64(len(Signature)))
	}

	for {
		var head [headerSize]byte
		n, err := io.ReadFull(r.br, head[:])
		if err != nil {
			if n == 0 && errors.Is(err, io.EOF) {
				// 在区块边界上结束，视为正常结束
				r.done = true
				return false
			}
			r.fail("区块头被截断")
			return false
		}
		r.consume(headerSize)

		length := int64(binary.BigEndian.Uint32(head[:4]))
		typ := string(head[4:])

		if length > maxChunkLength {
			r.fail("区块 %s 长度 %d 超出规范上限", typ, length)
			return false
		}
		if r.remaining >= 0 && length+crcSize > r.remaining {
			r.fail("区块 %s 声明长度 %d 超出剩余的 %d 字节", typ, length, r.remaining)
			return false
		}

		if isText(typ) {
			data := make([]byte, length)
			if _, err := io.ReadFull(r.br, data); err != nil {
				r.fail("区块 %s 数据被截断", typ)
				return false
			}
			if _, err := io.CopyN(io.Discard, r.br, crcSize); err != nil {
				r.fail("区块 %s 缺少 CRC", typ)
				return false
			}
			r.consume(length + crcSize)

			chunk, ok := parseText(typ, data)
			if !ok {
				// 没有关键字分隔符的文本区块直接忽略
				continue
			}
			r.chunk = chunk
			return true
		}

		if _, err := io.CopyN(io.Discard, r.br, length+crcSize); err != nil {
			r.fail("区块 %s 数据被截断", typ)
			return false
		}
		r.consume(length + crcSize)

		if typ == "IEND" {
			r.done = true
			return false
		}
	}
}

// Chunk 返回当前区块
func (r *Reader) Chunk() TextChunk {
	return r.chunk
}

// Err 返回迭代过程中遇到的错误，正常结束时为 nil
func (r *Reader) Err() error {
	return r.err
}

// Close 关闭底层文件
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Reader) fail(format string, args ...any) {
	r.err = fmt.Errorf("%w: %s", internal.ErrContainerFormat, fmt.Sprintf(format, args...))
}

func (r *Reader) consume(n int64) {
	if r.remaining >= 0 {
		r.remaining -= n
	}
}

func isText(typ string) bool {
	return typ == "tEXt" || typ == "zTXt" || typ == "iTXt"
}

// parseText 拆分关键字与值；zTXt 与压缩的 iTXt 会尝试解压，失败时保留原始字节
func parseText(typ string, data []byte) (TextChunk, bool) {
	idx := bytes.IndexByte(data, 0)
	if idx <= 0 {
		return TextChunk{}, false
	}

	chunk := TextChunk{
		Type:       typ,
		Keyword:    string(data[:idx]),
		PayloadLen: len(data),
	}
	rest := data[idx+1:]

	switch typ {
	case "zTXt":
		// 1 字节压缩方法
		if len(rest) > 0 {
			rest = rest[1:]
		}
		chunk.Value = inflateOrRaw(rest)
	case "iTXt":
		if len(rest) < 2 {
			chunk.Value = rest
			break
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		// 跳过语言标签与翻译后的关键字
		for i := 0; i < 2; i++ {
			j := bytes.IndexByte(rest, 0)
			if j < 0 {
				rest = nil
				break
			}
			rest = rest[j+1:]
		}
		if compressed {
			chunk.Value = inflateOrRaw(rest)
		} else {
			chunk.Value = rest
		}
	default:
		chunk.Value = rest
	}
	return chunk, true
}

func inflateOrRaw(p []byte) []byte {
	return inflateOrRawLimit(p, internal.MaxInflatedSize)
}

func inflateOrRawLimit(p []byte, limit int64) []byte {
	out, err := inflate(p, limit)
	if err != nil {
		return p
	}
	return out
}

// ErrInflatedTooLarge 解压结果超过 internal.MaxInflatedSize
var ErrInflatedTooLarge = errors.New("解压后的数据过大")

// Inflate 解压 zlib 数据，输出超过上限时返回 ErrInflatedTooLarge
func Inflate(p []byte) ([]byte, error) {
	return inflate(p, internal.MaxInflatedSize)
}

func inflate(p []byte, limit int64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, ErrInflatedTooLarge
	}
	return out, nil
}
