// Package pngtest 构造测试用的 PNG 文件：可写入任意文本区块，并能按指定的
// 64 位差值哈希生成 9x8 灰度图。
package pngtest

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"

	"github.com/klauspost/compress/zlib"
)

// Text 一个待写入的文本区块
type Text struct {
	Keyword string
	Value   string
	// Type 为空时写 tEXt，可选 "zTXt"、"iTXt"
	Type string
	// Compressed 仅对 iTXt 有效
	Compressed bool
}

// Encode 把 img 编码成 PNG，并把 texts 依次插入到 IHDR 之后
func Encode(img image.Image, texts ...Text) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	raw := buf.Bytes()

	// 8 字节签名 + IHDR（4 长度 + 4 类型 + 13 数据 + 4 CRC）
	const ihdrEnd = 8 + 25
	var out bytes.Buffer
	out.Write(raw[:ihdrEnd])
	for _, t := range texts {
		writeChunk(&out, chunkType(t), chunkData(t))
	}
	out.Write(raw[ihdrEnd:])
	return out.Bytes()
}

// Plain 一张不带任何文本区块的小图
func Plain(seed uint8) []byte {
	return Encode(Solid(16, 16, seed))
}

// Solid 纯色灰度图
func Solid(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// FromBits 生成一张 9x8 灰度图，其差值哈希（左 > 右 记 1，行优先，高位在前）恰好等于 bits
func FromBits(bits uint64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 9, 8))
	for y := 0; y < 8; y++ {
		v := 128
		img.SetGray(0, y, color.Gray{Y: uint8(v)})
		for x := 0; x < 8; x++ {
			idx := y*8 + x
			if (bits>>(63-idx))&1 == 1 {
				v -= 12
			} else {
				v += 12
			}
			img.SetGray(x+1, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

// FlipBits 把 bits 的前 n 位取反，用来构造指定汉明距离的哈希
func FlipBits(bits uint64, n int) uint64 {
	for i := 0; i < n; i++ {
		bits ^= 1 << (63 - i)
	}
	return bits
}

// Card 把角色卡字段编码成 chara 区块使用的 base64 JSON
func Card(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(data)
}

// CompressedCard 先 base64 再 zlib 压缩，模拟少数工具的写法
func CompressedCard(fields map[string]any) string {
	return string(deflate([]byte(Card(fields))))
}

func chunkType(t Text) string {
	if t.Type == "" {
		return "tEXt"
	}
	return t.Type
}

func chunkData(t Text) []byte {
	var b bytes.Buffer
	b.WriteString(t.Keyword)
	b.WriteByte(0)
	switch chunkType(t) {
	case "zTXt":
		b.WriteByte(0)
		b.Write(deflate([]byte(t.Value)))
	case "iTXt":
		if t.Compressed {
			b.Write([]byte{1, 0})
		} else {
			b.Write([]byte{0, 0})
		}
		b.WriteByte(0) // 语言标签
		b.WriteByte(0) // 翻译后的关键字
		if t.Compressed {
			b.Write(deflate([]byte(t.Value)))
		} else {
			b.WriteString(t.Value)
		}
	default:
		b.WriteString(t.Value)
	}
	return b.Bytes()
}

func writeChunk(w *bytes.Buffer, typ string, data []byte) {
	var head [8]byte
	binary.BigEndian.PutUint32(head[:4], uint32(len(data)))
	copy(head[4:], typ)
	w.Write(head[:])
	w.Write(data)

	crc := crc32.NewIEEE()
	crc.Write(head[4:])
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	w.Write(sum[:])
}

func deflate(p []byte) []byte {
	var b bytes.Buffer
	zw := zlib.NewWriter(&b)
	if _, err := zw.Write(p); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return b.Bytes()
}
