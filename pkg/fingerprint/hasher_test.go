package fingerprint

import (
	"errors"
	"testing"

	"github.com/corona10/goimagehash"
	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/internal/pngtest"
)

func writeFile(t *testing.T, fs afero.Fs, path string, data []byte) {
	t.Helper()
	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func TestContentHash(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/a.png", []byte("test content for hashing"))
	writeFile(t, fs, "/b.png", []byte("test content for hashing"))
	writeFile(t, fs, "/c.png", []byte("other content"))

	a, err := ContentHash(fs, "/a.png")
	if err != nil {
		t.Fatalf("ContentHash() error = %v", err)
	}
	b, _ := ContentHash(fs, "/b.png")
	c, _ := ContentHash(fs, "/c.png")

	if a != b {
		t.Error("相同内容的哈希应相同")
	}
	if a == c {
		t.Error("不同内容的哈希应不同")
	}

	parsed, err := ParseHash256(a.String())
	if err != nil || parsed != a {
		t.Errorf("ParseHash256(%s) = %v, %v", a, parsed, err)
	}
}

func TestContentHash_Missing(t *testing.T) {
	_, err := ContentHash(afero.NewMemMapFs(), "/missing.png")
	if !errors.Is(err, internal.ErrHashComputation) {
		t.Errorf("ContentHash() error = %v, want ErrHashComputation", err)
	}
}

func TestPerceptualHash_Bits(t *testing.T) {
	fs := afero.NewMemMapFs()
	const bits = uint64(0xA5F00F5AC33C9669)
	writeFile(t, fs, "/x.png", pngtest.Encode(pngtest.FromBits(bits)))

	h, err := PerceptualHash(fs, "/x.png")
	if err != nil {
		t.Fatalf("PerceptualHash() error = %v", err)
	}
	if h.GetHash() != bits {
		t.Errorf("PerceptualHash() = %016x, want %016x", h.GetHash(), bits)
	}
	if h.GetKind() != goimagehash.DHash {
		t.Errorf("kind = %v, want DHash", h.GetKind())
	}
}

func TestPerceptualHash_SolidImage(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/solid.png", pngtest.Encode(pngtest.Solid(64, 48, 200)))

	h, err := PerceptualHash(fs, "/solid.png")
	if err != nil {
		t.Fatalf("PerceptualHash() error = %v", err)
	}
	if h.GetHash() != 0 {
		t.Errorf("纯色图的差分哈希应为 0, got %016x", h.GetHash())
	}
}

func TestPerceptualHash_Undecodable(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/broken.png", []byte("\x89PNG\r\n\x1a\nnot really"))

	_, err := PerceptualHash(fs, "/broken.png")
	if !errors.Is(err, internal.ErrHashComputation) {
		t.Errorf("PerceptualHash() error = %v, want ErrHashComputation", err)
	}
}

func TestSimilar(t *testing.T) {
	const base = uint64(0x0123456789ABCDEF)
	h := func(bits uint64) *goimagehash.ImageHash {
		return goimagehash.NewImageHash(bits, goimagehash.DHash)
	}

	tests := []struct {
		name      string
		a, b      *goimagehash.ImageHash
		threshold int
		want      bool
	}{
		{"identical", h(base), h(base), 10, true},
		{"distance at threshold", h(base), h(pngtest.FlipBits(base, 10)), 10, true},
		{"distance above threshold", h(base), h(pngtest.FlipBits(base, 11)), 10, false},
		{"zero threshold", h(base), h(pngtest.FlipBits(base, 1)), 0, false},
		{"nil left", nil, h(base), 10, false},
		{"nil right", h(base), nil, 10, false},
		{"kind mismatch", h(base), goimagehash.NewImageHash(base, goimagehash.AHash), 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similar(tt.a, tt.b, tt.threshold); got != tt.want {
				t.Errorf("Similar() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimilar_Symmetric(t *testing.T) {
	a := goimagehash.NewImageHash(0xFFFF0000FFFF0000, goimagehash.DHash)
	b := goimagehash.NewImageHash(pngtest.FlipBits(0xFFFF0000FFFF0000, 7), goimagehash.DHash)
	if Similar(a, b, 10) != Similar(b, a, 10) {
		t.Error("Similar 应满足对称性")
	}
}
