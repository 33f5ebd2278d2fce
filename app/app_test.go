package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal/pngtest"
	"github.com/banyuechenjiang/cardsort/pkg/classifier"
	"github.com/banyuechenjiang/cardsort/pkg/pipeline"
)

func TestRunSort(t *testing.T) {
	dir := t.TempDir()
	card := pngtest.Encode(pngtest.FromBits(0xF0F0F0F00F0F0F0F), pngtest.Text{
		Keyword: "chara",
		Value:   pngtest.Card(map[string]any{"name": "Aria", "first_mes": "Hi"}),
	})
	files := map[string][]byte{
		"a.png":  card,
		"b.png":  card,
		"风景.png": pngtest.Plain(1),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	opts := &SortOptions{
		Root:      dir,
		AssumeYes: true,
		Threshold: 10,
		Workers:   2,
		CachePath: filepath.Join(t.TempDir(), "fp.db"),
		LogLevel:  "error",
	}

	report, err := RunSort(opts)
	if err != nil {
		t.Fatalf("RunSort() error = %v", err)
	}

	if report.Categories[classifier.IdentityCard] != 2 || report.Categories[classifier.PlainImage] != 1 {
		t.Errorf("Categories = %v", report.Categories)
	}
	if len(report.ExactGroups) != 1 {
		t.Errorf("ExactGroups = %v, want 1 group", report.ExactGroups)
	}
	if report.Deferred != 0 {
		t.Errorf("--yes 时不应保留原名, Deferred = %d", report.Deferred)
	}

	if _, err := os.Stat(filepath.Join(dir, "a.png")); !os.IsNotExist(err) {
		t.Error("a.png 应已被重命名")
	}

	// 第二次运行命中缓存且不再改名
	report, err = RunSort(opts)
	if err != nil {
		t.Fatalf("second RunSort() error = %v", err)
	}
	if report.Unchanged != 3 {
		t.Errorf("Unchanged = %d, want 3", report.Unchanged)
	}
}

func TestRunSort_Declined(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/img/照片.png", pngtest.Plain(2), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	report, err := RunSort(&SortOptions{
		Root:      "/img",
		Threshold: 10,
		Workers:   1,
		LogLevel:  "error",
		Confirm:   pipeline.Decline,
		Fs:        fs,
	})
	if err != nil {
		t.Fatalf("RunSort() error = %v", err)
	}
	if report.Deferred != 1 {
		t.Errorf("Deferred = %d, want 1", report.Deferred)
	}
	if exists, _ := afero.Exists(fs, "/img/照片.png"); !exists {
		t.Error("拒绝后文件应保留原名")
	}
}

func TestRunSort_MissingRoot(t *testing.T) {
	_, err := RunSort(&SortOptions{
		Root:     "/missing",
		LogLevel: "error",
		Fs:       afero.NewMemMapFs(),
	})
	if err == nil {
		t.Error("Expected error for missing root")
	}
}

func TestRunInspect(t *testing.T) {
	fs := afero.NewMemMapFs()
	card := pngtest.Encode(pngtest.FromBits(1), pngtest.Text{
		Keyword: "chara",
		Value:   pngtest.Card(map[string]any{"data": map[string]any{"name": "Aria", "first_mes": "Hi"}}),
	})
	if err := afero.WriteFile(fs, "/c/card.png", card, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	var out bytes.Buffer
	err := RunInspect(&InspectOptions{Files: []string{"/c/card.png"}, LogLevel: "error", Fs: fs}, &out)
	if err != nil {
		t.Fatalf("RunInspect() error = %v", err)
	}

	for _, want := range []string{"[tEXt] chara", "分类: 角色卡", "角色: Aria", "规范形式: aria | Hi", "感知哈希: 0000000000000001"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("输出缺少 %q:\n%s", want, out.String())
		}
	}
}

func TestRunInspect_Missing(t *testing.T) {
	var out bytes.Buffer
	err := RunInspect(&InspectOptions{Files: []string{"/nope.png"}, LogLevel: "error", Fs: afero.NewMemMapFs()}, &out)
	if err == nil {
		t.Error("Expected error for missing file")
	}
	if !strings.Contains(out.String(), "错误") {
		t.Errorf("输出应包含错误信息: %s", out.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
