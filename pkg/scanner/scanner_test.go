package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/banyuechenjiang/cardsort/internal"
	"github.com/banyuechenjiang/cardsort/internal/pngtest"
)

func TestFileWalker_Walk(t *testing.T) {
	fs := afero.NewMemMapFs()

	testFiles := []string{
		"/root/file1.txt",
		"/root/file2.png",
		"/root/.hidden_file",
		"/root/subdir/file3.png",
		"/root/.hidden_dir/file4.png",
	}
	for _, file := range testFiles {
		if err := afero.WriteFile(fs, file, []byte("test content"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	walker := NewFileWalker(fs, nil)
	visited := map[string]bool{}
	err := walker.Walk("/root", func(path string, info os.FileInfo) error {
		visited[path] = true
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	if len(visited) != len(testFiles) {
		t.Errorf("Expected %d files, got %d", len(testFiles), len(visited))
	}
	for _, f := range testFiles {
		if !visited[f] {
			t.Errorf("File %s not found in visited files", f)
		}
	}

	walker.IncludeHidden = false
	count := 0
	_ = walker.Walk("/root", func(path string, info os.FileInfo) error {
		count++
		return nil
	})
	if count != 3 {
		t.Errorf("排除隐藏文件后应有 3 个文件, got %d", count)
	}
}

func TestFileWalker_Collect(t *testing.T) {
	fs := afero.NewMemMapFs()
	png := pngtest.Plain(1)

	files := map[string][]byte{
		"/cards/b.png":      png,
		"/cards/a.PNG":      png,
		"/cards/sub/c.png":  png,
		"/cards/notes.txt":  []byte("hello"),
		"/cards/fake.png":   []byte("not an image"),
		"/cards/photo.jpeg": {0xFF, 0xD8, 0xFF, 0xE0},
	}
	for p, data := range files {
		if err := afero.WriteFile(fs, p, data, 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	got, err := NewFileWalker(fs, []string{"png"}).Collect("/cards")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	want := []string{"/cards/a.PNG", "/cards/b.png", "/cards/fake.png", "/cards/sub/c.png"}
	if len(got) != len(want) {
		t.Fatalf("Collect() returned %d files, want %d: %v", len(got), len(want), got)
	}
	for i, c := range got {
		if c.Path != filepath.FromSlash(want[i]) {
			t.Errorf("[%d] = %s, want %s", i, c.Path, want[i])
		}
	}

	for _, c := range got {
		isFake := c.Path == "/cards/fake.png"
		if c.LooksLikePNG() == isFake {
			t.Errorf("%s: LooksLikePNG() = %v", c.Path, c.LooksLikePNG())
		}
	}
}

func TestFileWalker_Collect_MissingRoot(t *testing.T) {
	_, err := NewFileWalker(afero.NewMemMapFs(), []string{".png"}).Collect("/non/existent")
	if !errors.Is(err, internal.ErrFilesystem) {
		t.Errorf("Collect() error = %v, want ErrFilesystem", err)
	}
}
