package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chattriggers/ctjs/pkg/utils"
)

func TestListSubdirectories(t *testing.T) {
	root := t.TempDir()
	os.Mkdir(filepath.Join(root, "b"), 0755)
	os.Mkdir(filepath.Join(root, "a"), 0755)
	os.WriteFile(filepath.Join(root, "file.js"), []byte("x"), 0644)

	dirs, err := utils.ListSubdirectories(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(dirs) != 2 {
		t.Fatalf("expected 2 directories, got %d: %v", len(dirs), dirs)
	}
	if filepath.Base(dirs[0]) != "a" || filepath.Base(dirs[1]) != "b" {
		t.Errorf("expected lexical order [a b], got %v", dirs)
	}
}

func TestListSubdirectories_Missing(t *testing.T) {
	if _, err := utils.ListSubdirectories(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestCopyFileToDirectory(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := filepath.Join(t.TempDir(), "nested", "dest")

	src := filepath.Join(srcDir, "image.png")
	os.WriteFile(src, []byte("first"), 0644)

	dst, err := utils.CopyFileToDirectory(src, dstDir)
	if err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if dst != filepath.Join(dstDir, "image.png") {
		t.Errorf("unexpected destination %s", dst)
	}

	os.WriteFile(src, []byte("second"), 0644)
	if _, err := utils.CopyFileToDirectory(src, dstDir); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	data, _ := os.ReadFile(dst)
	if string(data) != "second" {
		t.Errorf("expected overwritten content, got %q", data)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "state.json")

	if err := utils.WriteFileAtomic(path, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !utils.IsRegularFile(path) {
		t.Fatal("expected file to exist")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected temp file to be cleaned up, found %d entries", len(entries))
	}
}

func TestExistenceChecks(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.js")
	os.WriteFile(file, []byte("x"), 0644)

	if !utils.FileExists(file) || utils.FileExists(dir) {
		t.Error("FileExists mismatch")
	}
	if !utils.DirectoryExists(dir) || utils.DirectoryExists(file) {
		t.Error("DirectoryExists mismatch")
	}
	if utils.IsRegularFile(filepath.Join(dir, "missing.js")) {
		t.Error("expected missing file not to be regular")
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
		if got := utils.FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
