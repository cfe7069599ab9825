package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	fsys := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "out", "nested")

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	path := filepath.Join(dir, "events.json")
	if err := fsys.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if !fsys.Exists(path) {
		t.Error("expected written file to exist")
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("expected %q, got %q", "[]", data)
	}
	if fsys.Exists(filepath.Join(dir, "missing.json")) {
		t.Error("expected missing file to not exist")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/data/run/a.json", []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := mfs.ReadFile("/data/run/../run/a.json")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected %q, got %q", "hello", data)
	}

	// Returned data is a copy.
	data[0] = 'j'
	again, _ := mfs.ReadFile("/data/run/a.json")
	if string(again) != "hello" {
		t.Errorf("stored data was modified: %q", again)
	}

	if !mfs.Exists("/data/run") || !mfs.Exists("/data") {
		t.Error("expected parent directories to exist")
	}
	info, err := mfs.Stat("/data")
	if err != nil || !info.IsDir() {
		t.Errorf("expected /data to be a directory, got %v, %v", info, err)
	}
}

func TestMemoryFileSystem_Errors(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.ReadFile("missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.Stat("missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if err := mfs.MkdirAll("dir", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := mfs.WriteFile("dir", nil, 0o644); !errors.Is(err, fs.ErrExist) {
		t.Errorf("expected ErrExist writing over a directory, got %v", err)
	}
	if err := mfs.WriteFile("file", nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mfs.MkdirAll("file", 0o755); !errors.Is(err, fs.ErrExist) {
		t.Errorf("expected ErrExist creating a directory over a file, got %v", err)
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	for _, name := range []string{"out/b.go", "out/a.go", "other/c.go"} {
		if err := mfs.WriteFile(name, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got := strings.Join(mfs.Files("out"), ",")
	if got != "out/a.go,out/b.go" {
		t.Errorf("unexpected files %q", got)
	}
	if n := len(mfs.Files(".")); n != 3 {
		t.Errorf("expected 3 files, got %d", n)
	}
}

func TestReadBounded(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("ok.json", []byte("{}"), 0o644)
	_ = mfs.WriteFile("big.json", []byte(strings.Repeat("x", 11)), 0o644)
	_ = mfs.WriteFile("wrong.yaml", []byte("{}"), 0o644)
	_ = mfs.MkdirAll("dir.json", 0o755)

	data, err := ReadBounded(mfs, "ok.json", ".json", "config", 10)
	if err != nil || string(data) != "{}" {
		t.Fatalf("ReadBounded(ok.json) = %q, %v", data, err)
	}

	tests := []struct {
		path string
		want string
	}{
		{"big.json", "too large"},
		{"wrong.yaml", "must have .json extension"},
		{"missing.json", "failed to stat"},
		{"dir.json", "is a directory"},
	}
	for _, tt := range tests {
		_, err := ReadBounded(mfs, tt.path, ".json", "config", 10)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("ReadBounded(%s) error = %v, want %q", tt.path, err, tt.want)
		}
	}
}
