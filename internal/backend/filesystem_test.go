package backend

import (
	"testing"

	"github.com/coldharbor/mockadbd/internal/adb"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		path, cwd, want string
	}{
		{"/a/b", "/", "/a/b"},
		{"b", "/a", "/a/b"},
		{"../b", "/a/c", "/a/b"},
		{".", "/a", "/a"},
		{"", "/a", "/a"},
		{"//a//b/", "/", "/a/b"},
	}
	for _, tt := range tests {
		if got := normalize(tt.path, tt.cwd); got != tt.want {
			t.Errorf("normalize(%q, %q) = %q, want %q", tt.path, tt.cwd, got, tt.want)
		}
	}
}

func TestFilesystemWriteThenStat(t *testing.T) {
	fs := newFilesystem()
	if err := fs.WriteFile("/tmp/a.txt", []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	st, err := fs.Stat("/tmp/a.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Type != adb.NodeFile || st.Size != 5 {
		t.Errorf("got %+v, want a 5-byte file", st)
	}

	data, err := fs.ReadFile("/tmp/a.txt")
	if err != nil || string(data) != "hello" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
}

func TestFilesystemStatMissingPathNeverErrors(t *testing.T) {
	fs := newFilesystem()
	st, err := fs.Stat("/does/not/exist")
	if err != nil {
		t.Fatalf("Stat on missing path returned error: %v", err)
	}
	if st.Type != adb.NodeNotFound {
		t.Errorf("got %+v, want NodeNotFound", st)
	}
}

func TestFilesystemSymlinkResolution(t *testing.T) {
	fs := newFilesystem()
	fs.WriteFile("/real.txt", []byte("data"), 0o644)
	fs.Seed("/link.txt", adb.NodeSymlink, nil, "/real.txt", 0o777)

	st, err := fs.Stat("/link.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.Type != adb.NodeFile || st.Size != 4 {
		t.Errorf("expected symlink to resolve to the 4-byte target, got %+v", st)
	}
}

func TestFilesystemListEnsuresParentDirs(t *testing.T) {
	fs := newFilesystem()
	fs.WriteFile("/a/b/c.txt", []byte("x"), 0o644)

	entries, err := fs.List("/a/b")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "c.txt" {
		t.Errorf("got %+v, want a single c.txt entry", entries)
	}
}

func TestFilesystemRemoveRecursive(t *testing.T) {
	fs := newFilesystem()
	fs.WriteFile("/a/b/c.txt", []byte("x"), 0o644)

	if err := fs.Remove("/a", true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := fs.ReadFile("/a/b/c.txt"); err == nil {
		t.Error("expected file under removed directory to be gone")
	}
}
