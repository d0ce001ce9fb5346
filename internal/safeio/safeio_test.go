package safeio

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func newFS(t *testing.T) *SafeFS {
	t.Helper()
	sfs, err := NewSafeFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	return sfs
}

func TestWriteReadRoundtrip(t *testing.T) {
	sfs := newFS(t)
	if err := sfs.SafeWriteFile("nested/dir/sim.m", []byte("x = 1;\n"), 0o644); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	data, err := sfs.SafeReadFile("nested/dir/sim.m")
	if err != nil {
		t.Fatalf("SafeReadFile: %v", err)
	}
	if string(data) != "x = 1;\n" {
		t.Fatalf("data = %q", data)
	}
	if _, err := sfs.SafeStat("nested/dir/sim.m"); err != nil {
		t.Fatalf("SafeStat: %v", err)
	}
}

func TestTraversalRejected(t *testing.T) {
	sfs := newFS(t)
	for _, p := range []string{"..", "../escape.m", "a/../../escape.m"} {
		if err := sfs.SafeWriteFile(p, []byte("x"), 0o644); err == nil {
			t.Fatalf("write %q escaped the root", p)
		}
		if _, err := sfs.SafeReadFile(p); err == nil {
			t.Fatalf("read %q escaped the root", p)
		}
	}
}

func TestAbsolutePaths(t *testing.T) {
	sfs := newFS(t)

	inside := filepath.Join(sfs.Root(), "inside.m")
	if err := sfs.SafeWriteFile(inside, []byte("x"), 0o644); err != nil {
		t.Fatalf("absolute path under root rejected: %v", err)
	}

	outside := filepath.Join(os.TempDir(), "simagent-escape.m")
	if err := sfs.SafeWriteFile(outside, []byte("x"), 0o644); err == nil {
		os.Remove(outside)
		t.Fatal("absolute path outside root accepted")
	}
}

func TestOpenImplementsFSInterface(t *testing.T) {
	sfs := newFS(t)
	if err := sfs.SafeWriteFile("rules.txt", []byte("first\n"), 0o644); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}

	var fsys fs.FS = sfs
	data, err := fs.ReadFile(fsys, "rules.txt")
	if err != nil {
		t.Fatalf("fs.ReadFile: %v", err)
	}
	if string(data) != "first\n" {
		t.Fatalf("data = %q", data)
	}

	if _, err := fsys.Open("../rules.txt"); err == nil {
		t.Fatal("invalid fs path accepted")
	}
}

func TestEmptyRootRejected(t *testing.T) {
	if _, err := NewSafeFS(""); err == nil {
		t.Fatal("empty root accepted")
	}
}

func TestRootCreatedWhenMissing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work", "out")
	sfs, err := NewSafeFS(root)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	if _, err := os.Stat(sfs.Root()); err != nil {
		t.Fatalf("root not created: %v", err)
	}
}
