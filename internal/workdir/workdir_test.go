package workdir

import (
	"os"
	"path/filepath"
	"testing"
)

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func assertSamePath(t *testing.T, want, got string) {
	t.Helper()
	wantEval, err := filepath.EvalSymlinks(want)
	if err != nil {
		t.Fatalf("eval %s: %v", want, err)
	}
	gotEval, err := filepath.EvalSymlinks(got)
	if err != nil {
		t.Fatalf("eval %s: %v", got, err)
	}
	if wantEval != gotEval {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestResolveBaseDirFindsStateFromSubdir(t *testing.T) {
	root := t.TempDir()
	mkdirAll(t, filepath.Join(root, stateDir))
	sub := filepath.Join(root, "wp-content", "plugins")
	mkdirAll(t, sub)

	assertSamePath(t, root, ResolveBaseDir(sub))
}

func TestResolveBaseDirFollowsRootFile(t *testing.T) {
	root := t.TempDir()
	shared := filepath.Join(t.TempDir(), "shared")
	mkdirAll(t, shared)
	if err := os.WriteFile(filepath.Join(root, rootFile), []byte(shared+"\n"), 0644); err != nil {
		t.Fatalf("write %s: %v", rootFile, err)
	}
	sub := filepath.Join(root, "theme")
	mkdirAll(t, sub)

	assertSamePath(t, shared, ResolveBaseDir(sub))
}

func TestResolveBaseDirRelativeRootFile(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "checkout")
	mkdirAll(t, root)
	mkdirAll(t, filepath.Join(parent, "main"))
	if err := os.WriteFile(filepath.Join(root, rootFile), []byte("../main"), 0644); err != nil {
		t.Fatalf("write %s: %v", rootFile, err)
	}

	assertSamePath(t, filepath.Join(parent, "main"), ResolveBaseDir(root))
}

func TestResolveBaseDirEmptyRootFileIgnored(t *testing.T) {
	root := t.TempDir()
	mkdirAll(t, filepath.Join(root, stateDir))
	if err := os.WriteFile(filepath.Join(root, rootFile), []byte("  \n"), 0644); err != nil {
		t.Fatalf("write %s: %v", rootFile, err)
	}

	assertSamePath(t, root, ResolveBaseDir(root))
}

func TestResolveBaseDirNothingFound(t *testing.T) {
	start := t.TempDir()
	if got := ResolveBaseDir(start); got != start {
		t.Errorf("got %s, want %s unchanged", got, start)
	}
}
