// Package workdir locates the directory holding a project's .bam state.
package workdir

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	stateDir = ".bam"
	rootFile = ".bam-root"
)

// ResolveBaseDir returns the directory whose .bam/ should be used when
// running from start. It walks up from start to the nearest directory that
// has a .bam/ directory or a .bam-root file. A .bam-root file holds the path
// of another base directory, so several checkouts can share one history.
// When nothing is found start is returned unchanged.
func ResolveBaseDir(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for {
		if target, ok := readRootFile(dir); ok {
			return target
		}
		if fi, err := os.Stat(filepath.Join(dir, stateDir)); err == nil && fi.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// readRootFile reads a .bam-root redirect in dir. Relative targets are
// resolved against dir.
func readRootFile(dir string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(dir, rootFile))
	if err != nil {
		return "", false
	}
	target := strings.TrimSpace(string(content))
	if target == "" {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return filepath.Clean(target), true
}
