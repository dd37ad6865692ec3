package vcs

import (
	"bytes"
	"context"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"garden/pkg/logging"

	"golang.org/x/sync/singleflight"
)

// skippedDirs are never descended into when scanning or hashing.
var skippedDirs = map[string]bool{
	".git":         true,
	".garden":      true,
	"node_modules": true,
}

// Scanner enumerates configuration files and computes repository
// fingerprints. Concurrent identical requests are coalesced, so many work
// items asking for the same scan share one pass over the repository.
//
// Safe for concurrent use.
type Scanner struct {
	group singleflight.Group
}

// NewScanner returns a Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// ConfigFiles returns the paths of all garden.yml files under root,
// relative to root, sorted. Inside a git repository it asks git for the
// file list so ignored files are excluded; otherwise it falls back to a
// filesystem walk.
func (s *Scanner) ConfigFiles(ctx context.Context, root string) ([]string, error) {
	v, err, shared := s.group.Do("scan:"+root, func() (interface{}, error) {
		return scanConfigFiles(ctx, root)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.Debug("VCS", "Coalesced concurrent config scan for %s", root)
	}
	return v.([]string), nil
}

func scanConfigFiles(ctx context.Context, root string) ([]string, error) {
	files, err := gitListConfigFiles(ctx, root)
	if err != nil {
		logging.Debug("VCS", "Not a git repository (or git unavailable), walking %s instead: %v", root, err)
		files, err = walkConfigFiles(root)
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	logging.Debug("VCS", "Found %d config files under %s", len(files), root)
	return files, nil
}

func gitListConfigFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(string(bytes.TrimSpace(out)), "\n") {
		if line == "" {
			continue
		}
		if filepath.Base(line) == ConfigFileName {
			files = append(files, filepath.FromSlash(line))
		}
	}
	return files, nil
}

func walkConfigFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == ConfigFileName {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
