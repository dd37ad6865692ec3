package vcs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Fingerprint computes a repository fingerprint for root: the current
// commit hash, suffixed with a hash of the working-tree changes when the
// tree is dirty. Outside a git repository it falls back to a content hash
// over the configuration files, so a fingerprint is always available.
// Concurrent identical requests are coalesced.
func (s *Scanner) Fingerprint(ctx context.Context, root string) (string, error) {
	v, err, _ := s.group.Do("fingerprint:"+root, func() (interface{}, error) {
		return fingerprint(ctx, root)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func fingerprint(ctx context.Context, root string) (string, error) {
	commit, err := gitOutput(ctx, root, "rev-parse", "HEAD")
	if err != nil {
		return contentFingerprint(ctx, root)
	}

	porcelain, err := gitOutput(ctx, root, "status", "--porcelain")
	if err != nil {
		return "", fmt.Errorf("failed to determine working tree state: %w", err)
	}
	if porcelain == "" {
		return commit, nil
	}

	sum := sha256.Sum256([]byte(porcelain))
	return commit + "-dirty-" + hex.EncodeToString(sum[:])[:10], nil
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(out)), nil
}

// contentFingerprint hashes the configuration files themselves. It wraps
// scanConfigFiles directly rather than the coalesced ConfigFiles to avoid
// nesting singleflight calls.
func contentFingerprint(ctx context.Context, root string) (string, error) {
	files, err := scanConfigFiles(ctx, root)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, rel := range files {
		io.WriteString(h, filepath.ToSlash(rel))
		io.WriteString(h, "\n")
		f, err := os.Open(filepath.Join(root, rel))
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return "content-" + hex.EncodeToString(h.Sum(nil))[:10], nil
}

// IsRepository reports whether root is inside a git work tree.
func IsRepository(ctx context.Context, root string) bool {
	out, err := gitOutput(ctx, root, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}
