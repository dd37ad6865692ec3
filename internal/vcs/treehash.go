package vcs

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"garden/internal/config"
	"garden/internal/graph"

	"gopkg.in/yaml.v3"
)

// HashTree computes a sha256 over a directory: sorted relative paths
// followed by file contents. Version-control and cache directories are
// skipped, as are symlinks and other irregular files. The result is the
// tree component of a module version.
func HashTree(dir string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		io.WriteString(h, filepath.ToSlash(rel))
		io.WriteString(h, "\n")

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return err
		}
		io.WriteString(h, "\n")
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ModuleHasher returns the production graph.ModuleHasher: the config hash
// covers the module declaration, the tree hash its directory under root.
// Tree hashes are coalesced per directory since sibling services of one
// module trigger the same hash concurrently.
func (s *Scanner) ModuleHasher(root string) graph.ModuleHasher {
	return func(m *config.ModuleConfig) (string, string, error) {
		raw, err := yaml.Marshal(m)
		if err != nil {
			return "", "", err
		}
		sum := sha256.Sum256(raw)
		configHash := hex.EncodeToString(sum[:])

		dir := filepath.Join(root, m.Path)
		v, err, _ := s.group.Do("tree:"+dir, func() (interface{}, error) {
			return HashTree(dir)
		})
		if err != nil {
			return "", "", err
		}
		return configHash, v.(string), nil
	}
}
