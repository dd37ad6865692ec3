package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"sync"

	"garden/internal/config"
)

const (
	versionPrefix     = "v-"
	versionHashLength = 10
)

// ModuleVersion computes the version string of a module from its own
// content hashes and the (already computed) versions of its build
// dependencies. Dependency versions are sorted before hashing so the result
// does not depend on declaration order.
func ModuleVersion(configHash, treeHash string, depVersions []string) string {
	h := sha256.New()
	io.WriteString(h, configHash)
	io.WriteString(h, "\n")
	io.WriteString(h, treeHash)
	io.WriteString(h, "\n")
	sorted := slices.Clone(depVersions)
	slices.Sort(sorted)
	for _, v := range sorted {
		io.WriteString(h, v)
		io.WriteString(h, "\n")
	}
	return versionPrefix + hex.EncodeToString(h.Sum(nil))[:versionHashLength]
}

// ModuleHasher produces the two content hashes of a module: one over its
// declaration and one over its directory tree. The vcs package provides the
// production implementation.
type ModuleHasher func(m *config.ModuleConfig) (configHash, treeHash string, err error)

// VersionResolver computes module versions across the graph, memoized per
// resolver instance. Because a version folds in the versions of all build
// dependencies, it changes whenever anything in the module's transitive
// input changes, which makes it suitable as the version component of work
// item keys and as a content-addressed cache key across runs.
//
// Safe for concurrent use.
type VersionResolver struct {
	graph *ConfigGraph
	hash  ModuleHasher

	mu    sync.Mutex
	cache map[string]string
}

// NewVersionResolver returns a resolver over g using hash for per-module
// content hashes.
func NewVersionResolver(g *ConfigGraph, hash ModuleHasher) *VersionResolver {
	return &VersionResolver{
		graph: g,
		hash:  hash,
		cache: make(map[string]string),
	}
}

// Version returns the version of the named module, computing dependency
// versions first. The graph is acyclic, so the recursion terminates.
func (r *VersionResolver) Version(moduleName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versionLocked(moduleName)
}

func (r *VersionResolver) versionLocked(moduleName string) (string, error) {
	if v, ok := r.cache[moduleName]; ok {
		return v, nil
	}

	entity := r.graph.Get(ModuleRef(moduleName))
	if entity == nil {
		return "", &EntityNotFoundError{Ref: ModuleRef(moduleName)}
	}

	depVersions := make([]string, 0, len(entity.Dependencies))
	for _, dep := range entity.Dependencies {
		v, err := r.versionLocked(dep.Name)
		if err != nil {
			return "", err
		}
		depVersions = append(depVersions, v)
	}

	configHash, treeHash, err := r.hash(entity.Module)
	if err != nil {
		return "", fmt.Errorf("failed to hash module %s: %w", moduleName, err)
	}

	v := ModuleVersion(configHash, treeHash, depVersions)
	r.cache[moduleName] = v
	return v, nil
}
