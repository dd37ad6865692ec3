package graph

import (
	"errors"
	"sync/atomic"
	"testing"

	"garden/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleVersionIsStableAndOrderIndependent(t *testing.T) {
	a := ModuleVersion("cfg", "tree", []string{"v-aaa", "v-bbb"})
	b := ModuleVersion("cfg", "tree", []string{"v-bbb", "v-aaa"})
	assert.Equal(t, a, b, "dependency order must not influence the version")

	assert.Regexp(t, `^v-[0-9a-f]{10}$`, a)
	assert.NotEqual(t, a, ModuleVersion("cfg2", "tree", []string{"v-aaa", "v-bbb"}))
	assert.NotEqual(t, a, ModuleVersion("cfg", "tree2", []string{"v-aaa", "v-bbb"}))
	assert.NotEqual(t, a, ModuleVersion("cfg", "tree", []string{"v-ccc"}))
}

func TestVersionResolverFoldsInDependencyVersions(t *testing.T) {
	g, err := New(testModules())
	require.NoError(t, err)

	hashes := map[string]string{"lib": "t1", "api": "t2", "web": "t3"}
	resolver := NewVersionResolver(g, func(m *config.ModuleConfig) (string, string, error) {
		return "cfg-" + m.Name, hashes[m.Name], nil
	})

	webBefore, err := resolver.Version("web")
	require.NoError(t, err)

	// Changing the leaf module's tree changes every downstream version.
	hashes["lib"] = "t1-changed"
	webAfter, err := NewVersionResolver(g, func(m *config.ModuleConfig) (string, string, error) {
		return "cfg-" + m.Name, hashes[m.Name], nil
	}).Version("web")
	require.NoError(t, err)

	assert.NotEqual(t, webBefore, webAfter)
}

func TestVersionResolverMemoizes(t *testing.T) {
	g, err := New(testModules())
	require.NoError(t, err)

	var calls atomic.Int32
	resolver := NewVersionResolver(g, func(m *config.ModuleConfig) (string, string, error) {
		calls.Add(1)
		return "cfg", "tree", nil
	})

	// web -> api -> lib: one resolution hashes each module exactly once.
	_, err = resolver.Version("web")
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())

	_, err = resolver.Version("web")
	require.NoError(t, err)
	_, err = resolver.Version("lib")
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load(), "repeat resolutions hit the cache")
}

func TestVersionResolverPropagatesHasherErrors(t *testing.T) {
	g, err := New(testModules())
	require.NoError(t, err)

	hashErr := errors.New("tree walk failed")
	resolver := NewVersionResolver(g, func(m *config.ModuleConfig) (string, string, error) {
		if m.Name == "lib" {
			return "", "", hashErr
		}
		return "cfg", "tree", nil
	})

	_, err = resolver.Version("web")
	require.ErrorIs(t, err, hashErr)
}

func TestVersionResolverUnknownModule(t *testing.T) {
	g, err := New(testModules())
	require.NoError(t, err)

	resolver := NewVersionResolver(g, func(m *config.ModuleConfig) (string, string, error) {
		return "cfg", "tree", nil
	})

	var notFound *EntityNotFoundError
	_, err = resolver.Version("ghost")
	require.ErrorAs(t, err, &notFound)
}
