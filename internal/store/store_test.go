package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, root
}

func TestOpenCreatesStateDirectory(t *testing.T) {
	_, root := openTestStore(t)

	info, err := os.Stat(filepath.Join(root, DirName))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBuildResultRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)

	_, ok, err := s.GetBuildResult("build.api.v-123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutBuildResult(&BuildResult{
		Key:     "build.api.v-123",
		Module:  "api",
		Version: "v-123",
		Digest:  "sha256:abc",
	}))

	got, ok, err := s.GetBuildResult("build.api.v-123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "api", got.Module)
	assert.Equal(t, "v-123", got.Version)
	assert.Equal(t, "sha256:abc", got.Digest)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestPutBuildResultReplacesExisting(t *testing.T) {
	s, _ := openTestStore(t)

	require.NoError(t, s.PutBuildResult(&BuildResult{Key: "build.api.v-1", Module: "api", Version: "v-1", Digest: "d1"}))
	require.NoError(t, s.PutBuildResult(&BuildResult{Key: "build.api.v-1", Module: "api", Version: "v-1", Digest: "d2"}))

	got, ok, err := s.GetBuildResult("build.api.v-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "d2", got.Digest)
}

func TestPruneBuildResultsKeepsCurrentVersion(t *testing.T) {
	s, _ := openTestStore(t)

	require.NoError(t, s.PutBuildResult(&BuildResult{Key: "build.api.v-1", Module: "api", Version: "v-1", Digest: "d"}))
	require.NoError(t, s.PutBuildResult(&BuildResult{Key: "build.api.v-2", Module: "api", Version: "v-2", Digest: "d"}))
	require.NoError(t, s.PutBuildResult(&BuildResult{Key: "build.web.v-9", Module: "web", Version: "v-9", Digest: "d"}))

	require.NoError(t, s.PruneBuildResults("api", "v-2"))

	_, ok, err := s.GetBuildResult("build.api.v-1")
	require.NoError(t, err)
	assert.False(t, ok, "stale version pruned")

	_, ok, err = s.GetBuildResult("build.api.v-2")
	require.NoError(t, err)
	assert.True(t, ok, "current version kept")

	_, ok, err = s.GetBuildResult("build.web.v-9")
	require.NoError(t, err)
	assert.True(t, ok, "other modules untouched")
}

func TestAnonymousIDIsStableAcrossReopens(t *testing.T) {
	root := t.TempDir()

	s, err := Open(root)
	require.NoError(t, err)
	first, err := s.AnonymousID()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	again, err := s.AnonymousID()
	require.NoError(t, err)
	assert.Equal(t, first, again)
	require.NoError(t, s.Close())

	s, err = Open(root)
	require.NoError(t, err)
	defer s.Close()
	reopened, err := s.AnonymousID()
	require.NoError(t, err)
	assert.Equal(t, first, reopened)
}

func TestOpenRejectsUnknownSchemaVersion(t *testing.T) {
	root := t.TempDir()

	s, err := Open(root)
	require.NoError(t, err)
	require.NoError(t, s.setConfig("schema_version", "999"))
	require.NoError(t, s.Close())

	_, err = Open(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store schema version")
}
