package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readInput(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name+".yml"))
	require.NoError(t, err)
	return data
}

func TestMigrateFlattensLegacyWrappers(t *testing.T) {
	out, changed, err := Migrate(readInput(t, "legacy-wrappers"))
	require.NoError(t, err)
	assert.True(t, changed)

	goldie.New(t).Assert(t, "legacy-wrappers", out)
}

func TestMigrateHoistsEnvironmentDefaults(t *testing.T) {
	out, changed, err := Migrate(readInput(t, "environment-defaults"))
	require.NoError(t, err)
	assert.True(t, changed)

	goldie.New(t).Assert(t, "environment-defaults", out)
}

func TestMigrateLeavesCurrentSchemaUntouched(t *testing.T) {
	input := readInput(t, "current-schema")

	out, changed, err := Migrate(input)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, input, out, "unchanged files pass through byte for byte")
}

func TestMigrateRenamesGenericModuleType(t *testing.T) {
	out, changed, err := Migrate([]byte("kind: Module\nname: api\ntype: generic\n"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "kind: Module\nname: api\ntype: exec\n", string(out))
}

func TestMigrateRejectsDuplicateProvidersAfterMerge(t *testing.T) {
	_, _, err := Migrate([]byte(`project:
  name: demo
  environmentDefaults:
    providers:
      - name: local-exec
  environments:
    - name: dev
      providers:
        - name: local-exec
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate provider "local-exec" in environment "dev"`)
}

func TestMigrateRejectsConflictingVarfiles(t *testing.T) {
	_, _, err := Migrate([]byte(`project:
  name: demo
  environmentDefaults:
    varfile: defaults.env
  environments:
    - name: dev
      varfile: dev.env
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicts with environmentDefaults.varfile")
}

func TestMigrateRejectsUnparsableInput(t *testing.T) {
	_, _, err := Migrate([]byte("kind: [unterminated"))
	require.Error(t, err)
}

func TestMigrateVariablesPreferProjectLevel(t *testing.T) {
	out, changed, err := Migrate([]byte(`project:
  name: demo
  environmentDefaults:
    variables:
      region: default-region
      extra: from-defaults
  variables:
    region: project-region
`))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, string(out), "region: project-region")
	assert.Contains(t, string(out), "extra: from-defaults")
	assert.NotContains(t, string(out), "default-region")
}
