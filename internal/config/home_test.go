package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnsembleHome_EnvOverride(t *testing.T) {
	t.Setenv(HomeEnv, "/custom/ensemble")

	home, err := GetEnsembleHome(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/custom/ensemble", home)
}

func TestGetEnsembleHome_FindsParent(t *testing.T) {
	t.Setenv(HomeEnv, "")
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".ensemble"), 0755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	home, err := GetEnsembleHome(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".ensemble"), home)
}

func TestGetEnsembleHome_CreatesFallback(t *testing.T) {
	t.Setenv(HomeEnv, "")
	dir := t.TempDir()

	home, err := GetEnsembleHome(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".ensemble"), home)
	assert.DirExists(t, home)
}

func TestResolveLogDir(t *testing.T) {
	assert.Equal(t, "", ResolveLogDir("/w/.ensemble", ""))
	assert.Equal(t, "/var/log/e", ResolveLogDir("/w/.ensemble", "/var/log/e"))
	assert.Equal(t, filepath.Join("/w", ".ensemble", "logs"), ResolveLogDir("/w/.ensemble", "logs"))
	assert.Equal(t, filepath.Join("/w", ".ensemble", "config.yaml"), ConfigPath("/w/.ensemble"))
}
