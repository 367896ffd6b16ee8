package configpaths_test

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharkwire/kbbridge/internal/configpaths"
)

func TestDefaultConfigDirUsesXDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG only applies to unix")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := configpaths.DefaultConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "kbbridge"), got)

	p, err := configpaths.DefaultNamedConfigPath("run", "yml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "kbbridge", "run.yaml"), p)
}

func TestConfigCandidatePaths(t *testing.T) {
	tests := []struct {
		name     string
		userPath string
		check    func(t *testing.T, jsonPaths, yamlPaths, tomlPaths []string)
	}{
		{
			name:     "user yaml first",
			userPath: "/tmp/my.yml",
			check: func(t *testing.T, jsonPaths, yamlPaths, tomlPaths []string) {
				assert.Equal(t, "/tmp/my.yml", yamlPaths[0])
				assert.NotContains(t, jsonPaths, "/tmp/my.yml")
			},
		},
		{
			name:     "user toml first",
			userPath: "/tmp/my.toml",
			check: func(t *testing.T, _, _, tomlPaths []string) {
				assert.Equal(t, "/tmp/my.toml", tomlPaths[0])
			},
		},
		{
			name:     "unknown extension goes to json",
			userPath: "/tmp/kbbridge.conf",
			check: func(t *testing.T, jsonPaths, _, _ []string) {
				assert.Equal(t, "/tmp/kbbridge.conf", jsonPaths[0])
			},
		},
		{
			name: "defaults",
			check: func(t *testing.T, jsonPaths, yamlPaths, tomlPaths []string) {
				if runtime.GOOS != "windows" {
					assert.Contains(t, jsonPaths, "/etc/kbbridge/config.json")
					assert.Contains(t, yamlPaths, "/etc/kbbridge/run.yml")
					assert.Contains(t, tomlPaths, "/etc/kbbridge/run.toml")
				}
				assert.Equal(t, len(jsonPaths)*2, len(yamlPaths))
				assert.Equal(t, len(jsonPaths), len(tomlPaths))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, y, to := configpaths.ConfigCandidatePaths(tt.userPath)
			tt.check(t, j, y, to)
		})
	}
}
