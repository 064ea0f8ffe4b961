package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/stam/stam"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, DefaultDirPermissions))
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), DefaultFilePermissions))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, stam.DefaultConfig(), cfg.StoreConfig())
	assert.Equal(t, stam.DefaultAlignmentConfig(), cfg.AlignmentConfig())
	assert.False(t, cfg.Log.JSON)
	require.NoError(t, cfg.Validate())
}

func TestValidate_ZeroValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"zero milestone interval is valid", func(c *Config) { c.Store.MilestoneInterval = 0 }, false},
		{"negative milestone interval is invalid", func(c *Config) { c.Store.MilestoneInterval = -1 }, true},
		{"empty id prefix is valid (no ids)", func(c *Config) { c.Alignment.AnnotationIDPrefix = "" }, false},
		{"negative max errors is invalid", func(c *Config) { c.Alignment.MaxErrors = -1 }, true},
		{"negative minimal length is invalid", func(c *Config) { c.Alignment.MinimalAlignLength = -2 }, true},
		{"zero workers is valid (one per pair)", func(c *Config) { c.Alignment.Workers = 0 }, false},
		{"negative workers is invalid", func(c *Config) { c.Alignment.Workers = -1 }, true},
		{"negative verbosity is invalid", func(c *Config) { c.Log.Verbosity = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Store: stam.DefaultConfig(), Alignment: stam.DefaultAlignmentConfig()}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[store]
milestone_interval = 10
textrelationmap = false

[alignment]
annotation_id_prefix = "t-"
workers = 2
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Store.MilestoneInterval)
	assert.False(t, cfg.Store.TextRelationMap)
	assert.True(t, cfg.Store.KeyAnnotationMap, "unset keys keep their defaults")
	assert.Equal(t, "t-", cfg.Alignment.AnnotationIDPrefix)
	assert.Equal(t, 2, cfg.Alignment.Workers)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadPrecedence(t *testing.T) {
	Reset()
	defer Reset()

	home := t.TempDir()
	userPath := writeConfig(t, filepath.Join(home, ".stam"), `
[store]
milestone_interval = 20
debug = true
`)
	project := t.TempDir()
	projectPath := writeConfig(t, project, `
[store]
milestone_interval = 30
`)
	nested := filepath.Join(project, "corpus", "texts")
	require.NoError(t, os.MkdirAll(nested, DefaultDirPermissions))

	t.Setenv("HOME", home)
	t.Setenv("STAM_ALIGNMENT_WORKERS", "4")
	t.Chdir(nested)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Store.MilestoneInterval, "project file wins over user file")
	assert.True(t, cfg.Store.Debug)
	assert.Equal(t, 4, cfg.Alignment.Workers)

	again, err := Load()
	require.NoError(t, err)
	assert.Same(t, cfg, again)

	settings, err := Introspect()
	require.NoError(t, err)
	sources := map[string]SettingInfo{}
	for _, s := range settings {
		sources[s.Key] = s
	}
	assert.Equal(t, SourceProject, sources["store.milestone_interval"].Source)
	assert.Equal(t, projectPath, sources["store.milestone_interval"].SourcePath)
	assert.Equal(t, SourceUser, sources["store.debug"].Source)
	assert.Equal(t, userPath, sources["store.debug"].SourcePath)
	assert.Equal(t, SourceEnvironment, sources["alignment.workers"].Source)
	assert.Equal(t, "STAM_ALIGNMENT_WORKERS", sources["alignment.workers"].SourcePath)
	assert.Equal(t, SourceDefault, sources["store.shrink_to_fit"].Source)
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "STAM_STORE_MILESTONE_INTERVAL", EnvVar("store.milestone_interval"))
}
