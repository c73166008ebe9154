package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acorn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db: /var/lib/acorn/ledger.db
log_level: debug
serve:
  listen: 0.0.0.0:9000
  peers:
    - ws://10.0.0.2:9000/peer
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/acorn/ledger.db", cfg.DB)
	assert.Equal(t, "acorn.key", cfg.KeyFile)
	assert.Equal(t, "0.0.0.0:9000", cfg.Serve.Listen)
	assert.Equal(t, []string{"ws://10.0.0.2:9000/peer"}, cfg.Serve.Peers)
	assert.True(t, cfg.Serve.Metrics)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParse_EmptyDocumentIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("db: a.db\nlog_lvl: debug\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "log_level: loud\n"},
		{"empty db", "db: \"\"\n"},
		{"bad listen", "serve:\n  listen: nowhere\n"},
		{"bad peer url", "serve:\n  peers: [\"not a url\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Config{}.Level())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warn"}.Level())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.Level())
}
