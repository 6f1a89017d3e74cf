package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loghive.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "release", cfg.Server.Mode)
	require.Equal(t, "localhost:6379", cfg.Queue.Addr)
	require.Equal(t, "events", cfg.Queue.Stream)
	require.Equal(t, time.Second, cfg.Queue.PopTimeoutDuration())
	require.Equal(t, 4, cfg.Ingest.WorkerCount)
	require.Equal(t, 8, cfg.Ingest.SubmitParallelism)
	require.True(t, cfg.Database.AutoMigrate)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  mode: debug
queue:
  stream: ingest-queue
  pop_timeout: 2s
ingest:
  worker_count: 16
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.Mode)
	require.Equal(t, "ingest-queue", cfg.Queue.Stream)
	require.Equal(t, 2*time.Second, cfg.Queue.PopTimeoutDuration())
	require.Equal(t, 16, cfg.Ingest.WorkerCount)
	// Untouched keys keep their defaults.
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
`)

	t.Setenv("LOGHIVE_SERVER__PORT", "7070")
	t.Setenv("LOGHIVE_QUEUE__ADDR", "redis-prod:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "redis-prod:6379", cfg.Queue.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config file")
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "port out of range",
			content: "server:\n  port: 70000\n",
			wantErr: "invalid server.port",
		},
		{
			name:    "unknown mode",
			content: "server:\n  mode: verbose\n",
			wantErr: "invalid server.mode",
		},
		{
			name:    "unparseable pop timeout",
			content: "queue:\n  pop_timeout: soon\n",
			wantErr: "invalid queue.pop_timeout",
		},
		{
			name:    "non-positive pop timeout",
			content: "queue:\n  pop_timeout: 0s\n",
			wantErr: "queue.pop_timeout must be > 0",
		},
		{
			name:    "zero workers",
			content: "ingest:\n  worker_count: 0\n",
			wantErr: "ingest.worker_count must be > 0",
		},
		{
			name:    "empty stream",
			content: "queue:\n  stream: \"\"\n",
			wantErr: "queue.stream is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tc.content))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
