package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novastore/internal/bufferpool"
	"github.com/tuannm99/novastore/internal/heap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "novastore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, "novastore", cfg.AppName)
	require.Equal(t, bufferpool.DefaultCapacity, cfg.BufferPool.Size)
	require.Equal(t, bufferpool.ReplacerLRU, cfg.ReplacerKind())
	require.Equal(t, heap.NAryModel, cfg.StorageModel())
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
app_name: bench
storage:
  workdir: /tmp/nova
buffer_pool:
  size: 32
  replacer: lru_k
  lru_k: 3
table:
  storage_model: pax
  records_per_page: 16
log:
  level: debug
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "bench", cfg.AppName)
	require.Equal(t, "/tmp/nova", cfg.Storage.Workdir)
	require.Equal(t, 32, cfg.BufferPool.Size)
	require.Equal(t, bufferpool.ReplacerLRUK, cfg.ReplacerKind())
	require.Equal(t, 3, cfg.BufferPool.LRUK)
	require.Equal(t, heap.PAXModel, cfg.StorageModel())
	require.Equal(t, 16, cfg.Table.RecordsPerPage)

	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	require.Equal(t, "DEBUG", lvl.String())
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("NOVASTORE_BUFFER_POOL_SIZE", "8")
	t.Setenv("NOVASTORE_BUFFER_POOL_REPLACER", "clock")

	cfg, err := LoadConfig(writeConfig(t, "buffer_pool:\n  size: 32\n"))
	require.NoError(t, err)
	require.Equal(t, 8, cfg.BufferPool.Size)
	require.Equal(t, bufferpool.ReplacerClock, cfg.ReplacerKind())
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"replacer": "buffer_pool:\n  replacer: arc\n",
		"model":    "table:\n  storage_model: columnar\n",
		"size":     "buffer_pool:\n  size: 0\n",
		"level":    "log:\n  level: loud\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
