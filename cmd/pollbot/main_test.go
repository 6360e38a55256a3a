package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/ext/persistence"
	"gitlab.com/yelinaung/tgbot/internal/config"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, "pollbot dev (commit: none, built: unknown)\n", out.String())
}

func TestRunCommandRejectsArgs(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "extra"})
	require.Error(t, root.Execute())
}

func TestOpenPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		backend string
		dsn     string
		check   func(t *testing.T, p ext.Persistence)
	}{
		{
			name:    "none",
			backend: config.PersistenceNone,
			check:   func(t *testing.T, p ext.Persistence) { require.Nil(t, p) },
		},
		{
			name:    "memory",
			backend: config.PersistenceMemory,
			check:   func(t *testing.T, p ext.Persistence) { require.IsType(t, &persistence.Dict{}, p) },
		},
		{
			name:    "file",
			backend: config.PersistenceFile,
			dsn:     filepath.Join(dir, "bot.json"),
			check:   func(t *testing.T, p ext.Persistence) { require.IsType(t, &persistence.File{}, p) },
		},
		{
			name:    "sqlite",
			backend: config.PersistenceSQLite,
			dsn:     filepath.Join(dir, "bot.db"),
			check:   func(t *testing.T, p ext.Persistence) { require.IsType(t, &persistence.SQLite{}, p) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, closeStore, err := openPersistence(ctx, &config.Config{Persistence: tt.backend, PersistenceDSN: tt.dsn})
			require.NoError(t, err)
			require.NotNil(t, closeStore)
			defer closeStore()
			tt.check(t, p)
		})
	}

	t.Run("unknown backend", func(t *testing.T) {
		_, closeStore, err := openPersistence(ctx, &config.Config{Persistence: "mongo"})
		require.ErrorContains(t, err, "unknown persistence")
		require.NotNil(t, closeStore)
	})
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		dsn      string
		wantAddr string
		wantDB   int
		wantErr  bool
	}{
		{name: "address", dsn: "localhost:6379", wantAddr: "localhost:6379"},
		{name: "url", dsn: "redis://:secret@cache:6380/2", wantAddr: "cache:6380", wantDB: 2},
		{name: "bad scheme", dsn: "http://cache:6380", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := redisOptions(tt.dsn)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantAddr, opts.Addr)
			require.Equal(t, tt.wantDB, opts.DB)
		})
	}
}

func TestMetricsRouter(t *testing.T) {
	srv := httptest.NewServer(metricsRouter(ext.NewMetrics(prometheus.NewRegistry())))
	t.Cleanup(srv.Close)

	for path, want := range map[string]int{
		"/healthz": http.StatusOK,
		"/metrics": http.StatusOK,
		"/missing": http.StatusNotFound,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, want, resp.StatusCode, path)
	}
}
