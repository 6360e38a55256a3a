package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	t.Run("fails with invalid connection string", func(t *testing.T) {
		ctx := context.Background()
		pool, err := Connect(ctx, "invalid://connection")
		require.Error(t, err)
		require.Nil(t, pool)
	})

	t.Run("fails with unreachable host", func(t *testing.T) {
		ctx := context.Background()
		pool, err := Connect(ctx, "postgres://localhost:59999/nonexistent?connect_timeout=1")
		require.Error(t, err)
		require.Nil(t, pool)
	})

	t.Run("fails when the context expires", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		pool, err := Connect(ctx, "postgres://localhost:59999/nonexistent?connect_timeout=1")
		require.Error(t, err)
		require.Nil(t, pool)
	})
}

func TestConnect_WithMalformedURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"missing protocol", "localhost:5432/test"},
		{"invalid protocol", "http://localhost:5432/test"},
		{"invalid port", "postgres://localhost:notaport/test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := Connect(context.Background(), tt.url)
			require.Error(t, err)
			require.Nil(t, pool)
		})
	}
}
