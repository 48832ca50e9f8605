package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/regflow_go_server/config"
	"github.com/qs3c/regflow_go_server/internal/flagstore"
	"github.com/qs3c/regflow_go_server/internal/model"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	key := model.ReportKey{CycleID: 58, ReportID: 156}

	seed := func(t *testing.T) *flagstore.MemoryStore {
		t.Helper()
		store := flagstore.NewMemoryStore()
		require.NoError(t, store.Set(ctx, key, true))
		require.NoError(t, store.Set(ctx, model.ReportKey{CycleID: 3, ReportID: 9}, true))
		return store
	}

	t.Run("list", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, run(ctx, seed(t), options{List: true}, &out))

		text := out.String()
		assert.Contains(t, text, "2 flag(s)")
		assert.Less(t, bytes.Index(out.Bytes(), []byte("3 ")), bytes.Index(out.Bytes(), []byte("58 ")))
	})

	t.Run("reset dry run keeps flag", func(t *testing.T) {
		store := seed(t)
		var out bytes.Buffer
		require.NoError(t, run(ctx, store, options{Reset: true, Key: key, DryRun: true}, &out))

		assert.Contains(t, out.String(), "dry run")
		advanced, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, advanced)
	})

	t.Run("reset clears flag", func(t *testing.T) {
		store := seed(t)
		var out bytes.Buffer
		require.NoError(t, run(ctx, store, options{Reset: true, Key: key}, &out))

		assert.Contains(t, out.String(), "cleared")
		advanced, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, advanced)
	})

	t.Run("reset unknown report", func(t *testing.T) {
		var out bytes.Buffer
		err := run(ctx, seed(t), options{Reset: true, Key: model.ReportKey{CycleID: 1, ReportID: 1}}, &out)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "nothing to clear")
	})

	t.Run("reset requires key", func(t *testing.T) {
		err := run(ctx, seed(t), options{Reset: true}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("no action", func(t *testing.T) {
		err := run(ctx, seed(t), options{}, &bytes.Buffer{})
		assert.ErrorIs(t, err, errNoAction)
	})
}

func TestExecute(t *testing.T) {
	cfg := &config.Config{}

	t.Run("store is closed when the command fails", func(t *testing.T) {
		closed := false
		open := func(*config.Config) (flagstore.Store, func(), error) {
			return flagstore.NewMemoryStore(), func() { closed = true }, nil
		}

		err := execute(cfg, options{}, open, &bytes.Buffer{})
		assert.ErrorIs(t, err, errNoAction)
		assert.True(t, closed)
	})

	t.Run("store is closed after success", func(t *testing.T) {
		closed := false
		open := func(*config.Config) (flagstore.Store, func(), error) {
			return flagstore.NewMemoryStore(), func() { closed = true }, nil
		}

		var out bytes.Buffer
		require.NoError(t, execute(cfg, options{List: true}, open, &out))
		assert.Contains(t, out.String(), "0 flag(s)")
		assert.True(t, closed)
	})

	t.Run("open failure", func(t *testing.T) {
		open := func(*config.Config) (flagstore.Store, func(), error) {
			return nil, nil, errors.New("dial tcp: refused")
		}

		err := execute(cfg, options{List: true}, open, &bytes.Buffer{})
		assert.ErrorContains(t, err, "open flag store")
	})
}
