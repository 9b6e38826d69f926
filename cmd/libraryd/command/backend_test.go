package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/config"
	"github.com/warp/lending-engine/lending"
)

func TestOpenBackend_SQLiteHistory(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Driver, cfg.Storage.Path = config.DriverSQLite, ":memory:"

	b, err := openBackend(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NotNil(t, b.history)

	_, err = b.engine.AddBook(ctx, b.state, lending.BookInput{Title: "Foundation", Author: "Isaac Asimov", Publisher: "Gnome Press", Copies: 2})
	require.NoError(t, err)

	revs, err := b.history.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, 1, revs[0].Resources)
	assert.NotEmpty(t, revs[0].Revision)
}

func TestOpenBackend_MemoryHasNoHistory(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Driver = config.DriverMemory

	b, err := openBackend(context.Background(), cfg)
	require.NoError(t, err)

	assert.Nil(t, b.history)
	assert.Nil(t, b.sqlite)
}
