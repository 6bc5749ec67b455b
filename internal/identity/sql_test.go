package identity

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chat-client/internal/db"
	"chat-client/internal/models"
)

// Runs against a real Postgres when CHAT_TEST_DSN is set.
func TestSQLStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("CHAT_TEST_DSN")
	if dsn == "" {
		t.Skip("CHAT_TEST_DSN not set")
	}
	database, err := db.Connect(dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	ctx := context.Background()
	store := NewSQLStore(database, "test-"+uuid.NewString())
	t.Cleanup(func() { _ = store.Clear(ctx) })

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := models.Identity{Username: "alice", Avatar: "a.png"}
	require.NoError(t, store.Save(ctx, first))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := models.Identity{Username: "alice2", Avatar: "b.png"}
	require.NoError(t, store.Save(ctx, second))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}
