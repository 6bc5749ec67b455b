package identity

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

func TestNewValidatesUsername(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		err   error
	}{
		{name: "trimmed", input: "  alice  ", want: "alice"},
		{name: "blank", input: "   ", err: ErrInvalidUsername},
		{name: "max length", input: strings.Repeat("a", 20), want: strings.Repeat("a", 20)},
		{name: "too long", input: strings.Repeat("a", 21), err: ErrInvalidUsername},
		{name: "runes not bytes", input: strings.Repeat("é", 20), want: strings.Repeat("é", 20)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := New(tc.input)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, id.Username)
		})
	}
}

func TestNewDerivesAvatar(t *testing.T) {
	id, err := New("Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Jane+Doe&background=random&color=fff", id.Avatar)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "identity.json"))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	want := models.Identity{Username: "alice", Avatar: "a.png"}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
