package identity

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"chat-client/internal/models"
)

// Login restores the saved identity, or asks for a username on in until a
// valid one is given and saves it. A non-empty preset is tried first.
func Login(ctx context.Context, store Store, preset string, in *bufio.Reader, out io.Writer) (models.Identity, error) {
	saved, err := store.Load(ctx)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.Identity{}, fmt.Errorf("load identity: %w", err)
	}

	username := preset
	for {
		if username == "" {
			fmt.Fprint(out, "username: ")
			line, err := in.ReadString('\n')
			if err != nil && line == "" {
				return models.Identity{}, err
			}
			username = line
		}

		self, err := New(username)
		if err != nil {
			fmt.Fprintln(out, err)
			username = ""
			continue
		}
		if err := store.Save(ctx, self); err != nil {
			return models.Identity{}, fmt.Errorf("save identity: %w", err)
		}
		return self, nil
	}
}
