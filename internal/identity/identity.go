// Package identity validates and persists the local user's login.
package identity

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"

	"chat-client/internal/models"
)

const maxUsernameLen = 20

var (
	ErrNotFound        = errors.New("identity not found")
	ErrInvalidUsername = errors.New("username must be 1-20 characters")
)

// Store persists the identity between runs.
type Store interface {
	Load(ctx context.Context) (models.Identity, error)
	Save(ctx context.Context, id models.Identity) error
	Clear(ctx context.Context) error
}

// New validates username and derives the avatar for it.
func New(username string) (models.Identity, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n == 0 || n > maxUsernameLen {
		return models.Identity{}, ErrInvalidUsername
	}
	return models.Identity{Username: username, Avatar: avatarURL(username)}, nil
}

func avatarURL(username string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(username) + "&background=random&color=fff"
}
