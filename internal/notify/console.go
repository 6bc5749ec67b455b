package notify

import (
	"fmt"
	"io"
	"sync"

	"chat-client/internal/models"
)

// Console writes toasts and system notifications to a terminal. It acts as
// both the Toaster and the SystemNotifier of the terminal client.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	allow   bool
	decided Permission
}

// NewConsole returns a Console that grants notification permission when
// allow is true and denies it otherwise.
func NewConsole(w io.Writer, allow bool) *Console {
	return &Console{w: w, allow: allow, decided: PermissionDefault}
}

func (c *Console) Toast(level Level, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := "*"
	if level == LevelError {
		prefix = "!"
	}
	fmt.Fprintf(c.w, "%s %s\n", prefix, text)
}

func (c *Console) Permission() Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decided
}

func (c *Console) RequestPermission() Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.decided == PermissionDefault {
		c.decided = PermissionDenied
		if c.allow {
			c.decided = PermissionGranted
		}
	}
	return c.decided
}

func (c *Console) Notify(n models.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "[notification] %s: %s\n", n.Title, n.Body)
	return err
}
