package notify

import (
	"context"
	"time"
)

const ToastTTL = 5 * time.Second

// Toaster shows a transient message on the terminal.
type Toaster interface {
	Toast(level, text string, ttl time.Duration)
}

type Toast struct {
	toaster Toaster
}

func NewToast(toaster Toaster) *Toast {
	return &Toast{toaster: toaster}
}

func (t *Toast) Name() string {
	return "toast"
}

func (t *Toast) Deliver(ctx context.Context, n Notification) error {
	text := n.Title
	if n.Body != "" {
		text = n.Title + ": " + n.Body
	}
	t.toaster.Toast("info", text, ToastTTL)
	return nil
}
