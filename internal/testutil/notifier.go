package testutil

import (
	"context"
	"sync"

	"xplore/internal/models"
)

// NotifierStub records every notification it is handed.
type NotifierStub struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *NotifierStub) Notify(_ context.Context, note models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
}

// Sent returns a copy of the recorded notifications.
func (n *NotifierStub) Sent() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification(nil), n.sent...)
}

// OfType filters the recorded notifications by type.
func (n *NotifierStub) OfType(t models.NotificationType) []models.Notification {
	var out []models.Notification
	for _, note := range n.Sent() {
		if note.Type == t {
			out = append(out, note)
		}
	}
	return out
}
