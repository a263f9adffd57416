package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-sis-api/internal/models"
	"github.com/noah-isme/campus-sis-api/pkg/config"
)

type capturingWriter struct {
	mu      sync.Mutex
	written []models.Notification
}

func (w *capturingWriter) Create(ctx context.Context, notification *models.Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, *notification)
	return nil
}

func (w *capturingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.written)
}

type capturingInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (i *capturingInvalidator) InvalidateUnread(ctx context.Context, userID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.users = append(i.users, userID)
}

func TestNotifierDeliversAndInvalidates(t *testing.T) {
	writer := &capturingWriter{}
	invalidator := &capturingInvalidator{}
	notifier := NewNotifier(writer, invalidator, config.NotifierConfig{Workers: 1, BufferSize: 4}, zap.NewNop())

	notifier.Start(context.Background())
	defer notifier.Stop()

	notifier.Notify("u1", "Hello", "message body", models.NotificationTypeSystem)

	require.Eventually(t, func() bool { return writer.count() == 1 }, time.Second, 10*time.Millisecond)

	writer.mu.Lock()
	delivered := writer.written[0]
	writer.mu.Unlock()
	assert.Equal(t, "u1", delivered.UserID)
	assert.Equal(t, "Hello", delivered.Title)
	assert.Equal(t, models.NotificationTypeSystem, delivered.Type)
	assert.NotEmpty(t, delivered.ID)

	require.Eventually(t, func() bool {
		invalidator.mu.Lock()
		defer invalidator.mu.Unlock()
		return len(invalidator.users) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestNotifierBeforeStartDoesNotPanic(t *testing.T) {
	writer := &capturingWriter{}
	notifier := NewNotifier(writer, nil, config.NotifierConfig{}, zap.NewNop())

	// Enqueue fails while the queue is stopped; the failure is swallowed.
	notifier.Notify("u1", "Hello", "message body", models.NotificationTypeSystem)
	assert.Equal(t, 0, writer.count())
}
