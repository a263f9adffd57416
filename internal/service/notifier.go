package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-sis-api/internal/models"
	"github.com/noah-isme/campus-sis-api/pkg/config"
	"github.com/noah-isme/campus-sis-api/pkg/jobs"
)

type notificationWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// dispatcher is the slice of Notifier the domain services depend on.
type dispatcher interface {
	Notify(userID, title, message string, notificationType models.NotificationType)
}

type unreadInvalidator interface {
	InvalidateUnread(ctx context.Context, userID string)
}

// Notifier dispatches notification writes through a background worker pool.
// Delivery is fire-and-forget: a failed write is retried by the queue and
// eventually logged, but it never surfaces to the operation that caused it.
type Notifier struct {
	queue       *jobs.Queue
	invalidator unreadInvalidator
	logger      *zap.Logger
}

// NewNotifier constructs a Notifier writing through the given repository.
// The invalidator is optional; when set, the unread-count cache of the
// target user is dropped after each delivered notification.
func NewNotifier(repo notificationWriter, invalidator unreadInvalidator, cfg config.NotifierConfig, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{invalidator: invalidator, logger: logger}
	handler := func(ctx context.Context, job jobs.Job) error {
		notification, ok := job.Payload.(*models.Notification)
		if !ok {
			logger.Error("notifier received unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.Create(writeCtx, notification); err != nil {
			return err
		}
		if n.invalidator != nil {
			n.invalidator.InvalidateUnread(writeCtx, notification.UserID)
		}
		return nil
	}
	n.queue = jobs.NewQueue("notifications", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return n
}

// Start launches the worker pool.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the worker pool.
func (n *Notifier) Stop() {
	n.queue.Stop()
}

// Notify enqueues a notification for the user. It never returns an error:
// an enqueue failure is logged and swallowed so the primary domain write is
// unaffected.
func (n *Notifier) Notify(userID, title, message string, notificationType models.NotificationType) {
	notification := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notificationType,
		CreatedAt: time.Now().UTC(),
	}
	job := jobs.Job{ID: notification.ID, Type: string(notificationType), Payload: notification}
	if err := n.queue.Enqueue(job); err != nil {
		n.logger.Warn("failed to enqueue notification",
			zap.String("user_id", userID),
			zap.String("title", title),
			zap.Error(err))
	}
}
