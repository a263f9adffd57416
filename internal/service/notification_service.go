package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-sis-api/internal/models"
	appErrors "github.com/noah-isme/campus-sis-api/pkg/errors"
)

type notificationRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id, userID string) error
}

type cacheLookupRecorder interface {
	RecordCacheLookup(hit bool)
}

const unreadCountKeyFormat = "notifications:unread:%s"

// NotificationService provides inbox use cases. The unread count is served
// through a redis read-through cache when a client is configured; without
// one every lookup goes to the database.
type NotificationService struct {
	repo    notificationRepository
	redis   *redis.Client
	metrics cacheLookupRecorder
	ttl     time.Duration
	logger  *zap.Logger
}

// NewNotificationService constructs a NotificationService instance. The
// redis client and metrics recorder may be nil.
func NewNotificationService(repo notificationRepository, redisClient *redis.Client, metrics cacheLookupRecorder, ttl time.Duration, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &NotificationService{repo: repo, redis: redisClient, metrics: metrics, ttl: ttl, logger: logger}
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications, cached per user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if s.redis != nil {
		key := fmt.Sprintf(unreadCountKeyFormat, userID)
		cached, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			if count, parseErr := strconv.Atoi(cached); parseErr == nil {
				s.recordLookup(true)
				return count, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("unread count cache read failed", zap.Error(err))
		}
		s.recordLookup(false)
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}

	if s.redis != nil {
		key := fmt.Sprintf(unreadCountKeyFormat, userID)
		if err := s.redis.Set(ctx, key, strconv.Itoa(count), s.ttl).Err(); err != nil {
			s.logger.Warn("unread count cache write failed", zap.Error(err))
		}
	}
	return count, nil
}

// MarkRead flags one notification as read. NotFound when the notification
// does not exist or belongs to another user.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	s.InvalidateUnread(ctx, userID)
	return nil
}

// MarkAllRead flags every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.InvalidateUnread(ctx, userID)
	return nil
}

// Delete removes one of the caller's notifications.
func (s *NotificationService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	s.InvalidateUnread(ctx, userID)
	return nil
}

// InvalidateUnread drops the cached unread count for a user. Called after
// every write that can change the count, including notifier deliveries.
func (s *NotificationService) InvalidateUnread(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf(unreadCountKeyFormat, userID)
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("unread count cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *NotificationService) recordLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(hit)
	}
}
