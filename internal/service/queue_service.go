package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"sendlater/internal/constants"
	apperrors "sendlater/internal/errors"
	"sendlater/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// QueueStore is the full message store surface the facade delegates to.
type QueueStore interface {
	SyncStore
	InsertMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, senderID string, filter models.MessageFilter) ([]models.Message, error)
	UpdateMessage(ctx context.Context, id string, update models.MessageUpdate) error
	DeleteMessage(ctx context.Context, id string) error
	MessageStats(ctx context.Context, senderID string) (models.MessageStats, error)
	ClearMessages(ctx context.Context, senderID string) (int64, error)
	GetSettings(ctx context.Context, senderID string) (models.Settings, error)
	SaveSettings(ctx context.Context, senderID string, settings models.Settings) error
	IncrementDailyOpen(ctx context.Context, day string) error
}

// QueueService is the single entry point for display-layer collaborators:
// message CRUD backed by the store, sync triggers backed by the engine.
type QueueService struct {
	store    QueueStore
	engine   *SyncEngine
	notifier *Notifier
	logger   *logrus.Logger
	now      func() time.Time
}

func NewQueueService(store QueueStore, engine *SyncEngine, notifier *Notifier, logger *logrus.Logger) *QueueService {
	return &QueueService{
		store:    store,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// AddMessage validates and stores a new pending message. Immediate messages
// are stamped due at creation; scheduled ones must name a future instant.
func (q *QueueService) AddMessage(ctx context.Context, senderID, recipientName, text string, deliverAfter time.Time, delay models.DelayClass) (*models.Message, error) {
	if senderID == "" {
		return nil, apperrors.NewValidationError("senderId", "sender is required")
	}
	if strings.TrimSpace(recipientName) == "" {
		return nil, apperrors.NewValidationError("recipientName", "recipient is required")
	}
	if err := validateText(text); err != nil {
		return nil, err
	}

	now := q.now()
	switch delay {
	case models.DelayImmediate:
		deliverAfter = now
	case models.DelayScheduled, "":
		if !deliverAfter.After(now) {
			return nil, apperrors.NewValidationError("deliverAfter", "delivery time must be in the future")
		}
	default:
		return nil, apperrors.NewValidationError("delay", "unknown delay class")
	}

	msg := &models.Message{
		ID:            uuid.NewString(),
		SenderID:      senderID,
		RecipientName: recipientName,
		Text:          text,
		DeliverAfter:  deliverAfter,
		Status:        models.MessageStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := q.store.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	q.logger.WithFields(logrus.Fields{
		"messageId":    msg.ID,
		"deliverAfter": msg.DeliverAfter,
	}).Info("Message queued")

	q.notifier.Notify()
	return msg, nil
}

// UpdateMessage applies a partial edit to a pending message. The store
// rejects the edit with InvalidState if the engine has already moved the
// message out of pending.
func (q *QueueService) UpdateMessage(ctx context.Context, id string, update models.MessageUpdate) error {
	if update.Empty() {
		return apperrors.NewValidationError("update", "no fields to update")
	}
	if update.Text != nil {
		if err := validateText(*update.Text); err != nil {
			return err
		}
	}
	if update.RecipientName != nil && strings.TrimSpace(*update.RecipientName) == "" {
		return apperrors.NewValidationError("recipientName", "recipient is required")
	}
	if update.DeliverAfter != nil && !update.DeliverAfter.After(q.now()) {
		return apperrors.NewValidationError("deliverAfter", "delivery time must be in the future")
	}

	if err := q.store.UpdateMessage(ctx, id, update); err != nil {
		return err
	}

	q.notifier.Notify()
	return nil
}

// DeleteMessage removes a message at any status.
func (q *QueueService) DeleteMessage(ctx context.Context, id string) error {
	if err := q.store.DeleteMessage(ctx, id); err != nil {
		return err
	}
	q.notifier.Notify()
	return nil
}

// GetMessage returns one message by id.
func (q *QueueService) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	return q.store.GetMessage(ctx, id)
}

// ListMessages returns a sender's messages filtered by status.
func (q *QueueService) ListMessages(ctx context.Context, senderID string, filter models.MessageFilter) ([]models.Message, error) {
	if filter == "" {
		filter = models.FilterAll
	}
	if !filter.IsValid() {
		return nil, apperrors.NewValidationError("filter", "unknown filter")
	}
	return q.store.ListMessages(ctx, senderID, filter)
}

// GetStats returns per-status counts for a sender.
func (q *QueueService) GetStats(ctx context.Context, senderID string) (models.MessageStats, error) {
	return q.store.MessageStats(ctx, senderID)
}

// TriggerManualSync runs a sync cycle on the caller's behalf, bypassing the
// auto-sync gate but not the single-session guard or the offline check.
func (q *QueueService) TriggerManualSync(ctx context.Context) models.SyncSummary {
	return q.engine.RunCycle(ctx, true)
}

// SyncState exposes the engine state for display.
func (q *QueueService) SyncState() models.SyncState {
	return q.engine.State()
}

// GetSettings returns the stored settings for a sender.
func (q *QueueService) GetSettings(ctx context.Context, senderID string) (models.Settings, error) {
	return q.store.GetSettings(ctx, senderID)
}

// UpdateSettings persists settings and applies the auto-sync toggle to the
// engine. An in-flight sync session is never cancelled by the toggle.
func (q *QueueService) UpdateSettings(ctx context.Context, senderID string, settings models.Settings) error {
	if settings.AutoDeleteDays < 0 {
		return apperrors.NewValidationError("autoDeleteDays", "must be zero or positive")
	}
	if err := q.store.SaveSettings(ctx, senderID, settings); err != nil {
		return err
	}
	q.engine.SetAutoSync(settings.AutoSync)
	return nil
}

// ExportMessages produces a snapshot of all of a sender's messages.
func (q *QueueService) ExportMessages(ctx context.Context, senderID string) (*models.MessageExport, error) {
	messages, err := q.store.ListMessages(ctx, senderID, models.FilterAll)
	if err != nil {
		return nil, err
	}
	return &models.MessageExport{
		SenderID:   senderID,
		ExportedAt: q.now().UTC().Format(time.RFC3339),
		Messages:   messages,
	}, nil
}

// ClearMessages removes all of a sender's messages.
func (q *QueueService) ClearMessages(ctx context.Context, senderID string) (int64, error) {
	removed, err := q.store.ClearMessages(ctx, senderID)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		q.notifier.Notify()
	}
	return removed, nil
}

// RecordAppOpen bumps the daily-open counter for today.
func (q *QueueService) RecordAppOpen(ctx context.Context) error {
	day := q.now().UTC().Format("2006-01-02")
	return q.store.IncrementDailyOpen(ctx, day)
}

// Subscribe registers a callback invoked after any queue mutation.
func (q *QueueService) Subscribe(fn func()) func() {
	return q.notifier.Subscribe(fn)
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.NewValidationError("text", "message text is required")
	}
	if utf8.RuneCountInString(text) > constants.MaxMessageLength {
		return apperrors.NewValidationError("text", "message text exceeds maximum length")
	}
	return nil
}
