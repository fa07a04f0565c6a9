package service

import (
	"context"
	"sync"
	"time"

	apperrors "sendlater/internal/errors"
	"sendlater/internal/metrics"
	"sendlater/internal/models"
	"sendlater/internal/tracing"
	"sendlater/pkg/gateway"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// SyncStore is the slice of the message store the sync engine touches.
type SyncStore interface {
	DueMessages(ctx context.Context, now time.Time) ([]models.Message, error)
	SetMessageStatus(ctx context.Context, id string, status models.MessageStatus) error
}

// ConnectivityChecker reports whether the device is currently online.
type ConnectivityChecker interface {
	IsOnline() bool
}

// SyncEngine drives delivery of due messages. At most one sync session runs
// at a time; timer ticks, reconnect callbacks, and manual triggers all funnel
// into RunCycle and contend for the same guard.
type SyncEngine struct {
	store        SyncStore
	client       gateway.Client
	connectivity ConnectivityChecker
	notifier     *Notifier
	logger       *logrus.Logger
	now          func() time.Time

	mu           sync.Mutex
	syncing      bool
	lastSyncTime *time.Time
	autoSync     bool
}

func NewSyncEngine(store SyncStore, client gateway.Client, connectivity ConnectivityChecker, notifier *Notifier, autoSync bool, logger *logrus.Logger) *SyncEngine {
	return &SyncEngine{
		store:        store,
		client:       client,
		connectivity: connectivity,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
		autoSync:     autoSync,
	}
}

// SetAutoSync toggles timer- and reconnect-triggered cycles. It never cancels
// a session that is already running.
func (e *SyncEngine) SetAutoSync(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoSync = enabled
}

// AutoSyncEnabled reports whether automatic cycles are allowed.
func (e *SyncEngine) AutoSyncEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoSync
}

// State returns a snapshot of the engine state for display.
func (e *SyncEngine) State() models.SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := models.SyncState{
		IsSyncing:       e.syncing,
		AutoSyncEnabled: e.autoSync,
	}
	if e.lastSyncTime != nil {
		t := *e.lastSyncTime
		state.LastSyncTime = &t
	}
	return state
}

// OnReconnect is the connectivity subscription target. The monitor has
// already debounced the transition, so an online report starts a cycle right
// away.
func (e *SyncEngine) OnReconnect(ctx context.Context) func(online bool) {
	return func(online bool) {
		if !online {
			return
		}
		summary := e.RunCycle(ctx, false)
		if summary.Skipped {
			e.logger.WithField("reason", summary.SkipReason).Debug("Reconnect sync skipped")
		}
	}
}

// RunCycle executes one sync session. A request while another session is
// running is rejected with a skipped summary rather than queued; the caller
// can observe the running session through State.
func (e *SyncEngine) RunCycle(ctx context.Context, manual bool) models.SyncSummary {
	if !manual && !e.AutoSyncEnabled() {
		return models.SyncSummary{
			Success:     true,
			Skipped:     true,
			SkipReason:  "auto-sync disabled",
			CompletedAt: e.now(),
		}
	}
	if !e.connectivity.IsOnline() {
		return models.SyncSummary{
			Success:     true,
			Skipped:     true,
			SkipReason:  "offline",
			CompletedAt: e.now(),
		}
	}

	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		metrics.IncrementCounter("sync_rejected_total", nil, "Sync requests rejected because a session was running")
		return models.SyncSummary{
			Success:     true,
			Skipped:     true,
			SkipReason:  "sync already running",
			Error:       apperrors.ErrSyncAlreadyRunning.Error(),
			CompletedAt: e.now(),
		}
	}
	e.syncing = true
	e.mu.Unlock()

	started := e.now()
	summary, mutated := e.deliverDue(ctx)

	e.mu.Lock()
	e.syncing = false
	completed := e.now()
	e.lastSyncTime = &completed
	e.mu.Unlock()

	summary.CompletedAt = completed
	metrics.RecordTimer("sync_cycle_duration", completed.Sub(started), nil, "Sync cycle wall time")
	metrics.AddToCounter("sync_messages_sent_total", float64(summary.SyncedCount), nil, "Messages delivered by sync cycles")

	// Any status write counts as a mutation, failed deliveries included;
	// subscribers re-read through the facade either way.
	if mutated || !summary.Success {
		e.notifier.Notify()
	}

	return summary
}

// deliverDue runs the per-cycle delivery loop over a snapshot of due
// messages. Messages are attempted strictly in deliver_after order; delivery
// is sequential to bound gateway load and preserve that order under partial
// failure. The second return reports whether any status write landed.
func (e *SyncEngine) deliverDue(ctx context.Context) (models.SyncSummary, bool) {
	ctx, span := tracing.StartSpan(ctx, "sync.cycle")
	defer span.End()

	due, err := e.store.DueMessages(ctx, e.now())
	if err != nil {
		tracing.RecordError(ctx, err)
		e.logger.WithError(err).Error("Failed to read due messages, aborting sync cycle")
		return models.SyncSummary{Success: false, Error: err.Error()}, false
	}

	tracing.AddSpanAttributes(ctx, attribute.Int("sync.due_count", len(due)))
	metrics.SetGauge("sync_due_messages", float64(len(due)), nil, "Due messages at cycle start")

	summary := models.SyncSummary{Success: true}
	mutated := false
	var firstErr error

	for i := range due {
		msg := &due[i]
		outcome := e.client.Send(ctx, msg)

		switch outcome.Kind {
		case models.OutcomeDelivered:
			if err := e.store.SetMessageStatus(ctx, msg.ID, models.MessageStatusSent); err != nil {
				e.recordStatusError(msg.ID, err, &firstErr)
				continue
			}
			summary.SyncedCount++
			mutated = true
		case models.OutcomePermanentFailure:
			e.logger.WithFields(logrus.Fields{
				"messageId": msg.ID,
				"reason":    outcome.Reason,
			}).Warn("Delivery failed permanently")
			if err := e.store.SetMessageStatus(ctx, msg.ID, models.MessageStatusFailed); err != nil {
				e.recordStatusError(msg.ID, err, &firstErr)
			} else {
				mutated = true
			}
			metrics.IncrementCounter("sync_messages_failed_total", nil, "Messages failed permanently")
		case models.OutcomeRetryableFailure:
			// Still pending; the next cycle picks it up again.
			e.logger.WithFields(logrus.Fields{
				"messageId": msg.ID,
				"reason":    outcome.Reason,
			}).Debug("Delivery deferred, will retry next cycle")
			metrics.IncrementCounter("sync_messages_deferred_total", nil, "Delivery attempts deferred to a later cycle")
		}
	}

	if firstErr != nil {
		summary.Error = firstErr.Error()
	}
	return summary, mutated
}

func (e *SyncEngine) recordStatusError(id string, err error, firstErr *error) {
	e.logger.WithError(err).WithField("messageId", id).Error("Failed to record delivery outcome")
	if *firstErr == nil {
		*firstErr = err
	}
}
