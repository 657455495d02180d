package syncq

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/herbtrace/herbtrace-backend/internal/data/repos/syncitems"
	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/metrics"
	"github.com/herbtrace/herbtrace-backend/internal/platform/dbctx"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

// Transport delivers one queued item to the authoritative store. An error
// means every candidate endpoint refused or timed out; the engine handles
// retry bookkeeping.
type Transport interface {
	Send(ctx context.Context, item *domain.SyncItem) error
}

// QueueStatus is a pure read of queue state; no side effects.
type QueueStatus struct {
	Total           int64 `json:"total"`
	Pending         int64 `json:"pending"`
	Completed       int64 `json:"completed"`
	Failed          int64 `json:"failed"`
	IsOnline        bool  `json:"is_online"`
	DrainInProgress bool  `json:"drain_in_progress"`
}

// DrainResult reports one drain pass. Ran is false when another drain held
// the single-flight guard or the client was offline.
type DrainResult struct {
	Ran       bool `json:"ran"`
	Submitted int  `json:"submitted"`
	Retried   int  `json:"retried"`
	Failed    int  `json:"failed"`
}

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Engine is the offline resilience queue: it durably records outbound
// writes before any network attempt and drains them with linear backoff.
// One instance is built by the composition root and shared by reference;
// there is no ambient singleton.
type Engine struct {
	repo      syncitems.SyncItemRepo
	transport Transport
	log       *logger.Logger
	metrics   *metrics.SyncMetrics

	maxAttempts int
	baseDelay   time.Duration

	online   atomic.Bool
	draining int32

	now      func() time.Time
	schedule func(d time.Duration, fn func())
}

func NewEngine(repo syncitems.SyncItemRepo, transport Transport, baseLog *logger.Logger, m *metrics.SyncMetrics, cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 5 * time.Second
	}
	e := &Engine{
		repo:        repo,
		transport:   transport,
		log:         baseLog.With("service", "SyncEngine"),
		metrics:     m,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		now:         func() time.Time { return time.Now().UTC() },
		schedule:    func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
	e.online.Store(true)
	return e
}

// Enqueue persists a new pending item before any transmission is attempted,
// so a crash after this call loses nothing.
func (e *Engine) Enqueue(ctx context.Context, itemType string, payload []byte) (int64, error) {
	item := &domain.SyncItem{
		Type:        itemType,
		Payload:     payload,
		Attempts:    0,
		MaxAttempts: e.maxAttempts,
		Status:      domain.SyncPending,
		CreatedAt:   e.now(),
		UpdatedAt:   e.now(),
	}
	if _, err := e.repo.Create(dbctx.From(ctx), item); err != nil {
		return 0, fmt.Errorf("persist sync item: %w", err)
	}
	e.metrics.Enqueued()
	e.refreshPendingGauge(ctx)
	e.log.Debug("sync item enqueued", "id", item.ID, "type", itemType)
	return item.ID, nil
}

// Drain pushes every due pending item through the transport in FIFO order.
// The single-flight guard is taken with a synchronous compare-and-swap
// before any I/O, so a timer tick and a reconnect event firing together
// can never double-submit the same item: the loser returns immediately.
func (e *Engine) Drain(ctx context.Context) DrainResult {
	if !atomic.CompareAndSwapInt32(&e.draining, 0, 1) {
		return DrainResult{}
	}
	defer atomic.StoreInt32(&e.draining, 0)

	if !e.online.Load() {
		e.log.Debug("drain skipped: offline")
		return DrainResult{}
	}

	started := e.now()
	dbc := dbctx.From(ctx)
	items, err := e.repo.PendingDue(dbc, started)
	if err != nil {
		e.log.Error("drain: load pending items", "error", err)
		return DrainResult{}
	}

	result := DrainResult{Ran: true}
	var nextDelay time.Duration
	for _, item := range items {
		if err := e.transport.Send(ctx, item); err != nil {
			updated, bookErr := e.recordFailure(dbc, item, err)
			if bookErr != nil {
				e.log.Error("drain: record failure", "id", item.ID, "error", bookErr)
				continue
			}
			if updated.Status == domain.SyncFailed {
				result.Failed++
				e.metrics.Failed()
				e.log.Warn("sync item exhausted retry budget", "id", updated.ID, "attempts", updated.Attempts, "lastError", updated.LastError)
			} else {
				result.Retried++
				e.metrics.Retried()
				delay := updated.NextRetryAt.Sub(started)
				if nextDelay == 0 || delay < nextDelay {
					nextDelay = delay
				}
			}
			continue
		}
		if err := e.repo.MarkCompleted(dbc, item.ID, e.now()); err != nil {
			e.log.Error("drain: mark completed", "id", item.ID, "error", err)
			continue
		}
		result.Submitted++
		e.metrics.Submitted()
	}

	e.metrics.ObserveDrain(e.now().Sub(started).Seconds())
	e.refreshPendingGauge(ctx)

	if nextDelay > 0 {
		e.schedule(nextDelay, func() { e.Drain(context.Background()) })
	}

	e.log.Info("drain finished",
		"submitted", result.Submitted,
		"retried", result.Retried,
		"failed", result.Failed,
	)
	return result
}

func (e *Engine) recordFailure(dbc dbctx.Context, item *domain.SyncItem, cause error) (*domain.SyncItem, error) {
	now := e.now()
	// Linear backoff: the delay grows with the attempt count the item is
	// about to carry.
	nextRetry := now.Add(e.baseDelay * time.Duration(item.Attempts+1))
	return e.repo.RecordFailure(dbc, item.ID, cause.Error(), now, nextRetry)
}

// NotifyOnline feeds connectivity changes into the engine. A reconnect
// triggers an immediate drain.
func (e *Engine) NotifyOnline(ctx context.Context, online bool) {
	was := e.online.Swap(online)
	if online && !was {
		e.log.Info("network restored, draining queue")
		e.Drain(ctx)
	}
}

// StartTicker drains on a fixed idle interval until ctx is cancelled.
func (e *Engine) StartTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Drain(ctx)
			}
		}
	}()
}

// ForceSync is the explicit user-facing drain trigger.
func (e *Engine) ForceSync(ctx context.Context) DrainResult {
	return e.Drain(ctx)
}

// ForceSyncAll resets failed items back to pending with a fresh retry
// budget, then drains. This is the only path out of the failed state.
func (e *Engine) ForceSyncAll(ctx context.Context) (DrainResult, error) {
	revived, err := e.repo.ResetFailed(dbctx.From(ctx))
	if err != nil {
		return DrainResult{}, fmt.Errorf("reset failed items: %w", err)
	}
	if revived > 0 {
		e.log.Info("failed sync items reset", "count", revived)
	}
	return e.Drain(ctx), nil
}

// ClearCompleted removes completed items; the only way queue entries are
// ever destroyed.
func (e *Engine) ClearCompleted(ctx context.Context) (int64, error) {
	n, err := e.repo.DeleteCompleted(dbctx.From(ctx))
	if err != nil {
		return 0, fmt.Errorf("clear completed items: %w", err)
	}
	e.refreshPendingGauge(ctx)
	return n, nil
}

// Status is a pure read of current queue state.
func (e *Engine) Status(ctx context.Context) (QueueStatus, error) {
	counts, err := e.repo.Counts(dbctx.From(ctx))
	if err != nil {
		return QueueStatus{}, fmt.Errorf("count sync items: %w", err)
	}
	return QueueStatus{
		Total:           counts.Total,
		Pending:         counts.Pending,
		Completed:       counts.Completed,
		Failed:          counts.Failed,
		IsOnline:        e.online.Load(),
		DrainInProgress: atomic.LoadInt32(&e.draining) == 1,
	}, nil
}

func (e *Engine) refreshPendingGauge(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	counts, err := e.repo.Counts(dbctx.From(ctx))
	if err != nil {
		return
	}
	e.metrics.SetPending(float64(counts.Pending))
}

// SetNow and SetSchedule override the clock and retry scheduler; tests only.
func (e *Engine) SetNow(now func() time.Time)                      { e.now = now }
func (e *Engine) SetSchedule(schedule func(time.Duration, func())) { e.schedule = schedule }
