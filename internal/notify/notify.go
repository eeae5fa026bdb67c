// Package notify fans antifraud events out to merchant staff. Events are
// queued in-process, persisted for the staff inbox and broadcast to any
// connected realtime clients by a single background worker.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stampcard/loyalty/internal/antifraud"
)

var (
	staffEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loyalty",
		Subsystem: "notify",
		Name:      "staff_events_total",
		Help:      "Total staff events enqueued by reason.",
	}, []string{"reason"})

	staffEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "loyalty",
		Subsystem: "notify",
		Name:      "staff_events_dropped_total",
		Help:      "Staff events dropped because the queue was full.",
	})
)

func init() {
	prometheus.MustRegister(staffEventsTotal, staffEventsDropped)
}

// Store persists staff events for the merchant inbox.
type Store interface {
	Record(ctx context.Context, merchantID string, e antifraud.StaffEvent) error
}

// Broadcaster pushes events to live staff clients.
type Broadcaster interface {
	BroadcastFraudEvent(merchantID string, e antifraud.StaffEvent)
}

type queued struct {
	merchantID string
	event      antifraud.StaffEvent
}

const queueDepth = 1024

// Queue is the staff notification pipeline. EnqueueEvent never blocks;
// when the queue is full the event is dropped and counted.
type Queue struct {
	events    chan queued
	store     Store
	broadcast Broadcaster
	logger    *slog.Logger
}

// NewQueue creates the pipeline. store and broadcast may be nil.
func NewQueue(store Store, broadcast Broadcaster, logger *slog.Logger) *Queue {
	return &Queue{
		events:    make(chan queued, queueDepth),
		store:     store,
		broadcast: broadcast,
		logger:    logger,
	}
}

// EnqueueEvent implements antifraud.StaffNotifier.
func (q *Queue) EnqueueEvent(ctx context.Context, merchantID string, e antifraud.StaffEvent) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	staffEventsTotal.WithLabelValues(e.Reason).Inc()
	select {
	case q.events <- queued{merchantID: merchantID, event: e}:
	default:
		staffEventsDropped.Inc()
		q.logger.Warn("staff event queue full, dropping event",
			"merchant", merchantID, "reason", e.Reason)
	}
}

// Run drains the queue until ctx is cancelled. Persistence failures are
// logged and the event is still broadcast; staff notifications are best
// effort end to end.
func (q *Queue) Run(ctx context.Context) {
	q.logger.Info("staff notification queue started")
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("staff notification queue stopped")
			return
		case item := <-q.events:
			q.deliver(item)
		}
	}
}

func (q *Queue) deliver(item queued) {
	if q.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := q.store.Record(ctx, item.merchantID, item.event); err != nil {
			q.logger.Warn("staff event persist failed",
				"merchant", item.merchantID, "reason", item.event.Reason, "error", err)
		}
		cancel()
	}
	if q.broadcast != nil {
		q.broadcast.BroadcastFraudEvent(item.merchantID, item.event)
	}
}

// Compile-time check that Queue implements the guard's notifier contract.
var _ antifraud.StaffNotifier = (*Queue)(nil)
