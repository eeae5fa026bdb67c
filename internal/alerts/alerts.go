// Package alerts delivers operator-facing antifraud alerts to a
// configured admin webhook. Delivery is fire-and-forget: the guard's
// decision path never waits on, or fails because of, alerting.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stampcard/loyalty/internal/antifraud"
	"github.com/stampcard/loyalty/internal/idgen"
)

var (
	alertEmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loyalty",
		Subsystem: "alerts",
		Name:      "emit_total",
		Help:      "Total admin alert emit attempts by reason.",
	}, []string{"reason"})

	alertEmitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loyalty",
		Subsystem: "alerts",
		Name:      "emit_errors_total",
		Help:      "Total admin alert emit failures by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(alertEmitTotal, alertEmitErrors)
}

const dispatchTimeout = 10 * time.Second

// envelope is the wire shape posted to the admin webhook.
type envelope struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Alert     antifraud.AdminAlert `json:"alert"`
}

// Emitter posts antifraud alerts to the admin webhook URL. A nil Emitter
// or an empty URL silently drops alerts, which keeps wiring optional in
// development setups.
type Emitter struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewEmitter creates an alert emitter. url may be empty to disable
// delivery (alerts are still counted and logged).
func NewEmitter(url string, logger *slog.Logger) *Emitter {
	return &Emitter{
		url:    url,
		client: &http.Client{Timeout: dispatchTimeout},
		logger: logger,
	}
}

// AntifraudBlocked implements antifraud.AdminAlerter. The HTTP dispatch
// happens on its own goroutine with its own deadline so that the caller's
// request context cancellation does not cut off delivery.
func (e *Emitter) AntifraudBlocked(ctx context.Context, a antifraud.AdminAlert) {
	if e == nil {
		return
	}
	alertEmitTotal.WithLabelValues(a.Reason).Inc()
	e.logger.Warn("antifraud alert",
		"merchant", a.MerchantID,
		"reason", a.Reason,
		"scope", a.Scope,
		"factor", a.Factor,
		"level", a.Level,
		"customer", a.CustomerID,
		"count", a.Count,
		"limit", a.Limit,
	)
	if e.url == "" {
		return
	}

	env := &envelope{
		ID:        idgen.WithPrefix("evt_"),
		Type:      "antifraud.blocked",
		Timestamp: time.Now(),
		Alert:     a,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := e.dispatch(ctx, env); err != nil {
			alertEmitErrors.WithLabelValues(a.Reason).Inc()
			e.logger.Warn("admin alert dispatch failed", "reason", a.Reason, "error", err)
		}
	}()
}

func (e *Emitter) dispatch(ctx context.Context, env *envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned %d", resp.StatusCode)
	}
	return nil
}

// Compile-time check that Emitter implements the guard's alerter contract.
var _ antifraud.AdminAlerter = (*Emitter)(nil)
