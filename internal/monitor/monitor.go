// Package monitor evaluates prediction results against the buyer's active
// price alerts and dispatches notifications for the ones that match.
//
// Matching rules:
//
//	above:  predicted price >= target
//	below:  predicted price <= target
//	change: |price - previous| / previous * 100 >= target (target is a percentage)
//
// The previous price is the last one seen in this session for the same
// commodity, district and market, so a change alert needs two predictions
// before it can match. A matching alert is persisted as triggered.
//
// Instant alerts are notified right away, subject to a cooldown per alert.
// Daily and weekly alerts are queued in the alertDigests namespace, one entry
// per alert and frequency, and delivered by FlushDigest, which the scheduler
// calls on the configured cron schedules. The queue is durable, so a process
// that only predicts leaves its entries for the one that runs the schedule.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/mandinetra/internal/kv"
	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/rewired-gh/mandinetra/internal/storage"
	"github.com/shopspring/decimal"
)

// AlertSource is the subset of the alert registry the monitor needs.
type AlertSource interface {
	ActiveFor(commodity, district string) []models.AlertRecord
	MarkTriggered(ctx context.Context, id int64, at time.Time) (bool, error)
}

// Notifier delivers triggered alerts.
type Notifier interface {
	SendAlerts(ctx context.Context, triggers []models.AlertTrigger) error
	SendDigest(ctx context.Context, frequency models.AlertFrequency, triggers []models.AlertTrigger) error
}

// notifiedRecord tracks a previously sent notification for cooldown deduplication.
type notifiedRecord struct {
	Direction string
	Price     decimal.Decimal
	SentAt    time.Time
}

// DigestNamespace is the durable namespace of the digest queue.
const DigestNamespace = "alertDigests"

// DigestEntry is one queued digest trigger.
type DigestEntry struct {
	ID        int64                 `json:"id"`
	Frequency models.AlertFrequency `json:"frequency"`
	Trigger   models.AlertTrigger   `json:"trigger"`
}

func digestKey(e DigestEntry) string {
	return string(e.Frequency) + "|" + strconv.FormatInt(e.Trigger.Alert.ID, 10)
}

// Monitor handles alert evaluation and notification dispatch
type Monitor struct {
	alerts   AlertSource
	notifier Notifier
	cooldown time.Duration
	now      func() time.Time
	digests  *storage.Collection[DigestEntry]

	flushMu sync.Mutex

	mu             sync.Mutex
	lastPrices     map[string]decimal.Decimal // key = selection key
	notifiedAlerts map[int64]notifiedRecord   // key = alert ID
}

// New creates a Monitor whose digest queue lives in memory.
// A nil notifier logs triggers instead.
func New(alerts AlertSource, notifier Notifier, cooldown time.Duration) *Monitor {
	return NewWithStore(alerts, notifier, cooldown, kv.NewMemoryStore())
}

// NewWithStore creates a Monitor that keeps its digest queue in store.
func NewWithStore(alerts AlertSource, notifier Notifier, cooldown time.Duration, store kv.Store) *Monitor {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Monitor{
		alerts:   alerts,
		notifier: notifier,
		cooldown: cooldown,
		now:      time.Now,
		digests: storage.New(store, storage.Options[DigestEntry]{
			Namespace: DigestNamespace,
			Key:       digestKey,
			ID:        func(e DigestEntry) int64 { return e.ID },
			SetID:     func(e *DigestEntry, id int64) { e.ID = id },
		}),
		lastPrices:     make(map[string]decimal.Decimal),
		notifiedAlerts: make(map[int64]notifiedRecord),
	}
}

// EvaluationError represents a per-alert error during evaluation
type EvaluationError struct {
	AlertID int64
	Err     error
}

func (e EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error for alert %d: %v", e.AlertID, e.Err)
}

var hundred = decimal.NewFromInt(100)

// Match reports whether alert matches price. previous may be nil. The returned
// percentage is the move from previous, or zero without a previous price.
func Match(alert models.AlertRecord, price decimal.Decimal, previous *decimal.Decimal) (bool, decimal.Decimal) {
	changePct := decimal.Zero
	if previous != nil && !previous.IsZero() {
		changePct = price.Sub(*previous).Div(*previous).Mul(hundred)
	}

	switch alert.Condition {
	case models.ConditionAbove:
		return price.GreaterThanOrEqual(alert.TargetPrice), changePct
	case models.ConditionBelow:
		return price.LessThanOrEqual(alert.TargetPrice), changePct
	case models.ConditionChange:
		if previous == nil || previous.IsZero() {
			return false, changePct
		}
		return changePct.Abs().GreaterThanOrEqual(alert.TargetPrice), changePct
	}
	return false, changePct
}

// Evaluate matches result against the active alerts for its commodity and
// district and persists every match as triggered. Per-alert persistence
// failures are returned alongside the triggers and do not stop evaluation.
func (m *Monitor) Evaluate(ctx context.Context, result models.PredictionResult) ([]models.AlertTrigger, []EvaluationError) {
	sel := result.Selection
	if !sel.Complete() {
		sel = models.Selection{Commodity: result.Commodity, District: result.District, Market: result.Market}
	}

	m.mu.Lock()
	var previous *decimal.Decimal
	if p, ok := m.lastPrices[sel.Key()]; ok {
		previous = &p
	}
	m.lastPrices[sel.Key()] = result.PredictedPrice
	m.mu.Unlock()

	now := m.now()
	var triggers []models.AlertTrigger
	var evalErrors []EvaluationError

	candidates := m.alerts.ActiveFor(sel.Commodity, sel.District)
	for _, alert := range candidates {
		ok, changePct := Match(alert, result.PredictedPrice, previous)
		if !ok {
			continue
		}

		if _, err := m.alerts.MarkTriggered(ctx, alert.ID, now); err != nil {
			evalErrors = append(evalErrors, EvaluationError{AlertID: alert.ID, Err: err})
		}
		triggeredAt := now
		alert.Triggered = true
		alert.TriggeredAt = &triggeredAt

		triggers = append(triggers, models.AlertTrigger{
			ID:            uuid.New().String(),
			Alert:         alert,
			Result:        result,
			PreviousPrice: previous,
			ChangePct:     changePct,
			DetectedAt:    now,
		})
	}

	logger.Debug("Evaluate: %s price=%s candidates=%d matched=%d errors=%d",
		sel.Key(), result.PredictedPrice.String(), len(candidates), len(triggers), len(evalErrors))

	return triggers, evalErrors
}

// Process evaluates result, sends instant notifications and queues digest
// entries. It is meant to be registered as a prediction listener.
func (m *Monitor) Process(ctx context.Context, result models.PredictionResult) error {
	triggers, evalErrors := m.Evaluate(ctx, result)
	for _, e := range evalErrors {
		logger.Warn("%v", e)
	}
	if len(triggers) == 0 {
		return nil
	}

	var instant []models.AlertTrigger
	var queueErr error
	for _, t := range triggers {
		switch t.Alert.Frequency {
		case models.FrequencyDaily, models.FrequencyWeekly:
			if err := m.enqueue(ctx, t); err != nil {
				logger.Warn("Failed to queue %s digest entry for alert %d: %v", t.Alert.Frequency, t.Alert.ID, err)
				queueErr = fmt.Errorf("failed to queue digest entry: %w", err)
			}
		default:
			instant = append(instant, t)
		}
	}

	instant = m.FilterRecentlySent(instant, m.cooldown)
	if len(instant) == 0 {
		return queueErr
	}

	if err := m.notifier.SendAlerts(ctx, instant); err != nil {
		return fmt.Errorf("failed to send alert notification: %w", err)
	}
	m.RecordNotified(instant)
	logger.Info("Sent %d instant alert notification(s)", len(instant))
	return queueErr
}

// enqueue adds t to its digest, replacing an older entry for the same alert.
func (m *Monitor) enqueue(ctx context.Context, t models.AlertTrigger) error {
	_, err := m.digests.Add(ctx, DigestEntry{Frequency: t.Alert.Frequency, Trigger: t})
	return err
}

// pending reloads the durable queue and returns the entries for frequency,
// oldest first.
func (m *Monitor) pending(ctx context.Context, frequency models.AlertFrequency) ([]DigestEntry, error) {
	if err := m.digests.Load(ctx); err != nil {
		return nil, err
	}
	var out []DigestEntry
	for _, e := range m.digests.List() {
		if e.Frequency == frequency {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Trigger.DetectedAt.Before(out[j].Trigger.DetectedAt)
	})
	return out, nil
}

// Pending returns the queued digest entries for frequency, oldest first.
func (m *Monitor) Pending(ctx context.Context, frequency models.AlertFrequency) ([]models.AlertTrigger, error) {
	entries, err := m.pending(ctx, frequency)
	if err != nil {
		return nil, err
	}
	out := make([]models.AlertTrigger, len(entries))
	for i, e := range entries {
		out[i] = e.Trigger
	}
	return out, nil
}

// FlushDigest sends the queued entries for frequency as one digest and then
// removes exactly the entries it sent. On failure nothing is removed; an
// alert that triggers again meanwhile replaces its entry instead of adding one.
func (m *Monitor) FlushDigest(ctx context.Context, frequency models.AlertFrequency) (int, error) {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	entries, err := m.pending(ctx, frequency)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s digest: %w", frequency, err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	triggers := make([]models.AlertTrigger, len(entries))
	sent := make(map[int64]bool, len(entries))
	for i, e := range entries {
		triggers[i] = e.Trigger
		sent[e.ID] = true
	}

	if err := m.notifier.SendDigest(ctx, frequency, triggers); err != nil {
		return 0, fmt.Errorf("failed to send %s digest: %w", frequency, err)
	}
	m.RecordNotified(triggers)

	if _, err := m.digests.RemoveIf(ctx, func(e DigestEntry) bool { return sent[e.ID] }); err != nil {
		return len(triggers), fmt.Errorf("sent %s digest but failed to dequeue it: %w", frequency, err)
	}
	logger.Info("Sent %s digest with %d alert(s)", frequency, len(triggers))
	return len(triggers), nil
}

// FilterRecentlySent removes triggers whose alert was notified within cooldown
// with the same price direction. Returns a non-nil slice.
func (m *Monitor) FilterRecentlySent(triggers []models.AlertTrigger, cooldown time.Duration) []models.AlertTrigger {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	result := make([]models.AlertTrigger, 0, len(triggers))
	for _, t := range triggers {
		rec, exists := m.notifiedAlerts[t.Alert.ID]
		if exists && now.Sub(rec.SentAt) < cooldown {
			// Recently sent; suppress unless the price turned around
			dir := t.Direction()
			reversed := rec.Direction != "" && dir != "" && rec.Direction != dir
			if !reversed {
				continue
			}
		}
		result = append(result, t)
	}
	return result
}

// RecordNotified records the given triggers as notified at the current time.
// Call this after a successful send to enable cooldown deduplication.
func (m *Monitor) RecordNotified(triggers []models.AlertTrigger) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, t := range triggers {
		m.notifiedAlerts[t.Alert.ID] = notifiedRecord{
			Direction: t.Direction(),
			Price:     t.Result.PredictedPrice,
			SentAt:    now,
		}
	}
}

// LastPrice returns the last price seen this session for sel.
func (m *Monitor) LastPrice(sel models.Selection) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.lastPrices[sel.Key()]
	return p, ok
}

// LogNotifier writes triggers to the log. It is used when no other channel is configured.
type LogNotifier struct{}

// SendAlerts implements Notifier.
func (LogNotifier) SendAlerts(_ context.Context, triggers []models.AlertTrigger) error {
	log := logger.With("notifier")
	for _, t := range triggers {
		log.Info().
			Int64("alert_id", t.Alert.ID).
			Str("commodity", t.Alert.Commodity).
			Str("condition", string(t.Alert.Condition)).
			Str("target", t.Alert.TargetPrice.String()).
			Str("price", t.Result.PredictedPrice.String()).
			Str("market", t.Result.Selection.Key()).
			Msg("Price alert triggered")
	}
	return nil
}

// SendDigest implements Notifier.
func (n LogNotifier) SendDigest(ctx context.Context, frequency models.AlertFrequency, triggers []models.AlertTrigger) error {
	log := logger.With("notifier")
	log.Info().Str("frequency", string(frequency)).Int("count", len(triggers)).Msg("Alert digest")
	return n.SendAlerts(ctx, triggers)
}
