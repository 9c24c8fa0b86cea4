// Package predict issues price prediction requests for a complete selection
// and keeps the session's bounded, most-recent-first prediction history.
//
// Overlapping submissions are allowed. Each resolves independently and the
// one that completes last determines the current result or error.
package predict

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/mandinetra/internal/catalog"
	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/models"
)

// DefaultHistoryLimit bounds the history when no limit is configured.
const DefaultHistoryLimit = 10

// Predictor is the subset of the remote client the orchestrator needs.
type Predictor interface {
	Predict(ctx context.Context, sel models.Selection, requestID string) (catalog.Result[models.PredictionResult], error)
}

// Outcome is the resolution of one submission.
type Outcome struct {
	Result models.PredictionResult
	Err    error
}

// State is a copy of everything the orchestrator exposes.
type State struct {
	Current *models.PredictionResult
	Err     error
	Loading bool
	History []models.PredictionResult
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	client       Predictor
	historyLimit int
	newID        func() string

	mu        sync.Mutex
	history   []models.PredictionResult
	current   *models.PredictionResult
	err       error
	pending   int
	listeners []func(context.Context, models.PredictionResult)
}

// New creates an Orchestrator. A historyLimit below 1 uses DefaultHistoryLimit.
func New(client Predictor, historyLimit int) *Orchestrator {
	if historyLimit < 1 {
		historyLimit = DefaultHistoryLimit
	}
	return &Orchestrator{
		client:       client,
		historyLimit: historyLimit,
		newID:        func() string { return uuid.New().String() },
		history:      make([]models.PredictionResult, 0, historyLimit),
	}
}

// OnResult registers fn to receive every successful prediction.
// fn runs on the submitting goroutine with the caller's ctx after the state
// has been updated.
func (o *Orchestrator) OnResult(fn func(context.Context, models.PredictionResult)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Submit requests a prediction for sel and waits for the answer.
//
// An incomplete selection fails with models.ErrIncompleteSelection without any
// network call. A structured service error is returned as
// *models.PredictionFailedError and a transport failure as
// *models.ConnectionError. Submit never retries.
func (o *Orchestrator) Submit(ctx context.Context, sel models.Selection) (models.PredictionResult, error) {
	if !sel.Complete() {
		return models.PredictionResult{}, models.ErrIncompleteSelection
	}

	requestID := o.newID()

	o.mu.Lock()
	o.pending++
	o.mu.Unlock()

	start := time.Now()
	res, err := o.client.Predict(ctx, sel, requestID)
	if err == nil && !res.IsOk() {
		err = &models.PredictionFailedError{Message: res.ErrMessage, StatusCode: res.StatusCode}
	}

	o.mu.Lock()
	o.pending--
	if err != nil {
		o.current = nil
		o.err = err
		o.mu.Unlock()

		logger.Warn("Prediction %s for %s failed after %v: %v", requestID, sel.Key(), time.Since(start), err)
		return models.PredictionResult{}, err
	}

	result := res.Value
	o.current = &result
	o.err = nil
	o.history = prepend(o.history, result, o.historyLimit)
	listeners := make([]func(context.Context, models.PredictionResult), len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	logger.Info("Prediction %s for %s: %s (%s)", requestID, sel.Key(), result.PredictedPrice.StringFixed(2), result.PredictionDate)
	for _, fn := range listeners {
		fn(ctx, result)
	}
	return result, nil
}

// Go runs Submit in the background. The channel receives exactly one Outcome.
// An incomplete selection is still rejected before Go returns.
func (o *Orchestrator) Go(ctx context.Context, sel models.Selection) (<-chan Outcome, error) {
	if !sel.Complete() {
		return nil, models.ErrIncompleteSelection
	}
	ch := make(chan Outcome, 1)
	go func() {
		result, err := o.Submit(ctx, sel)
		ch <- Outcome{Result: result, Err: err}
	}()
	return ch, nil
}

func prepend(history []models.PredictionResult, r models.PredictionResult, limit int) []models.PredictionResult {
	next := make([]models.PredictionResult, 0, limit)
	next = append(next, r)
	next = append(next, history...)
	if len(next) > limit {
		next = next[:limit]
	}
	return next
}

// History returns the session history, most recent first.
func (o *Orchestrator) History() []models.PredictionResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.PredictionResult, len(o.history))
	copy(out, o.history)
	return out
}

// Current returns the current result, if the last completed submission succeeded.
func (o *Orchestrator) Current() (models.PredictionResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil {
		return models.PredictionResult{}, false
	}
	return *o.current, true
}

// Err returns the error of the last completed submission, if it failed.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Loading reports whether any submission is outstanding.
func (o *Orchestrator) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending > 0
}

// State returns a copy of the observable state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := State{
		Err:     o.err,
		Loading: o.pending > 0,
		History: make([]models.PredictionResult, len(o.history)),
	}
	copy(s.History, o.history)
	if o.current != nil {
		cur := *o.current
		s.Current = &cur
	}
	return s
}

// ClearCurrent drops the current result and error. History is kept.
func (o *Orchestrator) ClearCurrent() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.current = nil
	o.err = nil
}

// ClearHistory empties the session history.
func (o *Orchestrator) ClearHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = make([]models.PredictionResult, 0, o.historyLimit)
}
