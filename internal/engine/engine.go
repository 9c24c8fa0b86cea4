// Package engine assembles the buyer engine from configuration: the remote
// catalog client, the selection cascade, the prediction orchestrator, the
// persisted favorites, alerts and settings, and the alert monitor with its
// digest scheduler. It is the single entry point used by the command line.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rewired-gh/mandinetra/internal/alerts"
	"github.com/rewired-gh/mandinetra/internal/cascade"
	"github.com/rewired-gh/mandinetra/internal/catalog"
	"github.com/rewired-gh/mandinetra/internal/config"
	"github.com/rewired-gh/mandinetra/internal/favorites"
	"github.com/rewired-gh/mandinetra/internal/kv"
	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/rewired-gh/mandinetra/internal/monitor"
	"github.com/rewired-gh/mandinetra/internal/predict"
	"github.com/rewired-gh/mandinetra/internal/scheduler"
	"github.com/rewired-gh/mandinetra/internal/settings"
	"github.com/rewired-gh/mandinetra/internal/telegram"
	"github.com/rs/zerolog"
)

// ErrNoResult is returned when an operation needs a current prediction and there is none.
var ErrNoResult = errors.New("no current prediction")

// Options overrides parts of the assembly. Zero values use the configured defaults.
type Options struct {
	Store    kv.Backend       // replaces the configured storage backend
	Notifier monitor.Notifier // replaces Telegram or log delivery
}

// Snapshot is a copy of everything a view renders.
type Snapshot struct {
	Selection        models.Selection
	Districts        []models.District
	Markets          []models.Market
	LoadingDistricts bool
	LoadingMarkets   bool
	CascadeError     string

	Current         *models.PredictionResult
	PredictionError error
	Predicting      bool
	History         []models.PredictionResult

	Favorites []models.FavoriteRecord
	Alerts    []models.AlertRecord
	Settings  settings.Settings
}

// Engine is safe for concurrent use.
type Engine struct {
	cfg    *config.Config
	log    zerolog.Logger
	cancel context.CancelFunc

	store       kv.Backend
	client      *catalog.Client
	cascade     *cascade.Resolver
	predictions *predict.Orchestrator
	favorites   *favorites.Store
	alerts      *alerts.Registry
	settings    *settings.Store
	monitor     *monitor.Monitor
	scheduler   *scheduler.Scheduler

	closeOnce sync.Once
}

// New builds an Engine and loads every persisted collection.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	store := opts.Store
	if store == nil {
		var err error
		store, err = kv.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	client := catalog.NewClient(cfg.API.BaseURL, cfg.API.Timeout, catalog.ClientConfig{
		MaxRetries:     cfg.API.MaxRetries,
		RetryDelayBase: cfg.API.RetryDelayBase,
	})

	e := &Engine{
		cfg:         cfg,
		log:         logger.With("engine"),
		cancel:      cancel,
		store:       store,
		client:      client,
		cascade:     cascade.New(runCtx, client),
		predictions: predict.New(client, cfg.Engine.HistoryLimit),
		favorites:   favorites.New(store, cfg.Engine.FavoritesLimit),
		alerts:      alerts.New(store),
		settings:    settings.New(store),
	}

	if err := e.load(ctx); err != nil {
		cancel()
		_ = store.Close()
		return nil, err
	}

	if cfg.Alerts.Enabled {
		if err := e.setupAlerts(opts.Notifier); err != nil {
			cancel()
			_ = store.Close()
			return nil, err
		}
	}

	e.log.Info().
		Str("api", cfg.API.BaseURL).
		Str("storage", cfg.Storage.Backend).
		Bool("alerts", cfg.Alerts.Enabled).
		Int("favorites", len(e.favorites.List())).
		Int("alert_rules", len(e.alerts.List())).
		Msg("Engine ready")
	return e, nil
}

func (e *Engine) load(ctx context.Context) error {
	if err := e.favorites.Load(ctx); err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}
	if err := e.alerts.Load(ctx); err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}
	if err := e.settings.Load(ctx); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	return nil
}

func (e *Engine) setupAlerts(notifier monitor.Notifier) error {
	if notifier == nil && e.cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(e.cfg.Telegram.BotToken, e.cfg.Telegram.ChatID, e.cfg.Telegram.MaxRetries, e.cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		notifier = tg
		e.log.Info().Msg("Telegram notifications enabled")
	}

	e.monitor = monitor.NewWithStore(e.alerts, notifier, e.cfg.Alerts.Cooldown, e.store)
	e.predictions.OnResult(func(ctx context.Context, r models.PredictionResult) {
		if !e.settings.Get().PriceAlerts {
			return
		}
		if err := e.monitor.Process(ctx, r); err != nil {
			e.log.Error().Err(err).Str("selection", r.Selection.Key()).Msg("Alert processing failed")
		}
	})

	e.scheduler = scheduler.New(logger.Zerolog())
	jobs := []struct {
		schedule  string
		frequency models.AlertFrequency
	}{
		{e.cfg.Alerts.DailySchedule, models.FrequencyDaily},
		{e.cfg.Alerts.WeeklySchedule, models.FrequencyWeekly},
	}
	for _, j := range jobs {
		job := scheduler.NewDigestJob(logger.Zerolog(), e.monitor, j.frequency, e.cfg.API.Timeout)
		if err := e.scheduler.AddJob(j.schedule, job); err != nil {
			return fmt.Errorf("invalid %s digest schedule %q: %w", j.frequency, j.schedule, err)
		}
	}
	return nil
}

// Snapshot returns the current observable state.
func (e *Engine) Snapshot() Snapshot {
	cs := e.cascade.State()
	ps := e.predictions.State()
	return Snapshot{
		Selection:        cs.Selection,
		Districts:        cs.Districts,
		Markets:          cs.Markets,
		LoadingDistricts: cs.LoadingDistricts,
		LoadingMarkets:   cs.LoadingMarkets,
		CascadeError:     cs.LastError,
		Current:          ps.Current,
		PredictionError:  ps.Err,
		Predicting:       ps.Loading,
		History:          ps.History,
		Favorites:        e.favorites.List(),
		Alerts:           e.alerts.List(),
		Settings:         e.settings.Get(),
	}
}

// OnChange registers fn to receive the cascade state after every change.
func (e *Engine) OnChange(fn func(cascade.State)) {
	e.cascade.OnChange(fn)
}

// Commodities returns the commodities the service offers, falling back to
// the built-in catalogue when the service cannot be reached.
func (e *Engine) Commodities(ctx context.Context) []models.Commodity {
	res, err := e.client.FetchCommodities(ctx)
	if err != nil || !res.IsOk() || len(res.Value) == 0 {
		if err == nil {
			err = errors.New(res.ErrMessage)
		}
		e.log.Warn().Err(err).Msg("Using built-in commodity catalogue")
		return models.Commodities()
	}
	return res.Value
}

// Health probes the prediction service.
func (e *Engine) Health(ctx context.Context) (catalog.Health, error) {
	res, err := e.client.Health(ctx)
	if err != nil {
		return catalog.Health{}, err
	}
	if !res.IsOk() {
		return catalog.Health{}, &models.PredictionFailedError{Message: res.ErrMessage, StatusCode: res.StatusCode}
	}
	return res.Value, nil
}

// SetCommodity selects a commodity. Its districts load in the background.
func (e *Engine) SetCommodity(commodity string) {
	e.cascade.SetCommodity(commodity)
}

// SetDistrict selects a district. Its markets load in the background.
func (e *Engine) SetDistrict(district string) error {
	return e.cascade.SetDistrict(district)
}

// SetMarket selects a market.
func (e *Engine) SetMarket(market string) error {
	return e.cascade.SetMarket(market)
}

// WaitIdle blocks until every background option fetch has finished.
func (e *Engine) WaitIdle() {
	e.cascade.Wait()
}

// Select drives the cascade through all three levels, waiting for each
// option set. It fails if a level is not offered or a lookup failed.
func (e *Engine) Select(commodity, district, market string) error {
	e.cascade.SetCommodity(commodity)
	e.cascade.Wait()
	if err := e.cascade.Err(); err != nil {
		return err
	}
	if err := e.cascade.SetDistrict(district); err != nil {
		return err
	}
	e.cascade.Wait()
	if err := e.cascade.Err(); err != nil {
		return err
	}
	return e.cascade.SetMarket(market)
}

// Predict requests a prediction for the current selection.
func (e *Engine) Predict(ctx context.Context) (models.PredictionResult, error) {
	return e.predictions.Submit(ctx, e.cascade.Selection())
}

// Reset clears the whole form: selection, option sets, current result and error.
// History, favorites and alerts are kept.
func (e *Engine) Reset() {
	e.cascade.Reset()
	e.predictions.ClearCurrent()
}

// ClearHistory empties the session's prediction history.
func (e *Engine) ClearHistory() {
	e.predictions.ClearHistory()
}

// AddFavorite saves the current prediction.
func (e *Engine) AddFavorite(ctx context.Context) (models.FavoriteRecord, error) {
	current, ok := e.predictions.Current()
	if !ok {
		return models.FavoriteRecord{}, ErrNoResult
	}
	return e.favorites.Add(ctx, &current)
}

// IsFavorite reports whether the current selection is saved.
func (e *Engine) IsFavorite() bool {
	return e.favorites.Contains(e.cascade.Selection())
}

// RemoveFavorite deletes a favorite by id.
func (e *Engine) RemoveFavorite(ctx context.Context, id int64) (bool, error) {
	return e.favorites.Remove(ctx, id)
}

// Favorites lists the saved predictions, most recent first.
func (e *Engine) Favorites() []models.FavoriteRecord {
	return e.favorites.List()
}

// CreateAlert validates fields and persists a new active alert.
func (e *Engine) CreateAlert(ctx context.Context, fields models.AlertFields) (models.AlertRecord, error) {
	return e.alerts.Create(ctx, fields)
}

// ToggleAlert flips an alert's active flag.
func (e *Engine) ToggleAlert(ctx context.Context, id int64) (bool, error) {
	return e.alerts.Toggle(ctx, id)
}

// SetAlertActive sets an alert's active flag.
func (e *Engine) SetAlertActive(ctx context.Context, id int64, active bool) (bool, error) {
	return e.alerts.SetActive(ctx, id, active)
}

// RearmAlert clears an alert's triggered state.
func (e *Engine) RearmAlert(ctx context.Context, id int64) (bool, error) {
	return e.alerts.Rearm(ctx, id)
}

// DeleteAlert removes an alert.
func (e *Engine) DeleteAlert(ctx context.Context, id int64) (bool, error) {
	return e.alerts.Delete(ctx, id)
}

// Alerts lists the alert rules, newest first.
func (e *Engine) Alerts() []models.AlertRecord {
	return e.alerts.List()
}

// Settings returns the buyer's preferences.
func (e *Engine) Settings() settings.Settings {
	return e.settings.Get()
}

// SetSetting changes one preference.
func (e *Engine) SetSetting(ctx context.Context, key, value string) (settings.Settings, error) {
	return e.settings.Set(ctx, key, value)
}

// ResetSettings restores the default preferences.
func (e *Engine) ResetSettings(ctx context.Context) error {
	return e.settings.Reset(ctx)
}

// FlushDigest delivers the queued alerts of one frequency now.
func (e *Engine) FlushDigest(ctx context.Context, frequency models.AlertFrequency) (int, error) {
	if e.monitor == nil {
		return 0, nil
	}
	return e.monitor.FlushDigest(ctx, frequency)
}

// PendingDigest returns the queued alerts of one frequency, including those
// queued by other processes sharing the storage backend.
func (e *Engine) PendingDigest(ctx context.Context, frequency models.AlertFrequency) ([]models.AlertTrigger, error) {
	if e.monitor == nil {
		return nil, nil
	}
	return e.monitor.Pending(ctx, frequency)
}

// Run starts the digest scheduler and blocks until ctx is done. Queued
// digests stay in storage for the next run.
func (e *Engine) Run(ctx context.Context) error {
	if e.scheduler == nil {
		return errors.New("alerts are disabled")
	}
	e.scheduler.Start()
	<-ctx.Done()
	e.scheduler.Stop()
	return nil
}

// Close stops background work and releases the storage backend.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.cancel()
		e.cascade.Wait()
		err = e.store.Close()
	})
	return err
}
