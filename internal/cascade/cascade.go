// Package cascade owns the buyer's dependent commodity → district → market
// selection. Changing a level clears every level below it and re-fetches the
// option set of the next level in the background.
//
// Each fetched level carries a monotonically increasing token. A fetch result
// is applied only while its token is still the level's current one, so a slow
// response for a superseded choice never overwrites a newer one.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rewired-gh/mandinetra/internal/catalog"
	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/models"
)

// Catalog is the subset of the remote client the resolver needs.
type Catalog interface {
	FetchDistricts(ctx context.Context, commodity string) (catalog.Result[[]models.District], error)
	FetchMarkets(ctx context.Context, district string) (catalog.Result[[]models.Market], error)
}

// Messages stored as the last error when a lookup succeeds with no options.
const (
	MsgNoDistricts = "no districts for commodity"
	MsgNoMarkets   = "no markets for district"
)

// emptyResultError is reported for a lookup that returned zero options.
type emptyResultError struct {
	msg string
}

func (e *emptyResultError) Error() string { return e.msg }

func (e *emptyResultError) Is(target error) bool { return target == models.ErrEmptyResultSet }

// State is a copy of everything the resolver exposes.
type State struct {
	Selection        models.Selection
	Districts        []models.District
	Markets          []models.Market
	LoadingDistricts bool
	LoadingMarkets   bool
	LastError        string
	// Version increases with every applied change.
	Version uint64
}

// Resolver is safe for concurrent use.
type Resolver struct {
	catalog Catalog
	ctx     context.Context

	mu               sync.Mutex
	sel              models.Selection
	districts        []models.District
	markets          []models.Market
	districtToken    uint64
	marketToken      uint64
	loadingDistricts bool
	loadingMarkets   bool
	lastErr          error
	version          uint64
	listeners        []func(State)

	// notifyMu orders deliveries; delivered is the newest version handed out.
	notifyMu  sync.Mutex
	delivered uint64

	inflight sync.WaitGroup
}

// New creates a Resolver. ctx bounds every background fetch.
func New(ctx context.Context, c Catalog) *Resolver {
	return &Resolver{catalog: c, ctx: ctx}
}

// OnChange registers fn to receive the state after every change.
// fn runs outside the resolver lock and may be called from fetch goroutines,
// but deliveries never overlap and never go back to an older version. fn must
// not call the resolver's setters.
func (r *Resolver) OnChange(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// SetCommodity selects a commodity and starts fetching its districts.
// An empty commodity clears the whole selection.
func (r *Resolver) SetCommodity(commodity string) {
	commodity = normalize(commodity)

	r.mu.Lock()
	r.districtToken++
	r.marketToken++
	r.sel = models.Selection{Commodity: commodity}
	r.districts = nil
	r.markets = nil
	r.loadingMarkets = false
	r.lastErr = nil

	if commodity == "" {
		r.loadingDistricts = false
		r.unlockAndNotify()
		return
	}

	r.loadingDistricts = true
	token := r.districtToken
	r.inflight.Add(1)
	r.unlockAndNotify()

	go r.fetchDistricts(commodity, token)
}

// SetDistrict selects a district of the current commodity and starts fetching
// its markets. An empty district clears district and market. A district that
// is not in the current option set is rejected with models.ErrStaleSelection.
func (r *Resolver) SetDistrict(district string) error {
	district = normalize(district)

	r.mu.Lock()
	if district != "" {
		if r.sel.Commodity == "" || !models.ContainsDistrict(r.districts, district) {
			r.mu.Unlock()
			return fmt.Errorf("%w: district %q is not offered for commodity %q", models.ErrStaleSelection, district, r.sel.Commodity)
		}
	}

	r.marketToken++
	r.sel.District = district
	r.sel.Market = ""
	r.markets = nil
	r.lastErr = nil

	if district == "" {
		r.loadingMarkets = false
		r.unlockAndNotify()
		return nil
	}

	r.loadingMarkets = true
	token := r.marketToken
	r.inflight.Add(1)
	r.unlockAndNotify()

	go r.fetchMarkets(district, token)
	return nil
}

// SetMarket selects a market of the current district. It never touches the network.
func (r *Resolver) SetMarket(market string) error {
	market = normalize(market)

	r.mu.Lock()
	if market != "" {
		if r.sel.District == "" || !models.ContainsMarket(r.markets, market) {
			r.mu.Unlock()
			return fmt.Errorf("%w: market %q is not offered for district %q", models.ErrStaleSelection, market, r.sel.District)
		}
	}
	r.sel.Market = market
	r.unlockAndNotify()
	return nil
}

// Reset clears the selection, both option sets and the last error.
// Outstanding fetches are abandoned.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.districtToken++
	r.marketToken++
	r.sel = models.Selection{}
	r.districts = nil
	r.markets = nil
	r.loadingDistricts = false
	r.loadingMarkets = false
	r.lastErr = nil
	r.unlockAndNotify()
}

// Selection returns the current selection.
func (r *Resolver) Selection() models.Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sel
}

// LastError returns the last lookup failure message, or "".
func (r *Resolver) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastErr == nil {
		return ""
	}
	return r.lastErr.Error()
}

// Err returns the last lookup failure. Empty option sets match models.ErrEmptyResultSet.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// State returns a copy of the observable state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

// Wait blocks until every fetch started so far has finished.
func (r *Resolver) Wait() {
	r.inflight.Wait()
}

func (r *Resolver) stateLocked() State {
	s := State{
		Selection:        r.sel,
		Districts:        make([]models.District, len(r.districts)),
		Markets:          make([]models.Market, len(r.markets)),
		LoadingDistricts: r.loadingDistricts,
		LoadingMarkets:   r.loadingMarkets,
		Version:          r.version,
	}
	copy(s.Districts, r.districts)
	copy(s.Markets, r.markets)
	if r.lastErr != nil {
		s.LastError = r.lastErr.Error()
	}
	return s
}

// unlockAndNotify releases r.mu and delivers the new state to listeners.
// A state overtaken by a newer delivery is dropped.
func (r *Resolver) unlockAndNotify() {
	r.version++
	state := r.stateLocked()
	listeners := make([]func(State), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	if state.Version <= r.delivered {
		return
	}
	r.delivered = state.Version
	for _, fn := range listeners {
		fn(state)
	}
}

func (r *Resolver) fetchDistricts(commodity string, token uint64) {
	defer r.inflight.Done()

	res, err := r.catalog.FetchDistricts(r.ctx, commodity)

	r.mu.Lock()
	if token != r.districtToken {
		r.mu.Unlock()
		logger.Debug("Discarding stale district response for %s", commodity)
		return
	}

	r.loadingDistricts = false
	switch {
	case err != nil:
		r.districts = nil
		r.lastErr = err
	case !res.IsOk():
		r.districts = nil
		r.lastErr = errors.New(res.ErrMessage)
	case len(res.Value) == 0:
		r.districts = []models.District{}
		r.lastErr = &emptyResultError{msg: MsgNoDistricts}
	default:
		r.districts = res.Value
		r.lastErr = nil
	}
	if r.lastErr != nil {
		logger.Warn("District lookup for %s: %v", commodity, r.lastErr)
	}
	r.unlockAndNotify()
}

func (r *Resolver) fetchMarkets(district string, token uint64) {
	defer r.inflight.Done()

	res, err := r.catalog.FetchMarkets(r.ctx, district)

	r.mu.Lock()
	if token != r.marketToken {
		r.mu.Unlock()
		logger.Debug("Discarding stale market response for %s", district)
		return
	}

	r.loadingMarkets = false
	switch {
	case err != nil:
		r.markets = nil
		r.lastErr = err
	case !res.IsOk():
		r.markets = nil
		r.lastErr = errors.New(res.ErrMessage)
	case len(res.Value) == 0:
		r.markets = []models.Market{}
		r.lastErr = &emptyResultError{msg: MsgNoMarkets}
	default:
		r.markets = res.Value
		r.lastErr = nil
	}
	if r.lastErr != nil {
		logger.Warn("Market lookup for %s: %v", district, r.lastErr)
	}
	r.unlockAndNotify()
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
