package main

import (
	"context"
	"sync"

	"github.com/rewired-gh/mandinetra/internal/catalog"
	"github.com/rewired-gh/mandinetra/internal/models"
	"golang.org/x/sync/errgroup"
)

// sweeper is the part of the catalog client a sweep needs.
type sweeper interface {
	FetchDistricts(ctx context.Context, commodity string) (catalog.Result[[]models.District], error)
	FetchMarkets(ctx context.Context, district string) (catalog.Result[[]models.Market], error)
	Predict(ctx context.Context, sel models.Selection, requestID string) (catalog.Result[models.PredictionResult], error)
}

// sweep predicts every market of every district of the given commodities.
// At most parallel predictions run at once. A failed lookup or prediction is
// recorded and does not stop the sweep; only context cancellation does.
func sweep(ctx context.Context, client sweeper, commodities []string, parallel int) ([]Observation, []SweepFailure, error) {
	var (
		mu       sync.Mutex
		obs      []Observation
		failures []SweepFailure
	)
	fail := func(f SweepFailure) {
		mu.Lock()
		failures = append(failures, f)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for _, commodity := range commodities {
		districts, err := client.FetchDistricts(ctx, commodity)
		if err != nil {
			fail(SweepFailure{Commodity: commodity, Reason: err.Error()})
			continue
		}
		if !districts.IsOk() {
			fail(SweepFailure{Commodity: commodity, Reason: districts.ErrMessage})
			continue
		}

		for _, d := range districts.Value {
			markets, err := client.FetchMarkets(ctx, d.ID)
			if err != nil {
				fail(SweepFailure{Commodity: commodity, District: d.ID, Reason: err.Error()})
				continue
			}
			if !markets.IsOk() {
				fail(SweepFailure{Commodity: commodity, District: d.ID, Reason: markets.ErrMessage})
				continue
			}

			for _, m := range markets.Value {
				sel := models.Selection{Commodity: commodity, District: d.ID, Market: m.ID}
				g.Go(func() error {
					res, err := client.Predict(gctx, sel, "")
					if err != nil {
						if gctx.Err() != nil {
							return gctx.Err()
						}
						fail(SweepFailure{Commodity: sel.Commodity, District: sel.District, Market: sel.Market, Reason: err.Error()})
						return nil
					}
					if !res.IsOk() {
						fail(SweepFailure{Commodity: sel.Commodity, District: sel.District, Market: sel.Market, Reason: res.ErrMessage})
						return nil
					}

					mu.Lock()
					obs = append(obs, Observation{
						Commodity: sel.Commodity,
						District:  res.Value.District,
						Market:    res.Value.Market,
						Price:     res.Value.PredictedPrice,
						Date:      res.Value.PredictionDate,
					})
					mu.Unlock()
					return nil
				})
			}
		}
	}

	err := g.Wait()
	return obs, failures, err
}
