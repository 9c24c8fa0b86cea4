package favorites

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rewired-gh/mandinetra/internal/kv"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(commodity, district, market string, price int64) *models.PredictionResult {
	sel := models.Selection{Commodity: commodity, District: district, Market: market}
	return &models.PredictionResult{
		Commodity:      commodity,
		District:       district,
		Market:         market,
		PredictedPrice: decimal.NewFromInt(price),
		PredictionDate: "2026-10-18",
		DisplayLabel:   "🌾 Wheat",
		Selection:      sel,
	}
}

func TestAdd_SameSelectionReplaces(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemoryStore(), 5)
	require.NoError(t, s.Load(ctx))

	_, err := s.Add(ctx, result("wheat", "pune", "pune-apmc", 2000))
	require.NoError(t, err)
	_, err = s.Add(ctx, result("rice", "pune", "pune", 3000))
	require.NoError(t, err)
	second, err := s.Add(ctx, result("wheat", "pune", "pune-apmc", 2250))
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, decimal.NewFromInt(2250).Equal(list[0].PredictedPrice))
	assert.Equal(t, "rice", list[1].Commodity)
}

func TestAdd_KeepsFiveMostRecent(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemoryStore(), 0)

	for i := 0; i < 6; i++ {
		_, err := s.Add(ctx, result("wheat", "pune", fmt.Sprintf("market-%d", i), int64(1000+i)))
		require.NoError(t, err)
	}

	list := s.List()
	require.Len(t, list, DefaultLimit)
	assert.Equal(t, "market-5", list[0].Market)
	assert.Equal(t, "market-1", list[4].Market)
	assert.False(t, s.Contains(models.Selection{Commodity: "wheat", District: "pune", Market: "market-0"}))
}

func TestAdd_UsesSelectionIDs(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemoryStore(), 5)

	r := result("Wheat", "Pune", "Pune APMC", 2250)
	r.Selection = models.Selection{Commodity: "wheat", District: "pune", Market: "pune-apmc"}
	fav, err := s.Add(ctx, r)
	require.NoError(t, err)

	assert.Equal(t, "pune-apmc", fav.Market)
	assert.True(t, s.Contains(r.Selection))
}

func TestAdd_AssignsIDAndCreatedAt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	s := newWithClock(kv.NewMemoryStore(), 5, func() time.Time { return now })

	a, err := s.Add(ctx, result("wheat", "pune", "pune", 1))
	require.NoError(t, err)
	b, err := s.Add(ctx, result("rice", "pune", "pune", 1))
	require.NoError(t, err)

	assert.Equal(t, now.UnixMilli(), a.ID)
	assert.Greater(t, b.ID, a.ID)
	assert.Equal(t, now, a.CreatedAt)
}

func TestLoad_RoundTripAndCorruption(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	first := New(store, 5)
	fav, err := first.Add(ctx, result("wheat", "pune", "pune-apmc", 2250))
	require.NoError(t, err)

	restarted := New(store, 5)
	require.NoError(t, restarted.Load(ctx))
	require.Len(t, restarted.List(), 1)
	assert.Equal(t, fav.ID, restarted.List()[0].ID)
	assert.True(t, fav.PredictedPrice.Equal(restarted.List()[0].PredictedPrice))

	require.NoError(t, store.Set(ctx, Namespace, "not json"))
	corrupted := New(store, 5)
	require.NoError(t, corrupted.Load(ctx))
	assert.Empty(t, corrupted.List())
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := New(kv.NewMemoryStore(), 5)
	fav, err := s.Add(ctx, result("wheat", "pune", "pune", 1))
	require.NoError(t, err)

	found, err := s.Remove(ctx, fav.ID+1)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Len(t, s.List(), 1)

	found, err = s.Remove(ctx, fav.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, s.List())
}

func TestAdd_RejectsIncompleteRecord(t *testing.T) {
	s := New(kv.NewMemoryStore(), 5)
	_, err := s.AddRecord(context.Background(), models.FavoriteRecord{Commodity: "wheat"})
	assert.Error(t, err)
	assert.Empty(t, s.List())
}
