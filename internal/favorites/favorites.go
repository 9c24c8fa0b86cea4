// Package favorites keeps the buyer's saved predictions: at most a handful of
// records, most recent first, unique on (commodity, district, market).
package favorites

import (
	"context"
	"time"

	"github.com/rewired-gh/mandinetra/internal/kv"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/rewired-gh/mandinetra/internal/storage"
)

// Namespace is the durable namespace of the favorites list.
const Namespace = "buyerFavorites"

// DefaultLimit is the number of favorites kept when no limit is configured.
const DefaultLimit = 5

// Store is the persisted favorites list.
type Store struct {
	coll *storage.Collection[models.FavoriteRecord]
	now  func() time.Time
}

// New creates a favorites Store over kvStore. Call Load before use.
func New(kvStore kv.Store, limit int) *Store {
	if limit < 1 {
		limit = DefaultLimit
	}
	return newWithClock(kvStore, limit, time.Now)
}

func newWithClock(kvStore kv.Store, limit int, now func() time.Time) *Store {
	return &Store{
		coll: storage.New(kvStore, storage.Options[models.FavoriteRecord]{
			Namespace: Namespace,
			Capacity:  limit,
			Key:       models.FavoriteRecord.Key,
			ID:        func(f models.FavoriteRecord) int64 { return f.ID },
			SetID:     func(f *models.FavoriteRecord, id int64) { f.ID = id },
			Validate:  (*models.FavoriteRecord).Validate,
			Now:       now,
		}),
		now: now,
	}
}

// Load reads the durable list. Missing or malformed data yields an empty list.
func (s *Store) Load(ctx context.Context) error {
	return s.coll.Load(ctx)
}

// Add saves a prediction result. A favorite for the same selection is replaced
// and the new record moves to the front.
func (s *Store) Add(ctx context.Context, result *models.PredictionResult) (models.FavoriteRecord, error) {
	rec := models.FavoriteFromResult(result)
	// Service answers may carry display names; the selection ids are the identity.
	if result.Selection.Complete() {
		rec.Commodity = result.Selection.Commodity
		rec.District = result.Selection.District
		rec.Market = result.Selection.Market
	}
	return s.AddRecord(ctx, rec)
}

// AddRecord saves rec as the newest favorite. Its id and creation time are assigned here.
func (s *Store) AddRecord(ctx context.Context, rec models.FavoriteRecord) (models.FavoriteRecord, error) {
	rec.CreatedAt = s.now().UTC()
	return s.coll.Add(ctx, rec)
}

// Remove deletes the favorite with id. Removing an unknown id is not an error.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	return s.coll.Remove(ctx, id)
}

// List returns the favorites, most recent first.
func (s *Store) List() []models.FavoriteRecord {
	return s.coll.List()
}

// Contains reports whether a favorite exists for sel.
func (s *Store) Contains(sel models.Selection) bool {
	key := sel.Key()
	for _, f := range s.coll.List() {
		if f.Key() == key {
			return true
		}
	}
	return false
}
