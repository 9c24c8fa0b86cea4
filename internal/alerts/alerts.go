// Package alerts is the registry of the buyer's price alert rules.
// Alerts are never de-duplicated by content; each one is identified by its id.
package alerts

import (
	"context"
	"time"

	"github.com/rewired-gh/mandinetra/internal/kv"
	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/rewired-gh/mandinetra/internal/storage"
	"github.com/shopspring/decimal"
)

// Namespace is the durable namespace of the alert list.
const Namespace = "priceAlerts"

// Registry is the persisted alert list.
type Registry struct {
	coll *storage.Collection[models.AlertRecord]
	now  func() time.Time
}

// New creates a Registry over kvStore. Call Load before use.
func New(kvStore kv.Store) *Registry {
	return newWithClock(kvStore, time.Now)
}

func newWithClock(kvStore kv.Store, now func() time.Time) *Registry {
	return &Registry{
		coll: storage.New(kvStore, storage.Options[models.AlertRecord]{
			Namespace: Namespace,
			ID:        func(a models.AlertRecord) int64 { return a.ID },
			SetID:     func(a *models.AlertRecord, id int64) { a.ID = id },
			Bool: func(a *models.AlertRecord, field string) *bool {
				switch field {
				case "active":
					return &a.Active
				case "triggered":
					return &a.Triggered
				}
				return nil
			},
			Now: now,
		}),
		now: now,
	}
}

// Load reads the durable list. Missing or malformed data yields an empty list.
func (r *Registry) Load(ctx context.Context) error {
	return r.coll.Load(ctx)
}

// Create validates fields and stores a new active, untriggered alert.
// Invalid input returns a *models.ValidationError and leaves the registry unchanged.
func (r *Registry) Create(ctx context.Context, fields models.AlertFields) (models.AlertRecord, error) {
	fields = fields.Normalize()
	if err := fields.Validate(); err != nil {
		return models.AlertRecord{}, err
	}
	target, _ := decimal.NewFromString(fields.TargetPrice)

	rec, err := r.coll.Add(ctx, models.AlertRecord{
		Commodity:   fields.Commodity,
		Condition:   fields.Condition,
		TargetPrice: target,
		District:    fields.District,
		Frequency:   fields.Frequency,
		CreatedAt:   r.now().UTC(),
		Active:      true,
	})
	if err != nil {
		return models.AlertRecord{}, err
	}

	logger.Info("Created alert %d: %s %s %s in %s (%s)",
		rec.ID, rec.Commodity, rec.Condition, rec.TargetPrice.String(), rec.District, rec.Frequency)
	return rec, nil
}

// Toggle flips the active flag of the alert with id. An unknown id is a no-op.
func (r *Registry) Toggle(ctx context.Context, id int64) (bool, error) {
	return r.coll.Toggle(ctx, id, "active")
}

// SetActive sets the active flag of the alert with id. An unknown id is a no-op.
func (r *Registry) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	return r.coll.Update(ctx, id, func(a *models.AlertRecord) (bool, error) {
		if a.Active == active {
			return false, nil
		}
		a.Active = active
		return true, nil
	})
}

// Delete removes the alert with id. An unknown id is a no-op.
func (r *Registry) Delete(ctx context.Context, id int64) (bool, error) {
	return r.coll.Remove(ctx, id)
}

// MarkTriggered records that the alert with id matched a prediction at at.
func (r *Registry) MarkTriggered(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.coll.Update(ctx, id, func(a *models.AlertRecord) (bool, error) {
		ts := at.UTC()
		a.Triggered = true
		a.TriggeredAt = &ts
		return true, nil
	})
}

// Rearm clears the triggered state of the alert with id.
func (r *Registry) Rearm(ctx context.Context, id int64) (bool, error) {
	return r.coll.Update(ctx, id, func(a *models.AlertRecord) (bool, error) {
		if !a.Triggered && a.TriggeredAt == nil {
			return false, nil
		}
		a.Triggered = false
		a.TriggeredAt = nil
		return true, nil
	})
}

// List returns every alert, most recent first.
func (r *Registry) List() []models.AlertRecord {
	return r.coll.List()
}

// Get returns the alert with id.
func (r *Registry) Get(id int64) (models.AlertRecord, bool) {
	return r.coll.Get(id)
}

// ActiveFor returns the active alerts watching commodity in district.
func (r *Registry) ActiveFor(commodity, district string) []models.AlertRecord {
	var out []models.AlertRecord
	for _, a := range r.coll.List() {
		if a.Active && a.AppliesTo(commodity, district) {
			out = append(out, a)
		}
	}
	return out
}
