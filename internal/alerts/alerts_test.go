package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rewired-gh/mandinetra/internal/kv"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wheatAbove(target string) models.AlertFields {
	return models.AlertFields{Commodity: "wheat", Condition: models.ConditionAbove, TargetPrice: target}
}

func TestCreate_Defaults(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	r := newWithClock(kv.NewMemoryStore(), func() time.Time { return now })

	rec, err := r.Create(ctx, models.AlertFields{Commodity: " wheat ", TargetPrice: "2200.50"})
	require.NoError(t, err)

	assert.Equal(t, now.UnixMilli(), rec.ID)
	assert.Equal(t, "wheat", rec.Commodity)
	assert.Equal(t, models.ConditionAbove, rec.Condition)
	assert.Equal(t, models.AllDistricts, rec.District)
	assert.Equal(t, models.FrequencyInstant, rec.Frequency)
	assert.Equal(t, "2200.5", rec.TargetPrice.String())
	assert.True(t, rec.Active)
	assert.False(t, rec.Triggered)
	assert.Equal(t, now, rec.CreatedAt)
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields models.AlertFields
		field  string
	}{
		{"empty commodity", models.AlertFields{TargetPrice: "100"}, "commodity"},
		{"empty target", models.AlertFields{Commodity: "wheat"}, "targetPrice"},
		{"non numeric target", models.AlertFields{Commodity: "wheat", TargetPrice: "cheap"}, "targetPrice"},
		{"unknown condition", models.AlertFields{Commodity: "wheat", TargetPrice: "1", Condition: "sideways"}, "condition"},
		{"unknown frequency", models.AlertFields{Commodity: "wheat", TargetPrice: "1", Frequency: "hourly"}, "frequency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := kv.NewMemoryStore()
			r := New(store)

			_, err := r.Create(context.Background(), tt.fields)
			var vErr *models.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Empty(t, r.List())

			_, ok, _ := store.Get(context.Background(), Namespace)
			assert.False(t, ok, "nothing written")
		})
	}
}

func TestCreate_NotDeduplicated(t *testing.T) {
	ctx := context.Background()
	r := New(kv.NewMemoryStore())

	a, err := r.Create(ctx, wheatAbove("2000"))
	require.NoError(t, err)
	b, err := r.Create(ctx, wheatAbove("2000"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, r.List(), 2)
	assert.Equal(t, b.ID, r.List()[0].ID)
}

func TestToggleAndSetActive(t *testing.T) {
	ctx := context.Background()
	r := New(kv.NewMemoryStore())
	rec, err := r.Create(ctx, wheatAbove("2000"))
	require.NoError(t, err)

	found, err := r.Toggle(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, found)
	got, _ := r.Get(rec.ID)
	assert.False(t, got.Active)

	found, err = r.SetActive(ctx, rec.ID, true)
	require.NoError(t, err)
	assert.True(t, found)
	got, _ = r.Get(rec.ID)
	assert.True(t, got.Active)

	found, err = r.SetActive(ctx, rec.ID, true)
	require.NoError(t, err)
	assert.True(t, found, "setting the current value is a no-op on an existing alert")
}

func TestToggle_UnknownIDLeavesRegistryUnchanged(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	r := New(store)
	rec, err := r.Create(ctx, wheatAbove("2000"))
	require.NoError(t, err)
	before, _, _ := store.Get(ctx, Namespace)

	found, err := r.Toggle(ctx, rec.ID+42)
	require.NoError(t, err)
	assert.False(t, found)

	after, _, _ := store.Get(ctx, Namespace)
	assert.Equal(t, before, after)
	assert.Equal(t, []models.AlertRecord{rec}, r.List())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	r := New(kv.NewMemoryStore())
	rec, err := r.Create(ctx, wheatAbove("2000"))
	require.NoError(t, err)

	found, err := r.Delete(ctx, rec.ID+1)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = r.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, r.List())
}

func TestMarkTriggeredAndRearm(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	r := New(store)
	rec, err := r.Create(ctx, wheatAbove("2000"))
	require.NoError(t, err)

	at := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	found, err := r.MarkTriggered(ctx, rec.ID, at)
	require.NoError(t, err)
	assert.True(t, found)

	reloaded := New(store)
	require.NoError(t, reloaded.Load(ctx))
	got, ok := reloaded.Get(rec.ID)
	require.True(t, ok)
	assert.True(t, got.Triggered)
	require.NotNil(t, got.TriggeredAt)
	assert.True(t, at.Equal(*got.TriggeredAt))

	found, err = reloaded.Rearm(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, found)
	got, _ = reloaded.Get(rec.ID)
	assert.False(t, got.Triggered)
	assert.Nil(t, got.TriggeredAt)
}

func TestActiveFor(t *testing.T) {
	ctx := context.Background()
	r := New(kv.NewMemoryStore())

	all, err := r.Create(ctx, wheatAbove("2000"))
	require.NoError(t, err)
	pune, err := r.Create(ctx, models.AlertFields{Commodity: "wheat", TargetPrice: "1500", District: "pune", Condition: models.ConditionBelow})
	require.NoError(t, err)
	_, err = r.Create(ctx, models.AlertFields{Commodity: "rice", TargetPrice: "1500"})
	require.NoError(t, err)
	inactive, err := r.Create(ctx, wheatAbove("1000"))
	require.NoError(t, err)
	_, err = r.SetActive(ctx, inactive.ID, false)
	require.NoError(t, err)

	ids := func(list []models.AlertRecord) []int64 {
		var out []int64
		for _, a := range list {
			out = append(out, a.ID)
		}
		return out
	}

	assert.ElementsMatch(t, []int64{all.ID, pune.ID}, ids(r.ActiveFor("wheat", "pune")))
	assert.ElementsMatch(t, []int64{all.ID}, ids(r.ActiveFor("WHEAT", "nashik")))
	assert.Empty(t, r.ActiveFor("bajra", "pune"))
}
