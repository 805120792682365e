// Package filter validates filter input, maintains multi-select sets and
// turns stored settings into search parameters.
package filter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"go-hh-autoreply/internal/models"
	"go-hh-autoreply/internal/storage"
)

// AreaDirectory resolves free-text region names.
type AreaDirectory interface {
	SuggestAreas(ctx context.Context, text string) ([]models.Area, error)
	Area(ctx context.Context, id string) (models.Area, error)
}

type Status int

const (
	Accepted Status = iota
	Rejected
	Ambiguous
)

// Result describes what happened to a piece of free-text input.
type Result struct {
	Status     Status
	Field      models.Field
	Value      string
	Hint       string
	Candidates []models.Area
}

type Accumulator struct {
	store  storage.SettingsStore
	areas  AreaDirectory
	logger *slog.Logger
}

func NewAccumulator(store storage.SettingsStore, areas AreaDirectory, logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{store: store, areas: areas, logger: logger}
}

// Accept applies free-text input for a single-value field. Rejected and
// Ambiguous results leave the pending marker in place; a returned error
// (storage or region lookup) leaves it too.
func (a *Accumulator) Accept(ctx context.Context, userID int64, field models.Field, text string) (Result, error) {
	if field.MultiSelect() || !field.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	value, err := Validate(field, text)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return Result{Status: Rejected, Field: field, Hint: ve.Hint}, nil
		}
		return Result{}, err
	}

	if field == models.FieldRegion {
		return a.acceptRegion(ctx, userID, value)
	}

	if err := a.store.Set(ctx, userID, string(field), storage.Str(value)); err != nil {
		return Result{}, err
	}
	if err := storage.SetPending(ctx, a.store, userID, ""); err != nil {
		return Result{}, err
	}
	return Result{Status: Accepted, Field: field, Value: value}, nil
}

func (a *Accumulator) acceptRegion(ctx context.Context, userID int64, query string) (Result, error) {
	candidates, err := a.areas.SuggestAreas(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("region lookup: %w", err)
	}

	if area, ok := ExactArea(query, candidates); ok {
		if err := a.storeRegion(ctx, userID, area); err != nil {
			return Result{}, err
		}
		return Result{Status: Accepted, Field: models.FieldRegion, Value: area.Name}, nil
	}

	if len(candidates) == 0 {
		return Result{
			Status: Rejected,
			Field:  models.FieldRegion,
			Hint:   "Регион «" + query + "» не найден. " + Hint(models.FieldRegion),
		}, nil
	}
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return Result{Status: Ambiguous, Field: models.FieldRegion, Candidates: candidates}, nil
}

func (a *Accumulator) storeRegion(ctx context.Context, userID int64, area models.Area) error {
	if err := a.store.Set(ctx, userID, string(models.FieldRegion), storage.Str(area.ID)); err != nil {
		return err
	}
	var name *string
	if area.Name != "" {
		name = storage.Str(area.Name)
	}
	if err := a.store.Set(ctx, userID, models.KeyRegionName, name); err != nil {
		return err
	}
	return storage.SetPending(ctx, a.store, userID, "")
}

// Choose resolves a disambiguation choice by area id. The display name is
// looked up best effort.
func (a *Accumulator) Choose(ctx context.Context, userID int64, areaID string) (models.Area, error) {
	area := models.Area{ID: areaID}
	if found, err := a.areas.Area(ctx, areaID); err != nil {
		a.logger.Warn("area name lookup failed", "area_id", areaID, "error", err)
	} else {
		area.Name = found.Name
	}
	if err := a.storeRegion(ctx, userID, area); err != nil {
		return models.Area{}, err
	}
	return area, nil
}

// Toggle flips membership of value in a multi-select field atomically and
// returns the new set. The pending marker is not touched.
func (a *Accumulator) Toggle(ctx context.Context, userID int64, field models.Field, value string) ([]string, error) {
	if !field.MultiSelect() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	known := false
	for _, o := range field.Options() {
		if o.Code == value {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: %s=%q", ErrUnknownOption, field, value)
	}

	stored, err := a.store.Update(ctx, userID, string(field), func(current string, _ bool) *string {
		next := ToggleSet(current, value)
		if next == "" {
			return nil
		}
		return &next
	})
	if err != nil {
		return nil, err
	}
	return ParseSet(stored), nil
}

// Reset removes every filter and the pending marker.
func (a *Accumulator) Reset(ctx context.Context, userID int64) error {
	keys := []string{models.KeyRegionName, models.KeyPending}
	for _, f := range models.Fields {
		keys = append(keys, string(f))
	}
	for _, k := range keys {
		if err := a.store.Set(ctx, userID, k, nil); err != nil {
			return err
		}
	}
	return nil
}

func (a *Accumulator) Load(ctx context.Context, userID int64) (models.Settings, error) {
	kv, err := a.store.All(ctx, userID)
	if err != nil {
		return models.Settings{}, err
	}
	return SettingsFrom(kv), nil
}

// Collect returns the search parameters for the user's stored filters.
func (a *Accumulator) Collect(ctx context.Context, userID int64) (url.Values, error) {
	s, err := a.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ParamsFrom(s), nil
}
