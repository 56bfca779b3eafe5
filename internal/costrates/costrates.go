// Package costrates supplies reference production rates used when costing
// a script.
package costrates

import (
	"context"
	"encoding/json"
	"fmt"

	"script-backend/internal/shared/telemetry"
)

// Categories queried from the rate collection, in prompt order.
var Categories = []string{
	"cast_rates",
	"location_costs",
	"equipment_costs",
	"props_costs",
	"production_costs",
}

// Entry is one loosely structured rate record, e.g.
// {"role": "lead_actor", "daily_rate": 5000, "currency": "USD"}.
type Entry map[string]any

// Card groups rate entries by category.
type Card struct {
	Rates  map[string][]Entry `json:"rates"`
	Source string             `json:"source"`
}

// Total reports the number of entries across categories.
func (c Card) Total() int {
	n := 0
	for _, entries := range c.Rates {
		n += len(entries)
	}
	return n
}

// JSON renders the card for inclusion in a prompt.
func (c Card) JSON() string {
	ordered := make([]struct {
		Category string  `json:"category"`
		Entries  []Entry `json:"entries"`
	}, 0, len(Categories))
	for _, cat := range Categories {
		if entries := c.Rates[cat]; len(entries) > 0 {
			ordered = append(ordered, struct {
				Category string  `json:"category"`
				Entries  []Entry `json:"entries"`
			}{cat, entries})
		}
	}
	data, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// Source loads a rate card.
type Source interface {
	Card(ctx context.Context) (Card, error)
}

// Fallback serves the built-in rate card.
type Fallback struct{}

// Card returns the built-in rates.
func (Fallback) Card(ctx context.Context) (Card, error) {
	_ = ctx
	return fallbackCard(), nil
}

func fallbackCard() Card {
	return Card{
		Source: "fallback",
		Rates: map[string][]Entry{
			"cast_rates": {
				{"role": "lead_actor", "daily_rate": 5000, "currency": "USD"},
				{"role": "supporting_actor", "daily_rate": 1500, "currency": "USD"},
				{"role": "background_actor", "daily_rate": 200, "currency": "USD"},
				{"role": "director", "daily_rate": 3000, "currency": "USD"},
				{"role": "cinematographer", "daily_rate": 2000, "currency": "USD"},
			},
			"location_costs": {
				{"location_type": "interior_house", "daily_rate": 800, "currency": "USD"},
				{"location_type": "exterior_street", "daily_rate": 1200, "currency": "USD"},
				{"location_type": "office_building", "daily_rate": 1500, "currency": "USD"},
				{"location_type": "restaurant", "daily_rate": 2000, "currency": "USD"},
				{"location_type": "studio", "daily_rate": 3000, "currency": "USD"},
			},
			"equipment_costs": {
				{"equipment": "camera_package", "daily_rate": 800, "currency": "USD"},
				{"equipment": "lighting_package", "daily_rate": 600, "currency": "USD"},
				{"equipment": "sound_package", "daily_rate": 400, "currency": "USD"},
				{"equipment": "grip_package", "daily_rate": 500, "currency": "USD"},
			},
			"props_costs": {
				{"category": "basic_props", "budget_range": "100-500", "currency": "USD"},
				{"category": "wardrobe", "budget_range": "200-1000", "currency": "USD"},
				{"category": "makeup", "budget_range": "150-800", "currency": "USD"},
				{"category": "special_effects", "budget_range": "500-5000", "currency": "USD"},
			},
			"production_costs": {
				{"category": "catering", "per_person_daily": 25, "currency": "USD"},
				{"category": "transportation", "daily_budget": 300, "currency": "USD"},
				{"category": "insurance", "percentage_of_budget": 3, "currency": "USD"},
				{"category": "permits", "average_cost": 500, "currency": "USD"},
			},
		},
	}
}

// WithFallback serves the fallback card when primary fails or is empty.
type WithFallback struct {
	Primary  Source
	Fallback Source
}

// Card tries the primary source first.
func (w WithFallback) Card(ctx context.Context) (Card, error) {
	fallback := w.Fallback
	if fallback == nil {
		fallback = Fallback{}
	}
	if w.Primary == nil {
		return fallback.Card(ctx)
	}
	card, err := w.Primary.Card(ctx)
	switch {
	case err != nil:
		telemetry.Warn("costrates.fallback", map[string]any{"reason": "primary_error", "error": err.Error()})
	case card.Total() == 0:
		telemetry.Warn("costrates.fallback", map[string]any{"reason": "primary_empty"})
	default:
		return card, nil
	}
	fb, fbErr := fallback.Card(ctx)
	if fbErr != nil {
		return Card{}, fmt.Errorf("fallback rates: %w", fbErr)
	}
	return fb, nil
}
