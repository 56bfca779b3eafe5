package breakdown

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// CostTolerance is the allowed drift between the per-scene cost sum and the
// declared total.
const CostTolerance = 0.01

// ErrNilAnalysis is returned when validating a nil analysis.
var ErrNilAnalysis = errors.New("analysis is nil")

// Validate checks the structural invariants of a.
func Validate(a *Analysis) error {
	if a == nil {
		return ErrNilAnalysis
	}
	if err := validateSceneNumbers(a.Script.Scenes); err != nil {
		return err
	}
	if err := validateCosts(a.Cost); err != nil {
		return err
	}
	if err := validateLocations(a.Script.Scenes, a.Location.SceneLocations); err != nil {
		return err
	}
	if !validBudgetCategory(a.Cost.BudgetCategory) {
		return fmt.Errorf("cost_breakdown.budget_category must be Low, Medium or High, got %q", a.Cost.BudgetCategory)
	}
	return nil
}

func validateSceneNumbers(scenes []Scene) error {
	for i, sc := range scenes {
		if sc.Number != i+1 {
			return fmt.Errorf("script_data.scenes[%d].scene_number = %d, want %d", i, sc.Number, i+1)
		}
	}
	return nil
}

func validateCosts(c CostBreakdown) error {
	var sum float64
	for _, sc := range c.SceneCosts {
		sum += sc.Total
	}
	if math.Abs(sum-c.TotalCosts) > CostTolerance {
		return fmt.Errorf("cost_breakdown scene totals sum to %.2f, declared total is %.2f", sum, c.TotalCosts)
	}
	return nil
}

func validateLocations(scenes []Scene, locations []SceneLocation) error {
	seen := make(map[int]int, len(locations))
	for _, loc := range locations {
		seen[loc.SceneNumber]++
	}
	for _, sc := range scenes {
		switch seen[sc.Number] {
		case 0:
			return fmt.Errorf("location_breakdown has no entry for scene %d", sc.Number)
		case 1:
		default:
			return fmt.Errorf("location_breakdown has %d entries for scene %d", seen[sc.Number], sc.Number)
		}
		delete(seen, sc.Number)
	}
	if len(seen) > 0 {
		extra := make([]int, 0, len(seen))
		for n := range seen {
			extra = append(extra, n)
		}
		sort.Ints(extra)
		return fmt.Errorf("location_breakdown references unknown scenes %v", extra)
	}
	return nil
}

func validBudgetCategory(v string) bool {
	switch v {
	case BudgetLow, BudgetMedium, BudgetHigh:
		return true
	}
	return false
}

// Normalize fills defaults and canonicalises loosely formatted model output
// in place. It never changes scene numbering or costs.
func Normalize(a *Analysis) {
	if a == nil {
		return
	}
	a.Cost.BudgetCategory = normalizeBudgetCategory(a.Cost.BudgetCategory)
	if len(a.Script.Languages) == 0 {
		a.Script.Languages = []string{"English"}
	}
	for i := range a.Script.Scenes {
		if a.Script.Scenes[i].EstimatedPages == 0 {
			a.Script.Scenes[i].EstimatedPages = 1
		}
	}
	for i := range a.Cast.SceneCharacters {
		if a.Cast.SceneCharacters[i].DialogueComplexity == "" {
			a.Cast.SceneCharacters[i].DialogueComplexity = "Simple"
		}
	}
	for i := range a.Location.SceneLocations {
		loc := &a.Location.SceneLocations[i]
		if loc.EstimatedSetupMins == 0 {
			loc.EstimatedSetupMins = 60
		}
		if loc.Accessibility == "" {
			loc.Accessibility = "Good"
		}
	}
	if a.Script.TotalLocations == 0 && len(a.Location.UniqueLocations) > 0 {
		a.Script.TotalLocations = len(a.Location.UniqueLocations)
	}
	if a.Script.TotalCharacters == 0 {
		a.Script.TotalCharacters = countCharacters(a.Script.Scenes)
	}
}

func normalizeBudgetCategory(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "low":
		return BudgetLow
	case "medium", "med", "":
		return BudgetMedium
	case "high":
		return BudgetHigh
	default:
		return strings.TrimSpace(v)
	}
}

func countCharacters(scenes []Scene) int {
	names := make(map[string]struct{})
	for _, sc := range scenes {
		for _, c := range sc.Characters {
			c = strings.ToUpper(strings.TrimSpace(c))
			if c != "" {
				names[c] = struct{}{}
			}
		}
	}
	return len(names)
}
