// Package breakdowntest builds well-formed analyses for tests.
package breakdowntest

import (
	"fmt"

	"script-backend/internal/breakdown"
)

// Sample returns a valid analysis with n scenes, each costing perScene.
func Sample(n int, perScene float64) *breakdown.Analysis {
	a := &breakdown.Analysis{
		Script: breakdown.ScriptData{
			TotalCharacters: 2,
			TotalPages:      float64(n),
			TotalWords:      250 * n,
			Languages:       []string{"English"},
		},
		Cast: breakdown.CastBreakdown{
			MainCharacters:      []string{"ANNA"},
			CharacterSceneCount: map[string]int{"ANNA": n, "BEN": n},
		},
		Cost: breakdown.CostBreakdown{
			BudgetCategory: breakdown.BudgetMedium,
		},
		Location: breakdown.LocationBreakdown{
			UniqueLocations: []string{"KITCHEN", "STREET"},
		},
	}
	for i := 1; i <= n; i++ {
		loc := "KITCHEN"
		if i%2 == 0 {
			loc = "STREET"
		}
		a.Script.Scenes = append(a.Script.Scenes, breakdown.Scene{
			Number:         i,
			Header:         fmt.Sprintf("INT. %s - DAY", loc),
			TimeOfDay:      "DAY",
			Type:           "INT",
			Characters:     []string{"ANNA", "BEN"},
			Location:       loc,
			EstimatedPages: 1,
		})
		a.Cast.SceneCharacters = append(a.Cast.SceneCharacters, breakdown.SceneCast{
			SceneNumber:        i,
			Characters:         []string{"ANNA", "BEN"},
			DialogueComplexity: "Simple",
		})
		a.Cost.SceneCosts = append(a.Cost.SceneCosts, breakdown.SceneCost{
			SceneNumber: i,
			CastCost:    perScene,
			Total:       perScene,
		})
		a.Cost.TotalCosts += perScene
		a.Cost.TotalCastCosts += perScene
		a.Location.SceneLocations = append(a.Location.SceneLocations, breakdown.SceneLocation{
			SceneNumber:        i,
			Name:               loc,
			Type:               "INT",
			TimeOfDay:          "DAY",
			EstimatedSetupMins: 60,
			Accessibility:      "Good",
		})
		a.Props.SceneProps = append(a.Props.SceneProps, breakdown.SceneProps{SceneNumber: i})
	}
	a.Script.TotalLocations = len(a.Location.UniqueLocations)
	return a
}

// Empty returns a valid analysis with zero scenes and zero cost.
func Empty() *breakdown.Analysis {
	return &breakdown.Analysis{
		Script: breakdown.ScriptData{Languages: []string{"English"}},
		Cost:   breakdown.CostBreakdown{BudgetCategory: breakdown.BudgetLow},
	}
}
