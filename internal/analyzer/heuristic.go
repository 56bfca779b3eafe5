package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"script-backend/internal/breakdown"
	"script-backend/internal/llm"
)

// HeuristicModel names the offline breakdown in logs and records.
const HeuristicModel = "heuristic-v1"

// Flat per-scene rates used by the heuristic breakdown, in USD.
const (
	castPerCharacter = 800
	locationPerScene = 1500
	exteriorSurplus  = 1000
	propsPerScene    = 250
	wardrobePerCast  = 150
	crewPerScene     = 2500
	equipmentPerDay  = 1200
)

var (
	sceneHeading   = regexp.MustCompile(`^(INT\./EXT\.|INT/EXT\.?|I/E\.?|INT\.?|EXT\.?)\s+(.+)$`)
	characterCue   = regexp.MustCompile(`^([A-Z][A-Z0-9 .'\-]{1,30})(\s*\(.*\))?$`)
	timeOfDaySplit = regexp.MustCompile(`\s+[-–]\s+`)
)

var notCharacters = map[string]struct{}{
	"CUT TO": {}, "FADE IN": {}, "FADE OUT": {}, "FADE TO BLACK": {}, "DISSOLVE TO": {},
	"SMASH CUT TO": {}, "THE END": {}, "CONTINUED": {}, "MORE": {}, "BACK TO": {},
}

// HeuristicClient answers analysis prompts without a model by parsing the
// screenplay's scene headings and character cues. It backs the "fake"
// provider for local runs.
type HeuristicClient struct{}

// Generate builds a breakdown from the screenplay embedded in req.User.
func (HeuristicClient) Generate(ctx context.Context, req llm.Request) (llm.Generation, error) {
	if err := ctx.Err(); err != nil {
		return llm.Generation{}, err
	}
	text := req.User
	if i := strings.LastIndex(text, screenplayMarker); i >= 0 {
		text = text[i+len(screenplayMarker):]
	}
	a := heuristicBreakdown(text)
	data, err := json.Marshal(a)
	if err != nil {
		return llm.Generation{}, fmt.Errorf("encode heuristic breakdown: %w", err)
	}
	return llm.Generation{
		Structured:   data,
		Model:        HeuristicModel,
		InputTokens:  len(req.User) / 4,
		OutputTokens: len(data) / 4,
	}, nil
}

type parsedScene struct {
	header     string
	kind       string
	location   string
	timeOfDay  string
	characters []string
	dialogue   int
	action     int
}

func parseScenes(text string) []parsedScene {
	var scenes []parsedScene
	var cur *parsedScene
	inDialogue := false

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			inDialogue = false
			continue
		}
		if m := sceneHeading.FindStringSubmatch(line); m != nil && line == strings.ToUpper(line) {
			scenes = append(scenes, newParsedScene(line, m[1], m[2]))
			cur = &scenes[len(scenes)-1]
			inDialogue = false
			continue
		}
		if cur == nil {
			scenes = append(scenes, parsedScene{header: "UNTITLED", kind: "INT", location: "UNKNOWN", timeOfDay: "DAY"})
			cur = &scenes[len(scenes)-1]
		}
		if m := characterCue.FindStringSubmatch(line); m != nil && !strings.HasSuffix(line, ":") {
			name := strings.TrimSpace(m[1])
			if _, skip := notCharacters[name]; !skip {
				cur.characters = appendUnique(cur.characters, name)
				inDialogue = true
				continue
			}
		}
		if inDialogue {
			cur.dialogue++
		} else {
			cur.action++
		}
	}
	return scenes
}

func newParsedScene(header, prefix, rest string) parsedScene {
	kind := "INT"
	switch {
	case strings.HasPrefix(prefix, "INT/") || strings.HasPrefix(prefix, "INT./") || strings.HasPrefix(prefix, "I/E"):
		kind = "INT/EXT"
	case strings.HasPrefix(prefix, "EXT"):
		kind = "EXT"
	}
	location, tod := rest, "DAY"
	if parts := timeOfDaySplit.Split(rest, -1); len(parts) > 1 {
		location = strings.Join(parts[:len(parts)-1], " - ")
		tod = parts[len(parts)-1]
	}
	return parsedScene{header: header, kind: kind, location: strings.TrimSpace(location), timeOfDay: strings.TrimSpace(tod)}
}

func heuristicBreakdown(text string) *breakdown.Analysis {
	scenes := parseScenes(text)
	if len(scenes) == 0 {
		scenes = []parsedScene{{header: "UNTITLED", kind: "INT", location: "UNKNOWN", timeOfDay: "DAY"}}
	}

	a := &breakdown.Analysis{
		Script: breakdown.ScriptData{
			TotalWords: len(strings.Fields(text)),
			Languages:  []string{"English"},
		},
		Cast: breakdown.CastBreakdown{
			CharacterSceneCount: map[string]int{},
			CastingRequirements: map[string]string{},
		},
		Location: breakdown.LocationBreakdown{
			LocationsByType:        map[string][]string{},
			LocationShootingGroups: map[string][]int{},
		},
		Props: breakdown.PropsBreakdown{
			PropsByCategory:    map[string][]string{},
			CostumeByCharacter: map[string][]string{},
			RentalVsPurchase:   map[string]string{},
		},
	}

	for i, ps := range scenes {
		n := i + 1
		pages := float64(ps.dialogue+ps.action) / 55
		if pages < 0.125 {
			pages = 0.125
		}
		a.Script.Scenes = append(a.Script.Scenes, breakdown.Scene{
			Number:         n,
			Header:         ps.header,
			TimeOfDay:      ps.timeOfDay,
			Type:           ps.kind,
			Characters:     ps.characters,
			Location:       ps.location,
			DialogueLines:  ps.dialogue,
			ActionLines:    ps.action,
			EstimatedPages: pages,
		})
		a.Script.TotalPages += pages

		a.Cast.SceneCharacters = append(a.Cast.SceneCharacters, breakdown.SceneCast{
			SceneNumber:        n,
			Characters:         ps.characters,
			DialogueComplexity: dialogueComplexity(ps.dialogue),
		})
		for _, c := range ps.characters {
			a.Cast.CharacterSceneCount[c]++
		}

		a.Location.SceneLocations = append(a.Location.SceneLocations, breakdown.SceneLocation{
			SceneNumber:        n,
			Name:               ps.location,
			Type:               ps.kind,
			TimeOfDay:          ps.timeOfDay,
			SetupComplexity:    setupComplexity(ps.kind),
			PermitNeeded:       ps.kind != "INT",
			EstimatedSetupMins: 60,
			Accessibility:      "Good",
		})
		if _, seen := a.Location.LocationShootingGroups[ps.location]; !seen {
			a.Location.UniqueLocations = append(a.Location.UniqueLocations, ps.location)
			a.Location.LocationsByType[ps.kind] = append(a.Location.LocationsByType[ps.kind], ps.location)
			if ps.kind != "INT" {
				a.Location.PermitRequirements = append(a.Location.PermitRequirements, ps.location)
			}
		}
		a.Location.LocationShootingGroups[ps.location] = append(a.Location.LocationShootingGroups[ps.location], n)

		a.Props.SceneProps = append(a.Props.SceneProps, breakdown.SceneProps{
			SceneNumber:    n,
			PropComplexity: "Simple",
		})

		a.Cost.SceneCosts = append(a.Cost.SceneCosts, sceneCost(n, ps))
	}

	a.Location.TotalLocationDays = len(a.Location.UniqueLocations)
	a.Script.TotalLocations = len(a.Location.UniqueLocations)
	a.Script.TotalCharacters = len(a.Cast.CharacterSceneCount)
	a.Cast.MainCharacters, a.Cast.SupportingCharacters = splitCast(a.Cast.CharacterSceneCount, len(scenes))

	for _, sc := range a.Cost.SceneCosts {
		a.Cost.TotalCastCosts += sc.CastCost
		a.Cost.TotalLocationCosts += sc.LocationCost
		a.Cost.TotalPropsCosts += sc.PropsCost
		a.Cost.TotalWardrobeCosts += sc.WardrobeCost
		a.Cost.TotalCrewCosts += sc.CrewCost
		a.Cost.TotalEquipmentCosts += sc.EquipmentCost
		a.Cost.TotalCosts += sc.Total
	}
	a.Props.PropBudgetEstimate = a.Cost.TotalPropsCosts
	a.Cost.BudgetCategory = budgetCategory(a.Cost.TotalCosts)
	return a
}

func sceneCost(n int, ps parsedScene) breakdown.SceneCost {
	cast := float64(castPerCharacter * len(ps.characters))
	location := float64(locationPerScene)
	if ps.kind != "INT" {
		location += exteriorSurplus
	}
	sc := breakdown.SceneCost{
		SceneNumber:   n,
		CastCost:      cast,
		LocationCost:  location,
		PropsCost:     propsPerScene,
		WardrobeCost:  float64(wardrobePerCast * len(ps.characters)),
		CrewCost:      crewPerScene,
		EquipmentCost: equipmentPerDay,
	}
	sc.Total = sc.CastCost + sc.LocationCost + sc.PropsCost + sc.WardrobeCost + sc.CrewCost + sc.EquipmentCost
	return sc
}

func splitCast(counts map[string]int, scenes int) (main, supporting []string) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if counts[name]*3 >= scenes {
			main = append(main, name)
		} else {
			supporting = append(supporting, name)
		}
	}
	return main, supporting
}

func dialogueComplexity(lines int) string {
	switch {
	case lines > 30:
		return "Complex"
	case lines > 10:
		return "Moderate"
	}
	return "Simple"
}

func setupComplexity(kind string) string {
	if kind == "INT" {
		return "Low"
	}
	return "Medium"
}

func budgetCategory(total float64) string {
	switch {
	case total < 100_000:
		return breakdown.BudgetLow
	case total < 1_000_000:
		return breakdown.BudgetMedium
	}
	return breakdown.BudgetHigh
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

var _ llm.Client = HeuristicClient{}
