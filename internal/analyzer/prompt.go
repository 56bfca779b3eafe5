package analyzer

import (
	"fmt"
	"strings"

	"script-backend/internal/costrates"
	"script-backend/internal/workflow"
)

const systemPrompt = `You are a film production analyst. Break the screenplay down for
pre-production and answer with one JSON object only, no prose.

The object has five keys: script_data, cast_breakdown, cost_breakdown,
location_breakdown, props_breakdown.

Rules:
- Number scenes 1, 2, 3 and so on in script order with no gaps.
- cost_breakdown.scene_costs has one entry per scene; total_scene_cost is the
  sum of that scene's cost lines and total_costs is the sum of every
  total_scene_cost.
- location_breakdown.scene_locations has exactly one entry per scene.
- budget_category is one of "Low", "Medium", "High".
- Costs are in USD. Base them on the reference rates when they are given.`

const schemaHint = `{
  "script_data": {"scenes": [{"scene_number": 1, "scene_header": "", "time_of_day": "", "scene_type": "", "characters_present": [], "props_mentioned": [], "location": "", "dialogue_lines": 0, "action_lines": 0, "estimated_pages": 1, "special_requirements": []}], "total_characters": 0, "total_locations": 0, "total_pages": 0, "total_words": 0, "languages": ["English"]},
  "cast_breakdown": {"scene_characters": [{"scene_number": 1, "characters_in_scene": [], "character_interactions": [], "dialogue_complexity": "Simple", "emotional_beats": []}], "main_characters": [], "supporting_characters": [], "character_scene_count": {}, "casting_requirements": {}},
  "cost_breakdown": {"scene_costs": [{"scene_number": 1, "cast_cost": 0, "location_cost": 0, "props_cost": 0, "wardrobe_cost": 0, "crew_cost": 0, "equipment_cost": 0, "total_scene_cost": 0}], "total_costs": 0, "total_cast_costs": 0, "total_location_costs": 0, "total_props_costs": 0, "total_wardrobe_costs": 0, "total_crew_costs": 0, "total_equipment_costs": 0, "budget_category": "Medium"},
  "location_breakdown": {"scene_locations": [{"scene_number": 1, "location_name": "", "location_type": "", "time_of_day": "", "setup_complexity": "", "permit_needed": false, "estimated_setup_time": 60, "accessibility": "Good"}], "unique_locations": [], "locations_by_type": {}, "location_shooting_groups": {}, "permit_requirements": [], "total_location_days": 0},
  "props_breakdown": {"scene_props": [{"scene_number": 1, "props_needed": [], "costume_requirements": [], "set_decoration": [], "prop_complexity": "", "special_effects_props": []}], "master_props_list": [], "props_by_category": {}, "costume_by_character": {}, "prop_budget_estimate": 0, "rental_vs_purchase": {}}
}`

const screenplayMarker = "Screenplay:\n"

// buildUserPrompt renders the per-attempt prompt.
func buildUserPrompt(in workflow.AnalyzeInput, card *costrates.Card, maxChars int) string {
	text := in.Text
	truncated := false
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Screenplay statistics: %d pages, %d words.\n\n", in.PageCount, in.WordCount)
	if card != nil && card.Total() > 0 {
		fmt.Fprintf(&b, "Reference production rates (source: %s):\n%s\n\n", card.Source, card.JSON())
	}
	if notes := strings.TrimSpace(in.RevisionNotes); notes != "" {
		fmt.Fprintf(&b, "A reviewer rejected the previous breakdown. Address this feedback:\n%s\n\n", notes)
	}
	fmt.Fprintf(&b, "Answer with JSON shaped like:\n%s\n\n", schemaHint)
	b.WriteString(screenplayMarker)
	b.WriteString(text)
	if truncated {
		b.WriteString("\n[screenplay truncated]")
	}
	return b.String()
}
