// Package breakdown holds the structured script analysis: scene breakdown,
// cast, cost, locations and props.
package breakdown

// Analysis is the comprehensive breakdown of one script.
type Analysis struct {
	Script   ScriptData        `json:"script_data"`
	Cast     CastBreakdown     `json:"cast_breakdown"`
	Cost     CostBreakdown     `json:"cost_breakdown"`
	Location LocationBreakdown `json:"location_breakdown"`
	Props    PropsBreakdown    `json:"props_breakdown"`
}

// Scene is one scene as parsed from the script.
type Scene struct {
	Number              int      `json:"scene_number"`
	Header              string   `json:"scene_header"`
	TimeOfDay           string   `json:"time_of_day"`
	Type                string   `json:"scene_type"`
	Characters          []string `json:"characters_present"`
	Props               []string `json:"props_mentioned"`
	Location            string   `json:"location"`
	DialogueLines       int      `json:"dialogue_lines"`
	ActionLines         int      `json:"action_lines"`
	EstimatedPages      float64  `json:"estimated_pages"`
	SpecialRequirements []string `json:"special_requirements"`
}

// ScriptData is the scene-level breakdown plus script totals.
type ScriptData struct {
	Scenes          []Scene  `json:"scenes"`
	TotalCharacters int      `json:"total_characters"`
	TotalLocations  int      `json:"total_locations"`
	TotalPages      float64  `json:"total_pages"`
	TotalWords      int      `json:"total_words"`
	Languages       []string `json:"languages"`
}

type SceneCast struct {
	SceneNumber           int      `json:"scene_number"`
	Characters            []string `json:"characters_in_scene"`
	CharacterInteractions []string `json:"character_interactions"`
	DialogueComplexity    string   `json:"dialogue_complexity"`
	EmotionalBeats        []string `json:"emotional_beats"`
}

type CastBreakdown struct {
	SceneCharacters      []SceneCast       `json:"scene_characters"`
	MainCharacters       []string          `json:"main_characters"`
	SupportingCharacters []string          `json:"supporting_characters"`
	CharacterSceneCount  map[string]int    `json:"character_scene_count"`
	CastingRequirements  map[string]string `json:"casting_requirements"`
}

type SceneCost struct {
	SceneNumber   int     `json:"scene_number"`
	CastCost      float64 `json:"cast_cost"`
	LocationCost  float64 `json:"location_cost"`
	PropsCost     float64 `json:"props_cost"`
	WardrobeCost  float64 `json:"wardrobe_cost"`
	CrewCost      float64 `json:"crew_cost"`
	EquipmentCost float64 `json:"equipment_cost"`
	Total         float64 `json:"total_scene_cost"`
}

type CostBreakdown struct {
	SceneCosts          []SceneCost `json:"scene_costs"`
	TotalCosts          float64     `json:"total_costs"`
	TotalCastCosts      float64     `json:"total_cast_costs"`
	TotalLocationCosts  float64     `json:"total_location_costs"`
	TotalPropsCosts     float64     `json:"total_props_costs"`
	TotalWardrobeCosts  float64     `json:"total_wardrobe_costs"`
	TotalCrewCosts      float64     `json:"total_crew_costs"`
	TotalEquipmentCosts float64     `json:"total_equipment_costs"`
	BudgetCategory      string      `json:"budget_category"`
}

type SceneLocation struct {
	SceneNumber        int    `json:"scene_number"`
	Name               string `json:"location_name"`
	Type               string `json:"location_type"`
	TimeOfDay          string `json:"time_of_day"`
	SetupComplexity    string `json:"setup_complexity"`
	PermitNeeded       bool   `json:"permit_needed"`
	EstimatedSetupMins int    `json:"estimated_setup_time"`
	Accessibility      string `json:"accessibility"`
}

type LocationBreakdown struct {
	SceneLocations         []SceneLocation     `json:"scene_locations"`
	UniqueLocations        []string            `json:"unique_locations"`
	LocationsByType        map[string][]string `json:"locations_by_type"`
	LocationShootingGroups map[string][]int    `json:"location_shooting_groups"`
	PermitRequirements     []string            `json:"permit_requirements"`
	TotalLocationDays      int                 `json:"total_location_days"`
}

type SceneProps struct {
	SceneNumber         int      `json:"scene_number"`
	PropsNeeded         []string `json:"props_needed"`
	CostumeRequirements []string `json:"costume_requirements"`
	SetDecoration       []string `json:"set_decoration"`
	PropComplexity      string   `json:"prop_complexity"`
	SpecialEffectsProps []string `json:"special_effects_props"`
}

type PropsBreakdown struct {
	SceneProps         []SceneProps        `json:"scene_props"`
	MasterPropsList    []string            `json:"master_props_list"`
	PropsByCategory    map[string][]string `json:"props_by_category"`
	CostumeByCharacter map[string][]string `json:"costume_by_character"`
	PropBudgetEstimate float64             `json:"prop_budget_estimate"`
	RentalVsPurchase   map[string]string   `json:"rental_vs_purchase"`
}

// Budget categories.
const (
	BudgetLow    = "Low"
	BudgetMedium = "Medium"
	BudgetHigh   = "High"
)

// SceneCount reports the number of scenes in the script breakdown.
func (a *Analysis) SceneCount() int {
	if a == nil {
		return 0
	}
	return len(a.Script.Scenes)
}

// TotalCost reports the declared total cost.
func (a *Analysis) TotalCost() float64 {
	if a == nil {
		return 0
	}
	return a.Cost.TotalCosts
}

// Summary is the per-record metadata kept next to a stored analysis.
type Summary struct {
	TotalScenes     int     `json:"total_scenes"`
	TotalCharacters int     `json:"total_characters"`
	TotalLocations  int     `json:"total_locations"`
	EstimatedBudget float64 `json:"estimated_budget"`
	BudgetCategory  string  `json:"budget_category"`
}

// Summarize derives record metadata from a.
func Summarize(a *Analysis) Summary {
	if a == nil {
		return Summary{}
	}
	return Summary{
		TotalScenes:     len(a.Script.Scenes),
		TotalCharacters: a.Script.TotalCharacters,
		TotalLocations:  a.Script.TotalLocations,
		EstimatedBudget: a.Cost.TotalCosts,
		BudgetCategory:  a.Cost.BudgetCategory,
	}
}
