package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"script-backend/internal/breakdown"
	"script-backend/internal/costrates"
	"script-backend/internal/llm"
	"script-backend/internal/workflow"
)

const shortScript = `INT. KITCHEN - DAY
John pours coffee.

JOHN
Morning.

MARY (O.S.)
You're late.

EXT. STREET - NIGHT
Rain falls.

CUT TO:

INT. KITCHEN - NIGHT
MARY
He's gone.`

func TestHeuristicParsesScenes(t *testing.T) {
	a := heuristicBreakdown(shortScript)
	require.NoError(t, breakdown.Validate(a))

	require.Len(t, a.Script.Scenes, 3)
	first := a.Script.Scenes[0]
	assert.Equal(t, "INT", first.Type)
	assert.Equal(t, "KITCHEN", first.Location)
	assert.Equal(t, "DAY", first.TimeOfDay)
	assert.Equal(t, []string{"JOHN", "MARY"}, first.Characters)
	assert.Equal(t, 2, first.DialogueLines)
	assert.Equal(t, 1, first.ActionLines)

	second := a.Script.Scenes[1]
	assert.Equal(t, "EXT", second.Type)
	assert.Equal(t, "NIGHT", second.TimeOfDay)
	assert.Empty(t, second.Characters)

	assert.Equal(t, []string{"KITCHEN", "STREET"}, a.Location.UniqueLocations)
	assert.Equal(t, []int{1, 3}, a.Location.LocationShootingGroups["KITCHEN"])
	assert.Equal(t, []string{"STREET"}, a.Location.PermitRequirements)
	assert.Equal(t, 2, a.Cast.CharacterSceneCount["MARY"])
	assert.Equal(t, 2, a.Script.TotalCharacters)
}

func TestHeuristicCostsAddUp(t *testing.T) {
	a := heuristicBreakdown(shortScript)

	assert.InDelta(t, 7350, a.Cost.SceneCosts[0].Total, 0.001)
	assert.InDelta(t, 6450, a.Cost.SceneCosts[1].Total, 0.001)
	assert.InDelta(t, 6400, a.Cost.SceneCosts[2].Total, 0.001)
	assert.InDelta(t, 20200, a.Cost.TotalCosts, 0.001)
	assert.Equal(t, breakdown.BudgetLow, a.Cost.BudgetCategory)
	assert.InDelta(t, 750, a.Props.PropBudgetEstimate, 0.001)
}

func TestHeuristicEmptyScriptYieldsOneScene(t *testing.T) {
	a := heuristicBreakdown("")
	require.NoError(t, breakdown.Validate(a))
	require.Len(t, a.Script.Scenes, 1)
	assert.Equal(t, "UNKNOWN", a.Script.Scenes[0].Location)
}

func TestHeuristicBudgetCategories(t *testing.T) {
	assert.Equal(t, breakdown.BudgetLow, budgetCategory(99_999))
	assert.Equal(t, breakdown.BudgetMedium, budgetCategory(100_000))
	assert.Equal(t, breakdown.BudgetHigh, budgetCategory(1_000_000))
}

func TestHeuristicClientThroughAnalyzer(t *testing.T) {
	a := New(HeuristicClient{}, costrates.Fallback{})
	res, err := a.Analyze(context.Background(), workflow.AnalyzeInput{
		Document: workflow.Document{Text: shortScript, WordCount: 21, PageCount: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Calls)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, 3, res.Analysis.SceneCount())
	assert.Equal(t, 21, res.Analysis.Script.TotalWords)
}

func TestHeuristicClientHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := HeuristicClient{}.Generate(ctx, llm.Request{User: shortScript})
	require.ErrorIs(t, err, context.Canceled)
}
