package pack

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/devstory-labs/devstory-engine/internal/errors"
)

const wellFormed = `{
	"project_name": "TaxPilot",
	"tagline": "File taxes from your terminal",
	"story": {
		"problem": "Tax filing is slow",
		"solution": "A CLI that files tax forms",
		"tech": "Go, SQLite"
	},
	"diagram": "graph TD; CLI --> IRS[IRS API];",
	"game_quests": [
		{"title": "Deploy MVP", "instruction": "Ship it", "xp": 200}
	],
	"demo_script": [
		{"time": "0:00", "action": "Intro", "script": "High energy intro"}
	],
	"cheat_sheet": {
		"innovation_score": 95,
		"why_it_wins": ["Files taxes in seconds.", "No browser required."]
	},
	"pitch_script": [
		{"time": "00:00", "text": "Hook"}
	]
}`

func TestParse_Direct(t *testing.T) {
	p, err := Parse(wellFormed)
	require.NoError(t, err)
	assert.Equal(t, "TaxPilot", p.ProjectName)
	assert.Equal(t, "Tax filing is slow", p.Story.Problem)
	assert.False(t, p.Story.IsFreeform())
	assert.Len(t, p.Quests, 1)
	assert.Equal(t, 200, p.Quests[0].XP)
	assert.Equal(t, float64(95), p.CheatSheet.InnovationScore)
	assert.Equal(t, []string{"Files taxes in seconds.", "No browser required."}, p.CheatSheet.WhyItWins.Bullets())
}

func TestParse_FencedEqualsUnfenced(t *testing.T) {
	fenced := "```json\n" + wellFormed + "\n```"
	direct, err := Parse(wellFormed)
	require.NoError(t, err)
	wrapped, err := Parse(fenced)
	require.NoError(t, err)
	assert.Equal(t, direct, wrapped)
}

func TestParse_BareFence(t *testing.T) {
	p, err := Parse("```\n" + wellFormed + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "TaxPilot", p.ProjectName)
}

func TestParse_Malformed(t *testing.T) {
	cases := []string{
		"I could not produce JSON, sorry.",
		"```json\nnot json at all\n```",
		`{"project_name": "trailing`,
	}
	for _, raw := range cases {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, derrors.ErrMalformedResponse, "input: %s", raw)
	}
}

func TestParse_RoundTripPreservesFields(t *testing.T) {
	p, err := Parse(wellFormed)
	require.NoError(t, err)

	encoded, err := json.Marshal(p)
	require.NoError(t, err)

	again, err := Parse(string(encoded))
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestStory_FreeformString(t *testing.T) {
	p, err := Parse(`{"project_name": "X", "story": "One big narrative."}`)
	require.NoError(t, err)
	assert.True(t, p.Story.IsFreeform())
	assert.Equal(t, "One big narrative.", p.Story.Freeform)

	encoded, err := json.Marshal(p.Story)
	require.NoError(t, err)
	assert.JSONEq(t, `"One big narrative."`, string(encoded))
}

func TestReasons_StringFallbackSplit(t *testing.T) {
	p, err := Parse(`{"cheat_sheet": {"innovation_score": 80, "why_it_wins": "Fast to ship. Easy to demo. Judges love CLIs"}}`)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"Fast to ship.", "Easy to demo.", "Judges love CLIs."},
		p.CheatSheet.WhyItWins.Bullets())
}

func TestReasons_StringMisSplitsOnAbbreviations(t *testing.T) {
	// Known quirk inherited from the display fallback: "e.g. " splits.
	r := Reasons{Raw: "Works with e.g. Stripe"}
	assert.Equal(t, []string{"Works with e.g.", "Stripe."}, r.Bullets())
}

func TestReasons_EmptyString(t *testing.T) {
	r := Reasons{}
	assert.Equal(t, []string{"N/A."}, r.Bullets())
}

func TestDiagram_DefaultPlaceholder(t *testing.T) {
	p, err := Parse(`{"project_name": "X"}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultDiagram, p.DiagramOrDefault())

	p, err = Parse(`{"diagram": "graph TD; A --> B;"}`)
	require.NoError(t, err)
	assert.Equal(t, "graph TD; A --> B;", p.DiagramOrDefault())
}

func TestOptionalSections_Absent(t *testing.T) {
	p, err := Parse(`{"project_name": "Minimal"}`)
	require.NoError(t, err)
	assert.Empty(t, p.Quests)
	assert.Empty(t, p.PitchScript)
	assert.Empty(t, p.DemoScript)
}
