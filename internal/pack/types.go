// Package pack defines the structured project package produced by the
// generative service, with tolerant decoding for the formats the model is
// known to emit.
package pack

import (
	"encoding/json"
	"strings"
)

// DefaultDiagram is substituted when the model omits the architecture graph.
const DefaultDiagram = "graph TD; A[Client] --> B[Server];"

// ProjectPackage is the structured output of one completed generation.
// All fields below the top level are advisory display data; consumers must
// tolerate missing sub-fields.
type ProjectPackage struct {
	ProjectName string      `json:"project_name"`
	Tagline     string      `json:"tagline"`
	Story       Story       `json:"story"`
	Diagram     string      `json:"diagram,omitempty"`
	Quests      []Quest     `json:"game_quests,omitempty"`
	DemoScript  []DemoStep  `json:"demo_script,omitempty"`
	CheatSheet  CheatSheet  `json:"cheat_sheet"`
	PitchScript []PitchLine `json:"pitch_script,omitempty"`
}

// DiagramOrDefault returns the architecture graph, or a placeholder when
// the model left it out.
func (p *ProjectPackage) DiagramOrDefault() string {
	if strings.TrimSpace(p.Diagram) == "" {
		return DefaultDiagram
	}
	return p.Diagram
}

// Story is either a structured problem/solution/tech triple or, tolerated,
// a single free-text narrative. Exactly one form is populated.
type Story struct {
	Problem  string
	Solution string
	Tech     string

	// Freeform holds the narrative when the model emitted a bare string.
	Freeform string
}

type storyObject struct {
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
	Tech     string `json:"tech"`
}

// UnmarshalJSON accepts both the object and the bare-string form.
func (s *Story) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Story{Freeform: text}
		return nil
	}
	var obj storyObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = Story{Problem: obj.Problem, Solution: obj.Solution, Tech: obj.Tech}
	return nil
}

// MarshalJSON round-trips whichever form was decoded.
func (s Story) MarshalJSON() ([]byte, error) {
	if s.Freeform != "" {
		return json.Marshal(s.Freeform)
	}
	return json.Marshal(storyObject{Problem: s.Problem, Solution: s.Solution, Tech: s.Tech})
}

// IsFreeform reports whether the story arrived as a single string.
func (s Story) IsFreeform() bool { return s.Freeform != "" }

// Quest is one gamified task suggested for the project.
type Quest struct {
	Title       string `json:"title"`
	Instruction string `json:"instruction"`
	XP          int    `json:"xp"`
}

// DemoStep is one timed beat of the demo recording script.
type DemoStep struct {
	Time   string `json:"time"`
	Action string `json:"action"`
	Script string `json:"script"`
}

// PitchLine is one timed line of the pitch script.
type PitchLine struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// CheatSheet carries the judging shortcuts.
type CheatSheet struct {
	InnovationScore float64 `json:"innovation_score"`
	WhyItWins       Reasons `json:"why_it_wins"`
}

// Reasons is either a list of winning reasons or, tolerated, a single
// period-delimited string.
type Reasons struct {
	Items []string
	Raw   string
}

// UnmarshalJSON accepts both the array and the bare-string form.
func (r *Reasons) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*r = Reasons{Items: items}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Reasons{Raw: raw}
	return nil
}

// MarshalJSON round-trips whichever form was decoded.
func (r Reasons) MarshalJSON() ([]byte, error) {
	if r.Items != nil {
		return json.Marshal(r.Items)
	}
	return json.Marshal(r.Raw)
}

// Bullets returns display-ready reasons. The string form is split into
// sentences on ". ", trimmed, empties dropped, each given a trailing
// period. The split can misfire on abbreviations and decimals inside a
// reason; that matches the observed behavior of the original renderer.
func (r Reasons) Bullets() []string {
	if r.Items != nil {
		return r.Items
	}
	raw := r.Raw
	if raw == "" {
		raw = "N/A"
	}
	parts := strings.Split(raw, ". ")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasSuffix(part, ".") {
			part += "."
		}
		out = append(out, part)
	}
	return out
}
