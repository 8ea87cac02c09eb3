// Package genai wraps the generative text service behind a small
// provider interface. Gemini today, anything tomorrow.
package genai

import "context"

// Provider is the abstraction the generation pipeline calls into.
type Provider interface {
	// Generate sends one completion request and returns the raw model
	// text. It blocks until the model responds or the context ends.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelID returns the current model identifier string.
	ModelID() string
}

// Prompt builds the deterministic generation prompt from the free-text
// request context. Same input, same prompt.
func Prompt(inputContext string) string {
	return "Input Context: " + inputContext
}

// SystemInstruction is the DevStory engine contract sent with every
// request. The model is told to answer with a strict JSON object; the
// parser still tolerates fenced output (see internal/pack).
const SystemInstruction = `SYSTEM_INSTRUCTION:
You are the DevStory Engine, a Cyberpunk AI Architect. Analyze the GitHub repository or User Idea and return a STRICT JSON object.
Your goal is to "Productize" the hackathon idea into a winning package.

JSON STRUCTURE:
{
  "project_name": "Inferred Name (Cool, catchy)",
  "tagline": "A punchy one-liner (Marketing style)",
  "story": {
      "problem": "The painful problem statement",
      "solution": "The innovative solution",
      "tech": "The specific stack (e.g. Next.js, Firebase...)"
  },
  "diagram": "Mermaid.js graph TD string visualizing the architecture. NODES SHOULD BE SHORT. DO NOT USE MARKDOWN BLOCK.",
  "game_quests": [
      { "title": "Deploy MVP", "instruction": "Ship to Vercel", "xp": 200 },
      { "title": "Record Demo", "instruction": "60s video", "xp": 100 },
      { "title": "Design UI", "instruction": "Figma mockup", "xp": 150 }
  ],
  "demo_script": [
      { "time": "0:00", "action": "Intro", "script": "High energy intro..." },
      { "time": "0:15", "action": "Problem", "script": "Show the struggle..." }
  ],
  "cheat_sheet": {
    "innovation_score": 95,
    "why_it_wins": ["Uses AI for real-time collaboration.", "Gamified workflow boosts retention.", "Cyberpunk aesthetic reduces fatigue."]
  },
  "pitch_script": [
    { "time": "00:00", "text": "Hook: 30s intro..." },
    { "time": "00:30", "text": "Problem: 30s deep dive..." },
    { "time": "01:00", "text": "Solution: 30s reveal..." },
    { "time": "01:30", "text": "Call to Action: 30s close..." }
  ]
}
`
