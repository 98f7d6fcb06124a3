package models

import "time"

// MaxLevel is the highest difficulty level a scenario has.
const MaxLevel = 3

// Scenario is a practice situation (e.g. "Job Interview") with three
// difficulty levels. Level question lists here are the shared defaults;
// per-user overrides for levels 2 and 3 live in question_overrides.
type Scenario struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	VoiceID     string `json:"voice_id"`
	// SourceImages are the avatar portrait candidates; one is picked
	// deterministically per session.
	SourceImages []string              `json:"source_images"`
	Levels       map[string][]Question `json:"levels"`
	CreatedAt    time.Time             `json:"created_at"`
}

// QuestionsForLevel returns the scenario's default questions for a level,
// or nil if the level has none seeded.
func (s *Scenario) QuestionsForLevel(level int) []Question {
	if s.Levels == nil {
		return nil
	}
	return s.Levels[LevelKey(level)]
}

// ScenarioDetail is a scenario with the caller's override sets merged in:
// if an override exists for a level, it replaces the defaults wholesale.
type ScenarioDetail struct {
	Scenario
	Progress *Progress `json:"progress,omitempty"`
}
