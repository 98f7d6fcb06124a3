package models

import (
	"fmt"
	"strings"
	"time"
)

// Question is one practice prompt within a scenario level. VideoURL starts
// out as a placeholder filename and is swapped for a storage URL once the
// avatar render for that question succeeds.
type Question struct {
	Order    int    `json:"order"`
	Text     string `json:"text"`
	VideoURL string `json:"video_url"`
}

// HasRenderedVideo reports whether the question's video URL points at a real
// stored asset rather than a pre-render placeholder.
func (q Question) HasRenderedVideo() bool {
	return strings.HasPrefix(q.VideoURL, "https://") || strings.HasPrefix(q.VideoURL, "http://")
}

// QuestionCount returns how many questions a level carries. Level 1 uses the
// scenario's shared defaults; personalized sets exist for levels 2 and 3.
func QuestionCount(level int) int {
	switch level {
	case 2:
		return 3
	case 3:
		return 2
	default:
		return 3
	}
}

// PlaceholderVideoURL builds the synthetic pre-render filename for a
// generated question.
func PlaceholderVideoURL(scenarioTitle string, level, order int) string {
	return fmt.Sprintf("%s_level%d_q%d.mp4", Slugify(scenarioTitle), level, order)
}

// Slugify lowercases a title and collapses everything non-alphanumeric to
// single underscores.
func Slugify(s string) string {
	var b []byte
	lastUnderscore := true
	for _, c := range strings.ToLower(s) {
		switch {
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
			b = append(b, byte(c))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b = append(b, '_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(string(b), "_")
}

// QuestionOverrideSet is the per-(user, scenario, level) question list that
// supersedes the scenario's shared defaults. It is always written as a whole
// array for one level, never merged field-by-field.
type QuestionOverrideSet struct {
	UserID     int64      `json:"user_id"`
	ScenarioID int64      `json:"scenario_id"`
	Level      int        `json:"level"`
	Questions  []Question `json:"questions"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
