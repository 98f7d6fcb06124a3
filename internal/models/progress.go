package models

import (
	"strconv"
	"time"
)

// LevelProgress tracks one user's standing on one difficulty level of a
// scenario. UnlockedAt is write-once: the unlock gate sets it at most one
// time and nothing may clear it afterwards.
type LevelProgress struct {
	Attempts        int        `json:"attempts"`
	LastCompletedAt *time.Time `json:"last_completed_at"`
	Achievements    []string   `json:"achievements"`
	UnlockedAt      *time.Time `json:"unlocked_at"`
}

// HasAchievement reports whether the achievement key is already recorded.
func (lp *LevelProgress) HasAchievement(key string) bool {
	for _, a := range lp.Achievements {
		if a == key {
			return true
		}
	}
	return false
}

// Progress is the per-(user, scenario) ledger. Levels is keyed by the level
// number as a string ("1".."3") to match its JSONB representation.
type Progress struct {
	UserID        int64                     `json:"user_id"`
	ScenarioID    int64                     `json:"scenario_id"`
	Levels        map[string]*LevelProgress `json:"levels"`
	TotalSessions int                       `json:"total_sessions"`
	LastPlayedAt  *time.Time                `json:"last_played_at"`
}

// LevelKey converts a numeric level to its JSONB map key.
func LevelKey(level int) string {
	return strconv.Itoa(level)
}

// Level returns the LevelProgress for a level, creating an empty entry in
// the map if none exists yet.
func (p *Progress) Level(level int) *LevelProgress {
	if p.Levels == nil {
		p.Levels = make(map[string]*LevelProgress)
	}
	key := LevelKey(level)
	lp, ok := p.Levels[key]
	if !ok {
		lp = &LevelProgress{}
		p.Levels[key] = lp
	}
	return lp
}

// IsUnlocked reports whether a level is playable. Level 1 is always open.
func (p *Progress) IsUnlocked(level int) bool {
	if level <= 1 {
		return true
	}
	if p == nil || p.Levels == nil {
		return false
	}
	lp, ok := p.Levels[LevelKey(level)]
	return ok && lp.UnlockedAt != nil
}
