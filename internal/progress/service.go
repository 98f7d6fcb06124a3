package progress

import (
	"database/sql"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/speakcoach/backend/internal/models"
)

const defaultScoreThreshold = 70

// Achievement keys awarded by RecordCompletion.
const (
	AchievementFirstSession  = "first_session"
	AchievementScore90       = "score_90"
	AchievementLevel3Reached = "level_3_reached"
	AchievementFiveSessions  = "five_sessions"
)

// ledgerStore is the persistence surface the service needs. *Store satisfies
// it; tests use an in-memory fake.
type ledgerStore interface {
	Get(userID, scenarioID int64) (*models.Progress, error)
	GetAllForUser(userID int64) (map[int64]*models.Progress, error)
	Upsert(p *models.Progress) error
}

// Service owns the progression rules: recording completions, awarding
// achievements, and gating the unlock of the next level.
type Service struct {
	store          ledgerStore
	scoreThreshold int
}

func NewService(db *sql.DB) *Service {
	return &Service{
		store:          NewStore(db),
		scoreThreshold: envScoreThreshold(),
	}
}

func newServiceWith(store ledgerStore, threshold int) *Service {
	return &Service{store: store, scoreThreshold: threshold}
}

// RecordCompletion bumps the ledger for a finished session and returns the
// achievements newly earned by it.
func (s *Service) RecordCompletion(userID, scenarioID int64, level, score int) ([]string, error) {
	p, err := s.store.Get(userID, scenarioID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	lp := p.Level(level)
	lp.Attempts++
	lp.LastCompletedAt = &now
	p.TotalSessions++
	p.LastPlayedAt = &now

	earned := s.evaluateAchievements(p, lp, level, score)
	for _, key := range earned {
		lp.Achievements = append(lp.Achievements, key)
	}

	if err := s.store.Upsert(p); err != nil {
		return nil, err
	}
	return earned, nil
}

func (s *Service) evaluateAchievements(p *models.Progress, lp *models.LevelProgress, level, score int) []string {
	var earned []string

	award := func(key string) {
		if !lp.HasAchievement(key) {
			earned = append(earned, key)
		}
	}

	if p.TotalSessions == 1 {
		award(AchievementFirstSession)
	}
	if score >= 90 {
		award(AchievementScore90)
	}
	if level == models.MaxLevel {
		award(AchievementLevel3Reached)
	}
	if p.TotalSessions >= 5 {
		award(AchievementFiveSessions)
	}
	return earned
}

// TryUnlock applies the progression gate after a completed session: the next
// level opens only when the score clears the threshold AND at least one
// next-level coach video rendered successfully. UnlockedAt is write-once; a
// repeat call for an already-open level is a no-op. The returned bool
// reports whether this call performed the unlock.
func (s *Service) TryUnlock(userID, scenarioID int64, completedLevel, score, successCount int) (bool, error) {
	nextLevel := completedLevel + 1
	if nextLevel > models.MaxLevel {
		return false, nil
	}

	p, err := s.store.Get(userID, scenarioID)
	if err != nil {
		return false, err
	}

	if p.IsUnlocked(nextLevel) {
		return false, nil
	}

	if score < s.scoreThreshold {
		log.Printf("[progress] user %d scenario %d: score %d below threshold %d, level %d stays locked",
			userID, scenarioID, score, s.scoreThreshold, nextLevel)
		return false, nil
	}
	if successCount <= 0 {
		log.Printf("[progress] user %d scenario %d: no rendered videos for level %d, stays locked",
			userID, scenarioID, nextLevel)
		return false, nil
	}

	now := time.Now()
	p.Level(nextLevel).UnlockedAt = &now
	if err := s.store.Upsert(p); err != nil {
		return false, err
	}

	log.Printf("[progress] user %d scenario %d: level %d unlocked (score %d, %d videos)",
		userID, scenarioID, nextLevel, score, successCount)
	return true, nil
}

// Get returns the ledger for one scenario.
func (s *Service) Get(userID, scenarioID int64) (*models.Progress, error) {
	return s.store.Get(userID, scenarioID)
}

// GetAll returns every scenario ledger for the user.
func (s *Service) GetAll(userID int64) (map[int64]*models.Progress, error) {
	return s.store.GetAllForUser(userID)
}

func envScoreThreshold() int {
	if v := os.Getenv("UNLOCK_SCORE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
			return n
		}
		log.Printf("WARN: invalid UNLOCK_SCORE_THRESHOLD=%q, using default %d", v, defaultScoreThreshold)
	}
	return defaultScoreThreshold
}
