package progress

import (
	"fmt"
	"testing"
	"time"

	"github.com/speakcoach/backend/internal/models"
)

type fakeStore struct {
	rows    map[string]*models.Progress
	upserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*models.Progress)}
}

func key(userID, scenarioID int64) string {
	return fmt.Sprintf("%d:%d", userID, scenarioID)
}

func (f *fakeStore) Get(userID, scenarioID int64) (*models.Progress, error) {
	if p, ok := f.rows[key(userID, scenarioID)]; ok {
		return p, nil
	}
	return &models.Progress{
		UserID:     userID,
		ScenarioID: scenarioID,
		Levels:     make(map[string]*models.LevelProgress),
	}, nil
}

func (f *fakeStore) GetAllForUser(userID int64) (map[int64]*models.Progress, error) {
	result := make(map[int64]*models.Progress)
	for _, p := range f.rows {
		if p.UserID == userID {
			result[p.ScenarioID] = p
		}
	}
	return result, nil
}

func (f *fakeStore) Upsert(p *models.Progress) error {
	f.upserts++
	f.rows[key(p.UserID, p.ScenarioID)] = p
	return nil
}

func TestTryUnlockSuccess(t *testing.T) {
	store := newFakeStore()
	svc := newServiceWith(store, 70)

	unlocked, err := svc.TryUnlock(1, 2, 1, 85, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !unlocked {
		t.Fatal("expected level 2 to unlock")
	}

	p, _ := store.Get(1, 2)
	if !p.IsUnlocked(2) {
		t.Error("level 2 should be persisted as unlocked")
	}
	if p.IsUnlocked(3) {
		t.Error("level 3 must stay locked")
	}
}

func TestTryUnlockScoreBelowThreshold(t *testing.T) {
	store := newFakeStore()
	svc := newServiceWith(store, 70)

	unlocked, err := svc.TryUnlock(1, 2, 1, 69, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unlocked {
		t.Error("score 69 must not unlock at threshold 70")
	}
	if store.upserts != 0 {
		t.Error("a refused unlock must not write")
	}
}

func TestTryUnlockScoreExactlyThreshold(t *testing.T) {
	svc := newServiceWith(newFakeStore(), 70)

	unlocked, err := svc.TryUnlock(1, 2, 1, 70, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !unlocked {
		t.Error("score exactly at threshold must unlock")
	}
}

func TestTryUnlockNoRenderedVideos(t *testing.T) {
	store := newFakeStore()
	svc := newServiceWith(store, 70)

	unlocked, err := svc.TryUnlock(1, 2, 1, 95, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unlocked {
		t.Error("zero rendered videos must not unlock regardless of score")
	}
}

func TestTryUnlockIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newServiceWith(store, 70)

	if _, err := svc.TryUnlock(1, 2, 1, 85, 2); err != nil {
		t.Fatal(err)
	}
	p, _ := store.Get(1, 2)
	firstUnlockedAt := *p.Level(2).UnlockedAt
	writesAfterFirst := store.upserts

	time.Sleep(5 * time.Millisecond)
	unlocked, err := svc.TryUnlock(1, 2, 1, 90, 3)
	if err != nil {
		t.Fatal(err)
	}
	if unlocked {
		t.Error("repeat call for an open level is a no-op and must report false")
	}
	if store.upserts != writesAfterFirst {
		t.Error("repeat call must not write")
	}

	p, _ = store.Get(1, 2)
	if !p.Level(2).UnlockedAt.Equal(firstUnlockedAt) {
		t.Error("unlockedAt is write-once and must not move")
	}
}

func TestTryUnlockBeyondMaxLevel(t *testing.T) {
	store := newFakeStore()
	svc := newServiceWith(store, 70)

	unlocked, err := svc.TryUnlock(1, 2, models.MaxLevel, 100, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unlocked {
		t.Error("there is no level past the maximum to unlock")
	}
	if store.upserts != 0 {
		t.Error("nothing to persist past the maximum level")
	}
}

func TestRecordCompletionFirstSession(t *testing.T) {
	store := newFakeStore()
	svc := newServiceWith(store, 70)

	earned, err := svc.RecordCompletion(1, 2, 1, 75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !contains(earned, AchievementFirstSession) {
		t.Errorf("first completion should award %s, got %v", AchievementFirstSession, earned)
	}

	p, _ := store.Get(1, 2)
	if p.TotalSessions != 1 {
		t.Errorf("expected 1 total session, got %d", p.TotalSessions)
	}
	lp := p.Level(1)
	if lp.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", lp.Attempts)
	}
	if lp.LastCompletedAt == nil {
		t.Error("lastCompletedAt should be set")
	}
}

func TestRecordCompletionHighScoreAndRepeat(t *testing.T) {
	store := newFakeStore()
	svc := newServiceWith(store, 70)

	earned, err := svc.RecordCompletion(1, 2, 1, 92)
	if err != nil {
		t.Fatal(err)
	}
	if !contains(earned, AchievementScore90) {
		t.Errorf("score 92 should award %s", AchievementScore90)
	}

	// Second high score on the same level: no duplicate award.
	earned, err = svc.RecordCompletion(1, 2, 1, 95)
	if err != nil {
		t.Fatal(err)
	}
	if contains(earned, AchievementScore90) {
		t.Error("achievements must not be awarded twice for the same level")
	}

	p, _ := store.Get(1, 2)
	if p.Level(1).Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", p.Level(1).Attempts)
	}
}

func TestRecordCompletionMaxLevelAchievement(t *testing.T) {
	svc := newServiceWith(newFakeStore(), 70)

	earned, err := svc.RecordCompletion(1, 2, models.MaxLevel, 60)
	if err != nil {
		t.Fatal(err)
	}
	if !contains(earned, AchievementLevel3Reached) {
		t.Errorf("completing the top level should award %s, got %v", AchievementLevel3Reached, earned)
	}
}

func TestRecordCompletionFiveSessions(t *testing.T) {
	svc := newServiceWith(newFakeStore(), 70)

	var lastEarned []string
	for i := 0; i < 5; i++ {
		var err error
		lastEarned, err = svc.RecordCompletion(1, 2, 1, 50)
		if err != nil {
			t.Fatal(err)
		}
	}
	if !contains(lastEarned, AchievementFiveSessions) {
		t.Errorf("fifth session should award %s, got %v", AchievementFiveSessions, lastEarned)
	}
}

func contains(list []string, key string) bool {
	for _, v := range list {
		if v == key {
			return true
		}
	}
	return false
}
