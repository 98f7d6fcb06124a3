package progress

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/speakcoach/backend/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get loads the per-(user, scenario) ledger row. A missing row comes back as
// an empty Progress, never an error.
func (s *Store) Get(userID, scenarioID int64) (*models.Progress, error) {
	p := &models.Progress{
		UserID:     userID,
		ScenarioID: scenarioID,
		Levels:     make(map[string]*models.LevelProgress),
	}

	var levelsJSON []byte
	err := s.db.QueryRow(
		`SELECT levels, total_sessions, last_played_at
		 FROM progress WHERE user_id = $1 AND scenario_id = $2`,
		userID, scenarioID,
	).Scan(&levelsJSON, &p.TotalSessions, &p.LastPlayedAt)

	if err == sql.ErrNoRows {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	if len(levelsJSON) > 0 {
		if err := json.Unmarshal(levelsJSON, &p.Levels); err != nil {
			return nil, fmt.Errorf("failed to decode progress levels: %w", err)
		}
	}
	return p, nil
}

// GetAllForUser loads every scenario ledger the user has touched, keyed by
// scenario id.
func (s *Store) GetAllForUser(userID int64) (map[int64]*models.Progress, error) {
	rows, err := s.db.Query(
		`SELECT scenario_id, levels, total_sessions, last_played_at
		 FROM progress WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]*models.Progress)
	for rows.Next() {
		p := &models.Progress{UserID: userID, Levels: make(map[string]*models.LevelProgress)}
		var levelsJSON []byte
		if err := rows.Scan(&p.ScenarioID, &levelsJSON, &p.TotalSessions, &p.LastPlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		if len(levelsJSON) > 0 {
			if err := json.Unmarshal(levelsJSON, &p.Levels); err != nil {
				return nil, fmt.Errorf("failed to decode progress levels: %w", err)
			}
		}
		result[p.ScenarioID] = p
	}
	return result, rows.Err()
}

// Upsert writes the whole ledger row back. Levels is stored as one JSONB
// document, so callers follow a read-modify-write pattern.
func (s *Store) Upsert(p *models.Progress) error {
	levelsJSON, err := json.Marshal(p.Levels)
	if err != nil {
		return fmt.Errorf("failed to encode progress levels: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO progress (user_id, scenario_id, levels, total_sessions, last_played_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id, scenario_id) DO UPDATE SET
			levels = EXCLUDED.levels,
			total_sessions = EXCLUDED.total_sessions,
			last_played_at = EXCLUDED.last_played_at,
			updated_at = NOW()`,
		p.UserID, p.ScenarioID, levelsJSON, p.TotalSessions, p.LastPlayedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}
