package scenarios

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

func (s *Store) List() ([]models.Scenario, error) {
	rows, err := s.db.Query(
		`SELECT id, slug, title, description, voice_id, source_images, levels, created_at
		 FROM scenarios ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []models.Scenario
	for rows.Next() {
		scenario, err := scanScenario(rows.Scan)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, *scenario)
	}
	return scenarios, rows.Err()
}

func (s *Store) Get(id int64) (*models.Scenario, error) {
	row := s.db.QueryRow(
		`SELECT id, slug, title, description, voice_id, source_images, levels, created_at
		 FROM scenarios WHERE id = $1`,
		id,
	)
	scenario, err := scanScenario(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return scenario, err
}

// GetOverrides returns the user's personalized question sets for a
// scenario, keyed by level.
func (s *Store) GetOverrides(userID, scenarioID int64) (map[int][]models.Question, error) {
	rows, err := s.db.Query(
		`SELECT level, questions FROM question_overrides
		 WHERE user_id = $1 AND scenario_id = $2`,
		userID, scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get question overrides: %w", err)
	}
	defer rows.Close()

	overrides := make(map[int][]models.Question)
	for rows.Next() {
		var level int
		var questionsJSON []byte
		if err := rows.Scan(&level, &questionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan question override: %w", err)
		}
		var questions []models.Question
		if err := json.Unmarshal(questionsJSON, &questions); err != nil {
			return nil, fmt.Errorf("failed to decode question override: %w", err)
		}
		overrides[level] = questions
	}
	return overrides, rows.Err()
}

func scanScenario(scan func(dest ...any) error) (*models.Scenario, error) {
	scenario := &models.Scenario{}
	var imagesJSON, levelsJSON []byte
	err := scan(&scenario.ID, &scenario.Slug, &scenario.Title, &scenario.Description,
		&scenario.VoiceID, &imagesJSON, &levelsJSON, &scenario.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(imagesJSON, &scenario.SourceImages); err != nil {
		return nil, fmt.Errorf("failed to decode source images: %w", err)
	}
	if err := json.Unmarshal(levelsJSON, &scenario.Levels); err != nil {
		return nil, fmt.Errorf("failed to decode scenario levels: %w", err)
	}
	return scenario, nil
}
