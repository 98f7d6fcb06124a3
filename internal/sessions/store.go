package sessions

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/speakcoach/backend/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── Sessions ─────────────────────────────────────────────

func (s *Store) CreateSession(userID, scenarioID int64, level int) (*models.Session, error) {
	session := &models.Session{
		UserID:     userID,
		ScenarioID: scenarioID,
		Level:      level,
		Status:     models.SessionInProgress,
	}
	err := s.db.QueryRow(
		`INSERT INTO sessions (user_id, scenario_id, level) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		userID, scenarioID, level,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *Store) GetSession(id, userID int64) (*models.Session, error) {
	session := &models.Session{}
	var speechJSON, facialJSON, achievementsJSON []byte
	err := s.db.QueryRow(
		`SELECT id, user_id, scenario_id, level, score, status,
		        speech_metrics, facial_analysis, achievements, completed_at, created_at
		 FROM sessions WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&session.ID, &session.UserID, &session.ScenarioID, &session.Level,
		&session.Score, &session.Status, &speechJSON, &facialJSON,
		&achievementsJSON, &session.CompletedAt, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if len(speechJSON) > 0 {
		session.Speech = &models.SpeechMetrics{}
		if err := json.Unmarshal(speechJSON, session.Speech); err != nil {
			return nil, fmt.Errorf("failed to decode speech metrics: %w", err)
		}
	}
	if len(facialJSON) > 0 {
		session.Facial = &models.FacialAnalysis{}
		if err := json.Unmarshal(facialJSON, session.Facial); err != nil {
			return nil, fmt.Errorf("failed to decode facial analysis: %w", err)
		}
	}
	session.Achievements = []string{}
	if len(achievementsJSON) > 0 {
		if err := json.Unmarshal(achievementsJSON, &session.Achievements); err != nil {
			return nil, fmt.Errorf("failed to decode achievements: %w", err)
		}
	}
	return session, nil
}

// CompleteSession marks the session completed with its final metrics. A
// session that is already completed is left untouched and reported via the
// bool so the coordinator can treat re-completion as a retry.
func (s *Store) CompleteSession(session *models.Session) (bool, error) {
	speechJSON, err := marshalNullable(session.Speech)
	if err != nil {
		return false, err
	}
	facialJSON, err := marshalNullable(session.Facial)
	if err != nil {
		return false, err
	}
	achievementsJSON, err := json.Marshal(session.Achievements)
	if err != nil {
		return false, fmt.Errorf("failed to encode achievements: %w", err)
	}

	now := time.Now()
	res, err := s.db.Exec(
		`UPDATE sessions SET
			score = $1, status = $2, speech_metrics = $3, facial_analysis = $4,
			achievements = $5, completed_at = $6
		 WHERE id = $7 AND status = $8`,
		session.Score, models.SessionCompleted, speechJSON, facialJSON,
		achievementsJSON, now, session.ID, models.SessionInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	session.Status = models.SessionCompleted
	session.CompletedAt = &now
	return true, nil
}

// SaveAchievements updates the achievements column after the ledger awards
// them.
func (s *Store) SaveAchievements(sessionID int64, achievements []string) error {
	achievementsJSON, err := json.Marshal(achievements)
	if err != nil {
		return fmt.Errorf("failed to encode achievements: %w", err)
	}
	_, err = s.db.Exec(`UPDATE sessions SET achievements = $1 WHERE id = $2`, achievementsJSON, sessionID)
	if err != nil {
		return fmt.Errorf("failed to save achievements: %w", err)
	}
	return nil
}

// ── Session Steps ────────────────────────────────────────

// AppendStep records one exercise of an incrementally built session. A
// resubmitted order replaces the earlier row, so the mobile app can retry
// safely.
func (s *Store) AppendStep(sessionID int64, order, score int, speech models.SpeechMetrics) (*models.SessionStep, error) {
	speechJSON, err := json.Marshal(speech)
	if err != nil {
		return nil, fmt.Errorf("failed to encode speech metrics: %w", err)
	}

	step := &models.SessionStep{
		SessionID: sessionID,
		Order:     order,
		Score:     score,
		Speech:    speech,
	}
	err = s.db.QueryRow(
		`INSERT INTO session_steps (session_id, ord, score, speech_metrics)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, ord) DO UPDATE SET
			score = EXCLUDED.score, speech_metrics = EXCLUDED.speech_metrics
		 RETURNING id, created_at`,
		sessionID, order, score, speechJSON,
	).Scan(&step.ID, &step.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append step: %w", err)
	}
	return step, nil
}

func (s *Store) ListSteps(sessionID int64) ([]models.SessionStep, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, ord, score, speech_metrics, created_at
		 FROM session_steps WHERE session_id = $1 ORDER BY ord`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []models.SessionStep
	for rows.Next() {
		var step models.SessionStep
		var speechJSON []byte
		if err := rows.Scan(&step.ID, &step.SessionID, &step.Order, &step.Score, &speechJSON, &step.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if err := json.Unmarshal(speechJSON, &step.Speech); err != nil {
			return nil, fmt.Errorf("failed to decode step metrics: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// ── Scenarios ────────────────────────────────────────────

func (s *Store) GetScenario(id int64) (*models.Scenario, error) {
	scenario := &models.Scenario{}
	var imagesJSON, levelsJSON []byte
	err := s.db.QueryRow(
		`SELECT id, slug, title, description, voice_id, source_images, levels, created_at
		 FROM scenarios WHERE id = $1`,
		id,
	).Scan(&scenario.ID, &scenario.Slug, &scenario.Title, &scenario.Description,
		&scenario.VoiceID, &imagesJSON, &levelsJSON, &scenario.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}

	if err := json.Unmarshal(imagesJSON, &scenario.SourceImages); err != nil {
		return nil, fmt.Errorf("failed to decode source images: %w", err)
	}
	if err := json.Unmarshal(levelsJSON, &scenario.Levels); err != nil {
		return nil, fmt.Errorf("failed to decode scenario levels: %w", err)
	}
	return scenario, nil
}

// ── Coach Notes ──────────────────────────────────────────

// SaveCoachNote persists the note unless one already exists for the
// session. The session_id unique constraint makes this idempotent: the
// first writer wins and re-completions keep the original note.
func (s *Store) SaveCoachNote(note *models.CoachNote) (*models.CoachNote, error) {
	err := s.db.QueryRow(
		`INSERT INTO coach_notes (session_id, user_id, title, body)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO NOTHING
		 RETURNING id, created_at`,
		note.SessionID, note.UserID, note.Title, note.Body,
	).Scan(&note.ID, &note.CreatedAt)
	if err == sql.ErrNoRows {
		return s.GetCoachNote(note.SessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save coach note: %w", err)
	}
	return note, nil
}

func (s *Store) GetCoachNote(sessionID int64) (*models.CoachNote, error) {
	note := &models.CoachNote{}
	err := s.db.QueryRow(
		`SELECT id, session_id, user_id, title, body, created_at
		 FROM coach_notes WHERE session_id = $1`,
		sessionID,
	).Scan(&note.ID, &note.SessionID, &note.UserID, &note.Title, &note.Body, &note.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coach note: %w", err)
	}
	return note, nil
}

// ── Feedback Cards ───────────────────────────────────────

// SaveFeedbackCards replaces the card set for a session in one transaction.
func (s *Store) SaveFeedbackCards(sessionID int64, cards []models.Card) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM feedback_cards WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to clear feedback cards: %w", err)
	}
	for i, card := range cards {
		_, err := tx.Exec(
			`INSERT INTO feedback_cards (session_id, ord, title, body, card_type)
			 VALUES ($1, $2, $3, $4, $5)`,
			sessionID, i+1, card.Title, card.Body, card.Type,
		)
		if err != nil {
			return fmt.Errorf("failed to insert feedback card: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetFeedbackCards(sessionID int64) ([]models.Card, error) {
	rows, err := s.db.Query(
		`SELECT title, body, card_type FROM feedback_cards
		 WHERE session_id = $1 ORDER BY ord`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback cards: %w", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		var card models.Card
		if err := rows.Scan(&card.Title, &card.Body, &card.Type); err != nil {
			return nil, fmt.Errorf("failed to scan feedback card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// ── Question Overrides ───────────────────────────────────

// UpsertOverride replaces the personalized question set for one level. The
// whole array is written at once so readers never see a partial set.
func (s *Store) UpsertOverride(userID, scenarioID int64, level int, questions []models.Question) error {
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO question_overrides (user_id, scenario_id, level, questions, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (user_id, scenario_id, level) DO UPDATE SET
			questions = EXCLUDED.questions, updated_at = NOW()`,
		userID, scenarioID, level, questionsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert question override: %w", err)
	}
	return nil
}

func (s *Store) GetOverride(userID, scenarioID int64, level int) ([]models.Question, error) {
	var questionsJSON []byte
	err := s.db.QueryRow(
		`SELECT questions FROM question_overrides
		 WHERE user_id = $1 AND scenario_id = $2 AND level = $3`,
		userID, scenarioID, level,
	).Scan(&questionsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question override: %w", err)
	}

	var questions []models.Question
	if err := json.Unmarshal(questionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode question override: %w", err)
	}
	return questions, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case *models.SpeechMetrics:
		if val == nil {
			return nil, nil
		}
	case *models.FacialAnalysis:
		if val == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metrics: %w", err)
	}
	return b, nil
}
