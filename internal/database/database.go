package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func Connect() (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "speakcoach_user")
	password := getEnv("DB_PASSWORD", "speakcoach_password")
	dbname := getEnv("DB_NAME", "speakcoach")
	sslmode := getEnv("DB_SSLMODE", "disable")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func Migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		password VARCHAR(255) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS scenarios (
		id            BIGSERIAL PRIMARY KEY,
		slug          VARCHAR(100) UNIQUE NOT NULL,
		title         VARCHAR(255) NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		voice_id      VARCHAR(100) NOT NULL DEFAULT '',
		source_images JSONB NOT NULL DEFAULT '[]',
		levels        JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id              BIGSERIAL PRIMARY KEY,
		user_id         BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		scenario_id     BIGINT NOT NULL REFERENCES scenarios(id),
		level           INT NOT NULL CHECK (level >= 1 AND level <= 3),
		score           INT NOT NULL DEFAULT 0 CHECK (score >= 0 AND score <= 100),
		status          VARCHAR(20) NOT NULL DEFAULT 'in_progress',
		speech_metrics  JSONB,
		facial_analysis JSONB,
		achievements    JSONB NOT NULL DEFAULT '[]',
		completed_at    TIMESTAMP WITH TIME ZONE,
		created_at      TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, scenario_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

	CREATE TABLE IF NOT EXISTS session_steps (
		id             BIGSERIAL PRIMARY KEY,
		session_id     BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		ord            INT NOT NULL,
		score          INT NOT NULL DEFAULT 0,
		speech_metrics JSONB NOT NULL,
		created_at     TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(session_id, ord)
	);

	CREATE TABLE IF NOT EXISTS coach_notes (
		id         BIGSERIAL PRIMARY KEY,
		session_id BIGINT UNIQUE NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		user_id    BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title      VARCHAR(255) NOT NULL,
		body       TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS feedback_cards (
		id         BIGSERIAL PRIMARY KEY,
		session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		ord        INT NOT NULL,
		title      VARCHAR(255) NOT NULL,
		body       TEXT NOT NULL,
		card_type  VARCHAR(20) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(session_id, ord)
	);

	CREATE TABLE IF NOT EXISTS question_overrides (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		scenario_id BIGINT NOT NULL REFERENCES scenarios(id),
		level       INT NOT NULL CHECK (level >= 2 AND level <= 3),
		questions   JSONB NOT NULL,
		updated_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(user_id, scenario_id, level)
	);

	CREATE TABLE IF NOT EXISTS progress (
		id             BIGSERIAL PRIMARY KEY,
		user_id        BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		scenario_id    BIGINT NOT NULL REFERENCES scenarios(id),
		levels         JSONB NOT NULL DEFAULT '{}',
		total_sessions INT NOT NULL DEFAULT 0,
		last_played_at TIMESTAMP WITH TIME ZONE,
		updated_at     TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(user_id, scenario_id)
	);
	`

	_, err := db.Exec(query)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Indexes on columns added above; idempotent for existing databases.
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_steps_session ON session_steps(session_id, ord)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_user ON coach_notes(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_session ON feedback_cards(session_id, ord)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_lookup ON question_overrides(user_id, scenario_id, level)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_lookup ON progress(user_id, scenario_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index failed: %w", err)
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
