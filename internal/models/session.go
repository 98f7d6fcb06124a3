package models

import "time"

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// SpeechMetrics is the transcript-derived summary supplied by the recording
// subsystem. The backend never sees raw audio, only these numbers.
type SpeechMetrics struct {
	WordsPerMinute    float64 `json:"words_per_minute"`
	FillerWordCount   int     `json:"filler_word_count"`
	DurationSeconds   float64 `json:"duration_seconds"`
	PauseCount        int     `json:"pause_count"`
	TranscriptExcerpt string  `json:"transcript_excerpt,omitempty"`
}

// FacialAnalysis is the client-side facial summary, when the capture layer
// produced one. All ratios are 0..1.
type FacialAnalysis struct {
	EyeContactRatio float64 `json:"eye_contact_ratio"`
	SmileRatio      float64 `json:"smile_ratio"`
	HeadStability   float64 `json:"head_stability"`
}

// Session is a completed (or in-progress) practice recording. The core
// pipeline reads it; the recording subsystem owns its creation.
type Session struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	ScenarioID     int64           `json:"scenario_id"`
	Level          int             `json:"level"`
	Score          int             `json:"score"`
	Status         SessionStatus   `json:"status"`
	Speech         *SpeechMetrics  `json:"speech_metrics,omitempty"`
	Facial         *FacialAnalysis `json:"facial_analysis,omitempty"`
	Achievements   []string        `json:"achievements"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SessionStep is one discrete exercise inside an incrementally built
// session (the step-by-step recording path).
type SessionStep struct {
	ID        int64         `json:"id"`
	SessionID int64         `json:"session_id"`
	Order     int           `json:"order"`
	Score     int           `json:"score"`
	Speech    SpeechMetrics `json:"speech_metrics"`
	CreatedAt time.Time     `json:"created_at"`
}

// SessionMetrics is the flattened view handed to the content generator:
// everything the prompts need about the session and its scenario.
type SessionMetrics struct {
	SessionID     int64
	UserID        int64
	ScenarioID    int64
	ScenarioTitle string
	Level         int
	Score         int
	Speech        *SpeechMetrics
	Facial        *FacialAnalysis
}

// ── Request Types ────────────────────────────────────────

type StartSessionRequest struct {
	ScenarioID int64 `json:"scenario_id"`
	Level      int   `json:"level"`
}

type AppendStepRequest struct {
	Order  int           `json:"order"`
	Score  int           `json:"score"`
	Speech SpeechMetrics `json:"speech_metrics"`
}

// CompleteSessionRequest finishes a session. For the one-shot path it
// carries everything; for the incremental path score/speech may be omitted
// and are aggregated from previously appended steps.
type CompleteSessionRequest struct {
	ScenarioID int64           `json:"scenario_id,omitempty"`
	Level      int             `json:"level,omitempty"`
	Score      *int            `json:"score,omitempty"`
	Speech     *SpeechMetrics  `json:"speech_metrics,omitempty"`
	Facial     *FacialAnalysis `json:"facial_analysis,omitempty"`
}

// ── Response Types ───────────────────────────────────────

// SessionDetail is the payload returned at the request/response boundary of
// session completion, and by the session read endpoint.
type SessionDetail struct {
	Session       Session    `json:"session"`
	CoachNote     *CoachNote `json:"coach_note,omitempty"`
	FeedbackCards []Card     `json:"feedback_cards"`
}
