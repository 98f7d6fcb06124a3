package models

import "time"

type CardType string

const (
	CardTip     CardType = "tip"
	CardPraise  CardType = "praise"
	CardWarning CardType = "warning"
)

var ValidCardTypes = map[CardType]bool{
	CardTip:     true,
	CardPraise:  true,
	CardWarning: true,
}

// Card is one feedback card shown after a session.
type Card struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Type  CardType `json:"type"`
}

// CoachNote is the narrative encouragement note generated once per session.
type CoachNote struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session_id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
