package generator

import (
	"fmt"

	"github.com/speakcoach/backend/internal/models"
)

// FallbackCoachNote is the deterministic note used whenever generation
// fails. Same inputs always produce the same note, so retried completions
// stay stable.
func FallbackCoachNote(scenarioTitle string, level int) (string, string) {
	title := "Session complete"
	body := fmt.Sprintf(
		"You finished level %d of %s. Every repetition builds the muscle, and showing up is the hard part. Review your metrics above and come back for another round when you are ready.",
		level, scenarioTitle,
	)
	return title, body
}

// RuleBasedCards derives feedback cards directly from the structured
// metrics when the generator produced nothing usable. Thresholds mirror the
// guidance the mobile app shows during recording.
func RuleBasedCards(m models.SessionMetrics) []models.Card {
	var cards []models.Card

	if m.Speech != nil {
		switch {
		case m.Speech.WordsPerMinute > 170:
			cards = append(cards, models.Card{
				Title: "Slow down",
				Body:  fmt.Sprintf("You averaged %.0f words per minute. Aim for 120-150 so listeners can follow your reasoning.", m.Speech.WordsPerMinute),
				Type:  models.CardWarning,
			})
		case m.Speech.WordsPerMinute > 0 && m.Speech.WordsPerMinute < 100:
			cards = append(cards, models.Card{
				Title: "Pick up the pace",
				Body:  fmt.Sprintf("You averaged %.0f words per minute. A slightly faster pace of 120-150 sounds more confident.", m.Speech.WordsPerMinute),
				Type:  models.CardTip,
			})
		default:
			cards = append(cards, models.Card{
				Title: "Great pacing",
				Body:  "Your speaking rate stayed in the comfortable 120-150 words-per-minute range. Keep it up.",
				Type:  models.CardPraise,
			})
		}

		if m.Speech.FillerWordCount > 5 {
			cards = append(cards, models.Card{
				Title: "Cut the filler words",
				Body:  fmt.Sprintf("You used %d filler words. Try a silent pause instead of um or like when you need a moment.", m.Speech.FillerWordCount),
				Type:  models.CardWarning,
			})
		} else {
			cards = append(cards, models.Card{
				Title: "Clean delivery",
				Body:  "Very few filler words this session. Silent pauses read as confidence.",
				Type:  models.CardPraise,
			})
		}
	}

	if m.Facial != nil {
		if m.Facial.EyeContactRatio < 0.5 {
			cards = append(cards, models.Card{
				Title: "Look at your audience",
				Body:  fmt.Sprintf("You held eye contact %.0f%% of the time. Aim for at least 70%% to build connection.", m.Facial.EyeContactRatio*100),
				Type:  models.CardTip,
			})
		} else {
			cards = append(cards, models.Card{
				Title: "Strong eye contact",
				Body:  fmt.Sprintf("You held eye contact %.0f%% of the time. That keeps listeners engaged.", m.Facial.EyeContactRatio*100),
				Type:  models.CardPraise,
			})
		}

		if m.Facial.SmileRatio < 0.1 {
			cards = append(cards, models.Card{
				Title: "Warm it up",
				Body:  "A brief smile at the open and close makes an answer land softer without losing authority.",
				Type:  models.CardTip,
			})
		}
	}

	if len(cards) == 0 {
		// No structured metrics at all. One generic card beats an empty screen.
		cards = append(cards, models.Card{
			Title: "Session recorded",
			Body:  "We could not analyze this session in depth, but finishing a full practice run still counts. Try another round to get detailed feedback.",
			Type:  models.CardTip,
		})
	}

	if m.Score >= 85 {
		cards = append(cards, models.Card{
			Title: "Excellent session",
			Body:  fmt.Sprintf("A score of %d puts this among your strongest runs. Rewatch it and note what felt different.", m.Score),
			Type:  models.CardPraise,
		})
	}

	if len(cards) > maxFeedbackCards {
		cards = cards[:maxFeedbackCards]
	}
	return cards
}
