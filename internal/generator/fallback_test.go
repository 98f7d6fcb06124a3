package generator

import (
	"testing"

	"github.com/speakcoach/backend/internal/models"
)

func TestFallbackCoachNoteDeterministic(t *testing.T) {
	t1, b1 := FallbackCoachNote("Job Interview", 2)
	t2, b2 := FallbackCoachNote("Job Interview", 2)
	if t1 != t2 || b1 != b2 {
		t.Error("fallback note must be deterministic for identical inputs")
	}
	if b1 == "" || t1 == "" {
		t.Error("fallback note must not be empty")
	}
}

func TestRuleBasedCardsFastTalker(t *testing.T) {
	m := models.SessionMetrics{
		Score:  60,
		Speech: &models.SpeechMetrics{WordsPerMinute: 190, FillerWordCount: 8},
	}

	cards := RuleBasedCards(m)
	if len(cards) == 0 {
		t.Fatal("expected cards for speech metrics")
	}

	var sawPaceWarning, sawFillerWarning bool
	for _, c := range cards {
		if c.Type == models.CardWarning {
			switch c.Title {
			case "Slow down":
				sawPaceWarning = true
			case "Cut the filler words":
				sawFillerWarning = true
			}
		}
	}
	if !sawPaceWarning {
		t.Error("expected a pace warning at 190 wpm")
	}
	if !sawFillerWarning {
		t.Error("expected a filler warning at 8 fillers")
	}
}

func TestRuleBasedCardsNoMetrics(t *testing.T) {
	cards := RuleBasedCards(models.SessionMetrics{Score: 40})
	if len(cards) == 0 {
		t.Fatal("expected at least one generic card with no metrics")
	}
}

func TestRuleBasedCardsCapped(t *testing.T) {
	m := models.SessionMetrics{
		Score:  90,
		Speech: &models.SpeechMetrics{WordsPerMinute: 135, FillerWordCount: 1},
		Facial: &models.FacialAnalysis{EyeContactRatio: 0.8, SmileRatio: 0.05},
	}

	cards := RuleBasedCards(m)
	if len(cards) > maxFeedbackCards {
		t.Errorf("expected at most %d cards, got %d", maxFeedbackCards, len(cards))
	}
	for _, c := range cards {
		if !models.ValidCardTypes[c.Type] {
			t.Errorf("invalid card type %q", c.Type)
		}
	}
}
