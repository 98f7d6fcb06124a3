package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/speakcoach/backend/internal/models"
)

const (
	minFeedbackCards = 4
	maxFeedbackCards = 5
)

// SchemaError means the model returned parseable JSON that violates the
// response contract (wrong counts, missing fields, unknown card types).
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation in %s: %s", e.Field, e.Reason)
}

type cardsResponse struct {
	Cards []models.Card `json:"cards"`
}

type noteResponse struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type questionsResponse struct {
	Questions []models.Question `json:"questions"`
}

// ParseCards validates the feedback card response. Fewer than 4 valid cards
// is an error; the caller falls back rather than show a thin result.
func ParseCards(content string) ([]models.Card, error) {
	var resp cardsResponse
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse cards JSON: %w", err)
	}

	var cards []models.Card
	for i, c := range resp.Cards {
		c.Title = strings.TrimSpace(c.Title)
		c.Body = strings.TrimSpace(c.Body)
		if c.Title == "" || c.Body == "" {
			return nil, &SchemaError{Field: fmt.Sprintf("cards[%d]", i), Reason: "empty title or body"}
		}
		if !models.ValidCardTypes[c.Type] {
			return nil, &SchemaError{Field: fmt.Sprintf("cards[%d].type", i), Reason: fmt.Sprintf("unknown type %q", c.Type)}
		}
		cards = append(cards, c)
	}

	if len(cards) < minFeedbackCards {
		return nil, &SchemaError{Field: "cards", Reason: fmt.Sprintf("got %d cards, need at least %d", len(cards), minFeedbackCards)}
	}
	return cards, nil
}

// ParseNote validates the coach note response.
func ParseNote(content string) (string, string, error) {
	var resp noteResponse
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &resp); err != nil {
		return "", "", fmt.Errorf("failed to parse note JSON: %w", err)
	}

	title := strings.TrimSpace(resp.Title)
	body := strings.TrimSpace(resp.Body)
	if title == "" {
		return "", "", &SchemaError{Field: "title", Reason: "empty"}
	}
	if body == "" {
		return "", "", &SchemaError{Field: "body", Reason: "empty"}
	}
	return title, body, nil
}

// ParseQuestions validates the next-level question response against an exact
// count. Extra questions are truncated; a short list is an error because a
// partial set would leave the next level unplayable.
func ParseQuestions(content string, count int) ([]models.Question, error) {
	var resp questionsResponse
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse questions JSON: %w", err)
	}

	var questions []models.Question
	for i, q := range resp.Questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			return nil, &SchemaError{Field: fmt.Sprintf("questions[%d].text", i), Reason: "empty"}
		}
		questions = append(questions, q)
	}

	if len(questions) < count {
		return nil, &SchemaError{Field: "questions", Reason: fmt.Sprintf("got %d questions, need exactly %d", len(questions), count)}
	}
	if len(questions) > count {
		questions = questions[:count]
	}

	// Renumber: model-supplied order values are advisory only.
	for i := range questions {
		questions[i].Order = i + 1
	}
	return questions, nil
}

// stripCodeFences removes markdown code fences the model sometimes wraps
// around JSON responses.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}
