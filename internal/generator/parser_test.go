package generator

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCardsValid(t *testing.T) {
	content := `{"cards":[
		{"title":"A","body":"a body","type":"tip"},
		{"title":"B","body":"b body","type":"praise"},
		{"title":"C","body":"c body","type":"warning"},
		{"title":"D","body":"d body","type":"tip"}
	]}`

	cards, err := ParseCards(content)
	if err != nil {
		t.Fatalf("expected valid cards, got error: %v", err)
	}
	if len(cards) != 4 {
		t.Errorf("expected 4 cards, got %d", len(cards))
	}
	if cards[1].Title != "B" {
		t.Errorf("expected title B, got %q", cards[1].Title)
	}
}

func TestParseCardsWithCodeFences(t *testing.T) {
	content := "```json\n" + `{"cards":[
		{"title":"A","body":"a","type":"tip"},
		{"title":"B","body":"b","type":"tip"},
		{"title":"C","body":"c","type":"praise"},
		{"title":"D","body":"d","type":"warning"},
		{"title":"E","body":"e","type":"tip"}
	]}` + "\n```"

	cards, err := ParseCards(content)
	if err != nil {
		t.Fatalf("expected fences stripped, got error: %v", err)
	}
	if len(cards) != 5 {
		t.Errorf("expected 5 cards, got %d", len(cards))
	}
}

func TestParseCardsTooFew(t *testing.T) {
	content := `{"cards":[
		{"title":"A","body":"a","type":"tip"},
		{"title":"B","body":"b","type":"praise"}
	]}`

	_, err := ParseCards(content)
	if err == nil {
		t.Fatal("expected error for 2 cards")
	}
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Errorf("expected SchemaError, got %T", err)
	}
}

func TestParseCardsUnknownType(t *testing.T) {
	content := `{"cards":[
		{"title":"A","body":"a","type":"tip"},
		{"title":"B","body":"b","type":"critique"},
		{"title":"C","body":"c","type":"tip"},
		{"title":"D","body":"d","type":"tip"}
	]}`

	_, err := ParseCards(content)
	if err == nil {
		t.Fatal("expected error for unknown card type")
	}
	if !strings.Contains(err.Error(), "critique") {
		t.Errorf("error should name the bad type: %v", err)
	}
}

func TestParseCardsNotJSON(t *testing.T) {
	if _, err := ParseCards("Here is your feedback!"); err == nil {
		t.Fatal("expected error for non-JSON content")
	}
}

func TestParseNoteValid(t *testing.T) {
	title, body, err := ParseNote(`{"title":"Nice work","body":"You did great today."}`)
	if err != nil {
		t.Fatalf("expected valid note, got error: %v", err)
	}
	if title != "Nice work" {
		t.Errorf("unexpected title %q", title)
	}
	if body != "You did great today." {
		t.Errorf("unexpected body %q", body)
	}
}

func TestParseNoteEmptyBody(t *testing.T) {
	_, _, err := ParseNote(`{"title":"Nice work","body":"   "}`)
	if err == nil {
		t.Fatal("expected error for blank body")
	}
}

func TestParseQuestionsExactCount(t *testing.T) {
	content := `{"questions":[
		{"order":1,"text":"Question one?","video_url":""},
		{"order":2,"text":"Question two?","video_url":""},
		{"order":3,"text":"Question three?","video_url":""}
	]}`

	questions, err := ParseQuestions(content, 3)
	if err != nil {
		t.Fatalf("expected valid questions, got error: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
	for i, q := range questions {
		if q.Order != i+1 {
			t.Errorf("question %d: expected order %d, got %d", i, i+1, q.Order)
		}
	}
}

func TestParseQuestionsTruncatesExtras(t *testing.T) {
	content := `{"questions":[
		{"order":1,"text":"One?"},
		{"order":2,"text":"Two?"},
		{"order":3,"text":"Three?"},
		{"order":4,"text":"Four?"}
	]}`

	questions, err := ParseQuestions(content, 2)
	if err != nil {
		t.Fatalf("expected truncation, got error: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions after truncation, got %d", len(questions))
	}
	if questions[1].Text != "Two?" {
		t.Errorf("truncation should keep leading questions, got %q", questions[1].Text)
	}
}

func TestParseQuestionsTooFew(t *testing.T) {
	content := `{"questions":[{"order":1,"text":"Only one?"}]}`

	_, err := ParseQuestions(content, 3)
	if err == nil {
		t.Fatal("expected error for short question list")
	}
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Errorf("expected SchemaError, got %T", err)
	}
}

func TestParseQuestionsRenumbersModelOrder(t *testing.T) {
	content := `{"questions":[
		{"order":7,"text":"One?"},
		{"order":7,"text":"Two?"}
	]}`

	questions, err := ParseQuestions(content, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if questions[0].Order != 1 || questions[1].Order != 2 {
		t.Errorf("expected renumbered 1,2; got %d,%d", questions[0].Order, questions[1].Order)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
