package generator

import (
	"fmt"
	"strings"

	"github.com/speakcoach/backend/internal/models"
)

// levelGuidance shapes question difficulty per level. Level 1 questions ship
// with the scenario catalog, so only 2 and 3 are generated.
var levelGuidance = map[int]string{
	2: "moderately challenging follow-ups that build on level 1: open-ended, one concrete constraint each (a time limit, a skeptical listener, a surprise fact)",
	3: "high-pressure questions: adversarial or ambiguous framing, competing priorities, an interruption or objection the speaker must absorb mid-answer",
}

func FeedbackSystemPrompt() string {
	return `You are a speech coach reviewing one practice session. Produce concise feedback cards for a mobile app.

Respond with ONLY a JSON object in this exact format, no other text:
{
  "cards": [
    {"title": "Short imperative headline", "body": "2-3 sentences of specific, actionable feedback.", "type": "tip"}
  ]
}

Rules:
- Produce 4 or 5 cards, no more, no fewer.
- "type" must be one of: "tip", "praise", "warning".
- Include at least one "praise" card. Never produce only warnings.
- Ground every card in the metrics you are given. Do not invent events that are not in the data.
- Titles under 60 characters. Bodies under 300 characters.`
}

func BuildFeedbackUserPrompt(m models.SessionMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s (level %d)\n", m.ScenarioTitle, m.Level)
	fmt.Fprintf(&b, "Overall score: %d/100\n", m.Score)
	writeMetrics(&b, m)
	b.WriteString("\nGenerate the feedback cards now.")
	return b.String()
}

func CoachNoteSystemPrompt() string {
	return `You are a supportive speech coach writing a short personal coach note after a practice session.

Respond with ONLY a JSON object in this exact format, no other text:
{"title": "Warm headline under 60 characters", "body": "3-5 sentences. Encouraging, specific to the metrics, ending with one concrete thing to try next time."}

Rules:
- Second person, warm but not saccharine.
- Reference at least one real number from the metrics.
- Never mention scores below 50 directly; focus on the improvement path instead.`
}

func BuildCoachNoteUserPrompt(m models.SessionMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s (level %d)\n", m.ScenarioTitle, m.Level)
	fmt.Fprintf(&b, "Overall score: %d/100\n", m.Score)
	writeMetrics(&b, m)
	b.WriteString("\nWrite the coach note now.")
	return b.String()
}

func QuestionsSystemPrompt() string {
	return `You are a speech coach designing practice questions for the next difficulty level of a conversation scenario.

Respond with ONLY a JSON object in this exact format, no other text:
{
  "questions": [
    {"order": 1, "text": "The full question as the on-screen coach would ask it.", "video_url": ""}
  ]
}

Rules:
- Produce exactly the number of questions requested, numbered from 1.
- Each question must be answerable by speaking for 30-90 seconds.
- Questions must fit the scenario's setting and escalate from the level the user just completed.
- Leave "video_url" as an empty string.`
}

func BuildQuestionsUserPrompt(m models.SessionMetrics, nextLevel int, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", m.ScenarioTitle)
	fmt.Fprintf(&b, "The user just completed level %d with a score of %d/100.\n", m.Level, m.Score)
	fmt.Fprintf(&b, "Generate exactly %d questions for level %d.\n", count, nextLevel)
	if guidance, ok := levelGuidance[nextLevel]; ok {
		fmt.Fprintf(&b, "Level %d style: %s.\n", nextLevel, guidance)
	}
	writeMetrics(&b, m)
	b.WriteString("\nGenerate the questions now.")
	return b.String()
}

func writeMetrics(b *strings.Builder, m models.SessionMetrics) {
	if m.Speech != nil {
		fmt.Fprintf(b, "Speaking rate: %.0f words/minute\n", m.Speech.WordsPerMinute)
		fmt.Fprintf(b, "Filler words: %d\n", m.Speech.FillerWordCount)
		fmt.Fprintf(b, "Duration: %.0f seconds, pauses: %d\n", m.Speech.DurationSeconds, m.Speech.PauseCount)
		if m.Speech.TranscriptExcerpt != "" {
			fmt.Fprintf(b, "Transcript excerpt: %q\n", m.Speech.TranscriptExcerpt)
		}
	}
	if m.Facial != nil {
		fmt.Fprintf(b, "Eye contact: %.0f%%, smiling: %.0f%%, head stability: %.0f%%\n",
			m.Facial.EyeContactRatio*100, m.Facial.SmileRatio*100, m.Facial.HeadStability*100)
	}
}
