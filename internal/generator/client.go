package generator

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/speakcoach/backend/internal/models"
)

// LLMClient is the interface all generator backends satisfy.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// requestTimeout bounds each individual text-generation call. A timed-out
// call is treated exactly like any other generation failure.
const requestTimeout = 60 * time.Second

// Client wraps an LLMClient and adds the three coaching operations:
// feedback cards, coach note, and next-level question generation. The three
// calls are independent and may run concurrently.
type Client struct {
	llm   LLMClient
	model string
}

func NewClient() *Client {
	var llm LLMClient
	model := "mock"

	if os.Getenv("USE_CLI_GENERATOR") == "true" {
		cliPath := os.Getenv("CLAUDE_CLI_PATH")
		if cliPath == "" {
			cliPath = "claude"
		}
		llm = NewCLIClient(cliPath)
		model = "claude-cli"
		log.Println("Generator using Claude CLI (local plan)")
	} else if os.Getenv("MOCK_GENERATOR") == "true" {
		llm = NewMockClient()
		log.Println("Generator using mock data")
	} else {
		model = os.Getenv("ANTHROPIC_MODEL")
		if model == "" {
			model = "claude-opus-4-5-20251101"
		}
		llm = NewAPIClient(model)
		log.Println("Generator using Anthropic API:", model)
	}

	return &Client{llm: llm, model: model}
}

func (c *Client) ModelName() string {
	return c.model
}

// GenerateFeedbackCards produces 4-5 feedback cards for a completed session.
// Failures are non-fatal: the caller gets an empty slice and is expected to
// substitute rule-based cards.
func (c *Client) GenerateFeedbackCards(ctx context.Context, m models.SessionMetrics) []models.Card {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.llm.Generate(ctx, FeedbackSystemPrompt(), BuildFeedbackUserPrompt(m))
	if err != nil {
		log.Printf("WARN: feedback card generation failed for session %d: %v", m.SessionID, err)
		return []models.Card{}
	}

	cards, err := ParseCards(resp.Content)
	if err != nil {
		log.Printf("WARN: feedback card response rejected for session %d: %v", m.SessionID, err)
		return []models.Card{}
	}

	if len(cards) > maxFeedbackCards {
		cards = cards[:maxFeedbackCards]
	}
	return cards
}

// GenerateCoachNote produces the narrative note for a session. It never
// fails: any generation problem yields the deterministic fallback built from
// the scenario title and level.
func (c *Client) GenerateCoachNote(ctx context.Context, m models.SessionMetrics) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.llm.Generate(ctx, CoachNoteSystemPrompt(), BuildCoachNoteUserPrompt(m))
	if err != nil {
		log.Printf("WARN: coach note generation failed for session %d: %v", m.SessionID, err)
		return FallbackCoachNote(m.ScenarioTitle, m.Level)
	}

	title, body, err := ParseNote(resp.Content)
	if err != nil {
		log.Printf("WARN: coach note response rejected for session %d: %v", m.SessionID, err)
		return FallbackCoachNote(m.ScenarioTitle, m.Level)
	}

	return title, body
}

// GenerateNextLevelQuestions produces exactly QuestionCount(nextLevel)
// questions for the user's next difficulty level, each carrying a
// placeholder video URL. A short or malformed response is an error: the
// caller must skip persisting rather than save a partial list.
func (c *Client) GenerateNextLevelQuestions(ctx context.Context, m models.SessionMetrics, nextLevel int) ([]models.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	count := models.QuestionCount(nextLevel)

	resp, err := c.llm.Generate(ctx, QuestionsSystemPrompt(), BuildQuestionsUserPrompt(m, nextLevel, count))
	if err != nil {
		return nil, fmt.Errorf("generate level %d questions: %w", nextLevel, err)
	}

	questions, err := ParseQuestions(resp.Content, count)
	if err != nil {
		return nil, fmt.Errorf("parse level %d questions: %w", nextLevel, err)
	}

	for i := range questions {
		questions[i].VideoURL = models.PlaceholderVideoURL(m.ScenarioTitle, nextLevel, questions[i].Order)
	}
	return questions, nil
}

// ── APIClient — Anthropic SDK (Production) ─────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
}

func NewAPIClient(model string) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	return &APIClient{client: &client, model: model}
}

func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   4096,
		Temperature: param.NewOpt(0.8),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

func (c *APIClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			sleepDuration := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("Retrying Anthropic API call in %v (attempt %d)", sleepDuration, attempt+1)
			time.Sleep(sleepDuration)
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		log.Printf("Anthropic API attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("anthropic API failed after retries: %w", lastErr)
}

// ── MockClient — Local Development ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

// Generate inspects the system prompt to decide which of the three response
// shapes the caller expects.
func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	var content string
	switch {
	case strings.Contains(systemPrompt, "feedback cards"):
		content = mockCardsJSON()
	case strings.Contains(systemPrompt, "coach note"):
		content = mockNoteJSON()
	default:
		content = mockQuestionsJSON(userPrompt)
	}
	return &LLMResponse{
		Content:      content,
		PromptTokens: 800,
		OutputTokens: 600,
	}, nil
}

func mockCardsJSON() string {
	return `{"cards":[
		{"title":"[Mock] Steady pace","body":"Your speaking rate stayed in a comfortable range through the whole answer.","type":"praise"},
		{"title":"[Mock] Watch the fillers","body":"A handful of filler words crept in. Try pausing silently instead of saying um.","type":"warning"},
		{"title":"[Mock] Open with the point","body":"Lead with your conclusion, then give the supporting detail.","type":"tip"},
		{"title":"[Mock] Keep eye contact","body":"You held the camera's gaze well. Keep doing that under pressure.","type":"praise"}
	]}`
}

func mockNoteJSON() string {
	return `{"title":"[Mock] Nice work today","body":"You pushed through a tough scenario and your delivery is getting noticeably smoother. Next time, slow down on the opening line."}`
}

func mockQuestionsJSON(userPrompt string) string {
	// The prompt names the required count; mirror it so the strict parser
	// accepts mock output.
	count := 3
	if strings.Contains(userPrompt, "exactly 2 ") {
		count = 2
	}
	questions := ""
	for i := 1; i <= count; i++ {
		if i > 1 {
			questions += ","
		}
		questions += fmt.Sprintf(
			`{"order":%d,"text":"[Mock] Practice question %d: describe a moment this week when you had to think on your feet.","video_url":""}`,
			i, i)
	}
	return fmt.Sprintf(`{"questions":[%s]}`, questions)
}
