package sessions

import (
	"context"
	"errors"
	"log"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/speakcoach/backend/internal/generator"
	"github.com/speakcoach/backend/internal/models"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrScenarioNotFound  = errors.New("scenario not found")
	ErrSessionNotStarted = errors.New("session has no recorded steps or score")
	ErrInvalidLevel      = errors.New("invalid level")
)

const (
	defaultMaxRenderPipelines = 4
	renderBudget              = 15 * time.Minute
)

// ContentClient produces the three post-session content pieces.
// *generator.Client satisfies it.
type ContentClient interface {
	GenerateFeedbackCards(ctx context.Context, m models.SessionMetrics) []models.Card
	GenerateCoachNote(ctx context.Context, m models.SessionMetrics) (string, string)
	GenerateNextLevelQuestions(ctx context.Context, m models.SessionMetrics, nextLevel int) ([]models.Question, error)
}

// RenderPipeline turns a question batch into coach videos.
type RenderPipeline interface {
	RenderAll(ctx context.Context, questions []models.Question, userID, scenarioID int64, level int, sourceImage string) ([]models.Question, int)
}

// ProgressLedger records completions and gates level unlocks.
type ProgressLedger interface {
	RecordCompletion(userID, scenarioID int64, level, score int) ([]string, error)
	TryUnlock(userID, scenarioID int64, completedLevel, score, successCount int) (bool, error)
}

type sessionStore interface {
	CreateSession(userID, scenarioID int64, level int) (*models.Session, error)
	GetSession(id, userID int64) (*models.Session, error)
	CompleteSession(session *models.Session) (bool, error)
	SaveAchievements(sessionID int64, achievements []string) error
	AppendStep(sessionID int64, order, score int, speech models.SpeechMetrics) (*models.SessionStep, error)
	ListSteps(sessionID int64) ([]models.SessionStep, error)
	GetScenario(id int64) (*models.Scenario, error)
	SaveCoachNote(note *models.CoachNote) (*models.CoachNote, error)
	GetCoachNote(sessionID int64) (*models.CoachNote, error)
	SaveFeedbackCards(sessionID int64, cards []models.Card) error
	GetFeedbackCards(sessionID int64) ([]models.Card, error)
	UpsertOverride(userID, scenarioID int64, level int, questions []models.Question) error
	GetOverride(userID, scenarioID int64, level int) ([]models.Question, error)
}

// Service coordinates session completion: persist the result, generate
// content synchronously, respond, then render next-level videos in a
// bounded background worker and run the unlock gate when they land.
type Service struct {
	store    sessionStore
	content  ContentClient
	pipeline RenderPipeline
	ledger   ProgressLedger

	renderSlots chan struct{}
	renders     sync.WaitGroup
}

func NewService(store *Store, content ContentClient, pipeline RenderPipeline, ledger ProgressLedger) *Service {
	return newServiceWith(store, content, pipeline, ledger, envMaxRenderPipelines())
}

func newServiceWith(store sessionStore, content ContentClient, pipeline RenderPipeline, ledger ProgressLedger, maxRenders int) *Service {
	return &Service{
		store:       store,
		content:     content,
		pipeline:    pipeline,
		ledger:      ledger,
		renderSlots: make(chan struct{}, maxRenders),
	}
}

// Wait blocks until every in-flight background render finishes. Called on
// shutdown so renders are not cut off mid-upload.
func (s *Service) Wait() {
	s.renders.Wait()
}

// Start opens an in-progress session for the incremental recording path.
func (s *Service) Start(userID int64, req models.StartSessionRequest) (*models.Session, error) {
	if req.Level < 1 || req.Level > models.MaxLevel {
		return nil, ErrInvalidLevel
	}
	scenario, err := s.store.GetScenario(req.ScenarioID)
	if err != nil {
		return nil, err
	}
	if scenario == nil {
		return nil, ErrScenarioNotFound
	}
	return s.store.CreateSession(userID, req.ScenarioID, req.Level)
}

// AppendStep records one exercise inside an in-progress session.
func (s *Service) AppendStep(userID, sessionID int64, req models.AppendStepRequest) (*models.SessionStep, error) {
	session, err := s.store.GetSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return s.store.AppendStep(sessionID, req.Order, req.Score, req.Speech)
}

// CompleteOneShot creates and completes a session in one call: the path the
// mobile app uses when it records the whole session locally first.
func (s *Service) CompleteOneShot(ctx context.Context, userID int64, req models.CompleteSessionRequest) (*models.SessionDetail, string, error) {
	if req.Level < 1 || req.Level > models.MaxLevel {
		return nil, "", ErrInvalidLevel
	}
	if req.Score == nil {
		return nil, "", ErrSessionNotStarted
	}

	scenario, err := s.store.GetScenario(req.ScenarioID)
	if err != nil {
		return nil, "", err
	}
	if scenario == nil {
		return nil, "", ErrScenarioNotFound
	}

	session, err := s.store.CreateSession(userID, req.ScenarioID, req.Level)
	if err != nil {
		return nil, "", err
	}
	session.Score = clampScore(*req.Score)
	session.Speech = req.Speech
	session.Facial = req.Facial

	return s.complete(ctx, session, scenario)
}

// Complete finishes an incrementally built session. Score and speech
// metrics default to an aggregate of the appended steps when the request
// omits them.
func (s *Service) Complete(ctx context.Context, userID, sessionID int64, req models.CompleteSessionRequest) (*models.SessionDetail, string, error) {
	session, err := s.store.GetSession(sessionID, userID)
	if err != nil {
		return nil, "", err
	}
	if session == nil {
		return nil, "", ErrSessionNotFound
	}

	scenario, err := s.store.GetScenario(session.ScenarioID)
	if err != nil {
		return nil, "", err
	}
	if scenario == nil {
		return nil, "", ErrScenarioNotFound
	}

	if session.Status != models.SessionCompleted {
		if req.Score != nil {
			session.Score = clampScore(*req.Score)
			session.Speech = req.Speech
		} else {
			score, speech, err := s.aggregateSteps(sessionID)
			if err != nil {
				return nil, "", err
			}
			session.Score = score
			session.Speech = speech
		}
		if req.Facial != nil {
			session.Facial = req.Facial
		}
	}

	return s.complete(ctx, session, scenario)
}

// complete is the shared coordinator. The content phase runs synchronously
// so the response carries the coach note and feedback cards; video
// rendering is detached because it takes minutes per question.
func (s *Service) complete(ctx context.Context, session *models.Session, scenario *models.Scenario) (*models.SessionDetail, string, error) {
	newlyCompleted, err := s.store.CompleteSession(session)
	if err != nil {
		return nil, "", err
	}

	if newlyCompleted {
		earned, err := s.ledger.RecordCompletion(session.UserID, session.ScenarioID, session.Level, session.Score)
		if err != nil {
			log.Printf("WARN: [sessions] failed to record completion for session %d: %v", session.ID, err)
		} else if len(earned) > 0 {
			session.Achievements = append(session.Achievements, earned...)
			if err := s.store.SaveAchievements(session.ID, session.Achievements); err != nil {
				log.Printf("WARN: [sessions] failed to save achievements for session %d: %v", session.ID, err)
			}
		}
	}

	metrics := models.SessionMetrics{
		SessionID:     session.ID,
		UserID:        session.UserID,
		ScenarioID:    session.ScenarioID,
		ScenarioTitle: scenario.Title,
		Level:         session.Level,
		Score:         session.Score,
		Speech:        session.Speech,
		Facial:        session.Facial,
	}

	pick := newPicker(session.ID, time.Now())

	var note *models.CoachNote
	var cards []models.Card
	var questions []models.Question

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		note = s.generateNote(gctx, metrics)
		return nil
	})
	g.Go(func() error {
		cards = s.generateCards(gctx, metrics)
		return nil
	})
	g.Go(func() error {
		questions = s.prepareNextLevel(gctx, metrics)
		return nil
	})
	g.Wait()

	detail := &models.SessionDetail{
		Session:       *session,
		CoachNote:     note,
		FeedbackCards: cards,
	}

	s.launchRender(session, questions, pick.PickImage(scenario.SourceImages))

	return detail, pick.PickMotivation(), nil
}

func (s *Service) generateNote(ctx context.Context, m models.SessionMetrics) *models.CoachNote {
	// An existing note wins: the unique constraint keeps re-completions
	// from replacing what the user already read.
	existing, err := s.store.GetCoachNote(m.SessionID)
	if err != nil {
		log.Printf("WARN: [sessions] coach note lookup failed for session %d: %v", m.SessionID, err)
	}
	if existing != nil {
		return existing
	}

	title, body := s.content.GenerateCoachNote(ctx, m)
	note, err := s.store.SaveCoachNote(&models.CoachNote{
		SessionID: m.SessionID,
		UserID:    m.UserID,
		Title:     title,
		Body:      body,
	})
	if err != nil {
		log.Printf("WARN: [sessions] failed to save coach note for session %d: %v", m.SessionID, err)
		return &models.CoachNote{SessionID: m.SessionID, UserID: m.UserID, Title: title, Body: body}
	}
	return note
}

func (s *Service) generateCards(ctx context.Context, m models.SessionMetrics) []models.Card {
	cards := s.content.GenerateFeedbackCards(ctx, m)
	if len(cards) == 0 {
		cards = generator.RuleBasedCards(m)
	}
	if err := s.store.SaveFeedbackCards(m.SessionID, cards); err != nil {
		log.Printf("WARN: [sessions] failed to save feedback cards for session %d: %v", m.SessionID, err)
	}
	return cards
}

// prepareNextLevel returns the question set the background renderer should
// work on, or nil when there is nothing to render. An existing override is
// reused so a re-completion retries only the missing videos instead of
// regenerating questions the user may have already seen.
func (s *Service) prepareNextLevel(ctx context.Context, m models.SessionMetrics) []models.Question {
	nextLevel := m.Level + 1
	if nextLevel > models.MaxLevel {
		return nil
	}

	existing, err := s.store.GetOverride(m.UserID, m.ScenarioID, nextLevel)
	if err != nil {
		log.Printf("WARN: [sessions] override lookup failed for user %d scenario %d level %d: %v", m.UserID, m.ScenarioID, nextLevel, err)
	}
	if len(existing) > 0 {
		allRendered := true
		for _, q := range existing {
			if !q.HasRenderedVideo() {
				allRendered = false
				break
			}
		}
		if allRendered {
			return nil
		}
		return existing
	}

	questions, err := s.content.GenerateNextLevelQuestions(ctx, m, nextLevel)
	if err != nil {
		log.Printf("WARN: [sessions] question generation failed for session %d: %v", m.SessionID, err)
		return nil
	}

	if err := s.store.UpsertOverride(m.UserID, m.ScenarioID, nextLevel, questions); err != nil {
		log.Printf("WARN: [sessions] failed to persist questions for user %d scenario %d level %d: %v", m.UserID, m.ScenarioID, nextLevel, err)
		return nil
	}
	return questions
}

// launchRender starts the detached render worker for a completed session.
// The slot channel bounds how many renders run at once across all users.
func (s *Service) launchRender(session *models.Session, questions []models.Question, sourceImage string) {
	userID, scenarioID := session.UserID, session.ScenarioID
	level, score, sessionID := session.Level, session.Score, session.ID
	nextLevel := level + 1

	if len(questions) == 0 {
		if nextLevel > models.MaxLevel {
			return
		}
		// Nothing to render. The gate still runs, after the response like
		// the render path, so a re-completion with a better score can
		// unlock against videos rendered on an earlier run.
		s.renders.Add(1)
		go func() {
			defer s.renders.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("WARN: [sessions] unlock worker panicked for session %d: %v", sessionID, r)
				}
			}()

			rendered := 0
			if existing, err := s.store.GetOverride(userID, scenarioID, nextLevel); err == nil {
				for _, q := range existing {
					if q.HasRenderedVideo() {
						rendered++
					}
				}
			}
			if _, err := s.ledger.TryUnlock(userID, scenarioID, level, score, rendered); err != nil {
				log.Printf("WARN: [sessions] unlock check failed for session %d: %v", sessionID, err)
			}
		}()
		return
	}

	s.renders.Add(1)
	go func() {
		defer s.renders.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("WARN: [render] worker panicked for session %d: %v", sessionID, r)
			}
		}()

		s.renderSlots <- struct{}{}
		defer func() { <-s.renderSlots }()

		// Detached from the request: the response already went out.
		ctx, cancel := context.WithTimeout(context.Background(), renderBudget)
		defer cancel()

		updated, successCount := s.pipeline.RenderAll(ctx, questions, userID, scenarioID, nextLevel, sourceImage)

		if err := s.store.UpsertOverride(userID, scenarioID, nextLevel, updated); err != nil {
			log.Printf("WARN: [render] failed to persist rendered questions for session %d: %v", sessionID, err)
		}

		if _, err := s.ledger.TryUnlock(userID, scenarioID, level, score, successCount); err != nil {
			log.Printf("WARN: [render] unlock failed for session %d: %v", sessionID, err)
		}
	}()
}

// Detail returns a completed or in-progress session with its content.
func (s *Service) Detail(userID, sessionID int64) (*models.SessionDetail, error) {
	session, err := s.store.GetSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	note, err := s.store.GetCoachNote(sessionID)
	if err != nil {
		return nil, err
	}
	cards, err := s.store.GetFeedbackCards(sessionID)
	if err != nil {
		return nil, err
	}

	return &models.SessionDetail{
		Session:       *session,
		CoachNote:     note,
		FeedbackCards: cards,
	}, nil
}

// aggregateSteps derives a session score and combined speech metrics from
// the appended steps.
func (s *Service) aggregateSteps(sessionID int64) (int, *models.SpeechMetrics, error) {
	steps, err := s.store.ListSteps(sessionID)
	if err != nil {
		return 0, nil, err
	}
	if len(steps) == 0 {
		return 0, nil, ErrSessionNotStarted
	}

	var scoreSum int
	combined := &models.SpeechMetrics{}
	var wpmWeighted float64
	for _, step := range steps {
		scoreSum += step.Score
		combined.FillerWordCount += step.Speech.FillerWordCount
		combined.PauseCount += step.Speech.PauseCount
		combined.DurationSeconds += step.Speech.DurationSeconds
		wpmWeighted += step.Speech.WordsPerMinute * step.Speech.DurationSeconds
	}
	if combined.DurationSeconds > 0 {
		combined.WordsPerMinute = wpmWeighted / combined.DurationSeconds
	}

	score := int(math.Round(float64(scoreSum) / float64(len(steps))))
	return clampScore(score), combined, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func envMaxRenderPipelines() int {
	if v := os.Getenv("MAX_RENDER_PIPELINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("WARN: invalid MAX_RENDER_PIPELINES=%q, using default %d", v, defaultMaxRenderPipelines)
	}
	return defaultMaxRenderPipelines
}
