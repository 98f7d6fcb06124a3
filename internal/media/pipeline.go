package media

import (
	"context"
	"log"
	"time"

	"github.com/speakcoach/backend/internal/models"
)

// JobClient submits a render job and blocks until it resolves.
type JobClient interface {
	SubmitAndAwait(ctx context.Context, script string, sourceImage string) (string, error)
}

// Uploader moves a provider-hosted video into durable storage and returns
// its stable URL.
type Uploader interface {
	Store(ctx context.Context, videoURL string, userID, scenarioID int64, level, order int) (string, error)
}

// Pipeline renders coach videos for a batch of questions, one at a time.
// Items are independent: a failed render keeps its placeholder URL and the
// pipeline moves on to the next question.
type Pipeline struct {
	jobs     JobClient
	uploader Uploader
}

func NewPipeline(jobs JobClient, uploader Uploader) *Pipeline {
	return &Pipeline{jobs: jobs, uploader: uploader}
}

// RenderAll renders every question that does not already have a real video
// URL. It returns the updated questions and the number that ended up with a
// rendered video. Rendering is deliberately sequential: provider jobs take
// minutes and concurrent submission trips provider rate limits.
func (p *Pipeline) RenderAll(ctx context.Context, questions []models.Question, userID, scenarioID int64, level int, sourceImage string) ([]models.Question, int) {
	updated := make([]models.Question, len(questions))
	copy(updated, questions)

	successCount := 0
	for i := range updated {
		q := &updated[i]

		if q.HasRenderedVideo() {
			successCount++
			continue
		}

		if err := ctx.Err(); err != nil {
			log.Printf("WARN: [render] aborting batch for user %d scenario %d level %d: %v", userID, scenarioID, level, err)
			break
		}

		start := time.Now()
		providerURL, err := p.jobs.SubmitAndAwait(ctx, q.Text, sourceImage)
		if err != nil {
			log.Printf("WARN: [render] question %d (user %d scenario %d level %d) render failed: %v", q.Order, userID, scenarioID, level, err)
			continue
		}

		storedURL, err := p.uploader.Store(ctx, providerURL, userID, scenarioID, level, q.Order)
		if err != nil {
			log.Printf("WARN: [render] question %d (user %d scenario %d level %d) store failed: %v", q.Order, userID, scenarioID, level, err)
			continue
		}

		q.VideoURL = storedURL
		successCount++
		log.Printf("[render] question %d rendered in %s (user %d scenario %d level %d)", q.Order, time.Since(start).Round(time.Second), userID, scenarioID, level)
	}

	return updated, successCount
}
