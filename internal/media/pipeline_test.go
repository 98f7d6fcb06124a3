package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/speakcoach/backend/internal/models"
)

type fakeJobClient struct {
	calls   []string
	failFor map[string]error
}

func (f *fakeJobClient) SubmitAndAwait(ctx context.Context, script string, sourceImage string) (string, error) {
	f.calls = append(f.calls, script)
	if err, ok := f.failFor[script]; ok {
		return "", err
	}
	return "https://provider.example.com/" + strings.ReplaceAll(script, " ", "-") + ".mp4", nil
}

type fakeUploader struct {
	stored  []string
	failFor map[string]error
}

func (f *fakeUploader) Store(ctx context.Context, videoURL string, userID, scenarioID int64, level, order int) (string, error) {
	if err, ok := f.failFor[videoURL]; ok {
		return "", err
	}
	url := fmt.Sprintf("https://storage.googleapis.com/bucket/avatar-videos/%d/%d/%d/%d_%d_level%d_%d.mp4",
		userID, scenarioID, level, userID, scenarioID, level, order)
	f.stored = append(f.stored, url)
	return url, nil
}

func questionsFixture() []models.Question {
	return []models.Question{
		{Order: 1, Text: "first question", VideoURL: "interview_level2_q1.mp4"},
		{Order: 2, Text: "second question", VideoURL: "interview_level2_q2.mp4"},
		{Order: 3, Text: "third question", VideoURL: "interview_level2_q3.mp4"},
	}
}

func TestRenderAllSuccess(t *testing.T) {
	jobs := &fakeJobClient{}
	up := &fakeUploader{}
	p := NewPipeline(jobs, up)

	updated, successCount := p.RenderAll(context.Background(), questionsFixture(), 10, 4, 2, "coach.png")

	if successCount != 3 {
		t.Errorf("expected 3 successes, got %d", successCount)
	}
	for i, q := range updated {
		if !q.HasRenderedVideo() {
			t.Errorf("question %d still has placeholder %q", i+1, q.VideoURL)
		}
	}
	if len(jobs.calls) != 3 {
		t.Errorf("expected 3 render jobs, got %d", len(jobs.calls))
	}
}

func TestRenderAllContinuesPastFailures(t *testing.T) {
	jobs := &fakeJobClient{failFor: map[string]error{
		"second question": errors.New("render timed out"),
	}}
	up := &fakeUploader{}
	p := NewPipeline(jobs, up)

	updated, successCount := p.RenderAll(context.Background(), questionsFixture(), 10, 4, 2, "coach.png")

	if successCount != 2 {
		t.Errorf("expected 2 successes, got %d", successCount)
	}
	if updated[1].HasRenderedVideo() {
		t.Errorf("failed question must keep its placeholder, got %q", updated[1].VideoURL)
	}
	if updated[1].VideoURL != "interview_level2_q2.mp4" {
		t.Errorf("placeholder changed: %q", updated[1].VideoURL)
	}
	if !updated[0].HasRenderedVideo() || !updated[2].HasRenderedVideo() {
		t.Error("surviving questions must still be rendered")
	}
	if len(jobs.calls) != 3 {
		t.Errorf("a failure must not stop the batch; got %d calls", len(jobs.calls))
	}
}

func TestRenderAllUploadFailureKeepsPlaceholder(t *testing.T) {
	jobs := &fakeJobClient{}
	up := &fakeUploader{failFor: map[string]error{
		"https://provider.example.com/first-question.mp4": errors.New("bucket unavailable"),
	}}
	p := NewPipeline(jobs, up)

	updated, successCount := p.RenderAll(context.Background(), questionsFixture(), 10, 4, 2, "coach.png")

	if successCount != 2 {
		t.Errorf("expected 2 successes, got %d", successCount)
	}
	if updated[0].HasRenderedVideo() {
		t.Error("upload failure must leave the placeholder in place")
	}
}

func TestRenderAllSkipsAlreadyRendered(t *testing.T) {
	questions := questionsFixture()
	questions[0].VideoURL = "https://storage.googleapis.com/bucket/already.mp4"

	jobs := &fakeJobClient{}
	p := NewPipeline(jobs, &fakeUploader{})

	updated, successCount := p.RenderAll(context.Background(), questions, 10, 4, 2, "coach.png")

	if successCount != 3 {
		t.Errorf("pre-rendered questions count as successes, got %d", successCount)
	}
	if len(jobs.calls) != 2 {
		t.Errorf("expected 2 render jobs for the unrendered questions, got %d", len(jobs.calls))
	}
	if updated[0].VideoURL != "https://storage.googleapis.com/bucket/already.mp4" {
		t.Error("pre-rendered URL must not change")
	}
}

func TestRenderAllAllFail(t *testing.T) {
	jobs := &fakeJobClient{failFor: map[string]error{
		"first question":  errors.New("down"),
		"second question": errors.New("down"),
		"third question":  errors.New("down"),
	}}
	p := NewPipeline(jobs, &fakeUploader{})

	updated, successCount := p.RenderAll(context.Background(), questionsFixture(), 10, 4, 2, "coach.png")

	if successCount != 0 {
		t.Errorf("expected 0 successes, got %d", successCount)
	}
	for _, q := range updated {
		if q.HasRenderedVideo() {
			t.Errorf("question %d should keep its placeholder", q.Order)
		}
	}
}

func TestRenderAllStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := &fakeJobClient{}
	p := NewPipeline(jobs, &fakeUploader{})

	_, successCount := p.RenderAll(ctx, questionsFixture(), 10, 4, 2, "coach.png")

	if successCount != 0 {
		t.Errorf("cancelled context should render nothing, got %d", successCount)
	}
	if len(jobs.calls) != 0 {
		t.Errorf("cancelled context should submit no jobs, got %d", len(jobs.calls))
	}
}

func TestRenderAllDoesNotMutateInput(t *testing.T) {
	questions := questionsFixture()
	p := NewPipeline(&fakeJobClient{}, &fakeUploader{})

	p.RenderAll(context.Background(), questions, 10, 4, 2, "coach.png")

	if questions[0].VideoURL != "interview_level2_q1.mp4" {
		t.Error("input slice must not be mutated")
	}
}
