package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

// SubmissionError means the render job never got accepted: the submit call
// failed or the provider returned no job id.
type SubmissionError struct {
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("avatar job submission failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("avatar job submission failed: %s", e.Reason)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// JobFailedError means the provider accepted the job and later reported it
// failed, or finished without producing a video.
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("avatar job %s failed: %s", e.JobID, e.Reason)
}

// TimeoutError means the job was still queued or rendering when the polling
// budget ran out. The job may yet finish on the provider side; we just stop
// waiting for it.
type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("avatar job %s still pending after %s", e.JobID, e.Elapsed.Round(time.Second))
}

// Job statuses reported by the render provider.
const (
	statusQueued    = "queued"
	statusRendering = "rendering"
	statusDone      = "done"
	statusError     = "error"
)

type submitRequest struct {
	Script      string `json:"script"`
	Voice       string `json:"voice"`
	SourceImage string `json:"source_image"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type jobStatus struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Client talks to the avatar render provider: submit a script plus a source
// image, poll until the job resolves, return the finished video URL.
type Client struct {
	baseURL      string
	apiKey       string
	voiceID      string
	httpClient   *http.Client
	pollInterval time.Duration
	pollBudget   time.Duration
}

func NewClient() *Client {
	return &Client{
		baseURL:      os.Getenv("AVATAR_API_URL"),
		apiKey:       os.Getenv("AVATAR_API_KEY"),
		voiceID:      os.Getenv("AVATAR_VOICE_ID"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: envDuration("AVATAR_POLL_SECONDS", 2),
		pollBudget:   envDuration("AVATAR_TIMEOUT_SECONDS", 240),
	}
}

// NewClientWith builds a client with explicit settings. Tests use it to poll
// fast against an httptest server.
func NewClientWith(baseURL, apiKey, voiceID string, pollInterval, pollBudget time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		voiceID:      voiceID,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: pollInterval,
		pollBudget:   pollBudget,
	}
}

// SubmitAndAwait submits a render job for the given script and source image,
// then polls until the job finishes, fails, or the polling budget elapses.
// On success it returns the provider-hosted URL of the rendered video.
func (c *Client) SubmitAndAwait(ctx context.Context, script string, sourceImage string) (string, error) {
	jobID, err := c.submit(ctx, script, sourceImage)
	if err != nil {
		return "", err
	}
	log.Printf("[avatar] job %s submitted (%d chars of script)", jobID, len(script))
	return c.await(ctx, jobID)
}

func (c *Client) submit(ctx context.Context, script string, sourceImage string) (string, error) {
	payload, err := json.Marshal(submitRequest{
		Script:      script,
		Voice:       c.voiceID,
		SourceImage: sourceImage,
	})
	if err != nil {
		return "", &SubmissionError{Reason: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(payload))
	if err != nil {
		return "", &SubmissionError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &SubmissionError{Reason: "submit request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &SubmissionError{Reason: fmt.Sprintf("provider returned %d: %s", resp.StatusCode, body)}
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", &SubmissionError{Reason: "decode response", Err: err}
	}
	if sr.ID == "" {
		return "", &SubmissionError{Reason: "provider returned no job id"}
	}
	return sr.ID, nil
}

func (c *Client) await(ctx context.Context, jobID string) (string, error) {
	start := time.Now()
	deadline := start.Add(c.pollBudget)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		status, err := c.poll(ctx, jobID)
		if err != nil {
			// Transient poll failures do not kill the job; keep waiting
			// until the budget runs out.
			log.Printf("WARN: [avatar] poll failed for job %s: %v", jobID, err)
		} else {
			switch status.Status {
			case statusDone:
				if status.ResultURL == "" {
					return "", &JobFailedError{JobID: jobID, Reason: "done with no result URL"}
				}
				log.Printf("[avatar] job %s done in %s", jobID, time.Since(start).Round(time.Second))
				return status.ResultURL, nil
			case statusError:
				reason := status.Error
				if reason == "" {
					reason = "provider reported failure"
				}
				return "", &JobFailedError{JobID: jobID, Reason: reason}
			case statusQueued, statusRendering:
				// still pending
			default:
				log.Printf("WARN: [avatar] job %s reported unknown status %q", jobID, status.Status)
			}
		}

		if time.Now().After(deadline) {
			return "", &TimeoutError{JobID: jobID, Elapsed: time.Since(start)}
		}
	}
}

func (c *Client) poll(ctx context.Context, jobID string) (*jobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status poll returned %d", resp.StatusCode)
	}

	var status jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

func envDuration(key string, defaultSeconds int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
		log.Printf("WARN: invalid %s=%q, using default %ds", key, v, defaultSeconds)
	}
	return time.Duration(defaultSeconds) * time.Second
}
