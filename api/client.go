// Package api is the typed surface over the Createathon REST API:
// challenges, code runs, submissions, discussions, progress,
// achievements and the leaderboard. Identity operations live in the
// session package; everything here rides the same transport pipeline
// and inherits its token handling.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/createathon/client-go/domain"
	"github.com/createathon/client-go/telemetry"
	"github.com/createathon/client-go/transport"
)

const (
	challengesPath       = "/api/challenges/challenges/"
	categoriesPath       = "/api/challenges/categories/"
	progressPath         = "/api/progress/"
	statisticsPath       = "/api/progress/statistics/"
	achievementsPath     = "/api/achievements/"
	userAchievementsPath = "/api/user-achievements/"
	leaderboardPath      = "/api/users/leaderboard/"
)

// Client calls the non-identity endpoints through the pipeline.
type Client struct {
	pipeline *transport.Pipeline
}

// NewClient creates a Client over the given pipeline.
func NewClient(pipeline *transport.Pipeline) *Client {
	return &Client{pipeline: pipeline}
}

// Challenges lists challenges, narrowed by the filter's non-zero fields.
func (c *Client) Challenges(ctx context.Context, filter domain.ChallengeFilter) ([]domain.Challenge, error) {
	params := url.Values{}
	if filter.Category != "" {
		params.Set("category", filter.Category)
	}
	if filter.Difficulty != "" {
		params.Set("difficulty", filter.Difficulty)
	}
	if filter.Search != "" {
		params.Set("search", filter.Search)
	}

	var challenges []domain.Challenge
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, challengesPath, params, nil, &challenges); err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return challenges, nil
}

// Challenge fetches one challenge with its content and test cases.
func (c *Client) Challenge(ctx context.Context, id int) (*domain.Challenge, error) {
	var challenge domain.Challenge
	path := fmt.Sprintf("%s%d/", challengesPath, id)
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, path, nil, nil, &challenge); err != nil {
		return nil, fmt.Errorf("fetch challenge %d: %w", id, err)
	}
	return &challenge, nil
}

// CreateChallenge publishes a new challenge authored by the current user.
func (c *Client) CreateChallenge(ctx context.Context, challenge domain.Challenge) (*domain.Challenge, error) {
	var created domain.Challenge
	if err := c.pipeline.DoJSON(ctx, http.MethodPost, challengesPath, nil, challenge, &created); err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}
	return &created, nil
}

// UpdateChallenge replaces an existing challenge.
func (c *Client) UpdateChallenge(ctx context.Context, id int, challenge domain.Challenge) (*domain.Challenge, error) {
	var updated domain.Challenge
	path := fmt.Sprintf("%s%d/", challengesPath, id)
	if err := c.pipeline.DoJSON(ctx, http.MethodPut, path, nil, challenge, &updated); err != nil {
		return nil, fmt.Errorf("update challenge %d: %w", id, err)
	}
	return &updated, nil
}

// Categories lists the challenge categories.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, categoriesPath, nil, nil, &categories); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Run executes code against a single test case server-side.
func (c *Client) Run(ctx context.Context, challengeID int, req domain.RunRequest) (*domain.RunResponse, error) {
	var resp domain.RunResponse
	path := fmt.Sprintf("%s%d/run/", challengesPath, challengeID)
	if err := c.pipeline.DoJSON(ctx, http.MethodPost, path, nil, req, &resp); err != nil {
		return nil, fmt.Errorf("run code on challenge %d: %w", challengeID, err)
	}
	return &resp, nil
}

// RunAll runs code against every test case sequentially and collects a
// verdict per case: passed when the server reported no error and the
// trimmed output matches the expected output. A failed run call does not
// abort the loop — the case is recorded as failed with the error detail
// and the remaining cases still run. Returns the results and the number
// of passed cases.
func (c *Client) RunAll(ctx context.Context, challengeID int, code, language string, cases []domain.TestCase) ([]domain.TestResult, int, error) {
	ctx, span := telemetry.StartSpan(ctx, "challenge.run_all", trace.WithAttributes(
		attribute.String("layer", "api"),
		attribute.Int("challenge.id", challengeID),
		attribute.Int("challenge.test_cases", len(cases)),
	))
	defer span.End()

	results := make([]domain.TestResult, 0, len(cases))
	passed := 0

	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return results, passed, err
		}

		resp, err := c.Run(ctx, challengeID, domain.RunRequest{
			Code:           strings.TrimSpace(code),
			Language:       language,
			Input:          tc.Input,
			ExpectedOutput: tc.Output,
		})
		if err != nil {
			results = append(results, domain.TestResult{
				Input:          tc.Input,
				ExpectedOutput: tc.Output,
				Error:          runErrorDetail(err),
				Passed:         false,
			})
			continue
		}

		ok := resp.Error == "" && strings.TrimSpace(resp.Output) == strings.TrimSpace(tc.Output)
		if ok {
			passed++
		}
		results = append(results, domain.TestResult{
			Input:          tc.Input,
			ExpectedOutput: tc.Output,
			ActualOutput:   resp.Output,
			Error:          resp.Error,
			Passed:         ok,
		})
	}

	span.SetAttributes(attribute.Int("challenge.passed", passed))
	return results, passed, nil
}

// Submit sends a solution for server-side grading.
func (c *Client) Submit(ctx context.Context, challengeID int, req domain.SubmitRequest) (*domain.Submission, error) {
	var submission domain.Submission
	path := fmt.Sprintf("%s%d/submit/", challengesPath, challengeID)
	if err := c.pipeline.DoJSON(ctx, http.MethodPost, path, nil, req, &submission); err != nil {
		return nil, fmt.Errorf("submit challenge %d: %w", challengeID, err)
	}
	return &submission, nil
}

// Submissions lists the current user's submissions for a challenge.
func (c *Client) Submissions(ctx context.Context, challengeID int) ([]domain.Submission, error) {
	var submissions []domain.Submission
	path := fmt.Sprintf("%s%d/submissions/", challengesPath, challengeID)
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, path, nil, nil, &submissions); err != nil {
		return nil, fmt.Errorf("list submissions for challenge %d: %w", challengeID, err)
	}
	return submissions, nil
}

// Discussions lists the comments on a challenge.
func (c *Client) Discussions(ctx context.Context, challengeID int) ([]domain.Discussion, error) {
	var discussions []domain.Discussion
	path := fmt.Sprintf("%s%d/discussions/", challengesPath, challengeID)
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, path, nil, nil, &discussions); err != nil {
		return nil, fmt.Errorf("list discussions for challenge %d: %w", challengeID, err)
	}
	return discussions, nil
}

// PostDiscussion adds a comment to a challenge's discussion thread.
func (c *Client) PostDiscussion(ctx context.Context, challengeID int, content string) (*domain.Discussion, error) {
	var discussion domain.Discussion
	path := fmt.Sprintf("%s%d/discussions/", challengesPath, challengeID)
	body := map[string]string{"content": content}
	if err := c.pipeline.DoJSON(ctx, http.MethodPost, path, nil, body, &discussion); err != nil {
		return nil, fmt.Errorf("post discussion on challenge %d: %w", challengeID, err)
	}
	return &discussion, nil
}

// Progress lists the current user's per-challenge progress.
func (c *Client) Progress(ctx context.Context) ([]domain.Progress, error) {
	var progress []domain.Progress
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, progressPath, nil, nil, &progress); err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}
	return progress, nil
}

// Statistics fetches the dashboard aggregates.
func (c *Client) Statistics(ctx context.Context) (*domain.Statistics, error) {
	var stats domain.Statistics
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, statisticsPath, nil, nil, &stats); err != nil {
		return nil, fmt.Errorf("fetch statistics: %w", err)
	}
	return &stats, nil
}

// Achievements lists all achievement definitions.
func (c *Client) Achievements(ctx context.Context) ([]domain.Achievement, error) {
	var achievements []domain.Achievement
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, achievementsPath, nil, nil, &achievements); err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return achievements, nil
}

// UserAchievements lists the achievements the current user has earned.
func (c *Client) UserAchievements(ctx context.Context) ([]domain.UserAchievement, error) {
	var earned []domain.UserAchievement
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, userAchievementsPath, nil, nil, &earned); err != nil {
		return nil, fmt.Errorf("list user achievements: %w", err)
	}
	return earned, nil
}

// Leaderboard fetches the ranking for the given timeframe ("all",
// "month" or "week"); an empty timeframe uses the server default.
func (c *Client) Leaderboard(ctx context.Context, timeframe string) ([]domain.LeaderboardEntry, error) {
	params := url.Values{}
	if timeframe != "" {
		params.Set("timeframe", timeframe)
	}

	var entries []domain.LeaderboardEntry
	if err := c.pipeline.DoJSON(ctx, http.MethodGet, leaderboardPath, params, nil, &entries); err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	return entries, nil
}

// runErrorDetail extracts the server's error message from a failed run
// call, mirroring the fallback text the web client showed.
func runErrorDetail(err error) string {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return "failed to run code"
}
