package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/createathon/client-go/credstore"
	"github.com/createathon/client-go/domain"
	"github.com/createathon/client-go/transport"
)

func newClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(transport.New(srv.URL, credstore.NewMemStore()))
}

func TestChallengesPassesFilterParams(t *testing.T) {
	var gotQuery string
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/challenges/challenges/", r.URL.Path)
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]domain.Challenge{{ID: 1, Title: "FizzBuzz"}})
	}))

	challenges, err := client.Challenges(context.Background(), domain.ChallengeFilter{
		Difficulty: "easy",
		Search:     "fizz",
	})
	require.NoError(t, err)
	require.Len(t, challenges, 1)
	assert.Contains(t, gotQuery, "difficulty=easy")
	assert.Contains(t, gotQuery, "search=fizz")
	assert.NotContains(t, gotQuery, "category")
}

func TestLeaderboardTimeframeParam(t *testing.T) {
	var gotTimeframe string
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/leaderboard/", r.URL.Path)
		gotTimeframe = r.URL.Query().Get("timeframe")
		json.NewEncoder(w).Encode([]domain.LeaderboardEntry{{Rank: 1, Username: "alice"}})
	}))

	entries, err := client.Leaderboard(context.Background(), "week")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "week", gotTimeframe)
}

func TestRunAllAggregatesVerdicts(t *testing.T) {
	// The server echoes for "echo" input, errors for "boom" input and
	// answers with trailing whitespace for "trim" input.
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/challenges/challenges/42/run/", r.URL.Path)
		var req domain.RunRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Input {
		case "boom":
			json.NewEncoder(w).Encode(domain.RunResponse{Error: "runtime error"})
		case "trim":
			json.NewEncoder(w).Encode(domain.RunResponse{Output: req.ExpectedOutput + "\n"})
		default:
			json.NewEncoder(w).Encode(domain.RunResponse{Output: "wrong"})
		}
	}))

	cases := []domain.TestCase{
		{Input: "trim", Output: "ok"},
		{Input: "boom", Output: "ok"},
		{Input: "echo", Output: "ok"},
	}
	results, passed, err := client.RunAll(context.Background(), 42, "print('x')", "python", cases)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Passed, "trimmed output must match")
	assert.False(t, results[1].Passed)
	assert.Equal(t, "runtime error", results[1].Error)
	assert.False(t, results[2].Passed)
	assert.Equal(t, "wrong", results[2].ActualOutput)
	assert.Equal(t, 1, passed)
}

func TestRunAllContinuesAfterFailedCall(t *testing.T) {
	var calls int
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "unsupported language"}`))
			return
		}
		json.NewEncoder(w).Encode(domain.RunResponse{Output: "ok"})
	}))

	cases := []domain.TestCase{
		{Input: "a", Output: "ok"},
		{Input: "b", Output: "ok"},
	}
	results, passed, err := client.RunAll(context.Background(), 1, "code", "cobol", cases)
	require.NoError(t, err, "a failed case must not abort the loop")
	require.Len(t, results, 2)
	assert.False(t, results[0].Passed)
	assert.Equal(t, "unsupported language", results[0].Error)
	assert.True(t, results[1].Passed)
	assert.Equal(t, 1, passed)
}

func TestRunAllStopsOnCancelledContext(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.RunResponse{Output: "ok"})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []domain.TestCase{{Input: "a", Output: "ok"}}
	_, _, err := client.RunAll(ctx, 1, "code", "python", cases)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSubmitPostsCodeAndLanguage(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/challenges/challenges/7/submit/", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req domain.SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "go", req.Language)
		assert.True(t, strings.Contains(req.Code, "func main"))

		json.NewEncoder(w).Encode(domain.Submission{ID: 99, Status: "accepted"})
	}))

	submission, err := client.Submit(context.Background(), 7, domain.SubmitRequest{
		Code:     "package main\nfunc main() {}",
		Language: "go",
	})
	require.NoError(t, err)
	assert.Equal(t, 99, submission.ID)
	assert.Equal(t, "accepted", submission.Status)
}

func TestPostDiscussionBody(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/challenges/challenges/3/discussions/", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nice one", body["content"])
		json.NewEncoder(w).Encode(domain.Discussion{ID: 5, Content: body["content"]})
	}))

	discussion, err := client.PostDiscussion(context.Background(), 3, "nice one")
	require.NoError(t, err)
	assert.Equal(t, 5, discussion.ID)
}

func TestChallengeNotFound(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Not found."}`))
	}))

	_, err := client.Challenge(context.Background(), 12345)
	require.Error(t, err)

	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Not found.", apiErr.Detail)
}
