package domain

// Category groups challenges, e.g. "Algorithms" or "Databases".
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// TestCase is one input/expected-output pair attached to a challenge.
type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Challenge is a coding challenge as served by the challenges API.
// Content holds the challenge text in Markdown; Template is the initial
// code shown in the editor.
type Challenge struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    *Category  `json:"category,omitempty"`
	CategoryID  int        `json:"category_id,omitempty"`
	Difficulty  string     `json:"difficulty"`
	Points      int        `json:"points"`
	Content     string     `json:"content,omitempty"`
	Template    string     `json:"template,omitempty"`
	TestCases   []TestCase `json:"test_cases,omitempty"`
	TimeLimit   int        `json:"time_limit,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
}

// ChallengeFilter narrows GET /api/challenges/challenges/ results.
// Zero-valued fields are omitted from the query string.
type ChallengeFilter struct {
	Category   string
	Difficulty string
	Search     string
}

// RunRequest is the body for running code against a single test case.
type RunRequest struct {
	Code           string `json:"code"`
	Language       string `json:"language"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// RunResponse is the per-test-case execution result from the server.
type RunResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// TestResult is the client-side verdict for one test case: the server's
// output compared (whitespace-trimmed) against the expected output.
type TestResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Error          string `json:"error,omitempty"`
	Passed         bool   `json:"passed"`
}

// SubmitRequest is the body for POST /api/challenges/challenges/{id}/submit/.
type SubmitRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Submission is a graded solution attempt as returned by the server.
type Submission struct {
	ID            int          `json:"id"`
	Challenge     int          `json:"challenge"`
	Code          string       `json:"code"`
	Language      string       `json:"language"`
	Status        string       `json:"status"`
	Feedback      string       `json:"feedback,omitempty"`
	TestResults   []TestResult `json:"test_results,omitempty"`
	ExecutionTime float64      `json:"execution_time,omitempty"`
	CreatedAt     string       `json:"created_at,omitempty"`
}

// Discussion is one comment on a challenge's discussion thread.
type Discussion struct {
	ID        int    `json:"id"`
	Challenge int    `json:"challenge"`
	User      *User  `json:"user,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
}
