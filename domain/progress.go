package domain

// Progress tracks a user's state on one challenge.
type Progress struct {
	ID           int    `json:"id"`
	Challenge    int    `json:"challenge"`
	Status       string `json:"status"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
	CurrentScore int    `json:"current_score"`
	BestScore    int    `json:"best_score"`
	Attempts     int    `json:"attempts"`
}

// Statistics is the aggregate returned by /api/progress/statistics/
// and rendered on the dashboard.
type Statistics struct {
	TotalChallenges     int            `json:"total_challenges"`
	CompletedChallenges int            `json:"completed_challenges"`
	InProgress          int            `json:"in_progress"`
	TotalPoints         int            `json:"total_points"`
	ByDifficulty        map[string]int `json:"by_difficulty,omitempty"`
	ByCategory          map[string]int `json:"by_category,omitempty"`
}

// Achievement is a badge definition.
type Achievement struct {
	ID                 int    `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Icon               string `json:"icon,omitempty"`
	PointsRequired     int    `json:"points_required"`
	ChallengesRequired int    `json:"challenges_required"`
}

// UserAchievement links a user to an earned achievement.
type UserAchievement struct {
	ID          int          `json:"id"`
	Achievement *Achievement `json:"achievement"`
	EarnedAt    string       `json:"earned_at,omitempty"`
}
