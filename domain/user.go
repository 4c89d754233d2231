package domain

// User is the profile record returned by the server. The session layer
// treats it as an immutable snapshot: replaced wholesale on fetch,
// shallow-merged on local update.
type User struct {
	ID                int    `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`
	Bio               string `json:"bio,omitempty"`
	Avatar            string `json:"avatar,omitempty"`
	TotalPoints       int    `json:"total_points"`
	GithubUsername    string `json:"github_username,omitempty"`
	LinkedinUsername  string `json:"linkedin_username,omitempty"`
	Website           string `json:"website,omitempty"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
	DateJoined        string `json:"date_joined,omitempty"`
}

// LoginRequest carries the credentials for POST /api/users/login/.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest carries the fields for POST /api/users/register/.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// AuthResponse is the body returned by the login, register and refresh
// endpoints. RefreshToken is only present on login; the register and
// refresh responses carry the access token alone (plus the user).
type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// LeaderboardEntry is one row of GET /api/users/leaderboard/.
type LeaderboardEntry struct {
	Rank                int    `json:"rank"`
	Username            string `json:"username"`
	DisplayName         string `json:"display_name,omitempty"`
	Avatar              string `json:"avatar,omitempty"`
	TotalPoints         int    `json:"total_points"`
	CompletedChallenges int    `json:"completed_challenges"`
}
