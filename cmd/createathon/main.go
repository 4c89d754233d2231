// Command createathon is a terminal client for the Createathon
// coding-challenge platform: log in, browse and author challenges, run
// and submit solutions, and follow discussions and the leaderboard.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/createathon/client-go/api"
	"github.com/createathon/client-go/config"
	"github.com/createathon/client-go/credstore"
	"github.com/createathon/client-go/domain"
	"github.com/createathon/client-go/logging"
	"github.com/createathon/client-go/session"
	"github.com/createathon/client-go/telemetry"
	"github.com/createathon/client-go/transport"
)

const usageText = `Usage: createathon <command> [flags]

Commands:
  login         -username -password
  register      -username -email -password [-first] [-last]
  logout
  whoami
  profile       [-data '{"bio": "..."}']
  challenges    [-category] [-difficulty] [-search]
  challenge     -id
  create        -file challenge.json
  update        -id -file challenge.json
  categories
  run           -id -file solution.py [-lang]
  submit        -id -file solution.py [-lang]
  submissions   -id
  discussions   -id
  comment       -id -message
  leaderboard   [-timeframe all|month|week]
  progress
  stats
  achievements
  watch         -id [-interval 2m]

Configuration is read from the environment (and .env): CREATEATHON_BASE_URL,
LOG_LEVEL, CREDENTIALS_BACKEND, TRACING_ENABLED, PROFILING_ENABLED, ...`

type app struct {
	cfg    *config.Config
	store  domain.CredentialStore
	ctrl   *session.Controller
	client *api.Client
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Configuration validation failed:", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level)

	args := os.Args[1:]
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Println(usageText)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tp interface{ Shutdown(context.Context) error }
	if cfg.Tracing.Enabled {
		provider, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
			ServiceName: cfg.Service.Name,
			Version:     cfg.Service.Version,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRate:  cfg.Tracing.SampleRate,
			Insecure:    cfg.Tracing.Insecure,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		} else {
			tp = provider
		}
	}

	store := openStore(cfg)

	opts := []transport.Option{
		transport.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
	}
	if cfg.API.RateLimitRPS > 0 {
		opts = append(opts, transport.WithRateLimit(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst))
	}
	pipeline := transport.New(cfg.API.BaseURL, store, opts...)

	a := &app{
		cfg:    cfg,
		store:  store,
		ctrl:   session.NewController(pipeline, store),
		client: api.NewClient(pipeline),
	}

	err := a.dispatch(ctx, args[0], args[1:])

	if tp != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Warn().Err(shutdownErr).Msg("Tracer shutdown error")
		}
		cancel()
	}

	if err != nil {
		if errors.Is(err, transport.ErrSessionTerminated) {
			fmt.Fprintln(os.Stderr, "Session expired. Run `createathon login` to sign in again.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// openStore selects the credential store backend from configuration.
func openStore(cfg *config.Config) domain.CredentialStore {
	if cfg.Credentials.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Credentials.RedisAddr,
			Password: cfg.Credentials.RedisPassword,
			DB:       cfg.Credentials.RedisDB,
		})
		return credstore.NewRedisStore(client, cfg.Credentials.RedisKey)
	}
	return credstore.Open(cfg.Credentials.File)
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "logout":
		a.ctrl.Logout()
		fmt.Println("Logged out.")
		return nil
	case "whoami":
		return a.cmdWhoami(ctx)
	case "profile":
		return a.cmdProfile(ctx, args)
	case "challenges":
		return a.cmdChallenges(ctx, args)
	case "challenge":
		return a.cmdChallenge(ctx, args)
	case "create":
		return a.cmdCreateChallenge(ctx, args)
	case "update":
		return a.cmdUpdateChallenge(ctx, args)
	case "categories":
		return a.cmdCategories(ctx)
	case "run":
		return a.cmdRun(ctx, args)
	case "submit":
		return a.cmdSubmit(ctx, args)
	case "submissions":
		return a.cmdSubmissions(ctx, args)
	case "discussions":
		return a.cmdDiscussions(ctx, args)
	case "comment":
		return a.cmdComment(ctx, args)
	case "leaderboard":
		return a.cmdLeaderboard(ctx, args)
	case "progress":
		return a.cmdProgress(ctx)
	case "stats":
		return a.cmdStats(ctx)
	case "achievements":
		return a.cmdAchievements(ctx)
	case "watch":
		return a.cmdWatch(ctx, args)
	default:
		fmt.Println(usageText)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "Username")
	password := fs.String("password", "", "Password (or CREATEATHON_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("CREATEATHON_PASSWORD")
	}
	if *username == "" || *password == "" {
		return errors.New("login: -username and -password are required")
	}

	user, err := a.ctrl.Login(ctx, domain.LoginRequest{Username: *username, Password: *password})
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%d points)\n", user.Username, user.TotalPoints)
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("username", "", "Username")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password")
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *email == "" || *password == "" {
		return errors.New("register: -username, -email and -password are required")
	}

	user, err := a.ctrl.Register(ctx, domain.RegisterRequest{
		Username:  *username,
		Email:     *email,
		Password:  *password,
		FirstName: *first,
		LastName:  *last,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Welcome, %s! Your account is ready.\n", user.Username)
	fmt.Println("Note: registration issues no refresh token; log in again once the session expires.")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	a.ctrl.Initialize(ctx)
	user := a.ctrl.User()
	if user == nil {
		fmt.Println("Not logged in.")
		return nil
	}
	printJSON(user)
	fmt.Println("Preferred language:", a.ctrl.PreferredLanguage())
	fmt.Println("Access token expiry:", tokenExpiry(a.store.Get(domain.KeyAccessToken)))
	return nil
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	data := fs.String("data", "", "JSON object of profile fields to update")
	lang := fs.String("lang", "", "Set the preferred code language")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.ctrl.Initialize(ctx)
	if a.ctrl.User() == nil {
		return session.ErrNotAuthenticated
	}

	if *lang != "" {
		a.ctrl.SetPreferredLanguage(*lang)
		fmt.Println("Preferred language set to", *lang)
	}

	if *data == "" {
		printJSON(a.ctrl.User())
		return nil
	}

	var partial map[string]any
	if err := json.Unmarshal([]byte(*data), &partial); err != nil {
		return fmt.Errorf("profile: parse -data: %w", err)
	}

	// Reflect locally first, then reconcile with the server's record.
	a.ctrl.UpdateUser(partial)
	user, err := a.ctrl.UpdateProfile(ctx, partial)
	if err != nil {
		return err
	}
	printJSON(user)
	return nil
}

func (a *app) cmdChallenges(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("challenges", flag.ContinueOnError)
	category := fs.String("category", "", "Filter by category")
	difficulty := fs.String("difficulty", "", "Filter by difficulty (easy|medium|hard)")
	search := fs.String("search", "", "Search titles")
	if err := fs.Parse(args); err != nil {
		return err
	}

	challenges, err := a.client.Challenges(ctx, domain.ChallengeFilter{
		Category:   *category,
		Difficulty: *difficulty,
		Search:     *search,
	})
	if err != nil {
		return err
	}

	for _, ch := range challenges {
		fmt.Printf("%4d  %-8s %4dpt  %s\n", ch.ID, ch.Difficulty, ch.Points, ch.Title)
	}
	fmt.Printf("%d challenge(s)\n", len(challenges))
	return nil
}

func (a *app) cmdChallenge(ctx context.Context, args []string) error {
	id, err := parseID("challenge", args)
	if err != nil {
		return err
	}
	challenge, err := a.client.Challenge(ctx, id)
	if err != nil {
		return err
	}
	printJSON(challenge)
	return nil
}

func (a *app) cmdCreateChallenge(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	file := fs.String("file", "", "Challenge definition JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	challenge, err := readChallengeFile(*file)
	if err != nil {
		return err
	}

	created, err := a.client.CreateChallenge(ctx, *challenge)
	if err != nil {
		return err
	}
	fmt.Printf("Created challenge %d: %s\n", created.ID, created.Title)
	return nil
}

func (a *app) cmdUpdateChallenge(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	id := fs.Int("id", 0, "Challenge ID")
	file := fs.String("file", "", "Challenge definition JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errors.New("update: -id is required")
	}
	challenge, err := readChallengeFile(*file)
	if err != nil {
		return err
	}

	updated, err := a.client.UpdateChallenge(ctx, *id, *challenge)
	if err != nil {
		return err
	}
	fmt.Printf("Updated challenge %d: %s\n", updated.ID, updated.Title)
	return nil
}

func (a *app) cmdCategories(ctx context.Context) error {
	categories, err := a.client.Categories(ctx)
	if err != nil {
		return err
	}
	for _, cat := range categories {
		fmt.Printf("%4d  %s\n", cat.ID, cat.Name)
	}
	return nil
}

func (a *app) cmdRun(ctx context.Context, args []string) error {
	id, code, lang, err := a.solutionFlags("run", args)
	if err != nil {
		return err
	}

	challenge, err := a.client.Challenge(ctx, id)
	if err != nil {
		return err
	}
	if len(challenge.TestCases) == 0 {
		return fmt.Errorf("challenge %d has no test cases", id)
	}

	results, passed, err := a.client.RunAll(ctx, id, code, lang, challenge.TestCases)
	if err != nil {
		return err
	}

	for i, res := range results {
		status := "FAIL"
		if res.Passed {
			status = "PASS"
		}
		fmt.Printf("case %d: %s\n", i+1, status)
		if !res.Passed {
			if res.Error != "" {
				fmt.Printf("  error:    %s\n", res.Error)
			}
			fmt.Printf("  input:    %s\n", res.Input)
			fmt.Printf("  expected: %s\n", res.ExpectedOutput)
			fmt.Printf("  actual:   %s\n", res.ActualOutput)
		}
	}
	fmt.Printf("%d/%d test cases passed\n", passed, len(results))
	return nil
}

func (a *app) cmdSubmit(ctx context.Context, args []string) error {
	id, code, lang, err := a.solutionFlags("submit", args)
	if err != nil {
		return err
	}

	submission, err := a.client.Submit(ctx, id, domain.SubmitRequest{Code: code, Language: lang})
	if err != nil {
		return err
	}
	fmt.Printf("Submission %d: %s\n", submission.ID, submission.Status)
	if submission.Feedback != "" {
		fmt.Println(submission.Feedback)
	}
	return nil
}

func (a *app) cmdSubmissions(ctx context.Context, args []string) error {
	id, err := parseID("submissions", args)
	if err != nil {
		return err
	}
	submissions, err := a.client.Submissions(ctx, id)
	if err != nil {
		return err
	}
	for _, sub := range submissions {
		fmt.Printf("%4d  %-10s %-8s %s\n", sub.ID, sub.Status, sub.Language, sub.CreatedAt)
	}
	return nil
}

func (a *app) cmdDiscussions(ctx context.Context, args []string) error {
	id, err := parseID("discussions", args)
	if err != nil {
		return err
	}
	discussions, err := a.client.Discussions(ctx, id)
	if err != nil {
		return err
	}
	printDiscussions(discussions)
	return nil
}

func (a *app) cmdComment(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("comment", flag.ContinueOnError)
	id := fs.Int("id", 0, "Challenge ID")
	message := fs.String("message", "", "Comment text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 || *message == "" {
		return errors.New("comment: -id and -message are required")
	}

	discussion, err := a.client.PostDiscussion(ctx, *id, *message)
	if err != nil {
		return err
	}
	fmt.Printf("Comment %d posted.\n", discussion.ID)
	return nil
}

func (a *app) cmdLeaderboard(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("leaderboard", flag.ContinueOnError)
	timeframe := fs.String("timeframe", "", "all, month or week")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries, err := a.client.Leaderboard(ctx, *timeframe)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = e.Username
		}
		fmt.Printf("%4d  %-24s %6dpt  %d solved\n", e.Rank, name, e.TotalPoints, e.CompletedChallenges)
	}
	return nil
}

func (a *app) cmdProgress(ctx context.Context) error {
	progress, err := a.client.Progress(ctx)
	if err != nil {
		return err
	}
	for _, p := range progress {
		fmt.Printf("challenge %4d  %-12s best %4d  attempts %d\n",
			p.Challenge, p.Status, p.BestScore, p.Attempts)
	}
	return nil
}

func (a *app) cmdStats(ctx context.Context) error {
	stats, err := a.client.Statistics(ctx)
	if err != nil {
		return err
	}
	printJSON(stats)
	return nil
}

func (a *app) cmdAchievements(ctx context.Context) error {
	earned, err := a.client.UserAchievements(ctx)
	if err != nil {
		return err
	}
	all, err := a.client.Achievements(ctx)
	if err != nil {
		return err
	}

	earnedIDs := make(map[int]string, len(earned))
	for _, ua := range earned {
		if ua.Achievement != nil {
			earnedIDs[ua.Achievement.ID] = ua.EarnedAt
		}
	}
	for _, ach := range all {
		marker := " "
		if _, ok := earnedIDs[ach.ID]; ok {
			marker = "*"
		}
		fmt.Printf("%s %-24s %s\n", marker, ach.Name, ach.Description)
	}
	fmt.Printf("%d/%d earned\n", len(earnedIDs), len(all))
	return nil
}

// cmdWatch runs the discussion poller as a long-lived process with
// optional ops endpoints and profiling, shutting down gracefully on
// SIGINT/SIGTERM.
func (a *app) cmdWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	id := fs.Int("id", 0, "Challenge ID")
	interval := fs.Duration("interval", api.DiscussionPollInterval, "Poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errors.New("watch: -id is required")
	}

	if a.cfg.Profiling.Enabled {
		if err := telemetry.InitProfiling(a.cfg.Service.Name, a.cfg.Profiling.Endpoint); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize profiling")
		} else {
			log.Info().Str("endpoint", a.cfg.Profiling.Endpoint).Msg("Profiling initialized")
			defer telemetry.StopProfiling()
		}
	}

	var srv *http.Server
	if a.cfg.Watch.MetricsAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())
		r.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		r.GET("/ready", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))

		srv = &http.Server{Addr: a.cfg.Watch.MetricsAddr, Handler: r}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("Ops server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Ops server failed")
			}
		}()
	}

	a.ctrl.Initialize(ctx)
	log.Info().Int("challenge_id", *id).Dur("interval", *interval).Msg("Watching discussions")

	err := a.client.WatchDiscussions(ctx, *id, *interval, printDiscussions)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Watch.ShutdownTimeout)
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("Ops server shutdown error")
		}
		cancel()
	}

	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Watch stopped")
		return nil
	}
	return err
}

// solutionFlags parses the shared flags of run and submit and loads the
// solution code. The language defaults to the stored preference.
func (a *app) solutionFlags(name string, args []string) (id int, code, lang string, err error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	challengeID := fs.Int("id", 0, "Challenge ID")
	file := fs.String("file", "", "Solution source file")
	langFlag := fs.String("lang", "", "Code language (defaults to preference)")
	if err := fs.Parse(args); err != nil {
		return 0, "", "", err
	}
	if *challengeID == 0 || *file == "" {
		return 0, "", "", fmt.Errorf("%s: -id and -file are required", name)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return 0, "", "", fmt.Errorf("%s: read %s: %w", name, *file, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return 0, "", "", fmt.Errorf("%s: %s is empty", name, *file)
	}

	lang = *langFlag
	if lang == "" {
		lang = a.ctrl.PreferredLanguage()
	}
	return *challengeID, string(data), lang, nil
}

func parseID(name string, args []string) (int, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	id := fs.Int("id", 0, "Challenge ID")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if *id == 0 {
		return 0, fmt.Errorf("%s: -id is required", name)
	}
	return *id, nil
}

func readChallengeFile(path string) (*domain.Challenge, error) {
	if path == "" {
		return nil, errors.New("-file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var challenge domain.Challenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &challenge, nil
}

func printDiscussions(discussions []domain.Discussion) {
	for _, d := range discussions {
		author := "anonymous"
		if d.User != nil {
			author = d.User.Username
		}
		fmt.Printf("[%s] %s: %s\n", d.CreatedAt, author, d.Content)
	}
	fmt.Printf("-- %d comment(s) at %s\n", len(discussions), time.Now().Format(time.RFC3339))
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode output")
		return
	}
	fmt.Println(string(data))
}

// tokenExpiry reports the exp claim of a JWT access token; deployments
// using opaque tokens get "unknown".
func tokenExpiry(token string) string {
	if token == "" {
		return "no token"
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "unknown (opaque token)"
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "unknown"
	}
	return exp.Time.Format(time.RFC3339)
}
