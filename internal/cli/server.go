package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/config"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/memory"
	pgloader "quiz-session-engine/internal/infra/postgres"
	rediscontent "quiz-session-engine/internal/infra/redis"
	"quiz-session-engine/internal/infra/scoring"
	sqliteloader "quiz-session-engine/internal/infra/sqlite"
	transport "quiz-session-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// Question-set loader precedence: Postgres, then SQLite, then the
	// built-in sample content for local experiments.
	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		loader = pgloader.NewQuizLoader(pool)
	} else if cfg.SQLite.Path != "" {
		sq, err := sqliteloader.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer sq.Close()
		loader = sq
	}

	quizTTL := config.Duration(cfg.Quiz.TTL, 10*time.Minute)
	var content app.ContentRepository
	if redisClient != nil {
		content = rediscontent.NewContentRepository(redisClient, loader, quizTTL)
	} else {
		content = memory.NewContentRepository(loader, quizTTL)
	}

	scoreTimeout := config.Duration(cfg.Scoring.Timeout, 15*time.Second)
	scoreBase := cfg.Scoring.BaseURL
	if scoreBase == "" {
		scoreBase = "http://127.0.0.1:8000"
	}
	scorer := scoring.NewClient(scoreBase, cfg.Scoring.Token, scoreTimeout)

	service := app.NewSessionService(content, scorer, memory.NewSessionRegistry(), cfg.CountdownSeconds())
	wsHandler := transport.NewWSHandler(service, transport.NewLearnerResolver(cfg.Auth.Secret))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(wsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz session engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides minimal demo content; production deployments point
// the loader at Postgres or SQLite instead.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{
					Prompt:     "What is 2 + 2?",
					Options:    []string{"3", "4", "5", domain.UnusedOption, domain.UnusedOption},
					Difficulty: "easy",
				},
				{
					Prompt:     "Which planet is known as the Red Planet?",
					Options:    []string{"Venus", "Mars", "Jupiter", "Saturn", domain.UnusedOption},
					Difficulty: "easy",
				},
			},
		},
	}
}
