package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-study-service/internal/app"
	"quiz-study-service/internal/catalog"
	"quiz-study-service/internal/config"
	"quiz-study-service/internal/feedback"
	"quiz-study-service/internal/infra/postgres"
	"quiz-study-service/internal/infra/prefs"
	transport "quiz-study-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the study backend",
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

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	staticQuestions, err := catalog.Load()
	if err != nil {
		return err
	}

	var prefStore app.PreferenceStore = prefs.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		prefStore = prefs.NewRedisStore(redisClient)
	} else {
		logger.Warn("redis not configured, preferences will not survive restarts")
	}

	var remote app.RemoteStore
	var leaderboard transport.LeaderboardSource
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pg := postgres.NewRemoteStore(pool)
		remote = pg
		leaderboard = pg
	} else {
		logger.Warn("postgres not configured, running local-only")
	}

	identity := app.StaticIdentity{ID: cfg.Identity.UserID, Username: cfg.Identity.Username}
	store := app.NewQuestionStore(staticQuestions, prefStore, remote, identity, logger)
	if err := store.Initialize(ctx); err != nil {
		return err
	}

	exams := app.NewExamGenerator(app.ExamConfig{
		TotalQuestions: cfg.Exam.Questions,
		TimeLimit:      config.Duration(cfg.Exam.TimeLimit, 45*time.Minute),
		Easy:           cfg.Exam.Easy,
		Medium:         cfg.Exam.Medium,
		Hard:           cfg.Exam.Hard,
	})

	hub := feedback.NewHub()
	wsHandler := transport.NewWSHandler(store, exams, hub, logger)
	apiHandler := transport.NewAPIHandler(store, leaderboard, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/questions", apiHandler.Questions)
	mux.HandleFunc("/categories", apiHandler.Categories)
	mux.HandleFunc("/history", apiHandler.History)
	mux.HandleFunc("/leaderboard", apiHandler.Leaderboard)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting study backend", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
