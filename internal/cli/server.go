package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"lesson-arcade-service/internal/app"
	"lesson-arcade-service/internal/config"
	"lesson-arcade-service/internal/gateway"
	"lesson-arcade-service/internal/infra/memory"
	pgstore "lesson-arcade-service/internal/infra/postgres"
	infraredis "lesson-arcade-service/internal/infra/redis"
	"lesson-arcade-service/internal/infra/sqlite"
	"lesson-arcade-service/internal/oembed"
	transport "lesson-arcade-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the lesson server",
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
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	lessonTTL := config.TTLDuration(cfg.Lesson.TTL, time.Hour)
	var lessonRepo app.LessonRepository
	if redisClient != nil {
		var store infraredis.LessonStore = memory.NewStaticLessonStore(nil)
		if pool != nil {
			store = pgstore.NewLessonStore(pool)
		}
		lessonRepo = infraredis.NewLessonRepository(redisClient, store, lessonTTL)
	} else {
		var store memory.LessonStore = memory.NewStaticLessonStore(nil)
		if pool != nil {
			store = pgstore.NewLessonStore(pool)
		}
		lessonRepo = memory.NewLessonRepository(store, lessonTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = infraredis.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	kv, closeKV, err := leaderboardStore(cfg, redisClient, pool)
	if err != nil {
		return err
	}
	defer closeKV()
	leaderboard := app.NewLeaderboard(kv, cfg.Leaderboard.KeyPrefix, cfg.Leaderboard.Limit)

	lessons := app.NewLessonService(newGateway(cfg), modelTiers(cfg), lessonRepo)
	play := app.NewPlayService(sessions, lessonRepo, lessons, leaderboard)
	metadata := oembed.NewClient(cfg.Oembed.Endpoint, config.TTLDuration(cfg.Oembed.Timeout, 10*time.Second))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewAPIHandler(lessons, play, metadata).Register(mux)
	mux.HandleFunc("/ws", transport.NewWSHandler(play).ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// lesson generation may sit in backoff for a while
		WriteTimeout: 2 * time.Minute,
	}

	go func() {
		log.Printf("starting lesson service on :%s (leaderboard=%s, models=%s/%s)",
			finalPort, cfg.Leaderboard.Backend, cfg.Model.Primary, cfg.Model.Fallback)
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

func newGateway(cfg config.Config) *gateway.Gateway {
	if cfg.Model.APIKey == "" {
		log.Printf("no model api key configured; generation calls will fail")
	}
	return gateway.New(gateway.NewOpenAIGenerator(cfg.Model.APIKey, cfg.Model.BaseURL))
}

func modelTiers(cfg config.Config) app.ModelTiers {
	retries := *cfg.Model.MaxRetries
	return app.ModelTiers{
		Primary:  cfg.Model.Primary,
		Fallback: cfg.Model.Fallback,
		Plan:     gateway.Policy{MaxRetries: retries, BaseDelay: config.TTLDuration(cfg.Model.PlanBaseDelay, 2*time.Second)},
		Evaluate: gateway.Policy{MaxRetries: retries, BaseDelay: config.TTLDuration(cfg.Model.EvaluateBaseDelay, time.Second)},
		Summary:  gateway.Policy{MaxRetries: retries, BaseDelay: config.TTLDuration(cfg.Model.SummaryBaseDelay, time.Second)},
	}
}

// leaderboardStore picks the key-value backend named in config. The returned
// func releases whatever the backend opened itself.
func leaderboardStore(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool) (app.KeyValueStore, func(), error) {
	noop := func() {}
	switch cfg.Leaderboard.Backend {
	case "memory":
		return memory.NewKVStore(), noop, nil
	case "redis":
		if redisClient == nil {
			return nil, noop, fmt.Errorf("leaderboard backend redis needs redis.addr")
		}
		return infraredis.NewKVStore(redisClient), noop, nil
	case "postgres":
		if pool == nil {
			return nil, noop, fmt.Errorf("leaderboard backend postgres needs postgres.url")
		}
		return pgstore.NewKVStore(pool), noop, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Printf("close sqlite: %v", err)
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("unknown leaderboard backend %q", cfg.Leaderboard.Backend)
	}
}
