package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordering-quiz-service/internal/app"
	"ordering-quiz-service/internal/config"
	"ordering-quiz-service/internal/domain"
	"ordering-quiz-service/internal/infra/events"
	"ordering-quiz-service/internal/infra/memory"
	"ordering-quiz-service/internal/infra/postgres"
	redisstore "ordering-quiz-service/internal/infra/redis"
	"ordering-quiz-service/internal/metrics"
	transport "ordering-quiz-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	logger := newLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
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

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	opts := []app.Option{
		app.WithLogger(logger),
		app.WithMetrics(recorder),
		app.WithStorageTimeout(config.TTLDuration(cfg.Quiz.StorageTimeout, 3*time.Second)),
		app.WithShuffleSeed(cfg.Quiz.ShuffleSeed),
	}
	var bus *events.Bus
	if cfg.Events.Enabled {
		bus = events.NewBus(logger)
		opts = append(opts, app.WithEvents(bus))
	}
	service := app.NewQuizService(store.sessions, store.content, opts...)

	router := transport.NewRouter(
		transport.NewQuizAPI(service, logger),
		transport.NewWSHandler(service, logger),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		logger,
	)
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if bus != nil {
		sub, err := bus.Subscribe(gctx, func(ctx context.Context, ev domain.QuizCompleted) error {
			recorder.EventConsumed()
			logger.InfoContext(ctx, "quiz completion recorded",
				"session_id", ev.SessionID,
				"topic_id", ev.TopicID,
				"percentage", ev.Percentage.StringFixed(2))
			return nil
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return sub.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if bus != nil {
			_ = bus.Close()
		}
		return err
	})
	return g.Wait()
}

type storage struct {
	sessions app.SessionRepository
	content  app.ContentRepository
	closers  []func()
}

func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStorage picks adapters from config: Postgres for content when a URL is
// set (else the YAML fixture, else built-in samples), Redis for the content
// cache and sessions when an address is set, bun sessions when requested.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	s := &storage{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
	}

	var loader memory.ContentLoader
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		loader = postgres.NewContentLoader(pool)
		logger.Info("content source", "kind", "postgres")
	case cfg.Content.Fixture != "":
		fixture, err := memory.LoadFixture(cfg.Content.Fixture)
		if err != nil {
			s.close()
			return nil, err
		}
		loader = fixture
		logger.Info("content source", "kind", "fixture", "path", cfg.Content.Fixture)
	default:
		loader = sampleContent()
		logger.Info("content source", "kind", "builtin")
	}

	contentTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		s.content = redisstore.NewContentRepository(redisClient, loader, contentTTL)
	} else {
		s.content = memory.NewContentRepository(loader, contentTTL)
	}

	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
	switch {
	case cfg.Postgres.Sessions && cfg.Postgres.URL != "":
		db := openBunDB(cfg.Postgres.URL)
		s.closers = append(s.closers, func() { _ = db.Close() })
		s.sessions = postgres.NewSessionStore(db)
		logger.Info("session store", "kind", "postgres")
	case redisClient != nil:
		s.sessions = redisstore.NewSessionStore(redisClient, sessionTTL)
		logger.Info("session store", "kind", "redis", "ttl", sessionTTL.String())
	default:
		s.sessions = memory.NewSessionStore()
		logger.Info("session store", "kind", "memory")
	}
	return s, nil
}

// sampleContent provides a minimal topic; swap this loader with the Postgres one in production.
func sampleContent() *memory.StaticContentLoader {
	return memory.NewStaticContentLoader(
		[]domain.Topic{{
			ID:          "solar-system",
			Name:        "The Solar System",
			ChapterName: "Space",
			QuestionIDs: []string{"planets-by-distance"},
		}},
		[]domain.Question{{
			ID:          "planets-by-distance",
			TopicID:     "solar-system",
			Title:       "Order the planets by distance from the Sun",
			Description: "Closest first.",
			Explanation: "Mercury orbits closest, followed by Venus, Earth and Mars.",
			Items: []domain.QuestionItem{
				{ID: "mercury", Text: "Mercury", CorrectPosition: 1},
				{ID: "venus", Text: "Venus", CorrectPosition: 2},
				{ID: "earth", Text: "Earth", CorrectPosition: 3},
				{ID: "mars", Text: "Mars", CorrectPosition: 4},
			},
		}},
	)
}
