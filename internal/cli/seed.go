package cli

import (
	"context"
	"fmt"
	"os"

	"ordering-quiz-service/internal/config"
	"ordering-quiz-service/internal/infra/memory"
	"ordering-quiz-service/internal/infra/postgres"
	redisstore "ordering-quiz-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads a YAML content fixture into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var fixture string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert topics and questions from a YAML fixture into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, fixture)
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "content fixture (defaults to content.fixture from config)")
	return cmd
}

func runSeed(ctx context.Context, configPath, fixture string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if fixture == "" {
		fixture = cfg.Content.Fixture
	}
	if fixture == "" {
		return fmt.Errorf("no fixture given")
	}
	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}

	content, err := memory.ReadFixture(fixture)
	if err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.SeedContent(ctx, pool, content.Topics, content.Questions); err != nil {
		return err
	}
	logger.Info("content seeded", "fixture", fixture, "topics", len(content.Topics), "questions", len(content.Questions))

	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()
	if err := invalidateSeeded(ctx, redisstore.NewContentRepository(client, nil, 0), content); err != nil {
		logger.Warn("content cache not invalidated", "error", err)
	}
	return nil
}

type contentInvalidator interface {
	Invalidate(ctx context.Context, topicID string, questionIDs ...string) error
}

// invalidateSeeded drops every cached topic and question the fixture touched.
func invalidateSeeded(ctx context.Context, cache contentInvalidator, content memory.Fixture) error {
	for _, topic := range content.Topics {
		if err := cache.Invalidate(ctx, topic.ID, topic.QuestionIDs...); err != nil {
			return fmt.Errorf("invalidate topic %s: %w", topic.ID, err)
		}
	}
	return nil
}
