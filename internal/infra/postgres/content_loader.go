package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ordering-quiz-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ContentLoader loads topics and question JSONB from Postgres.
type ContentLoader struct {
	pool *pgxpool.Pool
}

func NewContentLoader(pool *pgxpool.Pool) *ContentLoader {
	return &ContentLoader{pool: pool}
}

func (l *ContentLoader) LoadTopic(ctx context.Context, topicID string) (domain.Topic, error) {
	topic := domain.Topic{ID: topicID}
	err := l.pool.QueryRow(ctx, `SELECT name, chapter_name FROM topics WHERE id=$1`, topicID).
		Scan(&topic.Name, &topic.ChapterName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Topic{}, domain.ErrTopicNotFound
		}
		return domain.Topic{}, fmt.Errorf("load topic: %w", err)
	}

	rows, err := l.pool.Query(ctx, `SELECT id FROM questions WHERE topic_id=$1 ORDER BY position, id`, topicID)
	if err != nil {
		return domain.Topic{}, fmt.Errorf("load topic questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.Topic{}, fmt.Errorf("scan question id: %w", err)
		}
		topic.QuestionIDs = append(topic.QuestionIDs, id)
	}
	if err := rows.Err(); err != nil {
		return domain.Topic{}, fmt.Errorf("load topic questions: %w", err)
	}
	return topic, nil
}

func (l *ContentLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, questionID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Question{}, domain.ErrQuestionNotFound
		}
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	var question domain.Question
	if err := json.Unmarshal(raw, &question); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	question.ID = questionID
	return question, nil
}

// SeedContent upserts topics and questions in one transaction. Question
// positions follow each topic's question_ids order.
func SeedContent(ctx context.Context, pool *pgxpool.Pool, topics []domain.Topic, questions []domain.Question) error {
	position := make(map[string]int, len(questions))
	for _, t := range topics {
		for i, id := range t.QuestionIDs {
			position[id] = i + 1
		}
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, t := range topics {
		batch.Queue(`INSERT INTO topics (id, name, chapter_name) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, chapter_name=EXCLUDED.chapter_name`,
			t.ID, t.Name, t.ChapterName)
	}
	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal question %s: %w", q.ID, err)
		}
		batch.Queue(`INSERT INTO questions (id, topic_id, position, data) VALUES ($1, $2, $3, $4::jsonb)
			ON CONFLICT (id) DO UPDATE SET topic_id=EXCLUDED.topic_id, position=EXCLUDED.position, data=EXCLUDED.data`,
			q.ID, q.TopicID, position[q.ID], string(data))
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("seed content: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("seed content: %w", err)
	}
	return tx.Commit(ctx)
}
