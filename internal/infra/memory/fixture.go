package memory

import (
	"context"
	"fmt"
	"os"

	"ordering-quiz-service/internal/domain"

	"gopkg.in/yaml.v3"
)

// StaticContentLoader is a loader backed by in-memory maps (useful for tests/demos).
type StaticContentLoader struct {
	topics    map[string]domain.Topic
	questions map[string]domain.Question
}

func NewStaticContentLoader(topics []domain.Topic, questions []domain.Question) *StaticContentLoader {
	l := &StaticContentLoader{
		topics:    make(map[string]domain.Topic, len(topics)),
		questions: make(map[string]domain.Question, len(questions)),
	}
	for _, t := range topics {
		l.topics[t.ID] = t
	}
	for _, q := range questions {
		l.questions[q.ID] = q
	}
	return l
}

func (l *StaticContentLoader) LoadTopic(_ context.Context, topicID string) (domain.Topic, error) {
	if t, ok := l.topics[topicID]; ok {
		return t, nil
	}
	return domain.Topic{}, domain.ErrTopicNotFound
}

func (l *StaticContentLoader) LoadQuestion(_ context.Context, questionID string) (domain.Question, error) {
	if q, ok := l.questions[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

// Fixture is the on-disk layout of seeded content.
type Fixture struct {
	Topics    []domain.Topic    `yaml:"topics"`
	Questions []domain.Question `yaml:"questions"`
}

// ReadFixture parses a YAML content fixture. Topics without explicit
// question_ids get their questions in file order.
func ReadFixture(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	for i := range f.Topics {
		if len(f.Topics[i].QuestionIDs) > 0 {
			continue
		}
		for _, q := range f.Questions {
			if q.TopicID == f.Topics[i].ID {
				f.Topics[i].QuestionIDs = append(f.Topics[i].QuestionIDs, q.ID)
			}
		}
	}
	return f, nil
}

// LoadFixture reads a YAML content fixture into a static loader.
func LoadFixture(path string) (*StaticContentLoader, error) {
	f, err := ReadFixture(path)
	if err != nil {
		return nil, err
	}
	return NewStaticContentLoader(f.Topics, f.Questions), nil
}
