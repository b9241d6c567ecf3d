// Package events carries quiz-completed notifications over a watermill pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ordering-quiz-service/internal/domain"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const TopicQuizCompleted = "quiz.completed"

// Bus publishes and consumes completion events in-process.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewSlogLogger(logger),
		),
		logger: logger,
	}
}

// PublishCompleted implements app.EventPublisher.
func (b *Bus) PublishCompleted(ctx context.Context, ev domain.QuizCompleted) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode quiz completed: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("session_id", ev.SessionID)
	msg.Metadata.Set("topic_id", ev.TopicID)
	msg.SetContext(ctx)
	return b.pubsub.Publish(TopicQuizCompleted, msg)
}

// Handler processes one completion event.
type Handler func(ctx context.Context, ev domain.QuizCompleted) error

// Subscription is a registered consumer of completion events.
type Subscription struct {
	messages <-chan *message.Message
	handle   Handler
	logger   *slog.Logger
}

// Subscribe registers handle before returning, so every event published after
// Subscribe reaches it even if Run has not started yet. The subscription ends
// when ctx is done.
func (b *Bus) Subscribe(ctx context.Context, handle Handler) (*Subscription, error) {
	messages, err := b.pubsub.Subscribe(ctx, TopicQuizCompleted)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicQuizCompleted, err)
	}
	return &Subscription{messages: messages, handle: handle, logger: b.logger}, nil
}

// Run delivers events until ctx is done or the bus is closed.
// Undecodable messages are acked and dropped; handler errors nack for redelivery.
func (s *Subscription) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-s.messages:
			if !ok {
				return nil
			}
			var ev domain.QuizCompleted
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				s.logger.Warn("dropping malformed event", "message_id", msg.UUID, "error", err)
				msg.Ack()
				continue
			}
			if err := s.handle(msg.Context(), ev); err != nil {
				s.logger.Warn("quiz completed handler failed", "session_id", ev.SessionID, "error", err)
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}
