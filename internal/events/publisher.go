package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/outlet-scraper/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	EventRunCompleted = "EXTRACTION_RUN_COMPLETED"
	source            = "outlet-scraper"
)

// StreamClient is the subset of the redis client the publisher needs.
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RunCompleted is the payload announced after a run's records are stored.
type RunCompleted struct {
	RunID       string    `json:"run_id"`
	Target      string    `json:"target"`
	Extractor   string    `json:"extractor"`
	Charset     string    `json:"charset,omitempty"`
	RecordCount int       `json:"record_count"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Publisher announces completed runs on a redis stream. It satisfies
// storage.Sink so the scraper service can hand it a capture once the capture
// is stored.
type Publisher struct {
	client StreamClient
	stream string
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(client StreamClient, stream string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "events"),
		now:    time.Now,
	}
}

// NewRedisPublisher dials redis and verifies the connection.
func NewRedisPublisher(ctx context.Context, opts *redis.Options, stream string, logger *slog.Logger) (*Publisher, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewPublisher(client, stream, logger), nil
}

func (p *Publisher) Save(ctx context.Context, c *storage.Capture) error {
	_, err := p.Publish(ctx, RunCompleted{
		RunID:       c.Run.ID,
		Target:      c.Run.Target,
		Extractor:   c.Run.Extractor,
		Charset:     c.Run.Charset,
		RecordCount: len(c.Records),
		FinishedAt:  c.Run.FinishedAt,
	})
	return err
}

// Publish adds a run-completed event to the stream and returns the stream
// entry id.
func (p *Publisher) Publish(ctx context.Context, payload RunCompleted) (string, error) {
	eventID := uuid.New()
	now := p.now()

	streamData := map[string]interface{}{
		"id":        eventID.String(),
		"type":      EventRunCompleted,
		"timestamp": now.Format(time.RFC3339),
		"payload":   payload,
		"metadata": map[string]interface{}{
			"source": source,
			"stream": p.stream,
		},
	}

	dataJSON, err := json.Marshal(streamData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(dataJSON),
			"event_type": EventRunCompleted,
			"event_id":   eventID.String(),
			"run_id":     payload.RunID,
			"timestamp":  fmt.Sprintf("%d", now.UnixNano()),
		},
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("run event published",
		"event_id", eventID,
		"run_id", payload.RunID,
		"stream", p.stream,
		"stream_id", id)

	return id, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
