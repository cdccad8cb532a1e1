package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/atheer/internal/config"
)

// Enqueuer is the part of Client the HTTP layer depends on.
type Enqueuer interface {
	EnqueueSpeechGenerate(ctx context.Context, payload SpeechGeneratePayload) error
}

type Client struct {
	client  *asynq.Client
	timeout time.Duration
}

// NewClient returns a client whose speech jobs get jobTimeout as their
// deadline. Zero leaves asynq's default in place.
func NewClient(cfg config.RedisConfig, jobTimeout time.Duration) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		timeout: jobTimeout,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueSpeechGenerate never lets asynq retry: quota waits already happen
// inside the generator, and a second attempt would double them.
func (c *Client) EnqueueSpeechGenerate(ctx context.Context, payload SpeechGeneratePayload) error {
	opts := []asynq.Option{asynq.MaxRetry(0), asynq.TaskID(payload.JobID)}
	if c.timeout > 0 {
		opts = append(opts, asynq.Timeout(c.timeout))
	}
	return c.enqueue(ctx, TypeSpeechGenerate, payload, opts...)
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
