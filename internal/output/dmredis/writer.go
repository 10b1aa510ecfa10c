package dmredis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"guardpost/internal/logger"
	"guardpost/pkg/models"
)

// Config configures the Redis DM writer.
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	Timeout  time.Duration
}

// Writer pushes direct message requests onto a Redis list consumed by the
// platform gateway.
type Writer struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewWriter creates a Redis DM writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	logger.Infof("DM Redis writer initialized: %s key=%s", cfg.Addr, cfg.Key)
	return &Writer{client: client, key: cfg.Key, timeout: cfg.Timeout}, nil
}

// WriteDM pushes one direct message request.
func (w *Writer) WriteDM(dm *models.DirectMessageRequest) error {
	body, err := json.Marshal(dm)
	if err != nil {
		return fmt.Errorf("failed to encode dm: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.client.RPush(ctx, w.key, body).Err(); err != nil {
		return fmt.Errorf("failed to push dm: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
