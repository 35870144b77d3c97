package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"gdroom/internal/core/domain"
	"gdroom/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisChannel implements the signal channel over redis pub/sub, one channel
// per room+recipient. Pub/sub is ephemeral: messages published with no
// subscriber are dropped and nothing is ever stored, which matches the
// best-effort channel contract. Redis preserves publish order per publishing
// connection, giving FIFO per sender-recipient edge.
type RedisChannel struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

type RedisOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

func NewRedisChannel(opts RedisOptions, logger *zap.SugaredLogger) (*RedisChannel, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisChannel{client: client, logger: logger}, nil
}

func topic(room domain.RoomCode, id string) string {
	return fmt.Sprintf("gdroom:signal:%s:%s", room, id)
}

func (c *RedisChannel) Send(ctx context.Context, room domain.RoomCode, to string, msg domain.SignalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal signal message: %w", err)
	}
	return c.client.Publish(ctx, topic(room, to), data).Err()
}

func (c *RedisChannel) Subscribe(room domain.RoomCode, selfID string, handler ports.SignalHandler) (func(), error) {
	sub := c.client.Subscribe(context.Background(), topic(room, selfID))

	// Wait for the subscription to be confirmed so the caller does not miss
	// messages sent immediately after Subscribe returns.
	if _, err := sub.Receive(context.Background()); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		for raw := range sub.Channel() {
			var msg domain.SignalMessage
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				c.logger.Warnw("dropping malformed signal message",
					"room", room, "recipient", selfID, "error", err)
				continue
			}
			handler(msg)
		}
	}()

	unsubscribe := func() {
		if err := sub.Close(); err != nil {
			c.logger.Warnw("failed to close subscription",
				"room", room, "recipient", selfID, "error", err)
		}
	}
	return unsubscribe, nil
}

func (c *RedisChannel) Close() error {
	return c.client.Close()
}
