package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:generate mockgen -package=mock -source=redis.go -destination=mock/redis_client.go

// RedisClient is the subset of *redis.Client the backend uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

var _ RedisClient = (*redis.Client)(nil)

// changeMessage is published on the change channel after every write.
type changeMessage struct {
	Key    string `json:"key"`
	Writer string `json:"writer"`
}

// Redis is a Backend over a Redis server. Writes are announced on the
// "<namespace>:changes" channel.
type Redis struct {
	client  RedisClient
	channel string
	writer  string
	logger  *zap.Logger

	notifier notifier

	mu      sync.Mutex
	pubsub  *redis.PubSub
	closed  bool
	stopped chan struct{}
}

var _ Backend = (*Redis)(nil)

// NewRedisClient connects to rawURL, for example "redis://:pw@localhost:6379/0".
func NewRedisClient(ctx context.Context, rawURL string, logger *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	if logger != nil {
		logger.Info("connected to redis", zap.String("address", opts.Addr), zap.Int("db", opts.DB))
	}
	return client, nil
}

// NewRedis wraps client. namespace selects the change channel.
func NewRedis(client RedisClient, namespace string, logger *zap.Logger) *Redis {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		ns = defaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client:  client,
		channel: ns + ":changes",
		writer:  uuid.NewString(),
		logger:  logger,
	}
}

// Name implements Backend.
func (r *Redis) Name() string { return "redis" }

// Writer identifies this context.
func (r *Redis) Writer() string { return r.writer }

// Channel is the pub/sub channel used for change events.
func (r *Redis) Channel() string { return r.channel }

// Get implements Backend.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set implements Backend.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	r.announce(ctx, key)
	return nil
}

// Delete implements Backend.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	r.announce(ctx, key)
	return nil
}

// announce is best effort: the value is already written.
func (r *Redis) announce(ctx context.Context, key string) {
	payload, err := json.Marshal(changeMessage{Key: key, Writer: r.writer})
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("publish change", zap.String("key", key), zap.Error(err))
	}
}

// Subscribe implements Backend. The pub/sub connection opens with the first
// subscriber.
func (r *Redis) Subscribe(fn func(key string)) func() {
	cancel := r.notifier.subscribe(fn)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub == nil && !r.closed {
		r.pubsub = r.client.Subscribe(context.Background(), r.channel)
		r.stopped = make(chan struct{})
		go r.listen(r.pubsub.Channel(), r.stopped)
	}
	return cancel
}

func (r *Redis) listen(ch <-chan *redis.Message, stopped chan<- struct{}) {
	defer close(stopped)
	for msg := range ch {
		r.handleMessage(msg.Payload)
	}
}

// handleMessage publishes a change received from the channel unless this
// context wrote it.
func (r *Redis) handleMessage(payload string) {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Debug("ignore malformed change message", zap.Error(err))
		return
	}
	if msg.Key == "" || msg.Writer == r.writer {
		return
	}
	r.notifier.publish(msg.Key)
}

// Close closes the subscription and the client.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pubsub, stopped := r.pubsub, r.stopped
	r.mu.Unlock()

	if pubsub != nil {
		_ = pubsub.Close()
		<-stopped
	}
	r.notifier.close()
	return r.client.Close()
}
