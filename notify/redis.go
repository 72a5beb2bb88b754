// Package notify carries wake-up nudges between the ingestion API and workers
// over Redis pub/sub. A nudge names the accepted event for logging only; the
// processing ledger stays the source of truth and a lost message delays work
// by at most one poll interval.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-webhook-spine/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "webhook-spine.events"

type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type Option func(*settings)

type settings struct {
	channel string
	logger  core.Logger
}

func WithChannel(channel string) Option {
	return func(s *settings) {
		if trimmed := strings.TrimSpace(channel); trimmed != "" {
			s.channel = trimmed
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func resolve(options []Option) settings {
	out := settings{channel: DefaultChannel, logger: glog.Nop()}
	for _, option := range options {
		if option != nil {
			option(&out)
		}
	}
	return out
}

// NewClient parses a redis:// URL into a go-redis client.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("notify: parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

type RedisNotifier struct {
	publisher Publisher
	channel   string
}

func NewRedisNotifier(publisher Publisher, options ...Option) (*RedisNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("notify: redis publisher is required")
	}
	resolved := resolve(options)
	return &RedisNotifier{publisher: publisher, channel: resolved.channel}, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, eventID string) error {
	if err := n.publisher.Publish(ctx, n.channel, eventID).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", n.channel, err)
	}
	return nil
}

// RedisWakeSource turns channel messages into coalesced wake-ups.
type RedisWakeSource struct {
	subscriber Subscriber
	channel    string
	logger     core.Logger
}

func NewRedisWakeSource(subscriber Subscriber, options ...Option) (*RedisWakeSource, error) {
	if subscriber == nil {
		return nil, fmt.Errorf("notify: redis subscriber is required")
	}
	resolved := resolve(options)
	return &RedisWakeSource{
		subscriber: subscriber,
		channel:    resolved.channel,
		logger:     resolved.logger,
	}, nil
}

// Wakeups subscribes and confirms the subscription before returning. The
// subscription closes when ctx is done.
func (s *RedisWakeSource) Wakeups(ctx context.Context) (<-chan struct{}, error) {
	pubsub := s.subscriber.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("notify: subscribe %s: %w", s.channel, err)
	}
	out := make(chan struct{}, 1)
	go func() {
		defer pubsub.Close()
		forward(ctx, pubsub.Channel(), out, s.logger)
	}()
	return out, nil
}

func forward(ctx context.Context, messages <-chan *redis.Message, out chan<- struct{}, logger core.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg != nil {
				logger.WithContext(ctx).Debug("wake nudge received", "event_id", msg.Payload)
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}
}

var (
	_ core.Notifier   = (*RedisNotifier)(nil)
	_ core.WakeSource = (*RedisWakeSource)(nil)
	_ Publisher       = (*redis.Client)(nil)
	_ Subscriber      = (*redis.Client)(nil)
)
