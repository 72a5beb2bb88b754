package notify

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/redis/go-redis/v9"
)

type recordingPublisher struct {
	channel string
	message any
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	p.channel = channel
	p.message = message
	cmd := redis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisNotifier_PublishesEventID(t *testing.T) {
	publisher := &recordingPublisher{}
	notifier, err := NewRedisNotifier(publisher, WithChannel("spine.test"))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if err := notifier.Notify(context.Background(), "E1"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if publisher.channel != "spine.test" || publisher.message != "E1" {
		t.Fatalf("unexpected publish %q %v", publisher.channel, publisher.message)
	}
}

func TestRedisNotifier_PropagatesPublishError(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("connection refused")}
	notifier, err := NewRedisNotifier(publisher)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if err := notifier.Notify(context.Background(), "E1"); err == nil {
		t.Fatalf("expected publish error")
	}
	if publisher.channel != DefaultChannel {
		t.Fatalf("expected default channel, got %q", publisher.channel)
	}
}

func TestForward_CoalescesNudges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	messages := make(chan *redis.Message, 3)
	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		forward(ctx, messages, out, glog.Nop())
		close(done)
	}()

	for _, id := range []string{"E1", "E2", "E3"} {
		messages <- &redis.Message{Channel: DefaultChannel, Payload: id}
	}
	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatalf("expected a wake-up")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("forward blocked on a full wake-up buffer")
	}
}

func TestForward_StopsWhenMessagesClose(t *testing.T) {
	messages := make(chan *redis.Message)
	close(messages)
	done := make(chan struct{})
	go func() {
		forward(context.Background(), messages, make(chan struct{}, 1), glog.Nop())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("forward did not stop on closed channel")
	}
}

func TestConstructors_RequireClients(t *testing.T) {
	if _, err := NewRedisNotifier(nil); err == nil {
		t.Fatalf("expected publisher error")
	}
	if _, err := NewRedisWakeSource(nil); err == nil {
		t.Fatalf("expected subscriber error")
	}
	if _, err := NewClient("not a url"); err == nil {
		t.Fatalf("expected url parse error")
	}
}

// TestRedisRoundTrip runs against a live server when SPINE_TEST_REDIS_URL is set.
func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("SPINE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SPINE_TEST_REDIS_URL not set")
	}
	client, err := NewClient(url)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	channel := "spine.test." + time.Now().Format("150405.000000")
	source, err := NewRedisWakeSource(client, WithChannel(channel))
	if err != nil {
		t.Fatalf("wake source: %v", err)
	}
	wakeups, err := source.Wakeups(ctx)
	if err != nil {
		t.Fatalf("wakeups: %v", err)
	}
	notifier, err := NewRedisNotifier(client, WithChannel(channel))
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	if err := notifier.Notify(ctx, "E1"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	select {
	case <-wakeups:
	case <-ctx.Done():
		t.Fatalf("no wake-up received")
	}
}
