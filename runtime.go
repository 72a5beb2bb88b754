package spine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-webhook-spine/core"
	"github.com/goliatone/go-webhook-spine/notify"
	sqlstore "github.com/goliatone/go-webhook-spine/store/sql"
	"github.com/goliatone/go-webhook-spine/transport"
	"github.com/redis/go-redis/v9"
)

type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	client   *persistence.Client
	redis    *redis.Client
	executor core.Executor
	hook     core.ProcessingHook
	core     []core.Option
}

// WithPersistenceClient reuses an open client. The runtime does not close it.
func WithPersistenceClient(client *persistence.Client) RuntimeOption {
	return func(o *runtimeOptions) { o.client = client }
}

// WithRedisClient reuses a go-redis client for wake nudges. The runtime does
// not close it.
func WithRedisClient(client *redis.Client) RuntimeOption {
	return func(o *runtimeOptions) { o.redis = client }
}

func WithExecutor(executor core.Executor) RuntimeOption {
	return func(o *runtimeOptions) { o.executor = executor }
}

func WithAttemptHook(hook core.ProcessingHook) RuntimeOption {
	return func(o *runtimeOptions) { o.hook = hook }
}

// WithComponentOptions applies logger, metrics and clock options to every
// component.
func WithComponentOptions(options ...core.Option) RuntimeOption {
	return func(o *runtimeOptions) { o.core = append(o.core, options...) }
}

// Runtime is the assembled system: stores, gate, processor, scheduler,
// watchdog and the handler facade.
type Runtime struct {
	Config    Config
	Client    *persistence.Client
	Stores    *sqlstore.RepositoryFactory
	Gate      *Gate
	Processor *Processor
	Scheduler *Scheduler
	Watchdog  *Watchdog
	Facade    *Facade

	closers []func() error
}

func NewRuntime(ctx context.Context, cfg Config, options ...RuntimeOption) (_ *Runtime, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolved := runtimeOptions{}
	for _, option := range options {
		if option != nil {
			option(&resolved)
		}
	}

	rt := &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	client := resolved.client
	if client == nil {
		client, err = sqlstore.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, client.Close)
	}
	rt.Client = client
	if err = sqlstore.Migrate(ctx, client, cfg.Database.Driver, GetMigrationsFS()); err != nil {
		return nil, fmt.Errorf("spine: migrate: %w", err)
	}
	rt.Stores, err = sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return nil, err
	}

	cacheService, err := sqlstore.NewEventCacheService(cfg.Cache)
	if err != nil {
		return nil, err
	}
	events, err := sqlstore.NewCachedEventReader(rt.Stores.EventStore(), cacheService)
	if err != nil {
		return nil, err
	}

	notifier, wake, err := rt.wakeChannel(cfg.Redis, resolved)
	if err != nil {
		return nil, err
	}

	executor := resolved.executor
	if executor == nil {
		executor, err = transport.NewDownstreamExecutor(cfg.Downstream,
			transport.WithRequestTimeout(cfg.Processing.ExecutionTimeout))
		if err != nil {
			return nil, err
		}
	}

	base := resolved.core
	rt.Gate, err = core.NewGate(rt.Stores.Events(), rt.Stores.Audit(), with(base, core.WithNotifier(notifier))...)
	if err != nil {
		return nil, err
	}
	processorOptions := base
	if resolved.hook != nil {
		processorOptions = with(base, core.WithProcessingHook(resolved.hook))
	}
	rt.Processor, err = core.NewProcessor(rt.Stores.Events(), rt.Stores.Ledger(), rt.Stores.Audit(),
		executor, cfg.Processing, processorOptions...)
	if err != nil {
		return nil, err
	}
	rt.Scheduler, err = core.NewScheduler(rt.Processor, rt.Processor, cfg.Processing, with(base, core.WithWakeSource(wake))...)
	if err != nil {
		return nil, err
	}
	rt.Watchdog, err = core.NewWatchdog(rt.Stores.Ledger(), rt.Stores.Audit(), cfg.Processing, base...)
	if err != nil {
		return nil, err
	}
	rt.Facade, err = NewFacade(rt.Gate, rt.Processor, rt.Watchdog, Readers{
		Events: events,
		Ledger: rt.Stores.LedgerStore(),
		Audit:  rt.Stores.AuditStore(),
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// wakeChannel uses Redis pub/sub when a client or URL is configured and an
// in-process waker otherwise.
func (rt *Runtime) wakeChannel(cfg core.RedisConfig, resolved runtimeOptions) (core.Notifier, core.WakeSource, error) {
	client := resolved.redis
	if client == nil && strings.TrimSpace(cfg.URL) != "" {
		var err error
		client, err = notify.NewClient(cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, client.Close)
	}
	if client == nil {
		waker := core.NewLocalWaker()
		return waker, waker, nil
	}
	notifier, err := notify.NewRedisNotifier(client, notify.WithChannel(cfg.Channel))
	if err != nil {
		return nil, nil, err
	}
	wake, err := notify.NewRedisWakeSource(client, notify.WithChannel(cfg.Channel))
	if err != nil {
		return nil, nil, err
	}
	return notifier, wake, nil
}

// Close releases what the runtime opened itself, newest first.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func with(base []core.Option, extra ...core.Option) []core.Option {
	out := make([]core.Option, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
