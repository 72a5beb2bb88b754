package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
	"github.com/joho/godotenv"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type componentOptions struct {
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	clock           Clock
	notifier        Notifier
	wakeSource      WakeSource
	hook            ProcessingHook
}

type Option func(*componentOptions)

func WithLogger(logger Logger) Option {
	return func(o *componentOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(o *componentOptions) {
		o.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *componentOptions) {
		o.metricsRecorder = recorder
	}
}

func WithClock(clock Clock) Option {
	return func(o *componentOptions) {
		o.clock = clock
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(o *componentOptions) {
		o.notifier = notifier
	}
}

func WithWakeSource(source WakeSource) Option {
	return func(o *componentOptions) {
		o.wakeSource = source
	}
}

func WithProcessingHook(hook ProcessingHook) Option {
	return func(o *componentOptions) {
		o.hook = hook
	}
}

func resolveOptions(name string, options []Option) componentOptions {
	resolved := componentOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(&resolved)
		}
	}
	resolved.loggerProvider, resolved.logger = glog.Resolve(name, resolved.loggerProvider, resolved.logger)
	if resolved.metricsRecorder == nil {
		resolved.metricsRecorder = NopMetricsRecorder{}
	}
	if resolved.clock == nil {
		resolved.clock = systemClock
	}
	return resolved
}

// EnvConfigLoader reads .env files (when present) then the process environment.
type EnvConfigLoader struct {
	Files  []string
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader(files ...string) *EnvConfigLoader {
	return &EnvConfigLoader{Files: files, Lookup: os.LookupEnv}
}

func (l *EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l == nil {
		return map[string]any{}, nil
	}
	files := l.Files
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			if loadErr := godotenv.Load(file); loadErr != nil {
				return nil, fmt.Errorf("core: load %s: %w", file, loadErr)
			}
		}
	}
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return envToRaw(lookup)
}

type envBinding struct {
	env     string
	section string
	key     string
	kind    string
}

var envBindings = []envBinding{
	{"SERVICE_NAME", "", "service_name", "string"},
	{"DATABASE_URL", "database", "url", "string"},
	{"DATABASE_DRIVER", "database", "driver", "string"},
	{"DATABASE_DEBUG", "database", "debug", "bool"},
	{"REDIS_URL", "redis", "url", "string"},
	{"REDIS_CHANNEL", "redis", "channel", "string"},
	{"MOCK_API_URL", "downstream", "base_url", "string"},
	{"MOCK_API_PATH", "downstream", "path", "string"},
	{"MOCK_API_ADDR", "mock_api", "addr", "string"},
	{"MOCK_API_FAILURE_RATE", "mock_api", "failure_rate", "float"},
	{"HTTP_ADDR", "http", "addr", "string"},
	{"LOG_LEVEL", "log", "level", "string"},
	{"LOG_FORMAT", "log", "format", "string"},
	{"CACHE_TTL", "cache", "ttl", "duration"},
	{"MAX_RETRY_ATTEMPTS", "processing", "max_attempts", "int"},
	{"INITIAL_RETRY_DELAY", "processing", "initial_delay", "duration"},
	{"MAX_RETRY_DELAY", "processing", "max_delay", "duration"},
	{"POLL_INTERVAL", "processing", "poll_interval", "duration"},
	{"BATCH_SIZE", "processing", "batch_size", "int"},
	{"EXECUTION_TIMEOUT", "processing", "execution_timeout", "duration"},
	{"LEASE_TIMEOUT", "processing", "lease_timeout", "duration"},
	{"WATCHDOG_INTERVAL", "processing", "watchdog_interval", "duration"},
}

func envToRaw(lookup func(string) (string, bool)) (map[string]any, error) {
	raw := map[string]any{}
	for _, binding := range envBindings {
		value, ok := lookup(binding.env)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := parseEnvValue(binding.kind, strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("core: env %s: %w", binding.env, err)
		}
		if binding.section == "" {
			raw[binding.key] = parsed
			continue
		}
		section, _ := raw[binding.section].(map[string]any)
		if section == nil {
			section = map[string]any{}
			raw[binding.section] = section
		}
		section[binding.key] = parsed
	}
	return raw, nil
}

func parseEnvValue(kind string, value string) (any, error) {
	switch kind {
	case "int":
		return strconv.Atoi(value)
	case "float":
		return strconv.ParseFloat(value, 64)
	case "bool":
		return strconv.ParseBool(value)
	case "duration":
		return parseDuration(value)
	default:
		return value, nil
	}
}

// parseDuration accepts Go duration strings and bare seconds.
func parseDuration(value string) (time.Duration, error) {
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	return time.ParseDuration(value)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// LoadConfig resolves defaults, the provider's view, and runtime overrides.
func LoadConfig(ctx context.Context, provider ConfigProvider, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(NewEnvConfigLoader())
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = value
		}
	}
	setInt := func(target map[string]any, key string, value int) {
		if includeZero || value != 0 {
			target[key] = value
		}
	}
	setDuration := func(target map[string]any, key string, value time.Duration) {
		if includeZero || value != 0 {
			target[key] = value
		}
	}
	section := func(name string, values map[string]any) {
		if len(values) > 0 {
			layer[name] = values
		}
	}

	setString(layer, "service_name", cfg.ServiceName)

	processing := map[string]any{}
	setInt(processing, "max_attempts", cfg.Processing.MaxAttempts)
	setDuration(processing, "initial_delay", cfg.Processing.InitialDelay)
	setDuration(processing, "max_delay", cfg.Processing.MaxDelay)
	setDuration(processing, "poll_interval", cfg.Processing.PollInterval)
	setInt(processing, "batch_size", cfg.Processing.BatchSize)
	setDuration(processing, "execution_timeout", cfg.Processing.ExecutionTimeout)
	setDuration(processing, "lease_timeout", cfg.Processing.LeaseTimeout)
	setDuration(processing, "watchdog_interval", cfg.Processing.WatchdogInterval)
	section("processing", processing)

	database := map[string]any{}
	setString(database, "driver", cfg.Database.Driver)
	setString(database, "url", cfg.Database.URL)
	if includeZero || cfg.Database.Debug {
		database["debug"] = cfg.Database.Debug
	}
	setDuration(database, "ping_timeout", cfg.Database.PingTimeout)
	section("database", database)

	redis := map[string]any{}
	setString(redis, "url", cfg.Redis.URL)
	setString(redis, "channel", cfg.Redis.Channel)
	section("redis", redis)

	downstream := map[string]any{}
	setString(downstream, "base_url", cfg.Downstream.BaseURL)
	setString(downstream, "path", cfg.Downstream.Path)
	section("downstream", downstream)

	mock := map[string]any{}
	setString(mock, "addr", cfg.MockAPI.Addr)
	if includeZero || cfg.MockAPI.FailureRate != 0 {
		mock["failure_rate"] = cfg.MockAPI.FailureRate
	}
	section("mock_api", mock)

	httpSection := map[string]any{}
	setString(httpSection, "addr", cfg.HTTP.Addr)
	section("http", httpSection)

	logSection := map[string]any{}
	setString(logSection, "level", cfg.Log.Level)
	setString(logSection, "format", cfg.Log.Format)
	section("log", logSection)

	cache := map[string]any{}
	setDuration(cache, "ttl", cfg.Cache.TTL)
	section("cache", cache)

	return layer
}
