package crestauth

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/crestauth/crestauth/internal/otc"
	"github.com/crestauth/crestauth/internal/rate"
	"github.com/crestauth/crestauth/internal/revoke"
	"github.com/crestauth/crestauth/jwt"
	"github.com/crestauth/crestauth/password"
)

// Builder assembles an Engine. Without a Redis client the engine keeps
// challenges, revocations, and rate counters in process memory, which is
// fine for a single node and for tests; multi-node deployments need
// WithRedis so those survive across nodes.
type Builder struct {
	config   Config
	store    EntityStore
	notifier Notifier
	redis    redis.UniversalClient
	logger   *slog.Logger
	sink     AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the entity store. Required.
func (b *Builder) WithStore(store EntityStore) *Builder {
	b.store = store
	return b
}

// WithNotifier sets the notification dispatcher. Defaults to NoOpNotifier.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithRedis backs challenges, revocations, and rate counters with Redis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events are delivered.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("entity store required")
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = NoOpNotifier{}
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	hasher, err := password.NewHasher(password.Config{
		Cost: cfg.Password.BcryptCost,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	rules := rate.Rules{
		rate.ActionLogin:        {Limit: cfg.RateLimit.Login.Limit, Window: cfg.RateLimit.Login.Window},
		rate.ActionResetRequest: {Limit: cfg.RateLimit.ResetRequest.Limit, Window: cfg.RateLimit.ResetRequest.Window},
		rate.ActionOTCVerify:    {Limit: cfg.RateLimit.OTCVerify.Limit, Window: cfg.RateLimit.OTCVerify.Window},
		rate.ActionAPIKeyCreate: {Limit: cfg.RateLimit.APIKeyCreate.Limit, Window: cfg.RateLimit.APIKeyCreate.Window},
	}

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		notifier: notifier,
		logger:   logger,
		hasher:   hasher,
		tokens:   tokens,
		audit:    newAuditDispatcher(cfg.Audit, b.sink),
		metrics:  newMetrics(cfg.Metrics),
	}

	if b.redis != nil {
		engine.challenges = otc.NewRedisStore(b.redis, "")
		engine.revocations = revoke.NewRedisRegistry(b.redis, "")
		engine.limiter = rate.NewRedisLimiter(b.redis, rules, "")
	} else {
		engine.challenges = otc.NewMemoryStore()
		engine.revocations = revoke.NewMemoryRegistry()
		engine.limiter = rate.NewMemoryLimiter(rules)
	}

	b.built = true

	return engine, nil
}
