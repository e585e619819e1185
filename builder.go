package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/campuskit/authcore/internal/admission"
	"github.com/campuskit/authcore/password"
	"github.com/campuskit/authcore/token"
)

// Builder assembles an [Engine]. A credential store is required; redis is
// required only when admission control is enabled. Each builder builds at
// most one engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     CredentialStore
	notifier  Notifier
	auditSink AuditSink
	revoked   RevocationList

	built bool
}

// New returns a Builder preloaded with [DefaultConfig]. The token secret
// still has to be supplied via [Builder.WithConfig] or
// [Builder.WithSecret].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithSecret sets only the token signing key, keeping the rest of the
// current configuration.
func (b *Builder) WithSecret(secret []byte) *Builder {
	b.config.Token.Secret = secret
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRevocationList overrides the default in-memory list, typically with
// a [RedisRevocationList] when logout must be shared across instances.
func (b *Builder) WithRevocationList(list RevocationList) *Builder {
	b.revoked = list
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine. The builder is
// single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.config.Admission.Enabled && b.redis == nil {
		return nil, errors.New("admission control requires redis client")
	}

	tokens, err := token.NewManager(token.Config{
		Secret:     b.config.Token.Secret,
		Issuer:     b.config.Token.Issuer,
		AccessTTL:  b.config.Token.AccessTTL,
		RefreshTTL: b.config.Token.RefreshTTL,
		VerifyTTL:  b.config.Token.VerifyTTL,
		ResetTTL:   b.config.Token.ResetTTL,
		Leeway:     b.config.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Cost:      b.config.Password.Cost,
		MinLength: b.config.Password.MinLength,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   b.config,
		store:    b.store,
		tokens:   tokens,
		hasher:   hasher,
		notifier: b.notifier,
	}
	if engine.notifier == nil {
		engine.notifier = NoopNotifier{}
	}

	if b.config.Admission.Enabled {
		engine.admission = admission.New(b.redis, admission.Config{
			KeyPrefix: b.config.Admission.KeyPrefix,
			Windows: map[admission.Route]admission.Window{
				admission.RouteLogin:              {Max: b.config.Admission.Login.Max, Per: b.config.Admission.Login.Per},
				admission.RouteRegister:           {Max: b.config.Admission.Register.Max, Per: b.config.Admission.Register.Per},
				admission.RoutePasswordReset:      {Max: b.config.Admission.PasswordReset.Max, Per: b.config.Admission.PasswordReset.Per},
				admission.RouteVerificationResend: {Max: b.config.Admission.VerificationResend.Max, Per: b.config.Admission.VerificationResend.Per},
				admission.RouteRefresh:            {Max: b.config.Admission.Refresh.Max, Per: b.config.Admission.Refresh.Per},
			},
		})
	}

	engine.metrics = NewMetrics(b.config.Metrics)

	engine.revoked = b.revoked
	if engine.revoked == nil {
		mem := NewMemoryRevocationList(b.config.Revocation.HighWater, b.config.Revocation.LowWater)
		mem.SetEvictionHook(func(n int) {
			engine.metrics.Add(MetricRevocationEvicted, uint64(n))
		})
		engine.revoked = mem
	}

	if b.config.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = NoOpSink{}
		}
		engine.audit = newAuditDispatcher(sink, b.config.Audit.BufferSize, b.config.Audit.DropIfFull)
	}

	b.built = true
	return engine, nil
}
