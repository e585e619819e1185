package authcore

import (
	"errors"
	"time"
)

// Config holds all Engine tuning parameters. Use [DefaultConfig] as a base;
// zero values fail [Config.Validate].
type Config struct {
	Token      TokenConfig
	Password   PasswordConfig
	Lockout    LockoutConfig
	Revocation RevocationConfig
	Admission  AdmissionConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// TokenConfig configures the signed-token codec. Secret must be at least
// 32 bytes; all four kinds are signed with the same key.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
	ResetTTL   time.Duration
	Leeway     time.Duration
}

// PasswordConfig configures hashing cost and the strength policy applied at
// registration and password reset.
type PasswordConfig struct {
	Cost      int // bcrypt cost factor
	MinLength int
}

// LockoutConfig configures account-level brute-force lockout. After
// Threshold consecutive failures the account is locked for Duration;
// the lock clears lazily once the window elapses.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// RevocationConfig bounds the in-memory revoked-token cache. When an
// insertion pushes the set past HighWater it is truncated to the most
// recent LowWater entries, so an evicted token is no longer treated as
// revoked. Use [RedisRevocationList] when that is unacceptable.
type RevocationConfig struct {
	HighWater int
	LowWater  int
}

// WindowConfig is one fixed-window admission pair: at most Max requests
// per Per.
type WindowConfig struct {
	Max int
	Per time.Duration
}

// AdmissionConfig configures the per-route, per-identity request throttle
// that runs before any business logic. It is an IP/identifier-level defense
// independent of account-level lockout.
type AdmissionConfig struct {
	Enabled            bool
	KeyPrefix          string
	Login              WindowConfig
	Register           WindowConfig
	PasswordReset      WindowConfig
	VerificationResend WindowConfig
	Refresh            WindowConfig
}

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the production defaults: bcrypt cost 12, 5-failure
// lockout for 2h, 15m access tokens, 1h reset tokens, and the standard
// admission windows for each auth endpoint.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:     "campuskit-auth",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			VerifyTTL:  24 * time.Hour,
			ResetTTL:   time.Hour,
			Leeway:     30 * time.Second,
		},
		Password: PasswordConfig{
			Cost:      12,
			MinLength: 8,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  2 * time.Hour,
		},
		Revocation: RevocationConfig{
			HighWater: 10000,
			LowWater:  5000,
		},
		Admission: AdmissionConfig{
			Enabled:            true,
			KeyPrefix:          "adm",
			Login:              WindowConfig{Max: 5, Per: 15 * time.Minute},
			Register:           WindowConfig{Max: 3, Per: time.Hour},
			PasswordReset:      WindowConfig{Max: 3, Per: time.Hour},
			VerificationResend: WindowConfig{Max: 5, Per: time.Hour},
			Refresh:            WindowConfig{Max: 10, Per: time.Minute},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks internal consistency. It is called by [Builder.Build].
func (c Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("token secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 || c.Token.VerifyTTL <= 0 || c.Token.ResetTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("invalid leeway configuration")
	}
	if c.Password.Cost < 10 || c.Password.Cost > 16 {
		return errors.New("bcrypt cost must be between 10 and 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("password minimum length must be at least 8")
	}
	if c.Lockout.Threshold < 1 {
		return errors.New("lockout threshold must be at least 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.Revocation.HighWater < 1 || c.Revocation.LowWater < 1 {
		return errors.New("revocation water marks must be positive")
	}
	if c.Revocation.LowWater >= c.Revocation.HighWater {
		return errors.New("revocation low-water mark must be below high-water mark")
	}
	if c.Admission.Enabled {
		for _, w := range []WindowConfig{
			c.Admission.Login,
			c.Admission.Register,
			c.Admission.PasswordReset,
			c.Admission.VerificationResend,
			c.Admission.Refresh,
		} {
			if w.Max < 1 || w.Per <= 0 {
				return errors.New("admission windows must have positive max and duration")
			}
		}
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 1 {
		return errors.New("audit buffer size must be at least 1")
	}
	return nil
}
