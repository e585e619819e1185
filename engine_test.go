package authcore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/campuskit/authcore/password"
	"github.com/campuskit/authcore/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis failed to start: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()

	hasher, err := password.NewHasher(password.Config{Cost: 10, MinLength: 8})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return hasher
}

func newTestTokens(t *testing.T) *token.Manager {
	t.Helper()

	tm, err := token.NewManager(token.Config{
		Secret:     []byte(testSecret),
		Issuer:     "test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		VerifyTTL:  time.Hour,
		ResetTTL:   time.Hour,
	})
	if err != nil {
		t.Fatalf("token.NewManager failed: %v", err)
	}
	return tm
}

// memStore is an in-memory CredentialStore for engine tests. Tests mutate
// rows directly (under mu) to simulate the passage of time.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*Account)}
}

func (s *memStore) add(a *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.accounts[a.ID] = &copied
}

func (s *memStore) get(id string) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	copied := *a
	return &copied
}

func (s *memStore) mutate(id string, fn func(a *Account)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		fn(a)
	}
}

func (s *memStore) FindByLogin(_ context.Context, emailOrUsername string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(emailOrUsername)
	for _, a := range s.accounts {
		if a.Email == needle || a.Username == needle {
			copied := *a
			return &copied, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(email)
	for _, a := range s.accounts {
		if a.Email == needle {
			copied := *a
			return &copied, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *memStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *memStore) Insert(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == account.Email {
			return ErrDuplicateEmail
		}
	}
	for _, a := range s.accounts {
		if a.Username == account.Username {
			return ErrDuplicateUsername
		}
	}
	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

func (s *memStore) UpdateLockout(_ context.Context, id string, failedCount int, lockedUntil, lastLogin time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.FailedLoginCount = failedCount
	a.LockedUntil = lockedUntil
	if !lastLogin.IsZero() {
		a.LastLogin = lastLogin
	}
	return nil
}

func (s *memStore) UpdateVerification(_ context.Context, id string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.Verified = verified
	return nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.Status = status
	return nil
}

func (s *memStore) UpdateResetToken(_ context.Context, id, tokenHash string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.ResetTokenHash = tokenHash
	a.ResetTokenExpires = expires
	return nil
}

func (s *memStore) ClearResetToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.ResetTokenHash = ""
	a.ResetTokenExpires = time.Time{}
	return nil
}

func (s *memStore) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	ch   chan sentMail
}

type sentMail struct {
	kind      TemplateKind
	recipient string
	data      map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan sentMail, 16)}
}

func (n *recordingNotifier) Send(_ context.Context, kind TemplateKind, recipient string, data map[string]string) error {
	m := sentMail{kind: kind, recipient: recipient, data: data}
	n.mu.Lock()
	n.sent = append(n.sent, m)
	n.mu.Unlock()
	n.ch <- m
	return nil
}

// waitFor blocks until a notification of the given kind arrives. Sends run
// on detached goroutines, so assertions must wait.
func (n *recordingNotifier) waitFor(t *testing.T, kind TemplateKind) sentMail {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-n.ch:
			if m.kind == kind {
				return m
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s notification", kind)
		}
	}
}

func newTestEngine(t *testing.T, store *memStore) *Engine {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Token.Secret = []byte(testSecret)
	cfg.Password.Cost = 10
	cfg.Admission.Enabled = false

	engine := &Engine{
		config:   cfg,
		store:    store,
		notifier: NoopNotifier{},
		tokens:   newTestTokens(t),
		hasher:   newTestHasher(t),
		revoked:  NewMemoryRevocationList(cfg.Revocation.HighWater, cfg.Revocation.LowWater),
		metrics:  NewMetrics(MetricsConfig{Enabled: true}),
	}
	return engine
}

// seedAccount inserts a verified active account with the given password and
// returns it.
func seedAccount(t *testing.T, store *memStore, hasher *password.Hasher, email, pass string) *Account {
	t.Helper()

	hash, err := hasher.Hash(pass)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	a := &Account{
		ID:           "acct-" + email,
		Email:        strings.ToLower(email),
		Username:     strings.SplitN(email, "@", 2)[0],
		DisplayName:  "Test User",
		PasswordHash: hash,
		Role:         RoleTeacher,
		Verified:     true,
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	store.add(a)
	return a
}
