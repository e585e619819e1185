package authcore

import "sync/atomic"

// MetricID identifies one of the Engine's in-process counters.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricRegisterRejected
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginLocked
	MetricLogout
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricTokenRevoked
	MetricRevocationEvicted
	MetricEmailVerified
	MetricVerificationResent
	MetricResetRequested
	MetricResetCompleted
	MetricResetFailure
	MetricAccountLocked
	MetricAccountUnlocked
	MetricStatusChanged
	MetricAdmissionRejected
	metricIDCount
)

const cacheLineSize = 64

// paddedCounter keeps each counter on its own cache line so that unrelated
// hot counters do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. All methods are safe for
// concurrent use; a nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters at one point in time. The copy is not
// atomic across counters.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	if m == nil || !m.enabled {
		return map[MetricID]uint64{}
	}
	s := make(map[MetricID]uint64, int(metricIDCount))
	for id := MetricID(0); id < metricIDCount; id++ {
		s[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}

// Name returns a stable snake_case identifier for exporters.
func (id MetricID) Name() string {
	switch id {
	case MetricRegisterSuccess:
		return "register_success"
	case MetricRegisterDuplicate:
		return "register_duplicate"
	case MetricRegisterRejected:
		return "register_rejected"
	case MetricLoginSuccess:
		return "login_success"
	case MetricLoginFailure:
		return "login_failure"
	case MetricLoginLocked:
		return "login_locked"
	case MetricLogout:
		return "logout"
	case MetricRefreshSuccess:
		return "refresh_success"
	case MetricRefreshFailure:
		return "refresh_failure"
	case MetricTokenRevoked:
		return "token_revoked"
	case MetricRevocationEvicted:
		return "revocation_evicted"
	case MetricEmailVerified:
		return "email_verified"
	case MetricVerificationResent:
		return "verification_resent"
	case MetricResetRequested:
		return "reset_requested"
	case MetricResetCompleted:
		return "reset_completed"
	case MetricResetFailure:
		return "reset_failure"
	case MetricAccountLocked:
		return "account_locked"
	case MetricAccountUnlocked:
		return "account_unlocked"
	case MetricStatusChanged:
		return "status_changed"
	case MetricAdmissionRejected:
		return "admission_rejected"
	default:
		return "unknown"
	}
}
