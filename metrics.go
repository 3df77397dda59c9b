package crestauth

import "sync/atomic"

// Metrics counts engine activity with plain atomics. A nil or disabled
// *Metrics is a valid instance; every method no-ops.
type Metrics struct {
	enabled           bool
	loginSuccess      atomic.Uint64
	loginFailure      atomic.Uint64
	lockouts          atomic.Uint64
	otcIssued         atomic.Uint64
	otcVerified       atomic.Uint64
	refreshRotations  atomic.Uint64
	refreshReuse      atomic.Uint64
	tokenVerified     atomic.Uint64
	tokenRejected     atomic.Uint64
	apiKeysCreated    atomic.Uint64
	apiKeysRevoked    atomic.Uint64
	resetRequests     atomic.Uint64
	resetConfirms     atomic.Uint64
	ssoLogins         atomic.Uint64
	rateLimited       atomic.Uint64
	storeFailures     atomic.Uint64
	notifyFailures    atomic.Uint64
	registrations     atomic.Uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) inc(c *atomic.Uint64) {
	if m == nil || !m.enabled {
		return
	}
	c.Add(1)
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	LoginSuccess         uint64
	LoginFailure         uint64
	Lockouts             uint64
	OTCIssued            uint64
	OTCVerified          uint64
	RefreshRotations     uint64
	RefreshReuseDetected uint64
	TokenVerified        uint64
	TokenRejected        uint64
	APIKeysCreated       uint64
	APIKeysRevoked       uint64
	ResetRequests        uint64
	ResetConfirms        uint64
	SSOLogins            uint64
	RateLimited          uint64
	StoreFailures        uint64
	NotifyFailures       uint64
	Registrations        uint64
}

// Snapshot copies the counters. A disabled instance reports all zeros.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		LoginSuccess:         m.loginSuccess.Load(),
		LoginFailure:         m.loginFailure.Load(),
		Lockouts:             m.lockouts.Load(),
		OTCIssued:            m.otcIssued.Load(),
		OTCVerified:          m.otcVerified.Load(),
		RefreshRotations:     m.refreshRotations.Load(),
		RefreshReuseDetected: m.refreshReuse.Load(),
		TokenVerified:        m.tokenVerified.Load(),
		TokenRejected:        m.tokenRejected.Load(),
		APIKeysCreated:       m.apiKeysCreated.Load(),
		APIKeysRevoked:       m.apiKeysRevoked.Load(),
		ResetRequests:        m.resetRequests.Load(),
		ResetConfirms:        m.resetConfirms.Load(),
		SSOLogins:            m.ssoLogins.Load(),
		RateLimited:          m.rateLimited.Load(),
		StoreFailures:        m.storeFailures.Load(),
		NotifyFailures:       m.notifyFailures.Load(),
		Registrations:        m.registrations.Load(),
	}
}
