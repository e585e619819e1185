package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	authcore "github.com/campuskit/authcore"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is the slice of Engine the exporter needs; tests substitute
// a fake.
type metricsSource interface {
	MetricsSnapshot() map[authcore.MetricID]uint64
	AuditDropped() uint64
}

type observedCounter struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter registers one observable counter per engine metric plus the
// audit-dropped counter. Close unregisters the collection callback.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

// exportedIDs is the fixed set of engine counters surfaced to OTel.
var exportedIDs = []authcore.MetricID{
	authcore.MetricRegisterSuccess,
	authcore.MetricRegisterDuplicate,
	authcore.MetricRegisterRejected,
	authcore.MetricLoginSuccess,
	authcore.MetricLoginFailure,
	authcore.MetricLoginLocked,
	authcore.MetricLogout,
	authcore.MetricRefreshSuccess,
	authcore.MetricRefreshFailure,
	authcore.MetricTokenRevoked,
	authcore.MetricRevocationEvicted,
	authcore.MetricEmailVerified,
	authcore.MetricVerificationResent,
	authcore.MetricResetRequested,
	authcore.MetricResetCompleted,
	authcore.MetricResetFailure,
	authcore.MetricAccountLocked,
	authcore.MetricAccountUnlocked,
	authcore.MetricStatusChanged,
	authcore.MetricAdmissionRejected,
}

func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(exportedIDs)),
	}

	observables := make([]metric.Observable, 0, len(exportedIDs)+1)
	for _, id := range exportedIDs {
		name := "authcore_" + id.Name() + "_total"
		ins, err := meter.Int64ObservableCounter(name)
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: id, instrument: ins})
		observables = append(observables, ins)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authcore_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot[c.id]))
		}
		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
