package otel

import (
	"context"
	"errors"
	"fmt"

	goRenew "github.com/MrEthical07/goRenew"
	"github.com/MrEthical07/goRenew/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no metrics source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goRenew.MetricsSnapshot
	State() goRenew.ClientState
}

// sample is what one collection cycle reads from the source.
type sample struct {
	snapshot goRenew.MetricsSnapshot
	state    goRenew.ClientState
	buckets  map[goRenew.MetricID][8]uint64
}

func (s *sample) cumulative(id goRenew.MetricID) [8]uint64 {
	if b, ok := s.buckets[id]; ok {
		return b
	}
	b := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(s.snapshot.Histograms[id]))
	s.buckets[id] = b
	return b
}

type reading struct {
	instrument metric.Int64Observable
	read       func(*sample) int64
}

// OTelExporter publishes a client through observable instruments: one
// counter per client counter, one gauge per cumulative renewal latency
// bucket, and the live coordinator state.
type OTelExporter struct {
	source       metricsSource
	readings     []reading
	registration metric.Registration
}

// NewOTelExporter registers instruments on meter reading from client.
func NewOTelExporter(meter metric.Meter, client *goRenew.Client) (*OTelExporter, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, client)
}

// NewOTelExporterFromSource registers instruments on meter reading from
// source at collection time.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	if err := e.addCounters(meter); err != nil {
		return nil, err
	}
	if err := e.addHistograms(meter); err != nil {
		return nil, err
	}
	if err := e.addState(meter); err != nil {
		return nil, err
	}

	observables := make([]metric.Observable, len(e.readings))
	for i, r := range e.readings {
		observables[i] = r.instrument
	}
	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func (e *OTelExporter) addCounters(meter metric.Meter) error {
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		id := def.ID
		e.readings = append(e.readings, reading{ins, func(s *sample) int64 {
			return int64(s.snapshot.Counters[id])
		}})
	}
	return nil
}

// addHistograms flattens each histogram into cumulative per-bucket gauges
// plus a count gauge, since observable instruments cannot carry buckets.
func (e *OTelExporter) addHistograms(meter metric.Meter) error {
	for _, def := range internaldefs.HistogramDefs {
		id := def.ID
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help+" Cumulative bucket count."))
			if err != nil {
				return fmt.Errorf("create bucket gauge %s: %w", name, err)
			}
			idx := i
			e.readings = append(e.readings, reading{ins, func(s *sample) int64 {
				return int64(s.cumulative(id)[idx])
			}})
		}

		name := def.Name + "_count"
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return fmt.Errorf("create count gauge %s: %w", name, err)
		}
		e.readings = append(e.readings, reading{ins, func(s *sample) int64 {
			b := s.cumulative(id)
			return int64(b[len(b)-1])
		}})
	}
	return nil
}

func (e *OTelExporter) addState(meter metric.Meter) error {
	for _, def := range internaldefs.StateDefs {
		var (
			ins metric.Int64Observable
			err error
		)
		if def.Monotonic {
			ins, err = meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		} else {
			ins, err = meter.Int64ObservableGauge(def.Name, metric.WithDescription(def.Help))
		}
		if err != nil {
			return fmt.Errorf("create state instrument %s: %w", def.Name, err)
		}
		value := def.Value
		e.readings = append(e.readings, reading{ins, func(s *sample) int64 {
			return value(s.state)
		}})
	}
	return nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	s := &sample{
		snapshot: e.source.MetricsSnapshot(),
		state:    e.source.State(),
		buckets:  make(map[goRenew.MetricID][8]uint64, len(internaldefs.HistogramDefs)),
	}
	for _, r := range e.readings {
		observer.ObserveInt64(r.instrument, r.read(s))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
