// Package monitor measures a sensor on a schedule and forwards each
// reading to a sink.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/zberg/go-smartclim/pkg/smartclim"
)

// ReadFunc takes one measurement from the sensor.
type ReadFunc func(ctx context.Context) (smartclim.Reading, error)

// Sink receives every successful measurement.
type Sink interface {
	Publish(ctx context.Context, r smartclim.Reading) error
}

// State is the scheduler state of a monitored sensor.
type State struct {
	DeviceMAC    string
	NextMeasure  time.Time
	Reading      smartclim.Reading
	Status       smartclim.HumidityStatus
	HasReading   bool
	LastUpdate   time.Time
	LastError    string
	Measurements int
	Failures     int
}

type Options struct {
	DeviceMAC  string
	Interval   time.Duration // between measurements, at least 2 minutes
	Heartbeat  time.Duration // how often the schedule is checked
	RetryDelay time.Duration // before retrying a failed measurement
	Logger     *slog.Logger
}

// Monitor owns the measurement schedule of one sensor.
type Monitor struct {
	read       ReadFunc
	sink       Sink
	interval   time.Duration
	heartbeat  time.Duration
	retryDelay time.Duration
	logger     *slog.Logger

	addr   string
	now    func() time.Time
	jitter func(n int) int

	mu    sync.RWMutex
	state State
}

func New(read ReadFunc, sink Sink, opts Options) (*Monitor, error) {
	if read == nil || sink == nil {
		return nil, errors.New("monitor: read func and sink are required")
	}
	if opts.Interval < 2*time.Minute {
		return nil, fmt.Errorf("monitor: interval must be at least 2m, got %v", opts.Interval)
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 20 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Monitor{
		read:       read,
		sink:       sink,
		interval:   opts.Interval,
		heartbeat:  opts.Heartbeat,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
		addr:       opts.DeviceMAC,
		now:        time.Now,
		jitter:     rand.IntN,
		state:      State{DeviceMAC: opts.DeviceMAC},
	}, nil
}

// Run measures once, then checks the schedule on every heartbeat until
// ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		"addr", m.addr,
		"interval", m.interval,
		"heartbeat", m.heartbeat,
	)
	m.start(ctx)

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped", "addr", m.addr)
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// start takes the first measurement. On success the next one falls a
// random number of whole minutes into the first interval.
func (m *Monitor) start(ctx context.Context) {
	err := m.measure(ctx)
	now := m.now()

	next := now.Add(m.retryDelay)
	if err == nil {
		minutes := int(m.interval / time.Minute)
		next = now.Add(time.Duration(1+m.jitter(minutes-1)) * time.Minute)
	}
	m.setNext(next)
}

// tick is the heartbeat handler.
func (m *Monitor) tick(ctx context.Context) {
	now := m.now()
	if !now.After(m.Snapshot().NextMeasure) {
		return
	}

	// The next slot is claimed before the read starts.
	m.setNext(now.Add(m.interval))
	if err := m.measure(ctx); err != nil {
		m.setNext(now.Add(m.retryDelay))
	}
}

func (m *Monitor) measure(ctx context.Context) error {
	r, err := m.read(ctx)
	if err != nil {
		m.recordFailure(err)
		m.logger.Error("measurement failed", "addr", m.addr, "error", err)
		return err
	}

	status := r.HumidityStatus()
	m.mu.Lock()
	m.state.Reading = r
	m.state.Status = status
	m.state.HasReading = true
	m.state.LastUpdate = m.now()
	m.state.Measurements++
	m.state.LastError = ""
	m.mu.Unlock()

	m.logger.Info("measurement",
		"addr", m.addr,
		"temperature", r.Temperature,
		"humidity", r.Humidity,
		"battery", r.Battery,
		"status", status.String(),
	)

	if err := m.sink.Publish(ctx, r); err != nil {
		err = fmt.Errorf("publish: %w", err)
		m.recordFailure(err)
		m.logger.Warn("failed to publish measurement", "addr", m.addr, "error", err)
		return err
	}
	return nil
}

func (m *Monitor) recordFailure(err error) {
	m.mu.Lock()
	m.state.LastError = err.Error()
	m.state.Failures++
	m.mu.Unlock()
}

func (m *Monitor) setNext(t time.Time) {
	m.mu.Lock()
	m.state.NextMeasure = t
	m.mu.Unlock()
	m.logger.Debug("next measurement scheduled", "at", t)
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}
