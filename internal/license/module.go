package license

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/quartz"

	"licensebridge/internal/infrastructure"
)

// Module is the license state container. It is safe for concurrent use: commits are
// serialized, actions are not, so of two concurrent syncs the last one to commit wins.
type Module struct {
	bridge   Bridge
	notifier Notifier
	flags    FlagStore
	clock    quartz.Clock
	logger   *slog.Logger
	metrics  *Metrics

	mu    sync.RWMutex
	state State
}

// Option configures a Module
type Option func(*Module)

// WithClock sets the clock used for the "now" snapshot
func WithClock(clock quartz.Clock) Option {
	return func(m *Module) {
		m.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

// WithMetrics enables action metrics
func WithMetrics(metrics *Metrics) Option {
	return func(m *Module) {
		m.metrics = metrics
	}
}

// NewModule creates a module talking to the backend through bridge
func NewModule(bridge Bridge, notifier Notifier, flags FlagStore, opts ...Option) *Module {
	m := &Module{
		bridge:   bridge,
		notifier: notifier,
		flags:    flags,
		clock:    quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = infrastructure.GetLogger()
	}
	m.logger = m.logger.With(slog.String("component", component))
	m.state = NewState(m.clock.Now())
	return m
}

// State returns a copy of the current snapshot
func (m *Module) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// snapshot returns the current state without copying. Reducers never mutate in
// place, so the result stays consistent for read-only use.
func (m *Module) snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// commit applies a named reducer under the lock
func (m *Module) commit(ctx context.Context, mutation string, reduce func(State) State) {
	m.mu.Lock()
	m.state = reduce(m.state)
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "mutation committed", slog.String("mutation", mutation))
}

// send wraps backend failures with the channel name
func (m *Module) send(ctx context.Context, channel string, args, out interface{}) error {
	if err := m.bridge.Send(ctx, channel, args, out); err != nil {
		return fmt.Errorf("%s: %w", channel, err)
	}
	return nil
}

// Init syncs with the backend, creates the perpetual auto license when none is
// stored, and records the installation id. A second call is a no-op.
func (m *Module) Init(ctx context.Context) error {
	if m.snapshot().Initialized {
		m.logWarn(ctx, "init", "Already initialized")
		return nil
	}

	return m.traceAction(ctx, "init", func(ctx context.Context) error {
		if err := m.sync(ctx); err != nil {
			return err
		}

		var licenses []LicenseKey
		if err := m.send(ctx, ChannelGet, nil, &licenses); err != nil {
			return err
		}

		if len(licenses) == 0 {
			auto := perpetualLicense(AutoLicenseKey, AutoLicenseEmail)
			if err := m.send(ctx, ChannelSave, savePayload{Obj: auto}, nil); err != nil {
				return err
			}
			m.logInfo(ctx, "init", "auto license created", licenseAttrs(auto)...)

			if err := m.sync(ctx); err != nil {
				return err
			}
		}

		var installationID string
		if err := m.send(ctx, ChannelGetInstallationID, nil, &installationID); err != nil {
			return err
		}
		m.commit(ctx, "installationId", func(s State) State { return setInstallationID(s, installationID) })
		m.commit(ctx, "setInitialized", func(s State) State { return setInitialized(s, true) })
		return nil
	})
}

// Add starts a trial or saves a perpetual business license, then re-syncs.
// An empty key falls back to DefaultLicenseKey.
func (m *Module) Add(ctx context.Context, req AddRequest) error {
	return m.traceAction(ctx, "add", func(ctx context.Context) error {
		if req.Trial {
			if err := m.send(ctx, ChannelCreateTrial, nil, nil); err != nil {
				return err
			}
			if err := m.notifier.Info(ctx, TrialStartedMessage); err != nil {
				return fmt.Errorf("notify trial started: %w", err)
			}
		} else {
			key := req.Key
			if key == "" {
				key = DefaultLicenseKey
			}
			l := perpetualLicense(key, req.Email)
			if err := m.send(ctx, ChannelSave, savePayload{Obj: l}, nil); err != nil {
				return err
			}
			m.logInfo(ctx, "add", "license saved", licenseAttrs(l)...)
		}

		if err := m.flags.SetBool(ExpiredLicenseEventsEmittedFlag, false); err != nil {
			return fmt.Errorf("reset %s: %w", ExpiredLicenseEventsEmittedFlag, err)
		}

		return m.sync(ctx)
	})
}

// Update does nothing. Licenses are not editable from the client.
func (m *Module) Update(ctx context.Context, license LicenseKey) error {
	return nil
}

// UpdateAll does nothing
func (m *Module) UpdateAll(ctx context.Context) error {
	return nil
}

// Remove deletes a license on the backend and re-syncs
func (m *Module) Remove(ctx context.Context, license LicenseKey) error {
	return m.traceAction(ctx, "remove", func(ctx context.Context) error {
		if err := m.send(ctx, ChannelRemove, removePayload{ID: license.ID}, nil); err != nil {
			return err
		}
		m.logInfo(ctx, "remove", "license removed",
			append(licenseAttrs(license), slog.Int64("license_id", license.ID))...)
		return m.sync(ctx)
	})
}

// Sync replaces licenses, status and the now snapshot with fresh backend values
func (m *Module) Sync(ctx context.Context) error {
	return m.traceAction(ctx, "sync", m.sync)
}

func (m *Module) sync(ctx context.Context) error {
	var status *LicenseStatus
	if err := m.send(ctx, ChannelGetStatus, nil, &status); err != nil {
		return err
	}

	var licenses []LicenseKey
	if err := m.send(ctx, ChannelGet, nil, &licenses); err != nil {
		return err
	}
	if licenses == nil {
		licenses = []LicenseKey{}
	}

	now := m.clock.Now()
	m.commit(ctx, "set", func(s State) State { return setLicenses(s, licenses) })
	m.commit(ctx, "setStatus", func(s State) State { return setStatus(s, status) })
	m.commit(ctx, "setNow", func(s State) State { return setNow(s, now) })

	attrs := []slog.Attr{slog.Int("licenses", len(licenses))}
	if status != nil {
		attrs = append(attrs, slog.String("edition", status.Edition))
	}
	m.logDebug(ctx, "sync", "state replaced", attrs...)
	return nil
}
