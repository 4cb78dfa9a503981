package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/coder/quartz"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/go-version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"licensebridge/internal/appdb"
	apperrors "licensebridge/internal/errors"
	"licensebridge/internal/infrastructure"
	"licensebridge/internal/license"
	"licensebridge/pkg/contracts/domain"
	"licensebridge/pkg/contracts/events"
)

// LicenseRepository stores license keys
type LicenseRepository interface {
	List(ctx context.Context) ([]domain.LicenseKey, error)
	Get(ctx context.Context, id int64) (domain.LicenseKey, error)
	Insert(ctx context.Context, key domain.LicenseKey) (domain.LicenseKey, error)
	Update(ctx context.Context, key domain.LicenseKey) (domain.LicenseKey, error)
	Delete(ctx context.Context, id int64) error
	CountByType(ctx context.Context, licenseType string) (int, error)
}

// SettingsStore is a string key/value store; Get returns appdb.ErrSettingNotFound
// for a missing key. Claim writes a key only when it is absent.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Claim(ctx context.Context, key, value string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher pushes events to connected UI clients
type EventPublisher interface {
	Publish(ctx context.Context, name string, data interface{}) error
}

// Notifier shows a message to connected users
type Notifier interface {
	Info(ctx context.Context, msg string) error
}

// Event actions carried in license.changed
const (
	ActionSaved        = "saved"
	ActionRemoved      = "removed"
	ActionTrialCreated = "trial_created"
)

// SaveRequest is the payload of appdb/license/save
type SaveRequest struct {
	Obj domain.LicenseKey `json:"obj"`
}

// RemoveRequest is the payload of license/remove
type RemoveRequest struct {
	ID int64 `json:"id" validate:"gt=0"`
}

// LicenseService answers the license bridge channels from the app database
type LicenseService struct {
	repo       LicenseRepository
	settings   SettingsStore
	clock      quartz.Clock
	appVersion *version.Version
	trialDays  int
	publisher  EventPublisher
	notifier   Notifier
	logger     *slog.Logger
	tracer     trace.Tracer
	validate   *validator.Validate
	group      singleflight.Group
}

// LicenseServiceOption configures a LicenseService
type LicenseServiceOption func(*LicenseService)

func WithServiceClock(clock quartz.Clock) LicenseServiceOption {
	return func(s *LicenseService) { s.clock = clock }
}

// WithPublisher publishes license.changed events after every mutation
func WithPublisher(p EventPublisher) LicenseServiceOption {
	return func(s *LicenseService) { s.publisher = p }
}

// WithNotifier announces new trials to connected users
func WithNotifier(n Notifier) LicenseServiceOption {
	return func(s *LicenseService) { s.notifier = n }
}

func WithTrialDays(days int) LicenseServiceOption {
	return func(s *LicenseService) { s.trialDays = days }
}

// NewLicenseService creates the service. appVersion is the running application
// release compared against each license's max allowed release.
func NewLicenseService(repo LicenseRepository, settings SettingsStore, appVersion string, logger *slog.Logger, opts ...LicenseServiceOption) (*LicenseService, error) {
	v, err := version.NewVersion(appVersion)
	if err != nil {
		return nil, fmt.Errorf("parse app version %q: %w", appVersion, err)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	s := &LicenseService{
		repo:       repo,
		settings:   settings,
		clock:      quartz.NewReal(),
		appVersion: v,
		trialDays:  14,
		logger:     logger.With(slog.String("service", "license")),
		tracer:     otel.Tracer("license-service"),
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Licenses returns every stored license key ordered by id
func (s *LicenseService) Licenses(ctx context.Context) ([]domain.LicenseKey, error) {
	ctx, span := s.tracer.Start(ctx, "license_service.licenses")
	defer span.End()

	keys, err := s.repo.List(ctx)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	span.SetAttributes(attribute.Int("license.count", len(keys)))
	return keys, nil
}

// Status resolves the edition the installation runs right now
func (s *LicenseService) Status(ctx context.Context) (*domain.LicenseStatus, error) {
	ctx, span := s.tracer.Start(ctx, "license_service.status")
	defer span.End()

	keys, err := s.repo.List(ctx)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("resolve status: %w", err)
	}

	status := ResolveStatus(keys, s.clock.Now(), s.appVersion)
	span.SetAttributes(
		attribute.String("license.edition", status.Edition),
		attribute.StringSlice("license.condition", status.Condition),
	)
	s.logger.DebugContext(ctx, "status resolved",
		slog.String("edition", status.Edition),
		slog.Any("condition", status.Condition),
		slog.Int("license_count", len(keys)))
	return status, nil
}

// ResolveStatus picks the key with the latest valid-until date and decides the edition:
// valid keys grant ultimate, expired keys grant ultimate only while appVersion is
// within their max allowed release.
func ResolveStatus(keys []domain.LicenseKey, now time.Time, appVersion *version.Version) *domain.LicenseStatus {
	status := &domain.LicenseStatus{
		Edition:    domain.EditionCommunity,
		ResolvedAt: now,
	}
	if len(keys) == 0 {
		status.Condition = []string{domain.ConditionNoLicenseFound}
		return status
	}

	sorted := append([]domain.LicenseKey(nil), keys...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ValidUntil.After(sorted[j].ValidUntil)
	})
	current := sorted[0].Clone()
	status.License = &current

	switch {
	case !current.ValidUntil.Before(now):
		status.Edition = domain.EditionUltimate
		status.Condition = []string{domain.ConditionValidLicense}
	case versionAllowed(current.MaxAllowedAppRelease, appVersion):
		status.Edition = domain.EditionUltimate
		status.Condition = []string{domain.ConditionVersionAllowed}
	default:
		status.Condition = []string{domain.ConditionExpired}
	}
	return status
}

func versionAllowed(release *domain.AppRelease, appVersion *version.Version) bool {
	if release == nil || appVersion == nil {
		return false
	}
	maxVersion, err := version.NewVersion(release.TagName)
	if err != nil {
		return false
	}
	return appVersion.LessThanOrEqual(maxVersion)
}

// InstallationID returns the stable id of this installation, creating it on first use.
// Concurrent first calls share one creation, which outlives any single caller's context.
func (s *LicenseService) InstallationID(ctx context.Context) (string, error) {
	ctx, span := s.tracer.Start(ctx, "license_service.installation_id")
	defer span.End()

	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(appdb.SettingInstallationID, func() (interface{}, error) {
		id, err := s.settings.Get(shared, appdb.SettingInstallationID)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, appdb.ErrSettingNotFound) {
			return "", err
		}

		id = uuid.New().String()
		claimed, err := s.settings.Claim(shared, appdb.SettingInstallationID, id)
		if err != nil {
			return "", err
		}
		if !claimed {
			return s.settings.Get(shared, appdb.SettingInstallationID)
		}
		s.logger.InfoContext(shared, "installation id created", slog.String("installation_id", id))
		return id, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("installation id: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			infrastructure.RecordError(ctx, res.Err)
			return "", fmt.Errorf("installation id: %w", res.Err)
		}
		return res.Val.(string), nil
	}
}

// Save inserts key when it has no id and updates it otherwise
func (s *LicenseService) Save(ctx context.Context, key domain.LicenseKey) (domain.LicenseKey, error) {
	ctx, span := s.tracer.Start(ctx, "license_service.save",
		trace.WithAttributes(attribute.Int64("license.id", key.ID)))
	defer span.End()

	if err := s.validate.StructCtx(ctx, key); err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.LicenseKey{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidLicense, err)
	}

	now := s.clock.Now().UTC()
	key.UpdatedAt = now

	var (
		saved domain.LicenseKey
		err   error
	)
	if key.ID == 0 {
		key.CreatedAt = now
		saved, err = s.repo.Insert(ctx, key)
	} else {
		saved, err = s.repo.Update(ctx, key)
	}
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.LicenseKey{}, fmt.Errorf("save license: %w", err)
	}

	s.logger.InfoContext(ctx, "license saved",
		slog.Int64("license_id", saved.ID),
		slog.String("license_type", saved.LicenseType),
		slog.String("license_key", license.MaskLicenseKey(saved.Key)))
	s.publish(ctx, ActionSaved, saved.ID)
	return saved, nil
}

// Remove deletes the key with id
func (s *LicenseService) Remove(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "license_service.remove",
		trace.WithAttributes(attribute.Int64("license.id", id)))
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		infrastructure.RecordError(ctx, err)
		return fmt.Errorf("remove license %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "license removed", slog.Int64("license_id", id))
	s.publish(ctx, ActionRemoved, id)
	return nil
}

// CreateTrial creates the one trial license an installation may have
func (s *LicenseService) CreateTrial(ctx context.Context) (domain.LicenseKey, error) {
	ctx, span := s.tracer.Start(ctx, "license_service.create_trial")
	defer span.End()

	n, err := s.repo.CountByType(ctx, domain.LicenseTypeTrial)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.LicenseKey{}, fmt.Errorf("create trial: %w", err)
	}
	if n > 0 {
		return domain.LicenseKey{}, apperrors.ErrTrialAlreadyUsed
	}

	// The settings row is the single-use marker; only the caller that claims it inserts
	now := s.clock.Now().UTC()
	claimed, err := s.settings.Claim(ctx, appdb.SettingTrialCreatedAt, now.Format(time.RFC3339))
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return domain.LicenseKey{}, fmt.Errorf("create trial: %w", err)
	}
	if !claimed {
		return domain.LicenseKey{}, apperrors.ErrTrialAlreadyUsed
	}

	expires := now.AddDate(0, 0, s.trialDays)
	trial, err := s.repo.Insert(ctx, domain.LicenseKey{
		Key:          "trial-" + uuid.New().String(),
		LicenseType:  domain.LicenseTypeTrial,
		ValidUntil:   expires,
		SupportUntil: expires,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		if rerr := s.settings.Delete(context.WithoutCancel(ctx), appdb.SettingTrialCreatedAt); rerr != nil {
			s.logger.ErrorContext(ctx, "failed to release trial claim", slog.String("error", rerr.Error()))
		}
		return domain.LicenseKey{}, fmt.Errorf("create trial: %w", err)
	}

	s.logger.InfoContext(ctx, "trial license created",
		slog.Int64("license_id", trial.ID),
		slog.Time("valid_until", trial.ValidUntil))
	s.publish(ctx, ActionTrialCreated, trial.ID)

	if s.notifier != nil {
		msg := fmt.Sprintf("Trial license active until %s", trial.ValidUntil.Format("2006-01-02"))
		if err := s.notifier.Info(ctx, msg); err != nil {
			s.logger.WarnContext(ctx, "trial notification failed", slog.String("error", err.Error()))
		}
	}
	return trial, nil
}

// publish failures never fail the mutation that triggered them
func (s *LicenseService) publish(ctx context.Context, action string, id int64) {
	infrastructure.AddSpanEvent(ctx, "license."+action, attribute.Int64("license.id", id))
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.LicenseChanged, events.LicenseChangedData{Action: action, ID: id})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish license event",
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}
