package services

import (
	"context"
	"fmt"

	"licensebridge/internal/bridge"
	apperrors "licensebridge/internal/errors"
	"licensebridge/internal/license"
	"licensebridge/pkg/contracts/domain"
)

type noPayload struct{}

// Register binds the license channels on router
func (s *LicenseService) Register(router *bridge.Router) {
	router.Handle(license.ChannelGet, bridge.Typed(func(ctx context.Context, _ noPayload) ([]domain.LicenseKey, error) {
		return s.Licenses(ctx)
	}))

	router.Handle(license.ChannelGetStatus, bridge.Typed(func(ctx context.Context, _ noPayload) (*domain.LicenseStatus, error) {
		return s.Status(ctx)
	}))

	router.Handle(license.ChannelGetInstallationID, bridge.Typed(func(ctx context.Context, _ noPayload) (string, error) {
		return s.InstallationID(ctx)
	}))

	router.Handle(license.ChannelSave, bridge.Typed(func(ctx context.Context, req SaveRequest) (domain.LicenseKey, error) {
		return s.Save(ctx, req.Obj)
	}))

	router.Handle(license.ChannelRemove, bridge.Typed(func(ctx context.Context, req RemoveRequest) (noPayload, error) {
		if err := s.validate.StructCtx(ctx, req); err != nil {
			return noPayload{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidPayload, err)
		}
		return noPayload{}, s.Remove(ctx, req.ID)
	}))

	router.Handle(license.ChannelCreateTrial, bridge.Typed(func(ctx context.Context, _ noPayload) (domain.LicenseKey, error) {
		return s.CreateTrial(ctx)
	}))
}
