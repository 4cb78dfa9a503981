package testutil

import (
	"time"

	"licensebridge/pkg/contracts/domain"
)

// FarFuture is the valid-until date of the perpetual licenses created by the UI
var FarFuture = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

// BusinessLicense returns a perpetual business license with the given id and key
func BusinessLicense(id int64, key string) domain.LicenseKey {
	return domain.LicenseKey{
		ID:           id,
		Key:          key,
		Email:        "owner@example.com",
		LicenseType:  domain.LicenseTypeBusiness,
		ValidUntil:   FarFuture,
		SupportUntil: FarFuture,
	}
}

// TrialLicense returns a trial license valid until validUntil
func TrialLicense(id int64, validUntil time.Time) domain.LicenseKey {
	return domain.LicenseKey{
		ID:           id,
		Key:          "trial-fixture",
		LicenseType:  domain.LicenseTypeTrial,
		ValidUntil:   validUntil,
		SupportUntil: validUntil,
	}
}

// ExpiredLicense returns a personal license that expired at validUntil and covers
// releases up to maxRelease. An empty maxRelease leaves the license uncapped.
func ExpiredLicense(id int64, validUntil time.Time, maxRelease string) domain.LicenseKey {
	key := domain.LicenseKey{
		ID:           id,
		Key:          "expired-fixture",
		Email:        "lapsed@example.com",
		LicenseType:  domain.LicenseTypePersonal,
		ValidUntil:   validUntil,
		SupportUntil: validUntil,
	}
	if maxRelease != "" {
		key.MaxAllowedAppRelease = &domain.AppRelease{TagName: maxRelease}
	}
	return key
}

// UltimateStatus returns an ultimate status resolved at resolvedAt for license
func UltimateStatus(license domain.LicenseKey, resolvedAt time.Time, condition string) *domain.LicenseStatus {
	return &domain.LicenseStatus{
		Edition:    domain.EditionUltimate,
		Condition:  []string{condition},
		License:    &license,
		ResolvedAt: resolvedAt,
	}
}
