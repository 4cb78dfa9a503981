// Package domain contains the license models shared by the state container, the
// bridge backend and the storage layer. These types are what travels over the bridge.
package domain

import (
	"time"
)

// License types known to the backend
const (
	LicenseTypeTrial    = "TrialLicense"
	LicenseTypeBusiness = "BusinessLicense"
	LicenseTypePersonal = "PersonalLicense"
)

// Editions a license status can resolve to
const (
	EditionCommunity = "community"
	EditionUltimate  = "ultimate"
)

// Conditions attached to a resolved status
const (
	ConditionInitial        = "initial"
	ConditionNoLicenseFound = "No license found"
	ConditionValidLicense   = "Valid license"
	ConditionExpired        = "Expired license"
	ConditionVersionAllowed = "Version allowed"
)

// AppRelease identifies an application release by its tag, e.g. "v5.2.0"
type AppRelease struct {
	TagName string `json:"tagName" validate:"required"`
}

// LicenseKey is a stored license record as transported over the bridge
type LicenseKey struct {
	ID                   int64       `json:"id"`
	Key                  string      `json:"key" validate:"required,max=512"`
	Email                string      `json:"email" validate:"max=320"`
	LicenseType          string      `json:"licenseType" validate:"oneof=TrialLicense BusinessLicense PersonalLicense"`
	ValidUntil           time.Time   `json:"validUntil" validate:"required"`
	SupportUntil         time.Time   `json:"supportUntil" validate:"required"`
	MaxAllowedAppRelease *AppRelease `json:"maxAllowedAppRelease"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// IsTrial reports whether the key is a trial license
func (k LicenseKey) IsTrial() bool {
	return k.LicenseType == LicenseTypeTrial
}

// LicenseStatus is the backend's resolution of which edition the installation runs
type LicenseStatus struct {
	Edition    string      `json:"edition"`
	Condition  []string    `json:"condition"`
	License    *LicenseKey `json:"license,omitempty"`
	ResolvedAt time.Time   `json:"resolvedAt"`
}

// DefaultStatus is the status held before the first sync with the backend
func DefaultStatus() *LicenseStatus {
	return &LicenseStatus{
		Edition:   EditionCommunity,
		Condition: []string{ConditionInitial},
	}
}

func (s LicenseStatus) IsUltimate() bool {
	return s.Edition == EditionUltimate
}

func (s LicenseStatus) IsCommunity() bool {
	return s.Edition == EditionCommunity
}

// IsTrial reports an ultimate edition granted by a trial license
func (s LicenseStatus) IsTrial() bool {
	return s.IsUltimate() && s.License != nil && s.License.IsTrial()
}

// IsValidDateExpired reports a license past its valid-until date that still grants
// ultimate because the running version is covered by its max allowed release.
func (s LicenseStatus) IsValidDateExpired() bool {
	if !s.IsUltimate() || s.License == nil {
		return false
	}
	return s.License.ValidUntil.Before(s.ResolvedAt)
}

// Clone returns a deep copy so callers can hand the status out without sharing slices
func (s *LicenseStatus) Clone() *LicenseStatus {
	if s == nil {
		return nil
	}
	out := *s
	out.Condition = append([]string(nil), s.Condition...)
	if s.License != nil {
		l := s.License.Clone()
		out.License = &l
	}
	return &out
}

// Clone returns a copy of the key that does not share the release pointer
func (k LicenseKey) Clone() LicenseKey {
	if k.MaxAllowedAppRelease != nil {
		r := *k.MaxAllowedAppRelease
		k.MaxAllowedAppRelease = &r
	}
	return k
}

// License error codes carried in bridge remote errors
const (
	ErrCodeLicenseNotFound    = "LICENSE_NOT_FOUND"
	ErrCodeTrialAlreadyUsed   = "TRIAL_ALREADY_USED"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUnknownChannel     = "UNKNOWN_CHANNEL"
	ErrCodeInvalidPayload     = "INVALID_PAYLOAD"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)
