// Package api contains the REST request and response bodies of the license daemon.
package api

import (
	"licensebridge/pkg/contracts/domain"
)

// LicensesResponse lists stored license keys
type LicensesResponse struct {
	Licenses []domain.LicenseKey `json:"licenses"`
	Count    int                 `json:"count"`
}

// StatusResponse wraps the resolved status with derived flags
type StatusResponse struct {
	Status             *domain.LicenseStatus `json:"status"`
	IsUltimate         bool                  `json:"is_ultimate"`
	IsTrial            bool                  `json:"is_trial"`
	IsValidDateExpired bool                  `json:"is_valid_date_expired"`
	TraceID            string                `json:"trace_id,omitempty"`
}

// InstallationIDResponse carries the installation identifier
type InstallationIDResponse struct {
	InstallationID string `json:"installation_id"`
}
