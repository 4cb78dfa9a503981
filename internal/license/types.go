package license

import (
	"context"
	"time"

	"licensebridge/pkg/contracts/domain"
)

// Domain types travel over the bridge unchanged
type (
	LicenseKey    = domain.LicenseKey
	LicenseStatus = domain.LicenseStatus
	AppRelease    = domain.AppRelease
)

// Bridge channels used by the module
const (
	ChannelGet               = "license/get"
	ChannelGetStatus         = "license/getStatus"
	ChannelGetInstallationID = "license/getInstallationId"
	ChannelSave              = "appdb/license/save"
	ChannelRemove            = "license/remove"
	ChannelCreateTrial       = "license/createTrialLicense"
)

const (
	// ExpiredLicenseEventsEmittedFlag is reset whenever a license is added so the
	// expiry notices are shown again for the new key.
	ExpiredLicenseEventsEmittedFlag = "expiredLicenseEventsEmitted"

	// TrialStartedMessage is shown once a trial license has been created
	TrialStartedMessage = "Your 14 day free trial has started, enjoy!"

	AutoLicenseKey     = "auto_premium"
	AutoLicenseEmail   = "premium@beekeeper.local"
	DefaultLicenseKey  = "premium"
	oneDayMilliseconds = 24 * 60 * 60 * 1000
)

// PerpetualDate is the valid/support date given to licenses created by the client
var PerpetualDate = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

// Bridge sends a request on a channel and decodes the reply into out.
// args may be nil for channels without payload; out may be nil to discard the reply.
type Bridge interface {
	Send(ctx context.Context, channel string, args interface{}, out interface{}) error
}

// Notifier shows a message to the user
type Notifier interface {
	Info(ctx context.Context, msg string) error
}

// FlagStore persists boolean flags across runs
type FlagStore interface {
	SetBool(key string, value bool) error
}

// AddRequest is the input of Module.Add. Nothing is validated on the client side.
type AddRequest struct {
	Email string
	Key   string
	Trial bool
}

// savePayload is the argument of appdb/license/save
type savePayload struct {
	Obj LicenseKey `json:"obj"`
}

// removePayload is the argument of license/remove
type removePayload struct {
	ID int64 `json:"id"`
}

// perpetualLicense builds the business license saved by Init and Add
func perpetualLicense(key, email string) LicenseKey {
	return LicenseKey{
		Key:          key,
		Email:        email,
		LicenseType:  domain.LicenseTypeBusiness,
		ValidUntil:   PerpetualDate,
		SupportUntil: PerpetualDate,
	}
}
