package license

import (
	"time"

	"licensebridge/pkg/contracts/domain"
)

// State is the snapshot held by a Module. Values returned by Module.State are
// copies and may be modified freely.
type State struct {
	Initialized    bool
	Licenses       []LicenseKey
	Err            error
	Now            time.Time
	Status         *LicenseStatus
	InstallationID *string
}

// NewState returns the state a module starts from
func NewState(now time.Time) State {
	return State{
		Licenses: []LicenseKey{},
		Now:      now,
		Status:   domain.DefaultStatus(),
	}
}

// Clone deep-copies the snapshot
func (s State) Clone() State {
	out := s
	if s.Licenses != nil {
		out.Licenses = make([]LicenseKey, len(s.Licenses))
		for i, l := range s.Licenses {
			out.Licenses[i] = l.Clone()
		}
	}
	out.Status = s.Status.Clone()
	if s.InstallationID != nil {
		id := *s.InstallationID
		out.InstallationID = &id
	}
	return out
}

// Reducers. Each returns the next state and leaves its input untouched.

func setLicenses(s State, licenses []LicenseKey) State {
	s.Licenses = licenses
	return s
}

func setInitialized(s State, initialized bool) State {
	s.Initialized = initialized
	return s
}

func setInstallationID(s State, id string) State {
	s.InstallationID = &id
	return s
}

func setNow(s State, now time.Time) State {
	s.Now = now
	return s
}

func setStatus(s State, status *LicenseStatus) State {
	s.Status = status
	return s
}
