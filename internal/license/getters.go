package license

import (
	"math"
)

// TrialLicense returns the first trial license in s
func TrialLicense(s State) (LicenseKey, bool) {
	for _, l := range s.Licenses {
		if l.IsTrial() {
			return l, true
		}
	}
	return LicenseKey{}, false
}

// RealLicenses returns every non-trial license in s, keeping their order
func RealLicenses(s State) []LicenseKey {
	licenses := make([]LicenseKey, 0, len(s.Licenses))
	for _, l := range s.Licenses {
		if !l.IsTrial() {
			licenses = append(licenses, l)
		}
	}
	return licenses
}

// LicenseDaysLeft is the number of whole days between the snapshot time and the
// current license's valid-until date, rounded half up. Negative once expired,
// 0 when there is no current license.
func LicenseDaysLeft(s State) int {
	if s.Status == nil || s.Status.License == nil {
		return 0
	}
	diff := s.Status.License.ValidUntil.UnixMilli() - s.Now.UnixMilli()
	return int(math.Floor(float64(diff)/oneDayMilliseconds + 0.5))
}

func NoLicensesFound(s State) bool {
	return len(s.Licenses) == 0
}

// IsUltimate is false when no status is known
func IsUltimate(s State) bool {
	if s.Status == nil {
		return false
	}
	return s.Status.IsUltimate()
}

// IsCommunity is true when no status is known
func IsCommunity(s State) bool {
	if s.Status == nil {
		return true
	}
	return s.Status.IsCommunity()
}

// IsTrial is true when no status is known
func IsTrial(s State) bool {
	if s.Status == nil {
		return true
	}
	return s.Status.IsTrial()
}

// IsValidStateExpired reports a license that still grants ultimate for older
// releases after its valid-until date. known is false when no status is held.
func IsValidStateExpired(s State) (expired, known bool) {
	if s.Status == nil {
		return false, false
	}
	return s.Status.IsValidDateExpired(), true
}

// Module getters read the current snapshot

func (m *Module) TrialLicense() (LicenseKey, bool) { return TrialLicense(m.snapshot()) }

func (m *Module) RealLicenses() []LicenseKey { return RealLicenses(m.snapshot()) }

func (m *Module) LicenseDaysLeft() int { return LicenseDaysLeft(m.snapshot()) }

func (m *Module) NoLicensesFound() bool { return NoLicensesFound(m.snapshot()) }

func (m *Module) IsUltimate() bool { return IsUltimate(m.snapshot()) }

func (m *Module) IsCommunity() bool { return IsCommunity(m.snapshot()) }

func (m *Module) IsTrial() bool { return IsTrial(m.snapshot()) }

func (m *Module) IsValidStateExpired() (expired, known bool) {
	return IsValidStateExpired(m.snapshot())
}
