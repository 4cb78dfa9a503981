package license

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"licensebridge/internal/shared/testutil"
	"licensebridge/pkg/contracts/domain"
)

func TestRealAndTrialLicenses(t *testing.T) {
	first := testutil.BusinessLicense(1, "FIRST-KEY-0001")
	trialA := testutil.TrialLicense(2, epoch)
	second := testutil.ExpiredLicense(3, epoch, "")
	trialB := testutil.TrialLicense(4, epoch.Add(time.Hour))

	s := NewState(epoch)
	s.Licenses = []LicenseKey{first, trialA, second, trialB}

	if diff := cmp.Diff([]LicenseKey{first, second}, RealLicenses(s)); diff != "" {
		t.Errorf("RealLicenses mismatch (-want +got):\n%s", diff)
	}

	trial, ok := TrialLicense(s)
	assert.True(t, ok)
	assert.Equal(t, int64(2), trial.ID, "the first trial wins")

	s.Licenses = []LicenseKey{first}
	_, ok = TrialLicense(s)
	assert.False(t, ok)
}

func TestNoLicensesFound(t *testing.T) {
	s := NewState(epoch)
	assert.True(t, NoLicensesFound(s))
	assert.Empty(t, RealLicenses(s))

	s.Licenses = []LicenseKey{testutil.TrialLicense(1, epoch)}
	assert.False(t, NoLicensesFound(s))
	assert.Empty(t, RealLicenses(s))
}

func TestLicenseDaysLeft(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name       string
		validUntil time.Time
		want       int
	}{
		{name: "two and a half days rounds up", validUntil: epoch.Add(60 * time.Hour), want: 3},
		{name: "just under half a day rounds down", validUntil: epoch.Add(11 * time.Hour), want: 0},
		{name: "exactly now", validUntil: epoch, want: 0},
		{name: "one day ago", validUntil: epoch.Add(-day), want: -1},
		{name: "minus two and a half rounds toward positive", validUntil: epoch.Add(-60 * time.Hour), want: -2},
		{name: "fourteen day trial", validUntil: epoch.Add(14 * day), want: 14},
		{name: "perpetual", validUntil: PerpetualDate, want: int(PerpetualDate.Sub(epoch).Hours()/24 + 0.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(epoch)
			s.Status = testutil.UltimateStatus(testutil.ExpiredLicense(1, tt.validUntil, ""), epoch, domain.ConditionValidLicense)

			assert.Equal(t, tt.want, LicenseDaysLeft(s))
		})
	}
}

func TestLicenseDaysLeftWithoutCurrentLicense(t *testing.T) {
	s := NewState(time.Time{})
	assert.Equal(t, 0, LicenseDaysLeft(s))

	s.Status = nil
	assert.Equal(t, 0, LicenseDaysLeft(s))
}

func TestEditionGetters(t *testing.T) {
	trial := testutil.TrialLicense(1, epoch.Add(14*24*time.Hour))
	lapsed := testutil.ExpiredLicense(2, epoch.Add(-24*time.Hour), "v9.0.0")
	current := testutil.BusinessLicense(3, "BUSINESS-KEY-0003")

	tests := []struct {
		name          string
		status        *LicenseStatus
		wantUltimate  bool
		wantCommunity bool
		wantTrial     bool
		wantExpired   bool
		wantKnown     bool
	}{
		{
			name:          "no status",
			status:        nil,
			wantCommunity: true,
			wantTrial:     true,
		},
		{
			name:          "initial status",
			status:        domain.DefaultStatus(),
			wantCommunity: true,
			wantKnown:     true,
		},
		{
			name:         "trial",
			status:       testutil.UltimateStatus(trial, epoch, domain.ConditionValidLicense),
			wantUltimate: true,
			wantTrial:    true,
			wantKnown:    true,
		},
		{
			name:         "valid business",
			status:       testutil.UltimateStatus(current, epoch, domain.ConditionValidLicense),
			wantUltimate: true,
			wantKnown:    true,
		},
		{
			name:         "lifetime access past valid date",
			status:       testutil.UltimateStatus(lapsed, epoch, domain.ConditionVersionAllowed),
			wantUltimate: true,
			wantExpired:  true,
			wantKnown:    true,
		},
		{
			name: "expired community",
			status: &LicenseStatus{
				Edition:    domain.EditionCommunity,
				Condition:  []string{domain.ConditionExpired},
				License:    &lapsed,
				ResolvedAt: epoch,
			},
			wantCommunity: true,
			wantKnown:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(epoch)
			s.Status = tt.status

			assert.Equal(t, tt.wantUltimate, IsUltimate(s), "IsUltimate")
			assert.Equal(t, tt.wantCommunity, IsCommunity(s), "IsCommunity")
			assert.Equal(t, tt.wantTrial, IsTrial(s), "IsTrial")

			expired, known := IsValidStateExpired(s)
			assert.Equal(t, tt.wantExpired, expired, "IsValidStateExpired")
			assert.Equal(t, tt.wantKnown, known, "known")
		})
	}
}
