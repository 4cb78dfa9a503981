package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensebridge/internal/shared/testutil"
	"licensebridge/pkg/contracts/domain"
)

func TestReducersDoNotMutateInput(t *testing.T) {
	base := NewState(epoch)
	license := testutil.BusinessLicense(1, "KEY-0000-0001")
	status := testutil.UltimateStatus(license, epoch, domain.ConditionValidLicense)

	next := setLicenses(base, []LicenseKey{license})
	next = setStatus(next, status)
	next = setNow(next, epoch.Add(time.Minute))
	next = setInstallationID(next, "install-1")
	next = setInitialized(next, true)

	assert.Empty(t, base.Licenses)
	assert.Equal(t, domain.EditionCommunity, base.Status.Edition)
	assert.True(t, base.Now.Equal(epoch))
	assert.Nil(t, base.InstallationID)
	assert.False(t, base.Initialized)

	require.Len(t, next.Licenses, 1)
	assert.Same(t, status, next.Status)
	assert.True(t, next.Now.Equal(epoch.Add(time.Minute)))
	require.NotNil(t, next.InstallationID)
	assert.Equal(t, "install-1", *next.InstallationID)
	assert.True(t, next.Initialized)
}

func TestStateClone(t *testing.T) {
	s := setInstallationID(NewState(epoch), "install-1")
	s.Licenses = []LicenseKey{testutil.ExpiredLicense(1, epoch, "v1.0.0")}

	c := s.Clone()
	*c.InstallationID = "other"
	c.Licenses[0].MaxAllowedAppRelease.TagName = "v2.0.0"
	c.Status.Edition = domain.EditionUltimate

	assert.Equal(t, "install-1", *s.InstallationID)
	assert.Equal(t, "v1.0.0", s.Licenses[0].MaxAllowedAppRelease.TagName)
	assert.Equal(t, domain.EditionCommunity, s.Status.Edition)
}

func TestMaskAndHashLicenseKey(t *testing.T) {
	assert.Equal(t, "****", MaskLicenseKey("premium"))
	assert.Equal(t, "auto****mium", MaskLicenseKey("auto_premium"))
	assert.Empty(t, HashLicenseKey(""))
	assert.Len(t, HashLicenseKey("auto_premium"), 16)
	assert.Equal(t, HashLicenseKey("k"), HashLicenseKey("k"))
}
