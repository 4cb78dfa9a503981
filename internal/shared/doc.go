// Package shared holds helpers used by more than one package's tests.
//
// The testutil subpackage provides a capturing slog handler (NewTestLogger and the
// AssertLog* helpers) and license fixtures built on the contracts domain types:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc, err := services.NewLicenseService(repo, settings, "5.3.0", logger, services.WithServiceClock(clock))
//	testutil.AssertLogContains(t, logs, slog.LevelInfo, "license saved")
package shared
