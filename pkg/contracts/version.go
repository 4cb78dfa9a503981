// Package contracts holds the types shared by the license daemon and its clients.
package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version of the daemon and of the app release compared against a license's
	// max allowed release
	Version = "5.3.0"

	// APIVersion is the version of the bridge channel set
	APIVersion = "v1"
)

// Set with -ldflags "-X licensebridge/pkg/contracts.GitCommit=..."
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo describes the running binary
type VersionInfo struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
	BuildTime  string `json:"build_time"`
	GitCommit  string `json:"git_commit"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:    Version,
		APIVersion: APIVersion,
		BuildTime:  BuildTime,
		GitCommit:  GitCommit,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Banner formats the version for command output, e.g.
// "licensectl 5.3.0 (bridge v1, commit abc123, go1.24.0 linux/amd64)"
func (v VersionInfo) Banner(name string) string {
	return fmt.Sprintf("%s %s (bridge %s, commit %s, %s %s)",
		name, v.Version, v.APIVersion, v.GitCommit, v.GoVersion, v.Platform)
}
