// Package contracts holds the build and wire-format versions shared by the
// server and its clients.
package contracts

import (
	"fmt"
	"runtime"
)

const (
	// APIVersion is the version of the calculation wire format
	APIVersion = "v1"

	// DataFormatVersion is the version of the csv and xlsx export layout
	DataFormatVersion = "v1"
)

// Set during build using ldflags.
var (
	Version   = "1.0.0"
	BuildTime = ""
	GitCommit = "unknown"
)

// VersionInfo contains detailed version information
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time,omitempty"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	DataFormat   string `json:"data_format"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		DataFormat:   DataFormatVersion,
		APIVersion:   APIVersion,
	}
}

// GetVersionString returns a formatted version string
func GetVersionString() string {
	return fmt.Sprintf("InvestGraph v%s", Version)
}

// GetFullVersionString returns a detailed version string
func GetFullVersionString() string {
	info := GetVersionInfo()
	built := info.BuildTime
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf(
		"%s (built: %s, commit: %s, go: %s, os: %s/%s)",
		GetVersionString(),
		built,
		info.GitCommit,
		info.GoVersion,
		info.OS,
		info.Architecture,
	)
}
