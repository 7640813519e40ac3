package contracts

import (
	"runtime"
	"runtime/debug"
)

const (
	// Version is the current version of the application
	Version = "0.3.0"

	// APIVersion is the version of the local API and WebSocket messages
	APIVersion = "v1"

	// PipelineProtocol names the remote action set the controller speaks
	PipelineProtocol = "start/check*/getresult"
)

// Set with -ldflags "-X"; when empty they are read from the embedded VCS stamp
var (
	BuildTime = ""
	GitCommit = ""
)

// VersionInfo is served by /api/version
type VersionInfo struct {
	Version          string `json:"version"`
	APIVersion       string `json:"api_version"`
	PipelineProtocol string `json:"pipeline_protocol"`
	GitCommit        string `json:"git_commit"`
	BuildTime        string `json:"build_time"`
	Modified         bool   `json:"modified,omitempty"`
	GoVersion        string `json:"go_version"`
	Platform         string `json:"platform"`
}

// GetVersionInfo returns the build description of the running binary
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:          Version,
		APIVersion:       APIVersion,
		PipelineProtocol: PipelineProtocol,
		GitCommit:        GitCommit,
		BuildTime:        BuildTime,
		GoVersion:        runtime.Version(),
		Platform:         runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}

	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}
