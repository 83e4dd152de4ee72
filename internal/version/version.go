// Package version reports the build version of the binaries.
//
// The values are set at build time:
//
//	go build -ldflags "-X github.com/information-sharing-networks/cmp-trust/internal/version.version=v1.2.0 \
//	  -X github.com/information-sharing-networks/cmp-trust/internal/version.buildDate=2026-10-19T10:00:00Z \
//	  -X github.com/information-sharing-networks/cmp-trust/internal/version.gitCommit=abc1234"
//
// Without ldflags the module version and VCS settings embedded by the go tool are used.
package version

import "runtime/debug"

var (
	version   = ""
	buildDate = ""
	gitCommit = ""
)

// Info describes a build.
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
}

// Get returns the version information of the running binary.
func Get() Info {
	info := Info{Version: version, BuildDate: buildDate, GitCommit: gitCommit}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "" {
					info.BuildDate = s.Value
				}
			}
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	return info
}
