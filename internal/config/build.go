package config

import (
	"fmt"
	"log/slog"
)

// Set with -ldflags "-X s3encrypt/internal/config.version=...", likewise
// commit and buildTime. Unset in local builds.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// BuildInfo describes the running binary. It is never read from the
// environment.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// NewBuildInfo reports the linker-injected build metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}

// String renders the form printed by the version command.
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", b.Version, b.Commit, b.BuildTime)
}

// LogValue groups the build fields under a single log attribute.
func (b BuildInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", b.Version),
		slog.String("commit", b.Commit),
	)
}
