/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build information.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the current version of CrewDesk.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/crewdesk/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit is the VCS revision, filled from build info when not set via ldflags.
var Commit = ""

// Revision returns the short VCS revision the binary was built from, if known.
func Revision() string {
	if Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}

// String formats the version for CLI output.
func String() string {
	if rev := Revision(); rev != "" {
		return fmt.Sprintf("%s (%s)", Version, rev)
	}
	return Version
}
