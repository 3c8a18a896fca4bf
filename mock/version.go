package mock

import (
	"fmt"

	"github.com/blang/semver/v4"
)

// Version information for the inline mock runtime.
const (
	// Version is the current version of the runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

var runtimeVersion = semver.MustParse(Version)

// Info provides runtime information.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Dispatch describes the dispatch strategy.
	Dispatch string

	// Installed indicates whether a session is installed.
	Installed bool
}

// GetInfo returns information about the runtime.
//
// Example:
//
//	info := mock.GetInfo()
//	fmt.Printf("inlinemock %s (%s)\n", info.Version, info.Dispatch)
func GetInfo() Info {
	return Info{
		Version:   Version,
		Dispatch:  "identity registry + goroutine reentrancy guard",
		Installed: Current() != nil,
	}
}

// Compatible reports whether code generated for runtime version v can run
// against this runtime: same major version, and v not newer than the
// runtime. A leading "v" is accepted.
func Compatible(v string) error {
	gen, err := semver.ParseTolerant(v)
	if err != nil {
		return fmt.Errorf("parse generator version %q: %w", v, err)
	}
	if gen.Major != runtimeVersion.Major {
		return fmt.Errorf("generated for runtime %s, major version differs from %s", gen, runtimeVersion)
	}
	if gen.GT(runtimeVersion) {
		return fmt.Errorf("generated for runtime %s, newer than %s", gen, runtimeVersion)
	}
	return nil
}
