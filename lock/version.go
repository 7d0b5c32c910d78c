package lock

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the semantic version of this module.
const Version = "v0.1.0"

// Info describes the lock runtime.
type Info struct {
	// Version is the module version.
	Version string

	// Handoff reports whether unlock hands ownership to the woken waiter.
	// Always false: woken waiters re-race the fast path.
	Handoff bool

	// WakeOrder is the order in which waiters are woken.
	WakeOrder string
}

// GetInfo returns information about the lock runtime.
//
// Example:
//
//	info := lock.GetInfo()
//	fmt.Printf("parklock %s (wake order %s)\n", info.Version, info.WakeOrder)
func GetInfo() Info {
	return Info{
		Version:   Version,
		Handoff:   false,
		WakeOrder: "FIFO",
	}
}

// VersionError reports an unusable or unsatisfied version requirement.
type VersionError struct {
	Required string
	Reason   string
}

// Error implements error.
func (e *VersionError) Error() string {
	return fmt.Sprintf("parklock %s: requirement %q %s", Version, e.Required, e.Reason)
}

// CheckCompatible reports whether this module satisfies a caller that needs
// at least version required. The major versions must match (v0 minors are
// treated as breaking, per semver).
//
// Example:
//
//	if err := lock.CheckCompatible("v0.1.0"); err != nil {
//		log.Fatal(err)
//	}
func CheckCompatible(required string) error {
	if !semver.IsValid(required) {
		return &VersionError{Required: required, Reason: "is not a valid semantic version"}
	}
	if semver.Major(required) != semver.Major(Version) {
		return &VersionError{Required: required, Reason: "has a different major version"}
	}
	if semver.Major(Version) == "v0" && semver.MajorMinor(required) != semver.MajorMinor(Version) {
		return &VersionError{Required: required, Reason: "has a different v0 minor version"}
	}
	if semver.Compare(Version, required) < 0 {
		return &VersionError{Required: required, Reason: "is newer than this module"}
	}
	return nil
}
