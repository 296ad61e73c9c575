// Package platform detects the host OS, architecture and Linux distribution
// and exposes them to formulas as a read-only Lua table.
//
// Formulas use it to pick platform-specific build flags, for example pointing
// CMake at Homebrew's readline on macOS. Distribution detection goes through
// gopsutil and degrades to OS/arch only when it fails.
package platform

import "context"

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "freebsd", ...
	Arch     string // normalized: "amd64", "arm64", or GOARCH as-is
	ArchRaw  string // original GOARCH
	Platform string // distro ID (Linux only, e.g. "ubuntu")
	Family   string // canonical family (Linux only, e.g. "debian")
	Version  string // distro version (Linux only, e.g. "22.04")
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsAppleSilicon returns true on macOS arm64, where Homebrew lives in /opt/homebrew.
func (i *Info) IsAppleSilicon() bool {
	return i.OS == "darwin" && i.Arch == "arm64"
}

// HomebrewPrefix returns the conventional Homebrew prefix for the platform,
// or "" where Homebrew is not the usual package manager.
func (i *Info) HomebrewPrefix() string {
	switch {
	case i.IsAppleSilicon():
		return "/opt/homebrew"
	case i.IsMacOS():
		return "/usr/local"
	default:
		return ""
	}
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info. Useful for tests and --platform overrides.
type StaticDetector struct {
	Info Info
}

// Detect returns a copy of the static info.
func (s StaticDetector) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info := s.Info
	return &info, nil
}
