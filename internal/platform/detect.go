package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using runtime and gopsutil.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect returns OS and architecture from the Go runtime and, on Linux, the
// distribution from gopsutil. A failed distro lookup is not an error; a
// cancelled context is.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		Arch:    normalizeArch(runtime.GOARCH),
		ArchRaw: runtime.GOARCH,
	}

	if runtime.GOOS != "linux" {
		return info, nil
	}

	platform, family, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return info, nil
	}

	if platform = normalizePlatform(platform); platform != "" {
		info.Platform = platform
		info.Family = mapFamily(family)
		info.Version = normalizePlatform(version)
	}

	return info, nil
}
