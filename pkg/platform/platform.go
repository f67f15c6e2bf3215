// Package platform detects which supported platform the host is, so the
// dispatcher can pick the matching entry-point script. Detection is a pure
// function of host state and never fails; an unrecognized host yields
// Unknown, which downstream treats as a fatal condition.
package platform

import (
	"os"
	"runtime"
	"strings"

	"github.com/dotup-sh/dotup/pkg/logging"
)

// Platform identifies a supported host platform. The string value doubles
// as the entry-point lookup key.
type Platform string

const (
	MacOS        Platform = "macos"
	Ubuntu       Platform = "ubuntu"
	WSL          Platform = "wsl"
	GenericLinux Platform = "linux"
	Unknown      Platform = "unknown"
)

// Known reports whether p is a platform the dispatcher can act on.
func (p Platform) Known() bool {
	return p != Unknown
}

func (p Platform) String() string {
	return string(p)
}

// Detector inspects host signals to determine the platform. The probes are
// injectable so tests can simulate arbitrary hosts.
type Detector struct {
	kernelName  func() string
	procVersion func() string
	osRelease   func() string
}

// NewDetector returns a Detector using the real host probes.
func NewDetector() *Detector {
	return &Detector{
		kernelName:  func() string { return runtime.GOOS },
		procVersion: func() string { return readFile("/proc/version") },
		osRelease:   func() string { return readFile("/etc/os-release") },
	}
}

// Detect returns the host platform. Decision order, first match wins:
// macOS kernel; Linux with a Windows-subsystem marker in the kernel version;
// Linux identified as Ubuntu; any other Linux; anything else is Unknown.
func (d *Detector) Detect() Platform {
	logger := logging.GetLogger("platform")

	kernel := d.kernelName()

	var detected Platform
	switch {
	case kernel == "darwin":
		detected = MacOS
	case kernel == "linux" && isWSL(d.procVersion()):
		detected = WSL
	case kernel == "linux" && isUbuntu(d.osRelease()):
		detected = Ubuntu
	case kernel == "linux":
		detected = GenericLinux
	default:
		detected = Unknown
	}

	logger.Debug().
		Str("kernel", kernel).
		Str("platform", detected.String()).
		Msg("Platform detected")

	return detected
}

// isWSL checks the kernel version string for the Windows subsystem marker.
// Both WSL1 ("Microsoft") and WSL2 ("microsoft-standard-WSL2") carry it.
func isWSL(procVersion string) bool {
	return strings.Contains(strings.ToLower(procVersion), "microsoft")
}

// isUbuntu checks the distro release file for an Ubuntu identification.
func isUbuntu(osRelease string) bool {
	for _, line := range strings.Split(osRelease, "\n") {
		if strings.HasPrefix(line, "ID=") {
			id := strings.Trim(strings.TrimPrefix(line, "ID="), `"`)
			return id == "ubuntu"
		}
	}
	return false
}

func readFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
