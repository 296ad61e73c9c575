// Package doctor compares what an install should have left on disk with
// what is actually there.
//
// It looks at four sources: the prefix (binary, post-install script,
// receipt), the shell registry, the user's login shell and the build
// dependencies on PATH.
package doctor

// Status is the outcome of one check.
type Status int

const (
	StatusOK Status = iota
	StatusMissing
	StatusNotExecutable
	StatusBadMode
	StatusNotRegistered
	StatusNotLoginShell
	StatusIncomplete
	StatusUnknown
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusMissing:
		return "MISSING"
	case StatusNotExecutable:
		return "NOT_EXECUTABLE"
	case StatusBadMode:
		return "BAD_MODE"
	case StatusNotRegistered:
		return "NOT_REGISTERED"
	case StatusNotLoginShell:
		return "NOT_LOGIN_SHELL"
	case StatusIncomplete:
		return "INCOMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Advisory statuses are reported but do not make the install unhealthy.
func (s Status) Advisory() bool {
	return s == StatusNotLoginShell
}

// Check names.
const (
	CheckBinary     = "binary"
	CheckScript     = "post-install script"
	CheckReceipt    = "receipt"
	CheckRegistry   = "shell registry"
	CheckLoginShell = "login shell"
	CheckBuildDep   = "build dependency"
)

// Finding is a single doctor result.
type Finding struct {
	Check  string
	Status Status
	// Subject is the file, entry or tool the check looked at.
	Subject string
	Detail  string
	// Hint tells the user how to fix a problem.
	Hint string
}

// Healthy reports whether no finding is a non-advisory problem.
func Healthy(findings []Finding) bool {
	for _, f := range findings {
		if f.Status != StatusOK && !f.Status.Advisory() {
			return false
		}
	}
	return true
}
