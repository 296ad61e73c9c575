package source

import (
	"errors"
	"fmt"
)

// Fetch stages.
const (
	StageDownload = "download"
	StageVerify   = "verify"
	StageExtract  = "extract"
	StageClone    = "clone"
)

var (
	// ErrUnverified is returned when a release has no checksum and the
	// caller did not allow unverified sources.
	ErrUnverified = errors.New("release has no sha256; refusing unverified source")

	// ErrChecksumMismatch is returned when the downloaded archive does not
	// match the formula's sha256.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrNoHead is returned for --head installs of a formula without head.url.
	ErrNoHead = errors.New("formula has no head repository")
)

// FetchError reports a failed fetch stage.
type FetchError struct {
	Stage string
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.URL, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
