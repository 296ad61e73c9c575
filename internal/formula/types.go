// Package formula loads, validates and generates Leizi formula files.
//
// A formula is a Lua file that assigns a global "formula" table describing
// where the source comes from, how to build it, and how to test the result.
// Formulas run in a sandboxed gopher-lua VM with a read-only "platform"
// table, so they can vary build flags per OS without touching the host.
package formula

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Build types accepted by CMAKE_BUILD_TYPE.
const (
	BuildTypeDebug   = "Debug"
	BuildTypeRelease = "Release"
)

// Test kinds. Each maps to one failure kind in the verification report.
const (
	KindVersion   = "version"
	KindExecution = "execution"
	KindFeature   = "feature"
)

// MaxTests bounds the number of test entries in one formula.
const MaxTests = 64

// Formula describes one packaged release of the shell.
type Formula struct {
	Name     string `json:"name"`
	Desc     string `json:"desc,omitempty"`
	Homepage string `json:"homepage,omitempty"`
	Version  string `json:"version"`
	License  string `json:"license,omitempty"`

	// Release tarball and its integrity data.
	URL          string `json:"url,omitempty"`
	SHA256       string `json:"sha256,omitempty"`
	SignatureURL string `json:"signature_url,omitempty"`
	SigningKey   string `json:"signing_key,omitempty"` // armored public key

	Head    Head       `json:"head,omitempty"`
	Depends Depends    `json:"depends_on,omitempty"`
	Build   BuildSpec  `json:"build"`
	Binary  string     `json:"binary"`
	Caveats CaveatSpec `json:"caveats,omitempty"`
	Tests   []TestSpec `json:"tests,omitempty"`
}

// Head is the development checkout used by --head installs.
type Head struct {
	URL    string `json:"url,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// Depends lists tools needed at build time and libraries needed at run time.
type Depends struct {
	Build   []string `json:"build,omitempty"`
	Runtime []string `json:"runtime,omitempty"`
}

// BuildSpec holds the formula's build defaults. Settings may override Type.
type BuildSpec struct {
	Type  string   `json:"type,omitempty"`
	Flags []string `json:"flags,omitempty"`
}

// CaveatSpec feeds the post-install guidance text.
type CaveatSpec struct {
	ConfigPath string `json:"config_path,omitempty"`
	DocsURL    string `json:"docs_url,omitempty"`
}

// TestSpec is one black-box check against the installed binary.
type TestSpec struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Args   []string `json:"args,omitempty"`
	Input  string   `json:"input,omitempty"`
	Expect string   `json:"expect"`
	Regex  bool     `json:"regex,omitempty"`
}

// ValidationError represents a formula validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "formula validation failed for " + e.Field + ": " + e.Message
	}
	return "formula validation failed: " + e.Message
}

var (
	namePattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	versionPattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z.+_-]*$`)
)

// Validate checks the formula for structural errors.
func (f *Formula) Validate() error {
	if !namePattern.MatchString(f.Name) {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("invalid name %q", f.Name)}
	}
	if !versionPattern.MatchString(f.Version) {
		return &ValidationError{Field: "version", Message: fmt.Sprintf("invalid version %q", f.Version)}
	}

	if f.URL == "" && f.Head.URL == "" {
		return &ValidationError{Message: "either url or head.url is required"}
	}
	if f.URL != "" {
		if err := validateURL(f.URL); err != nil {
			return &ValidationError{Field: "url", Message: err.Error()}
		}
	}
	if f.SHA256 != "" {
		if b, err := hex.DecodeString(f.SHA256); err != nil || len(b) != 32 {
			return &ValidationError{Field: "sha256", Message: "must be 64 hex characters"}
		}
	}
	if f.SignatureURL != "" {
		if err := validateURL(f.SignatureURL); err != nil {
			return &ValidationError{Field: "signature_url", Message: err.Error()}
		}
		if strings.TrimSpace(f.SigningKey) == "" {
			return &ValidationError{Field: "signing_key", Message: "required when signature_url is set"}
		}
	}
	if f.Head.URL != "" {
		if err := validateURL(f.Head.URL); err != nil {
			return &ValidationError{Field: "head.url", Message: err.Error()}
		}
	}

	switch f.Build.Type {
	case "", BuildTypeDebug, BuildTypeRelease:
	default:
		return &ValidationError{Field: "build.type", Message: fmt.Sprintf("must be %s or %s, got %q", BuildTypeDebug, BuildTypeRelease, f.Build.Type)}
	}
	for i, flag := range f.Build.Flags {
		if flag == "" {
			return &ValidationError{Field: fmt.Sprintf("build.flags[%d]", i), Message: "flag cannot be empty"}
		}
	}

	if f.Binary == "" || strings.ContainsAny(f.Binary, `/\`) || f.Binary == "." || f.Binary == ".." {
		return &ValidationError{Field: "binary", Message: fmt.Sprintf("invalid binary name %q", f.Binary)}
	}

	if len(f.Tests) > MaxTests {
		return &ValidationError{Field: "tests", Message: fmt.Sprintf("too many tests (%d), maximum is %d", len(f.Tests), MaxTests)}
	}
	seen := make(map[string]bool, len(f.Tests))
	for i, tc := range f.Tests {
		field := fmt.Sprintf("tests[%d]", i)
		if tc.Name == "" {
			return &ValidationError{Field: field + ".name", Message: "name cannot be empty"}
		}
		if seen[tc.Name] {
			return &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate test %q", tc.Name)}
		}
		seen[tc.Name] = true
		switch tc.Kind {
		case KindVersion, KindExecution, KindFeature:
		default:
			return &ValidationError{Field: field + ".kind", Message: fmt.Sprintf("unknown kind %q", tc.Kind)}
		}
		if tc.Expect == "" {
			return &ValidationError{Field: field + ".expect", Message: "expected pattern cannot be empty"}
		}
		if tc.Regex {
			if _, err := regexp.Compile(tc.Expect); err != nil {
				return &ValidationError{Field: field + ".expect", Message: err.Error()}
			}
		}
	}

	return nil
}

// BuildType returns the formula's build type, defaulting to Release.
func (f *Formula) BuildType() string {
	if f.Build.Type == "" {
		return BuildTypeRelease
	}
	return f.Build.Type
}

// Verified reports whether the release tarball carries a checksum.
func (f *Formula) Verified() bool {
	return f.SHA256 != ""
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must use https:// or http:// scheme (got: %s)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %s", raw)
	}
	return nil
}
