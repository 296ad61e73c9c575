// Package build drives the shell's CMake build: configure, compile and
// install, in that order, stopping at the first failing step.
package build

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/go-playground/validator/v10"
)

// ProfileSpec is the mutable input to NewProfile.
type ProfileSpec struct {
	SourcePath string   `validate:"required"`
	BuildDir   string   `validate:"required"`
	Prefix     string   `validate:"required"`
	BuildType  string   `validate:"required,oneof=Debug Release"`
	Binary     string   `validate:"required,excludesall=/"`
	ExtraFlags []string `validate:"dive,required"`
}

// Profile is a validated, immutable build configuration.
type Profile struct {
	spec ProfileSpec
}

var validate = validator.New()

// NewProfile validates spec and returns a Profile that owns a copy of it.
// All paths must be absolute.
func NewProfile(spec ProfileSpec) (*Profile, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, fmt.Errorf("invalid build profile: %w", err)
	}
	for name, p := range map[string]string{
		"SourcePath": spec.SourcePath,
		"BuildDir":   spec.BuildDir,
		"Prefix":     spec.Prefix,
	} {
		if !filepath.IsAbs(p) {
			return nil, fmt.Errorf("invalid build profile: %s must be absolute, got %q", name, p)
		}
	}
	spec.ExtraFlags = slices.Clone(spec.ExtraFlags)
	return &Profile{spec: spec}, nil
}

func (p *Profile) SourcePath() string { return p.spec.SourcePath }
func (p *Profile) BuildDir() string   { return p.spec.BuildDir }
func (p *Profile) Prefix() string     { return p.spec.Prefix }
func (p *Profile) BuildType() string  { return p.spec.BuildType }
func (p *Profile) Binary() string     { return p.spec.Binary }

// ExtraFlags returns a copy of the additional configure flags.
func (p *Profile) ExtraFlags() []string { return slices.Clone(p.spec.ExtraFlags) }

// BinaryPath is where the install step is expected to place the binary.
func (p *Profile) BinaryPath() string {
	return filepath.Join(p.spec.Prefix, "bin", p.spec.Binary)
}
