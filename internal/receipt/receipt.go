// Package receipt records what an install did and holds the per-prefix
// install lock.
//
// The receipt is a TOML file in the prefix. It is rewritten atomically
// after every stage transition, so an interrupted install leaves a receipt
// that names the stage it died in.
package receipt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// FileName is the receipt's name inside the prefix.
const FileName = "INSTALL_RECEIPT.toml"

// SchemaVersion is written to every receipt.
const SchemaVersion = 1

// State is a stage's progress.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Pipeline stages, in order.
const (
	StageFetch     = "fetch"
	StageConfigure = "configure"
	StageBuild     = "build"
	StageInstall   = "install"
	StageScript    = "script"
)

// Stages lists the pipeline stages in execution order.
var Stages = []string{StageFetch, StageConfigure, StageBuild, StageInstall, StageScript}

// ErrUnknownStage is returned for a stage name not in the receipt.
var ErrUnknownStage = errors.New("unknown stage")

// StageRecord tracks one stage.
type StageRecord struct {
	Name       string    `toml:"name"`
	State      State     `toml:"state"`
	StartedAt  time.Time `toml:"started_at"`
	FinishedAt time.Time `toml:"finished_at"`
	LastError  string    `toml:"last_error,omitempty"`
}

// Receipt describes one install run.
type Receipt struct {
	Version        int           `toml:"version"`
	ID             string        `toml:"id"`
	Formula        string        `toml:"formula"`
	FormulaVersion string        `toml:"formula_version"`
	Method         string        `toml:"method,omitempty"`
	SourceDigest   string        `toml:"source_digest,omitempty"`
	BuildType      string        `toml:"build_type"`
	ExtraFlags     []string      `toml:"extra_flags,omitempty"`
	Prefix         string        `toml:"prefix"`
	Binary         string        `toml:"binary,omitempty"`
	Script         string        `toml:"script,omitempty"`
	CreatedAt      time.Time     `toml:"created_at"`
	UpdatedAt      time.Time     `toml:"updated_at"`
	Stages         []StageRecord `toml:"stages"`
}

// New creates a receipt with every stage pending.
func New(formula, version, buildType, prefix string, now time.Time) *Receipt {
	stages := make([]StageRecord, 0, len(Stages))
	for _, name := range Stages {
		stages = append(stages, StageRecord{Name: name, State: StatePending})
	}
	return &Receipt{
		Version:        SchemaVersion,
		ID:             uuid.New().String(),
		Formula:        formula,
		FormulaVersion: version,
		BuildType:      buildType,
		Prefix:         prefix,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
		Stages:         stages,
	}
}

func (r *Receipt) stage(name string) (*StageRecord, error) {
	for i := range r.Stages {
		if r.Stages[i].Name == name {
			return &r.Stages[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStage, name)
}

// Start marks a stage in progress.
func (r *Receipt) Start(name string, now time.Time) error {
	s, err := r.stage(name)
	if err != nil {
		return err
	}
	s.State = StateInProgress
	s.StartedAt = now.UTC()
	s.LastError = ""
	r.UpdatedAt = now.UTC()
	return nil
}

// Finish marks a stage completed, or failed when cause is non-nil.
func (r *Receipt) Finish(name string, now time.Time, cause error) error {
	s, err := r.stage(name)
	if err != nil {
		return err
	}
	s.FinishedAt = now.UTC()
	if cause != nil {
		s.State = StateFailed
		s.LastError = cause.Error()
	} else {
		s.State = StateCompleted
	}
	r.UpdatedAt = now.UTC()
	return nil
}

// StateOf returns a stage's state.
func (r *Receipt) StateOf(name string) State {
	s, err := r.stage(name)
	if err != nil {
		return ""
	}
	return s.State
}

// Completed reports whether every stage completed.
func (r *Receipt) Completed() bool {
	for _, s := range r.Stages {
		if s.State != StateCompleted {
			return false
		}
	}
	return len(r.Stages) > 0
}

// FailedStage returns the first failed stage, or nil.
func (r *Receipt) FailedStage() *StageRecord {
	for i := range r.Stages {
		if r.Stages[i].State == StateFailed {
			return &r.Stages[i]
		}
	}
	return nil
}

// Save writes the receipt to dir/INSTALL_RECEIPT.toml atomically.
func (r *Receipt) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create receipt directory: %w", err)
	}

	data, err := toml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	finalPath := filepath.Join(dir, FileName)
	tmp, err := os.CreateTemp(dir, "."+FileName+".*")
	if err != nil {
		return fmt.Errorf("create temporary receipt: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temporary receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary receipt: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temporary receipt: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("rename receipt: %w", err)
	}
	return nil
}

// Load reads the receipt in dir.
func Load(dir string) (*Receipt, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	var r Receipt
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	if r.Version > SchemaVersion {
		return nil, fmt.Errorf("receipt schema version %d is newer than supported %d", r.Version, SchemaVersion)
	}
	return &r, nil
}
