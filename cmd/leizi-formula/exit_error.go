package main

import (
	"errors"
	"fmt"

	"github.com/Zixiao-System/leizi-formula/internal/config"
	"github.com/Zixiao-System/leizi-formula/internal/formula"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// ExitError carries a specific exit code out of a RunE handler.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// usageError marks bad flags, arguments or configuration.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usage(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

// exitCode maps a command error to the process exit status: 0 on success,
// 2 for usage and configuration errors, 1 for everything else.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var (
		uErr     *usageError
		sErr     *config.SettingsError
		parseErr *formula.ParseError
		valErr   *formula.ValidationError
	)
	switch {
	case errors.As(err, &uErr), errors.As(err, &sErr), errors.As(err, &parseErr), errors.As(err, &valErr):
		return exitUsage
	default:
		return exitFailure
	}
}
