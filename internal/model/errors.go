package model

import "errors"

// Failure kinds. Callers wrap these with context and match with errors.Is.
var (
	ErrEnvironmentNotFound = errors.New("environment not found")
	ErrNameRequired        = errors.New("environment name required")
	ErrNoSelection         = errors.New("no environment selected")
	ErrNoToolAvailable     = errors.New("no environment creation tool available")
	ErrIO                  = errors.New("registry I/O failure")
	ErrExternalTool        = errors.New("external tool failed")

	ErrInvalidName         = errors.New("invalid environment name")
	ErrEnvironmentExists   = errors.New("environment already exists")
	ErrEnvironmentActive   = errors.New("environment is active")
	ErrNoActiveEnvironment = errors.New("no environment active")
	ErrNoEnvironments      = errors.New("no environments registered")
	ErrUnsafePath          = errors.New("refusing to delete unsafe path")
	ErrNoInstaller         = errors.New("no package installer available")
)
