package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrConnectivity indicates the database could not be opened or read
	ErrConnectivity = errors.New("database unavailable")

	// ErrInvalidSchema indicates the declared schema is inconsistent
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrInvalidColumn indicates a column cannot be added in place
	ErrInvalidColumn = errors.New("invalid column change")

	// ErrIntegrity indicates a referential-integrity (foreign key) violation
	ErrIntegrity = errors.New("foreign key constraint failed")

	// ErrManualIntervention indicates automatic recovery was exhausted
	ErrManualIntervention = errors.New("manual intervention required")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
