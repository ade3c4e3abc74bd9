// Package apperr holds the sentinel errors shared across the pipeline.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrAIUnavailable   = errors.New("ai capability unavailable")
	ErrPlanExecution   = errors.New("plan execution failed")
	ErrBackupIntegrity = errors.New("backup could not be confirmed")
	ErrNoDocuments     = errors.New("no documents")
	ErrInvalidPath     = errors.New("invalid path")
)
