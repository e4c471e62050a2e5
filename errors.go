package stategraph

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("stategraph: no store configured")
	ErrStoreClosed     = errors.New("stategraph: store closed")
	ErrMigrationFailed = errors.New("stategraph: migration failed")

	// Not found errors.
	ErrUnknownGraph       = errors.New("stategraph: unknown graph")
	ErrUnknownExecution   = errors.New("stategraph: unknown execution")
	ErrUnknownHandler     = errors.New("stategraph: unknown task handler")
	ErrDeadLetterNotFound = errors.New("stategraph: dead letter entry not found")
	ErrEventNotFound      = errors.New("stategraph: event not found")

	// Conflict errors.
	ErrExecutionExists = errors.New("stategraph: execution already exists")
	ErrDuplicateGraph  = errors.New("stategraph: duplicate graph")
	ErrDuplicateTask   = errors.New("stategraph: duplicate task handler")

	// State errors.
	ErrStaleStep         = errors.New("stategraph: stale step claim")
	ErrExecutionFinished = errors.New("stategraph: execution already finished")

	// Graph and document errors.
	ErrInvalidGraph = errors.New("stategraph: invalid graph")
	ErrPathConflict = errors.New("stategraph: path conflict")
	ErrInvalidPath  = errors.New("stategraph: invalid path")
)
