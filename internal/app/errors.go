package app

import "errors"

// Public sentinel errors the coordinator surfaces, per the input/transient/
// storage/invariant taxonomy: input errors are the caller's fault and
// carry no retry; InternalError covers exhausted storage retries;
// InvariantViolated marks a bug, not a caller mistake.
var (
	ErrNoCandidates       = errors.New("app: no active employees available")
	ErrAlreadyAssigned    = errors.New("app: task already has an open assignment")
	ErrAlreadyCompleted   = errors.New("app: task already has feedback recorded")
	ErrUnknownTask        = errors.New("app: unknown task")
	ErrUnknownEmployee    = errors.New("app: unknown employee")
	ErrInvalidManualTarget = errors.New("app: manual_employee_id is not a currently active employee")
	ErrInvariantViolated  = errors.New("app: invariant violated")
	ErrInternalError      = errors.New("app: internal error")
)
