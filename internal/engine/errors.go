package engine

import "errors"

// Sequence and registry rejections. None of these are fatal: callers may
// issue the corresponding requests legitimately (double clicks, late
// triggers) and should treat them as "nothing happened".
var (
	ErrMissionIndexOutOfRange  = errors.New("mission index out of range")
	ErrMissionActive           = errors.New("current mission must be finished before starting the next")
	ErrMissionPending          = errors.New("current mission has a pending delayed start")
	ErrAwaitingAdvance         = errors.New("current mission finished; waiting for the next mission to start")
	ErrNothingToFinish         = errors.New("no started mission to finish")
	ErrSequenceComplete        = errors.New("sequence complete")
	ErrMissingRealization      = errors.New("mission realization could not be resolved")
	ErrSequenceIndexOutOfRange = errors.New("sequence index out of range")
	ErrSequenceAlreadyStarted  = errors.New("sequence already started")
)
