package runtime

// Status is the engine-agnostic status vocabulary workflow statuses are
// mapped onto (spec §4.5).
type Status string

const (
	StatusQueued   Status = "queued"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusDeferred Status = "deferred"
	StatusCancelled Status = "cancelled"
)

// engineExecutionStatus mirrors the subset of Temporal's
// enums.WorkflowExecutionStatus values the adapter maps; kept as plain ints
// here so this package has no compile-time dependency on the SDK's enum
// package beyond the adapter that calls MapExecutionStatus.
type engineExecutionStatus int32

const (
	engineStatusUnspecified engineExecutionStatus = iota
	engineStatusRunning
	engineStatusCompleted
	engineStatusFailed
	engineStatusCanceled
	engineStatusTerminated
	engineStatusContinuedAsNew
	engineStatusTimedOut
)

// MapExecutionStatus maps a Temporal WorkflowExecutionStatus (passed as its
// underlying int32) onto the adapter's Status vocabulary.
func MapExecutionStatus(raw int32) Status {
	switch engineExecutionStatus(raw) {
	case engineStatusRunning:
		return StatusStarted
	case engineStatusCompleted:
		return StatusFinished
	case engineStatusFailed, engineStatusTimedOut:
		return StatusFailed
	case engineStatusCanceled, engineStatusTerminated:
		return StatusCancelled
	case engineStatusContinuedAsNew:
		return StatusDeferred
	default:
		return StatusQueued
	}
}
