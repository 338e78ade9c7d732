package domain

// Reconciliation states
const (
	StateStart                = "START"
	StateCounterFetched       = "COUNTER_FETCHED"
	StateProceeding           = "PROCEEDING"
	StateAwaitingConfirmation = "AWAITING_CONFIRMATION"
	StateConfirmed            = "CONFIRMED"
	StateDeclined             = "DECLINED"
	StateTimedOut             = "TIMED_OUT"
	StateDone                 = "DONE"
)

// Confirmation outcomes
const (
	OutcomePending   = "pending"
	OutcomeConfirmed = "confirmed"
	OutcomeDeclined  = "declined"
	OutcomeTimedOut  = "timed-out"
)

// Reconciliation decisions
const (
	DecisionPublish = "publish"
	DecisionAbort   = "abort"
)

// Counter reading states
const (
	CounterPresent = "present"
	CounterAbsent  = "absent"
	CounterUnknown = "unknown"
)

// Remote artifact names used when the configuration does not override them
const (
	DefaultCounterFile      = "data.txt"
	DefaultDetailsFile      = "work_order_details.html"
	LocalCounterArtifact    = "temp_number.txt"
	DefaultTriggerExtension = ".xlsx"
)
