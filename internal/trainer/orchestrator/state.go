package orchestrator

// State is a step in a single turn submission.
//
//	Init -> QuotaChecked -> Normalized -> Retrieved -> Generated -> Validated -> Persisted
//	                                         ^  |           |
//	                                         +--+-----------+  (one simplified, one strict retry)
//	Retrieved/Generated -> Fallback -> Persisted
//	Init -> Aborted (quota denial, unknown session, bad input)
//
// Any state may move to Aborted when the caller's context is cancelled or the
// commit fails; nothing is written in that case.
type State int

const (
	StateInit State = iota
	StateQuotaChecked
	StateNormalized
	StateRetrieved
	StateGenerated
	StateValidated
	StateFallback
	StatePersisted
	StateAborted
)

var stateNames = [...]string{
	StateInit:         "init",
	StateQuotaChecked: "quota_checked",
	StateNormalized:   "normalized",
	StateRetrieved:    "retrieved",
	StateGenerated:    "generated",
	StateValidated:    "validated",
	StateFallback:     "fallback",
	StatePersisted:    "persisted",
	StateAborted:      "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) terminal() bool { return s == StatePersisted || s == StateAborted }

// Prompt variants, used as the generation-attempt metric label.
const (
	variantPrimary    = "primary"
	variantSimplified = "simplified"
	variantStrict     = "strict"
)
