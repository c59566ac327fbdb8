package domain

import (
	"time"

	"github.com/google/uuid"
)

type SubmissionStatus string

const (
	StatusReceived   SubmissionStatus = "RECEIVED"
	StatusValidating SubmissionStatus = "VALIDATING"
	StatusAdmitted   SubmissionStatus = "ADMITTED"
	StatusRejected   SubmissionStatus = "REJECTED"
)

func (s SubmissionStatus) Terminal() bool {
	return s == StatusAdmitted || s == StatusRejected
}

type CommitState string

const (
	CommitCommitting CommitState = "COMMITTING"
	CommitCommitted  CommitState = "COMMITTED"
	CommitRolledBack CommitState = "ROLLED_BACK"
)

func (s CommitState) Terminal() bool {
	return s == CommitCommitted || s == CommitRolledBack
}

// RejectReason names why a submission or commit did not succeed.
type RejectReason string

const (
	ReasonNone            RejectReason = ""
	ReasonEmptySubmission RejectReason = "empty_submission"
	ReasonInvalidFact     RejectReason = "invalid_fact"
	ReasonShapeViolation  RejectReason = "shape_violation"
	ReasonContradiction   RejectReason = "contradiction"
	ReasonEngineFault     RejectReason = "engine_fault"
	ReasonStoreFault      RejectReason = "store_fault"
)

// SubmitResult is the decision for one producer submission.
type SubmitResult struct {
	ID             uuid.UUID        `json:"id"`
	Producer       string           `json:"producer"`
	Status         SubmissionStatus `json:"status"`
	Reason         RejectReason     `json:"reason,omitempty"`
	Detail         string           `json:"detail,omitempty"`
	Proposed       int              `json:"proposed"`
	Violations     []Violation      `json:"violations"`
	Contradictions []Contradiction  `json:"contradictions"`
	Derived        []DerivedFact    `json:"derived"`
	Iterations     int              `json:"reasoning_iterations"`
	Duration       time.Duration    `json:"duration_ns"`
}

// CommitResult is the outcome of one consensus-to-main commit cycle.
// Withheld holds derived facts that depend on a quarantined fact; they are
// written to neither main nor quarantine.
type CommitResult struct {
	CycleID        uuid.UUID       `json:"cycle_id"`
	State          CommitState     `json:"state"`
	Reason         RejectReason    `json:"reason,omitempty"`
	Detail         string          `json:"detail,omitempty"`
	Violations     []Violation     `json:"violations"`
	Contradictions []Contradiction `json:"contradictions"`
	Quarantined    []Contradiction `json:"quarantined"`
	Added          []Fact          `json:"added"`
	Derived        []DerivedFact   `json:"derived"`
	Withheld       []DerivedFact   `json:"withheld"`
	Iterations     int             `json:"reasoning_iterations"`
	Duration       time.Duration   `json:"duration_ns"`
}

// CommitEvent is published to producers after every COMMITTED cycle that
// added or quarantined facts.
type CommitEvent struct {
	ID          uuid.UUID       `json:"id"`
	CycleID     uuid.UUID       `json:"cycle_id"`
	At          time.Time       `json:"at"`
	Added       []Fact          `json:"added"`
	Derived     []DerivedFact   `json:"derived"`
	Quarantined []Contradiction `json:"quarantined"`
}
