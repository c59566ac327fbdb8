package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type FactOrigin string

const (
	OriginAsserted FactOrigin = "asserted"
	OriginDerived  FactOrigin = "derived"
)

func ValidFactOrigin(o string) bool {
	switch FactOrigin(o) {
	case OriginAsserted, OriginDerived:
		return true
	}
	return false
}

type ProvenanceEvent string

const (
	EventSubmission ProvenanceEvent = "submission"
	EventCommit     ProvenanceEvent = "commit"
)

// ProvenanceRecord ties a fact to the decision that produced it. Submission
// records carry the producer; commit records carry the graph the fact was
// written to.
type ProvenanceRecord struct {
	Seq            int64           `json:"seq"`
	Fact           Fact            `json:"fact"`
	Origin         FactOrigin      `json:"origin"`
	RuleIDs        []string        `json:"rule_ids,omitempty"`
	Producer       string          `json:"producer,omitempty"`
	Event          ProvenanceEvent `json:"event"`
	EventID        uuid.UUID       `json:"event_id"`
	Graph          GraphID         `json:"graph,omitempty"`
	RuleSetVersion string          `json:"rule_set_version,omitempty"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

// ProvenanceFilter selects records; zero fields match everything. Results
// are in recording order starting after AfterSeq.
type ProvenanceFilter struct {
	Producer string
	EventID  uuid.UUID
	Subject  string
	Origin   FactOrigin
	AfterSeq int64
	Limit    int
}

func (f ProvenanceFilter) Matches(r ProvenanceRecord) bool {
	switch {
	case r.Seq <= f.AfterSeq:
		return false
	case f.Producer != "" && r.Producer != f.Producer:
		return false
	case f.EventID != uuid.Nil && r.EventID != f.EventID:
		return false
	case f.Subject != "" && r.Fact.Subject != f.Subject:
		return false
	case f.Origin != "" && r.Origin != f.Origin:
		return false
	}
	return true
}

// ProvenanceStore is an append-only ledger. Append assigns Seq.
type ProvenanceStore interface {
	AppendProvenance(ctx context.Context, records []ProvenanceRecord) error
	ListProvenance(ctx context.Context, filter ProvenanceFilter) ([]ProvenanceRecord, error)
}
