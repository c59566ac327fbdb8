// Package store implements the named-graph fact store and the producer
// registry.
package store

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidWrite = errors.New("invalid graph write")
	ErrCorruptFact  = errors.New("stored fact is not well formed")
)

func validateWrites(writes []domain.GraphWrite) error {
	for i, w := range writes {
		if w.Graph == "" {
			return errors.Wrapf(ErrInvalidWrite, "write %d has no graph", i)
		}
		if w.Mode != domain.WriteAdd && w.Mode != domain.WriteReplace {
			return errors.Wrapf(ErrInvalidWrite, "write %d has mode %q", i, w.Mode)
		}
		for _, f := range w.Facts {
			if err := f.Validate(); err != nil {
				return errors.Mark(errors.Wrapf(err, "write %d", i), ErrInvalidWrite)
			}
		}
	}
	return nil
}

// decodeFact rebuilds a fact from its stored columns.
func decodeFact(subject, predicate, kind, lexical string) (domain.Fact, error) {
	f := domain.NewFact(subject, predicate, domain.Term{Kind: domain.TermKind(kind), Lexical: lexical})
	if err := f.Validate(); err != nil {
		return domain.Fact{}, errors.Mark(err, ErrCorruptFact)
	}
	return f, nil
}

func validateProvenance(records []domain.ProvenanceRecord) error {
	for i, r := range records {
		if err := r.Fact.Validate(); err != nil {
			return errors.Mark(errors.Wrapf(err, "provenance record %d", i), ErrInvalidWrite)
		}
		if !domain.ValidFactOrigin(string(r.Origin)) {
			return errors.Wrapf(ErrInvalidWrite, "provenance record %d has origin %q", i, r.Origin)
		}
		if r.Event != domain.EventSubmission && r.Event != domain.EventCommit {
			return errors.Wrapf(ErrInvalidWrite, "provenance record %d has event %q", i, r.Event)
		}
		if r.EventID == uuid.Nil {
			return errors.Wrapf(ErrInvalidWrite, "provenance record %d has no event id", i)
		}
	}
	return nil
}

const provenanceColumns = `seq, subject, predicate, object_kind, object_value, origin, rule_ids,
	producer, event, event_id, graph, rule_set_version, recorded_at`

// provenanceSelect builds the ledger query for f. placeholder renders the
// n-th bind parameter in the backend's dialect.
func provenanceSelect(f domain.ProvenanceFilter, placeholder func(n int) string) (string, []any) {
	args := []any{f.AfterSeq}
	where := []string{"seq > " + placeholder(1)}
	add := func(column string, v any) {
		args = append(args, v)
		where = append(where, column+" = "+placeholder(len(args)))
	}
	if f.Producer != "" {
		add("producer", f.Producer)
	}
	if f.EventID != uuid.Nil {
		add("event_id", f.EventID.String())
	}
	if f.Subject != "" {
		add("subject", f.Subject)
	}
	if f.Origin != "" {
		add("origin", string(f.Origin))
	}

	q := "SELECT " + provenanceColumns + " FROM provenance WHERE " + strings.Join(where, " AND ") + " ORDER BY seq"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += " LIMIT " + placeholder(len(args))
	}
	return q, args
}

type provenanceRow struct {
	seq                                 int64
	subject, predicate, kind, value     string
	origin, producer, event, graph, rsv string
	eventID                             string
	recordedAt                          time.Time
}

func (r provenanceRow) record(ruleIDs []string) (domain.ProvenanceRecord, error) {
	f, err := decodeFact(r.subject, r.predicate, r.kind, r.value)
	if err != nil {
		return domain.ProvenanceRecord{}, errors.Wrapf(err, "provenance %d", r.seq)
	}
	id, err := uuid.Parse(r.eventID)
	if err != nil {
		return domain.ProvenanceRecord{}, errors.Mark(errors.Wrapf(err, "provenance %d event id", r.seq), ErrCorruptFact)
	}
	return domain.ProvenanceRecord{
		Seq:            r.seq,
		Fact:           f,
		Origin:         domain.FactOrigin(r.origin),
		RuleIDs:        ruleIDs,
		Producer:       r.producer,
		Event:          domain.ProvenanceEvent(r.event),
		EventID:        id,
		Graph:          domain.GraphID(r.graph),
		RuleSetVersion: r.rsv,
		RecordedAt:     r.recordedAt.UTC(),
	}, nil
}
