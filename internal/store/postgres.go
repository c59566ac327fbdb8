package store

import (
	"context"
	_ "embed"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

//go:embed schema/postgres.sql
var postgresSchema string

// PostgresStore keeps graphs in the facts table of a PostgreSQL database.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return errors.Wrap(err, "apply postgres schema")
	}
	return nil
}

func (s *PostgresStore) ReadAll(ctx context.Context, graph domain.GraphID) ([]domain.Fact, error) {
	rows, err := s.db.Query(ctx,
		`SELECT subject, predicate, object_kind, object_value
		 FROM facts WHERE graph = $1`,
		string(graph),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "query graph %s", graph)
	}
	defer rows.Close()

	var facts []domain.Fact
	for rows.Next() {
		var subject, predicate, kind, value string
		if err := rows.Scan(&subject, &predicate, &kind, &value); err != nil {
			return nil, errors.Wrap(err, "scan fact")
		}
		f, err := decodeFact(subject, predicate, kind, value)
		if err != nil {
			return nil, errors.Wrapf(err, "graph %s", graph)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "read graph %s", graph)
	}
	slices.SortFunc(facts, domain.Fact.Compare)
	return facts, nil
}

func (s *PostgresStore) Count(ctx context.Context, graph domain.GraphID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM facts WHERE graph = $1`, string(graph)).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "count graph %s", graph)
	}
	return n, nil
}

func (s *PostgresStore) Add(ctx context.Context, graph domain.GraphID, facts []domain.Fact) error {
	return s.Apply(ctx, domain.GraphWrite{Graph: graph, Mode: domain.WriteAdd, Facts: facts})
}

func (s *PostgresStore) Replace(ctx context.Context, graph domain.GraphID, facts []domain.Fact) error {
	return s.Apply(ctx, domain.GraphWrite{Graph: graph, Mode: domain.WriteReplace, Facts: facts})
}

// Apply runs the whole batch in a single transaction.
func (s *PostgresStore) Apply(ctx context.Context, writes ...domain.GraphWrite) error {
	if err := validateWrites(writes); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, w := range writes {
			if w.Mode == domain.WriteReplace {
				batch.Queue(`DELETE FROM facts WHERE graph = $1`, string(w.Graph))
			}
			for _, f := range w.Facts {
				batch.Queue(
					`INSERT INTO facts (graph, subject, predicate, object_kind, object_value)
					 VALUES ($1, $2, $3, $4, $5)
					 ON CONFLICT DO NOTHING`,
					string(w.Graph), f.Subject, f.Predicate, string(f.Object.Kind), f.Object.Lexical,
				)
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "apply graph writes")
		}
		return nil
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) AppendProvenance(ctx context.Context, records []domain.ProvenanceRecord) error {
	if err := validateProvenance(records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			ruleIDs := r.RuleIDs
			if ruleIDs == nil {
				ruleIDs = []string{}
			}
			batch.Queue(
				`INSERT INTO provenance (subject, predicate, object_kind, object_value, origin, rule_ids,
				   producer, event, event_id, graph, rule_set_version, recorded_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				r.Fact.Subject, r.Fact.Predicate, string(r.Fact.Object.Kind), r.Fact.Object.Lexical,
				string(r.Origin), ruleIDs, r.Producer, string(r.Event), r.EventID.String(),
				string(r.Graph), r.RuleSetVersion, r.RecordedAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrap(err, "append provenance")
		}
		return nil
	})
}

func (s *PostgresStore) ListProvenance(ctx context.Context, filter domain.ProvenanceFilter) ([]domain.ProvenanceRecord, error) {
	q, args := provenanceSelect(filter, func(n int) string { return "$" + strconv.Itoa(n) })
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query provenance")
	}
	defer rows.Close()

	out := []domain.ProvenanceRecord{}
	for rows.Next() {
		var row provenanceRow
		var ruleIDs []string
		if err := rows.Scan(&row.seq, &row.subject, &row.predicate, &row.kind, &row.value, &row.origin, &ruleIDs,
			&row.producer, &row.event, &row.eventID, &row.graph, &row.rsv, &row.recordedAt); err != nil {
			return nil, errors.Wrap(err, "scan provenance")
		}
		if len(ruleIDs) == 0 {
			ruleIDs = nil
		}
		rec, err := row.record(ruleIDs)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read provenance")
	}
	return out, nil
}
