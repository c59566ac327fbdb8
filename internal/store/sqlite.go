package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"slices"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLiteStore keeps graphs in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "apply %q", p)
		}
	}

	s := NewSQLiteStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite store opened", zap.String("path", path), zap.Bool("wal_mode", true))
	return s, nil
}

// NewSQLiteStore wraps an already open database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return errors.Wrap(err, "apply sqlite schema")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReadAll(ctx context.Context, graph domain.GraphID) ([]domain.Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, predicate, object_kind, object_value
		 FROM facts WHERE graph = ?`,
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

func (s *SQLiteStore) Count(ctx context.Context, graph domain.GraphID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts WHERE graph = ?`, string(graph)).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "count graph %s", graph)
	}
	return n, nil
}

func (s *SQLiteStore) Add(ctx context.Context, graph domain.GraphID, facts []domain.Fact) error {
	return s.Apply(ctx, domain.GraphWrite{Graph: graph, Mode: domain.WriteAdd, Facts: facts})
}

func (s *SQLiteStore) Replace(ctx context.Context, graph domain.GraphID, facts []domain.Fact) error {
	return s.Apply(ctx, domain.GraphWrite{Graph: graph, Mode: domain.WriteReplace, Facts: facts})
}

// Apply runs the whole batch in a single transaction.
func (s *SQLiteStore) Apply(ctx context.Context, writes ...domain.GraphWrite) error {
	if err := validateWrites(writes); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		insert, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO facts (graph, subject, predicate, object_kind, object_value)
			 VALUES (?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return errors.Wrap(err, "prepare insert")
		}
		defer insert.Close()

		for _, w := range writes {
			if w.Mode == domain.WriteReplace {
				if _, err := tx.ExecContext(ctx, `DELETE FROM facts WHERE graph = ?`, string(w.Graph)); err != nil {
					return errors.Wrapf(err, "clear graph %s", w.Graph)
				}
			}
			for _, f := range w.Facts {
				_, err := insert.ExecContext(ctx,
					string(w.Graph), f.Subject, f.Predicate, string(f.Object.Kind), f.Object.Lexical)
				if err != nil {
					return errors.Wrapf(err, "insert into graph %s", w.Graph)
				}
			}
		}
		return nil
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) AppendProvenance(ctx context.Context, records []domain.ProvenanceRecord) error {
	if err := validateProvenance(records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		insert, err := tx.PrepareContext(ctx,
			`INSERT INTO provenance (subject, predicate, object_kind, object_value, origin, rule_ids,
			   producer, event, event_id, graph, rule_set_version, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return errors.Wrap(err, "prepare provenance insert")
		}
		defer insert.Close()

		for _, r := range records {
			ruleIDs := r.RuleIDs
			if ruleIDs == nil {
				ruleIDs = []string{}
			}
			encoded, err := json.Marshal(ruleIDs)
			if err != nil {
				return errors.Wrap(err, "encode rule ids")
			}
			_, err = insert.ExecContext(ctx,
				r.Fact.Subject, r.Fact.Predicate, string(r.Fact.Object.Kind), r.Fact.Object.Lexical,
				string(r.Origin), string(encoded), r.Producer, string(r.Event), r.EventID.String(),
				string(r.Graph), r.RuleSetVersion, r.RecordedAt.UTC(),
			)
			if err != nil {
				return errors.Wrap(err, "append provenance")
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListProvenance(ctx context.Context, filter domain.ProvenanceFilter) ([]domain.ProvenanceRecord, error) {
	q, args := provenanceSelect(filter, func(int) string { return "?" })
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query provenance")
	}
	defer rows.Close()

	out := []domain.ProvenanceRecord{}
	for rows.Next() {
		var row provenanceRow
		var encoded string
		if err := rows.Scan(&row.seq, &row.subject, &row.predicate, &row.kind, &row.value, &row.origin, &encoded,
			&row.producer, &row.event, &row.eventID, &row.graph, &row.rsv, &row.recordedAt); err != nil {
			return nil, errors.Wrap(err, "scan provenance")
		}
		var ruleIDs []string
		if err := json.Unmarshal([]byte(encoded), &ruleIDs); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "provenance %d rule ids", row.seq), ErrCorruptFact)
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
