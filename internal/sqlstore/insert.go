package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/sqlstore/migrate"
)

// InitSchema creates the log table and its indexes if they are missing.
func (s *Store) InitSchema(ctx context.Context) error {
	if s.table != DefaultTable || s.cols != DefaultColumns() {
		return fmt.Errorf("sqlstore: schema creation needs the default table layout")
	}
	return migrate.NewRunner(s.db, s.d.Name).Run(ctx)
}

// Insert writes entries in a single transaction. The ClickHouse driver sends
// the prepared rows as one batch on commit.
func (s *Store) Insert(ctx context.Context, entries []model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	cols := s.cols.list()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := s.d.rebind("INSERT INTO " + s.table + " (" + strings.Join(cols, ", ") + ") VALUES (" + marks + ")")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		var ts any
		if !e.RequestTs.IsZero() {
			ts = s.d.TimeArg(e.RequestTs)
		}
		if _, err := stmt.ExecContext(ctx,
			ts, nullable(e.ClientIP), nullable(e.ClientName), nullable(e.DurationMs),
			nullable(e.Reason), nullable(e.ResponseType), nullable(e.QuestionType),
			nullable(e.QuestionName), nullable(e.EffectiveTLDP), nullable(e.Answer),
			nullable(e.ResponseCode), nullable(e.Hostname),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	s.log.WithField("rows", len(entries)).Debug("inserted entries")
	return nil
}
