// filepath: internal/journal/journal.go
// Package journal keeps the history of mutating operations in a local
// SQLite database, so every change can be traced back to its backup.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/db/migrations"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// ErrNotFound is returned when no operation has the requested id.
var ErrNotFound = errors.New("operation not found")

const table = "operations"

var columns = []string{"id", "kind", "target", "actor", "started_at", "finished_at", "success", "summary", "backup_path", "details"}

// Journal is the operation history store.
type Journal struct {
	DB      *sql.DB
	Builder squirrel.StatementBuilderType
}

// Open opens (creating if needed) the journal at path and migrates it to
// the latest schema.
func Open(path string) (*Journal, error) {
	j, err := Connect(path)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate("up"); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

// Connect opens the journal database without touching its schema.
func Connect(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create journal directory: %w", err)
	}
	dsn := "file:" + filepath.ToSlash(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// A single connection keeps SQLite writes serialized in-process.
	db.SetMaxOpenConns(1)
	return &Journal{DB: db, Builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)}, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.DB.Close()
}

// Migrate runs a goose command ("up", "down" or "status") against the
// embedded schema.
func (j *Journal) Migrate(command string) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	goose.SetLogger(logging.Log)

	// The migrations directory is embedded, so "." is the root of the FS.
	var err error
	switch command {
	case "up":
		err = goose.Up(j.DB, ".")
	case "down":
		err = goose.Down(j.DB, ".")
	case "status":
		err = goose.Status(j.DB, ".")
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (j *Journal) Version() (int64, error) {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(j.DB)
}

// Record stores op and returns it with its id filled in.
func (j *Journal) Record(op models.Operation) (models.Operation, error) {
	if op.ID == "" {
		op.ID = ulid.Make().String()
	}
	if op.StartedAt.IsZero() {
		op.StartedAt = time.Now()
	}
	if op.FinishedAt.IsZero() {
		op.FinishedAt = op.StartedAt
	}

	query, args, err := j.Builder.Insert(table).Columns(columns...).Values(
		op.ID, op.Kind, op.Target, op.Actor,
		op.StartedAt.UnixMilli(), op.FinishedAt.UnixMilli(),
		op.Success, op.Summary, op.BackupPath, op.Details,
	).ToSql()
	if err != nil {
		return op, fmt.Errorf("failed to build insert query: %w", err)
	}
	if _, err := j.DB.Exec(query, args...); err != nil {
		return op, fmt.Errorf("failed to record operation: %w", err)
	}
	logging.Log.Debugf("Journal: recorded %s %s on %s", op.ID, op.Kind, op.Target)
	return op, nil
}

// Get returns one operation.
func (j *Journal) Get(id string) (*models.Operation, error) {
	query, args, err := j.Builder.Select(columns...).From(table).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	op, err := scanOperation(j.DB.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// List returns the operations matching filter, newest first.
func (j *Journal) List(filter models.OperationFilter) ([]models.Operation, error) {
	q := j.Builder.Select(columns...).From(table).OrderBy("started_at DESC", "id DESC")
	if filter.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if filter.Target != "" {
		q = q.Where(squirrel.Like{"target": "%" + filter.Target + "%"})
	}
	if !filter.Since.IsZero() {
		q = q.Where(squirrel.GtOrEq{"started_at": filter.Since.UnixMilli()})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}
	rows, err := j.DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	ops := make([]models.Operation, 0)
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Prune deletes operations that started before cutoff.
func (j *Journal) Prune(cutoff time.Time) (int64, error) {
	query, args, err := j.Builder.Delete(table).Where(squirrel.Lt{"started_at": cutoff.UnixMilli()}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := j.DB.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(s scanner) (models.Operation, error) {
	var op models.Operation
	var started, finished int64
	err := s.Scan(&op.ID, &op.Kind, &op.Target, &op.Actor, &started, &finished, &op.Success, &op.Summary, &op.BackupPath, &op.Details)
	if err != nil {
		return op, err
	}
	op.StartedAt = time.UnixMilli(started)
	op.FinishedAt = time.UnixMilli(finished)
	return op, nil
}
