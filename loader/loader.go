// Package loader persists a run's tables into a relational store.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mariemby1/data-scraping/config"
	"github.com/mariemby1/data-scraping/store"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// Destination tables. The schema must exist and accept caller-supplied ids.
const (
	TableCategories = "categories"
	TableStatus     = "status"
	TableBooks      = "books"
)

// ErrLoadFailed is the single terminal outcome of a failed load. The
// transaction has been rolled back when it is returned.
type ErrLoadFailed struct {
	Table string
	ID    int
	Err   error
}

func (e ErrLoadFailed) Error() string {
	if e.Table == "" {
		return fmt.Errorf("load failed: %w", e.Err).Error()
	}
	return fmt.Errorf("load failed at %s id %d: %w", e.Table, e.ID, e.Err).Error()
}

func (e ErrLoadFailed) Unwrap() error {
	return e.Err
}

// Open connects to the destination store and checks it is reachable.
func Open(ctx context.Context, cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// Loader inserts categories, then statuses, then books in one transaction.
type Loader struct {
	db     *sqlx.DB
	schema string
}

// New returns a loader writing to tables under schema. An empty schema
// leaves table names unqualified.
func New(db *sqlx.DB, schema string) *Loader {
	return &Loader{db: db, schema: schema}
}

// Load issues one parameterised insert per row and commits once. Any failure
// rolls the whole load back.
func (l *Loader) Load(ctx context.Context, tables *store.Tables) (err error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return ErrLoadFailed{Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Error("rollback failed", slog.Any("error", rbErr))
		}
	}()

	insertCategory := fmt.Sprintf("INSERT INTO %s (id, title) VALUES (:id, :title)", l.table(TableCategories))
	for _, row := range tables.Categories {
		if _, err := tx.NamedExecContext(ctx, insertCategory, row); err != nil {
			return ErrLoadFailed{Table: TableCategories, ID: row.ID, Err: err}
		}
	}

	insertStatus := fmt.Sprintf("INSERT INTO %s (id, status) VALUES (:id, :status)", l.table(TableStatus))
	for _, row := range tables.Statuses {
		if _, err := tx.NamedExecContext(ctx, insertStatus, row); err != nil {
			return ErrLoadFailed{Table: TableStatus, ID: row.ID, Err: err}
		}
	}

	insertBook := fmt.Sprintf(
		"INSERT INTO %s (id, id_categorie, id_status, ratings, title, price) VALUES (:id, :id_categorie, :id_status, :ratings, :title, :price)",
		l.table(TableBooks),
	)
	for _, row := range tables.Books {
		if _, err := tx.NamedExecContext(ctx, insertBook, row); err != nil {
			return ErrLoadFailed{Table: TableBooks, ID: row.ID, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return ErrLoadFailed{Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (l *Loader) table(name string) string {
	if l.schema == "" {
		return name
	}
	return l.schema + "." + name
}
