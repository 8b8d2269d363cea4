package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"policy-report/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	period        TEXT NOT NULL,
	since         DATETIME NOT NULL,
	until         DATETIME NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	payload_path  TEXT NOT NULL DEFAULT '',
	extract_path  TEXT NOT NULL DEFAULT '',
	report_path   TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// SQLiteRepository persists the run ledger in a local SQLite database.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens (or creates) the ledger database at dbPath
// and ensures the schema exists.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening run ledger db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating run ledger schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, run *model.Run) error {
	query := `
		INSERT INTO runs (id, period, since, until, message_count, payload_path, extract_path, report_path, status, created_at)
		VALUES (:id, :period, :since, :until, :message_count, :payload_path, :extract_path, :report_path, :status, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, run)
	return err
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*model.Run, error) {
	run := &model.Run{}
	err := r.db.GetContext(ctx, run, "SELECT * FROM runs WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("run not found")
		}
		return nil, err
	}
	return run, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*model.Run, error) {
	var runs []*model.Run
	err := r.db.SelectContext(ctx, &runs, "SELECT * FROM runs ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
