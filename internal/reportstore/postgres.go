package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/dominica-news/feedback/pkg/config"
	"github.com/dominica-news/feedback/pkg/errors"
)

// StoredReport is one persisted error report.
type StoredReport struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	ErrorID   string          `db:"error_id" json:"error_id"`
	Message   string          `db:"message" json:"message"`
	Stack     string          `db:"stack" json:"stack"`
	UserAgent string          `db:"user_agent" json:"user_agent"`
	URL       string          `db:"url" json:"url"`
	UserID    string          `db:"user_id" json:"user_id"`
	Context   json.RawMessage `db:"context" json:"context"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// DB wraps the report store database connection.
type DB struct {
	*sqlx.DB
	config *config.DatabaseConfig
}

// NewDB opens the report store connection.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("database configuration is required")
	}

	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, errors.NewInternalError("failed to connect to database").WithCause(err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.NewInternalError("failed to ping database").WithCause(err)
	}

	return &DB{DB: db, config: cfg}, nil
}

// Health checks the database connection.
func (db *DB) Health(ctx context.Context) error {
	if db.DB == nil {
		return errors.NewInternalError("database connection is nil")
	}
	return db.PingContext(ctx)
}

// Repository persists error reports.
type Repository struct {
	db *DB
}

// NewRepository creates a report repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks the underlying database connection.
func (r *Repository) Health(ctx context.Context) error {
	if r.db == nil {
		return errors.NewInternalError("database connection is nil")
	}
	return r.db.Health(ctx)
}

// Save inserts one report. The error_id column is unique; replays of
// the same report are idempotent.
func (r *Repository) Save(ctx context.Context, report *StoredReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	if len(report.Context) == 0 {
		report.Context = json.RawMessage("{}")
	}

	query := `
		INSERT INTO error_reports (id, error_id, message, stack, user_agent, url, user_id, context, created_at)
		VALUES (:id, :error_id, :message, :stack, :user_agent, :url, :user_id, :context, :created_at)
		ON CONFLICT (error_id) DO NOTHING`

	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return errors.NewInternalError("failed to save error report").WithCause(err)
	}
	return nil
}

// GetByErrorID fetches one report by its wire identifier.
func (r *Repository) GetByErrorID(ctx context.Context, errorID string) (*StoredReport, error) {
	var report StoredReport
	query := `SELECT * FROM error_reports WHERE error_id = $1`
	if err := r.db.GetContext(ctx, &report, query, errorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("error report")
		}
		return nil, errors.NewInternalError("failed to fetch error report").WithCause(err)
	}
	return &report, nil
}

// ListRecent returns the newest reports, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]StoredReport, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var reports []StoredReport
	query := `SELECT * FROM error_reports ORDER BY created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &reports, query, limit); err != nil {
		return nil, errors.NewInternalError("failed to list error reports").WithCause(err)
	}
	return reports, nil
}

// CountSince returns the number of reports created after a cutoff.
func (r *Repository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM error_reports WHERE created_at >= $1`
	if err := r.db.GetContext(ctx, &count, query, since); err != nil {
		return 0, errors.NewInternalError("failed to count error reports").WithCause(err)
	}
	return count, nil
}

// Migrate creates the error_reports table if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS error_reports (
			id UUID PRIMARY KEY,
			error_id TEXT NOT NULL UNIQUE,
			message TEXT NOT NULL,
			stack TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			context JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_error_reports_created_at ON error_reports (created_at DESC);`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.NewInternalError("failed to migrate report store").WithCause(err)
	}
	return nil
}
