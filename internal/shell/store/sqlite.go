package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/tmplregistry/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", withPragmas(dsn))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// SQLite serializes writers; a single connection also keeps :memory:
	// databases alive across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// withPragmas appends the connection options every store connection needs.
func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Rows
// =============================================================================

type pipelineRow struct {
	ID        int64  `db:"id"`
	ScmURI    string `db:"scm_uri"`
	CreatedAt string `db:"created_at"`
}

type templateRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Version     string `db:"version"`
	ScmURI      string `db:"scm_uri"`
	Maintainer  string `db:"maintainer"`
	Description string `db:"description"`
	TemplateURL string `db:"template_url"`
	Labels      string `db:"labels"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

// =============================================================================
// Store Methods
// =============================================================================

func (s *SQLiteStore) CreatePipeline(ctx context.Context, pipeline *domain.Pipeline) error {
	return createPipeline(ctx, s.db, pipeline)
}

func (s *SQLiteStore) GetPipeline(ctx context.Context, id int64) (*domain.Pipeline, error) {
	return getPipeline(ctx, s.db, id)
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id int64) (*domain.Template, error) {
	return getTemplate(ctx, s.db, id)
}

func (s *SQLiteStore) FindTemplateByName(ctx context.Context, name string) (*domain.Template, error) {
	return findTemplateByName(ctx, s.db, name)
}

func (s *SQLiteStore) FindTemplateExact(ctx context.Context, name, version string) (*domain.Template, error) {
	return findTemplateExact(ctx, s.db, name, version)
}

func (s *SQLiteStore) ListTemplates(ctx context.Context, opts ListOptions) ([]domain.Template, error) {
	return listTemplates(ctx, s.db, opts)
}

func (s *SQLiteStore) CountTemplates(ctx context.Context) (int, error) {
	return countTemplates(ctx, s.db)
}

// CreateTemplate claims the family and inserts its first version in one
// transaction.
func (s *SQLiteStore) CreateTemplate(ctx context.Context, template *domain.Template) error {
	return s.WithTx(ctx, func(tx Store) error {
		return tx.CreateTemplate(ctx, template)
	})
}

func (s *SQLiteStore) CreateTemplateVersion(ctx context.Context, template *domain.Template) error {
	return createTemplateVersion(ctx, s.db, template)
}

func (s *SQLiteStore) UpdateTemplateLabels(ctx context.Context, id int64, expected, labels domain.LabelSet) (*domain.Template, error) {
	return updateTemplateLabels(ctx, s.db, id, expected, labels)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreatePipeline(ctx context.Context, pipeline *domain.Pipeline) error {
	return createPipeline(ctx, s.tx, pipeline)
}

func (s *txSQLiteStore) GetPipeline(ctx context.Context, id int64) (*domain.Pipeline, error) {
	return getPipeline(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetTemplate(ctx context.Context, id int64) (*domain.Template, error) {
	return getTemplate(ctx, s.tx, id)
}

func (s *txSQLiteStore) FindTemplateByName(ctx context.Context, name string) (*domain.Template, error) {
	return findTemplateByName(ctx, s.tx, name)
}

func (s *txSQLiteStore) FindTemplateExact(ctx context.Context, name, version string) (*domain.Template, error) {
	return findTemplateExact(ctx, s.tx, name, version)
}

func (s *txSQLiteStore) ListTemplates(ctx context.Context, opts ListOptions) ([]domain.Template, error) {
	return listTemplates(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CountTemplates(ctx context.Context) (int, error) {
	return countTemplates(ctx, s.tx)
}

func (s *txSQLiteStore) CreateTemplate(ctx context.Context, template *domain.Template) error {
	return createTemplate(ctx, s.tx, template)
}

func (s *txSQLiteStore) CreateTemplateVersion(ctx context.Context, template *domain.Template) error {
	return createTemplateVersion(ctx, s.tx, template)
}

func (s *txSQLiteStore) UpdateTemplateLabels(ctx context.Context, id int64, expected, labels domain.LabelSet) (*domain.Template, error) {
	return updateTemplateLabels(ctx, s.tx, id, expected, labels)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Ping(ctx context.Context) error {
	return nil
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createPipeline(ctx context.Context, exec executor, pipeline *domain.Pipeline) error {
	id := strconv.FormatInt(pipeline.ID, 10)
	query := `INSERT INTO pipelines (id, scm_uri, created_at) VALUES (?, ?, ?)`

	_, err := exec.ExecContext(ctx, query, pipeline.ID, pipeline.ScmURI, formatTime(pipeline.CreatedAt))
	if err != nil {
		if errors.Is(constraintError(err), ErrConflict) {
			return NewStoreError("CreatePipeline", "pipeline", id, "pipeline with this ID already exists", ErrConflict)
		}
		return NewStoreError("CreatePipeline", "pipeline", id, err.Error(), err)
	}
	return nil
}

func getPipeline(ctx context.Context, exec executor, id int64) (*domain.Pipeline, error) {
	query := `SELECT * FROM pipelines WHERE id = ?`

	var row pipelineRow
	if err := exec.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetPipeline", "pipeline", strconv.FormatInt(id, 10), "pipeline not found", ErrNotFound)
		}
		return nil, NewStoreError("GetPipeline", "pipeline", strconv.FormatInt(id, 10), err.Error(), err)
	}

	return &domain.Pipeline{
		ID:        row.ID,
		ScmURI:    row.ScmURI,
		CreatedAt: parseTime(row.CreatedAt),
	}, nil
}

func getTemplate(ctx context.Context, exec executor, id int64) (*domain.Template, error) {
	query := `SELECT * FROM templates WHERE id = ?`

	var row templateRow
	if err := exec.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetTemplate", "template", strconv.FormatInt(id, 10), "template not found", ErrNotFound)
		}
		return nil, NewStoreError("GetTemplate", "template", strconv.FormatInt(id, 10), err.Error(), err)
	}

	return rowToTemplate(&row)
}

// findTemplateByName returns the highest version of the family.
func findTemplateByName(ctx context.Context, exec executor, name string) (*domain.Template, error) {
	query := `SELECT * FROM templates WHERE name = ?`

	var rows []templateRow
	if err := exec.SelectContext(ctx, &rows, query, name); err != nil {
		return nil, NewStoreError("FindTemplateByName", "template", name, err.Error(), err)
	}
	if len(rows) == 0 {
		return nil, NewStoreError("FindTemplateByName", "template", name, "template not found", ErrNotFound)
	}

	templates, err := rowsToTemplates(rows)
	if err != nil {
		return nil, err
	}
	return domain.LatestVersion(templates), nil
}

func findTemplateExact(ctx context.Context, exec executor, name, version string) (*domain.Template, error) {
	query := `SELECT * FROM templates WHERE name = ? AND version = ?`
	ref := name + "@" + version

	var row templateRow
	if err := exec.GetContext(ctx, &row, query, name, version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("FindTemplateExact", "template", ref, "template not found", ErrNotFound)
		}
		return nil, NewStoreError("FindTemplateExact", "template", ref, err.Error(), err)
	}

	return rowToTemplate(&row)
}

func listTemplates(ctx context.Context, exec executor, opts ListOptions) ([]domain.Template, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM templates ORDER BY id DESC LIMIT ? OFFSET ?`
	if opts.Sort == SortAscending {
		query = `SELECT * FROM templates ORDER BY id ASC LIMIT ? OFFSET ?`
	}

	var rows []templateRow
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListTemplates", "template", "", err.Error(), err)
	}

	return rowsToTemplates(rows)
}

func countTemplates(ctx context.Context, exec executor) (int, error) {
	var count int
	if err := exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM templates`); err != nil {
		return 0, NewStoreError("CountTemplates", "template", "", err.Error(), err)
	}
	return count, nil
}

// createTemplate claims ownership of the template name and inserts the
// first version. Must run inside a transaction.
func createTemplate(ctx context.Context, exec executor, template *domain.Template) error {
	query := `INSERT INTO template_families (name, scm_uri, created_at) VALUES (?, ?, ?)`

	_, err := exec.ExecContext(ctx, query, template.Name, template.ScmURI, formatTime(template.CreatedAt))
	if err != nil {
		if errors.Is(constraintError(err), ErrConflict) {
			return NewStoreError("CreateTemplate", "template", template.Name, "template name is already owned", ErrConflict)
		}
		return NewStoreError("CreateTemplate", "template", template.Name, err.Error(), err)
	}

	return insertTemplateRow(ctx, exec, "CreateTemplate", template)
}

// createTemplateVersion inserts a version into an existing family.
func createTemplateVersion(ctx context.Context, exec executor, template *domain.Template) error {
	var owner string
	err := exec.GetContext(ctx, &owner, `SELECT scm_uri FROM template_families WHERE name = ?`, template.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewStoreError("CreateTemplateVersion", "template", template.Name, "template family does not exist", ErrForeignKey)
		}
		return NewStoreError("CreateTemplateVersion", "template", template.Name, err.Error(), err)
	}
	if owner != template.ScmURI {
		return NewStoreError("CreateTemplateVersion", "template", template.Name, "template family is owned by another scm uri", ErrConflict)
	}

	return insertTemplateRow(ctx, exec, "CreateTemplateVersion", template)
}

func insertTemplateRow(ctx context.Context, exec executor, op string, template *domain.Template) error {
	ref := template.Name + "@" + template.Version

	labelsJSON, err := json.Marshal(template.Labels)
	if err != nil {
		return NewStoreError(op, "template", ref, "failed to serialize labels", ErrInvalidData)
	}

	query := `
		INSERT INTO templates (
			name, version, scm_uri, maintainer, description, template_url,
			labels, created_at, updated_at
		) VALUES (
			:name, :version, :scm_uri, :maintainer, :description, :template_url,
			:labels, :created_at, :updated_at
		)`

	row := map[string]any{
		"name":         template.Name,
		"version":      template.Version,
		"scm_uri":      template.ScmURI,
		"maintainer":   template.Maintainer,
		"description":  template.Description,
		"template_url": template.TemplateURL,
		"labels":       string(labelsJSON),
		"created_at":   formatTime(template.CreatedAt),
		"updated_at":   formatTime(template.UpdatedAt),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		switch constraintError(err) {
		case ErrConflict:
			return NewStoreError(op, "template", ref, "template version already exists", ErrConflict)
		case ErrForeignKey:
			return NewStoreError(op, "template", ref, "template family does not exist", ErrForeignKey)
		}
		return NewStoreError(op, "template", ref, err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError(op, "template", ref, err.Error(), err)
	}
	template.ID = id

	return nil
}

// updateTemplateLabels replaces the labels of a template if they still equal
// expected.
func updateTemplateLabels(ctx context.Context, exec executor, id int64, expected, labels domain.LabelSet) (*domain.Template, error) {
	ref := strconv.FormatInt(id, 10)

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		return nil, NewStoreError("UpdateTemplateLabels", "template", ref, "failed to serialize labels", ErrInvalidData)
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, NewStoreError("UpdateTemplateLabels", "template", ref, "failed to serialize labels", ErrInvalidData)
	}

	query := `UPDATE templates SET labels = ?, updated_at = ? WHERE id = ? AND labels = ?`

	result, err := exec.ExecContext(ctx, query, string(labelsJSON), formatTime(time.Now()), id, string(expectedJSON))
	if err != nil {
		return nil, NewStoreError("UpdateTemplateLabels", "template", ref, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		if _, err := getTemplate(ctx, exec, id); err != nil {
			return nil, NewStoreError("UpdateTemplateLabels", "template", ref, "template not found", ErrNotFound)
		}
		return nil, NewStoreError("UpdateTemplateLabels", "template", ref, "labels changed since they were read", ErrConflict)
	}

	return getTemplate(ctx, exec, id)
}

// =============================================================================
// Helpers
// =============================================================================

// constraintError maps SQLite constraint failures to store errors.
// Returns nil for anything else.
func constraintError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return nil
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return ErrConflict
	case sqlite3.ErrConstraintForeignKey:
		return ErrForeignKey
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func rowsToTemplates(rows []templateRow) ([]domain.Template, error) {
	templates := make([]domain.Template, 0, len(rows))
	for i := range rows {
		template, err := rowToTemplate(&rows[i])
		if err != nil {
			return nil, err
		}
		templates = append(templates, *template)
	}
	return templates, nil
}

// rowToTemplate converts a database row to a domain.Template.
func rowToTemplate(row *templateRow) (*domain.Template, error) {
	var labels domain.LabelSet
	if row.Labels != "" {
		if err := json.Unmarshal([]byte(row.Labels), &labels); err != nil {
			return nil, NewStoreError("rowToTemplate", "template", strconv.FormatInt(row.ID, 10), "failed to parse labels", ErrInvalidData)
		}
	}

	return &domain.Template{
		ID:          row.ID,
		Name:        row.Name,
		Version:     row.Version,
		ScmURI:      row.ScmURI,
		Maintainer:  row.Maintainer,
		Description: row.Description,
		TemplateURL: row.TemplateURL,
		Labels:      labels,
		CreatedAt:   parseTime(row.CreatedAt),
		UpdatedAt:   parseTime(row.UpdatedAt),
	}, nil
}
