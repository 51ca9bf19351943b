// internal/templates/postgres.go
package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"template-verifier/internal/common/errors"
	"template-verifier/internal/models"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	templateTable   = "reference_templates"
	uniqueViolation = "23505"
)

var templateColumns = []string{"id", "board", "program", "field_set", "metadata", "asset_handle", "created_at", "updated_at"}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS reference_templates (
		id           TEXT PRIMARY KEY,
		board        TEXT NOT NULL,
		program      TEXT NOT NULL,
		field_set    JSONB NOT NULL,
		metadata     JSONB NOT NULL DEFAULT '{}'::jsonb,
		asset_handle TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reference_templates_labels_idx
		ON reference_templates (lower(board), lower(program))`,
	`CREATE INDEX IF NOT EXISTS reference_templates_created_idx
		ON reference_templates (created_at, id)`,
}

type templateRow struct {
	ID          string    `db:"id"`
	Board       string    `db:"board"`
	Program     string    `db:"program"`
	FieldSet    []byte    `db:"field_set"`
	Metadata    []byte    `db:"metadata"`
	AssetHandle string    `db:"asset_handle"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r templateRow) record() (*models.TemplateRecord, error) {
	rec := &models.TemplateRecord{
		ID:          r.ID,
		Board:       r.Board,
		Program:     r.Program,
		AssetHandle: r.AssetHandle,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal(r.FieldSet, &rec.ExtractedFieldSet); err != nil {
		return nil, fmt.Errorf("decode field set of %s: %w", r.ID, err)
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", r.ID, err)
		}
	}
	return rec, nil
}

// PostgresRepository stores one row per template with the field set as JSONB.
// Every write is a single statement except Update, which locks the row.
type PostgresRepository struct {
	db  *sqlx.DB
	ids *IDGenerator
}

func NewPostgresRepository(db *sqlx.DB, ids *IDGenerator) *PostgresRepository {
	if ids == nil {
		ids = NewIDGenerator(nil)
	}
	return &PostgresRepository{db: db, ids: ids}
}

// EnsureSchema creates the table and its indexes when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return r.queryError(ctx, "ensure_schema", err)
		}
	}
	return nil
}

func (r *PostgresRepository) Add(ctx context.Context, draft Draft) (*models.TemplateRecord, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	id, now := r.ids.Next(draft.Board, draft.Program)
	rec := draft.record(id, now)

	fieldSet, metadata, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(templateTable)
	ib.Cols(templateColumns...)
	ib.Values(rec.ID, rec.Board, rec.Program, fieldSet, metadata, rec.AssetHandle, rec.CreatedAt, rec.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, errors.NewDuplicateTemplateError(rec.ID)
		}
		if ctx.Err() != nil {
			return nil, errors.NewQueryTimeoutError("add_template")
		}
		return nil, errors.NewDatabaseInsertFailedError(err)
	}
	return &rec, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.TemplateRecord, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(templateColumns...)
	sb.From(templateTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var row templateRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, r.queryError(ctx, "get_template", err)
	}
	return r.decode(ctx, "get_template", row)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]models.TemplateRecord, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(templateColumns...)
	sb.From(templateTable)
	sb.OrderBy("created_at", "id")
	return r.selectRecords(ctx, "list_templates", sb)
}

// FindCandidates filters in SQL with the same substring rules as MatchesFilter.
func (r *PostgresRepository) FindCandidates(ctx context.Context, board, program string) ([]models.TemplateRecord, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(templateColumns...)
	sb.From(templateTable)
	if board = strings.TrimSpace(board); board != "" {
		sb.Where(sb.Or(
			fmt.Sprintf("strpos(lower(board), lower(%s)) > 0", sb.Var(board)),
			fmt.Sprintf("strpos(lower(field_set->>'board'), lower(%s)) > 0", sb.Var(board)),
		))
	}
	if program = strings.TrimSpace(program); program != "" {
		sb.Where(sb.Or(
			fmt.Sprintf("strpos(lower(program), lower(%s)) > 0", sb.Var(program)),
			fmt.Sprintf("strpos(lower(field_set->>'program'), lower(%s)) > 0", sb.Var(program)),
		))
	}
	sb.OrderBy("created_at", "id")
	return r.selectRecords(ctx, "find_candidates", sb)
}

func (r *PostgresRepository) Update(ctx context.Context, id string, update Update) (*models.TemplateRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(templateColumns...)
	sb.From(templateTable)
	sb.Where(sb.Equal("id", id))
	sb.ForUpdate()

	query, args := sb.Build()
	var row templateRow
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewTemplateNotFoundError(id)
		}
		return nil, r.queryError(ctx, "update_template", err)
	}
	current, err := r.decode(ctx, "update_template", row)
	if err != nil {
		return nil, err
	}

	updated, err := update.Apply(*current, r.ids.Now())
	if err != nil {
		return nil, err
	}
	fieldSet, metadata, err := encodeRecord(updated)
	if err != nil {
		return nil, err
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(templateTable)
	ub.Set(
		ub.Assign("board", updated.Board),
		ub.Assign("program", updated.Program),
		ub.Assign("field_set", fieldSet),
		ub.Assign("metadata", metadata),
		ub.Assign("asset_handle", updated.AssetHandle),
		ub.Assign("updated_at", updated.UpdatedAt),
	)
	ub.Where(ub.Equal("id", id))

	query, args = ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, r.queryError(ctx, "update_template", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, r.queryError(ctx, "update_template", err)
	}
	return &updated, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom(templateTable)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return r.queryError(ctx, "delete_template", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.queryError(ctx, "delete_template", err)
	}
	if n == 0 {
		return errors.NewTemplateNotFoundError(id)
	}
	return nil
}

func (r *PostgresRepository) selectRecords(ctx context.Context, op string, sb *sqlbuilder.SelectBuilder) ([]models.TemplateRecord, error) {
	query, args := sb.Build()
	var rows []templateRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, r.queryError(ctx, op, err)
	}
	out := make([]models.TemplateRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := r.decode(ctx, op, row)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (r *PostgresRepository) decode(ctx context.Context, op string, row templateRow) (*models.TemplateRecord, error) {
	rec, err := row.record()
	if err != nil {
		return nil, r.queryError(ctx, op, err)
	}
	return rec, nil
}

func (r *PostgresRepository) queryError(ctx context.Context, op string, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewQueryTimeoutError(op)
	}
	return errors.NewQueryExecutionFailedError(op, err)
}

func encodeRecord(rec models.TemplateRecord) ([]byte, []byte, error) {
	fieldSet, err := json.Marshal(rec.ExtractedFieldSet)
	if err != nil {
		return nil, nil, fmt.Errorf("encode field set: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("encode metadata: %w", err)
	}
	return fieldSet, metadata, nil
}
