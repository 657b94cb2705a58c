package policy

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/platform/db"
)

const (
	uniqueVersion = "policy_documents_version_key"
	uniqueCurrent = "policy_documents_current_idx"
)

const documentColumns = `id::text, version, title, document_url, uploaded_by::text, is_current, uploaded_at`

// Repository persists policy documents and feedback templates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Current loads the current policy document.
func (r *Repository) Current(ctx context.Context) (Document, error) {
	d, err := scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM policy_documents WHERE is_current LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNoCurrent
	}
	return d, err
}

// Publish makes d the current document. The current row is locked while the
// version check runs so two uploads cannot both win.
func (r *Repository) Publish(ctx context.Context, d Document) (Document, error) {
	var out Document
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx, `SELECT version FROM policy_documents WHERE is_current FOR UPDATE`).Scan(&current)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if d.Version <= current {
			return ErrStaleVersion
		}
		if _, err := tx.Exec(ctx, `UPDATE policy_documents SET is_current = FALSE WHERE is_current`); err != nil {
			return err
		}
		out, err = scanDocument(tx.QueryRow(ctx, `INSERT INTO policy_documents
			(id, version, title, document_url, uploaded_by, is_current, uploaded_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6)
			RETURNING `+documentColumns,
			d.ID, d.Version, d.Title, d.DocumentURL, d.UploadedBy, d.UploadedAt))
		return err
	})
	if db.IsUniqueViolation(err, uniqueVersion) || db.IsUniqueViolation(err, uniqueCurrent) {
		return Document{}, ErrStaleVersion
	}
	return out, err
}

// VersionExists reports whether a document with version was ever registered.
func (r *Repository) VersionExists(ctx context.Context, version int) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM policy_documents WHERE version = $1)`, version).Scan(&ok)
	return ok, err
}

// CreateTemplate inserts t.
func (r *Repository) CreateTemplate(ctx context.Context, t Template) error {
	var category *string
	if t.Category != nil {
		c := string(*t.Category)
		category = &c
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO feedback_templates
		(id, category, trigger_condition, template_text, policy_version, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, category, t.TriggerCondition, t.TemplateText, t.PolicyVersion, t.CreatedBy, t.CreatedAt)
	return err
}

// TemplatesForVersion lists the templates of one policy version.
func (r *Repository) TemplatesForVersion(ctx context.Context, version int) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, category, trigger_condition, template_text,
		policy_version, created_by::text, created_at
		FROM feedback_templates WHERE policy_version = $1 ORDER BY created_at, id`, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Template
	for rows.Next() {
		var (
			t        Template
			category *string
		)
		if err := rows.Scan(&t.ID, &category, &t.TriggerCondition, &t.TemplateText,
			&t.PolicyVersion, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		if category != nil {
			c := declarations.Category(*category)
			t.Category = &c
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Version, &d.Title, &d.DocumentURL, &d.UploadedBy, &d.IsCurrent, &d.UploadedAt)
	return d, err
}
