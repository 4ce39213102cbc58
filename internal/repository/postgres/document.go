// ==============================================================================
// POA DOCUMENT REPOSITORY - internal/repository/postgres/document.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"

	"driverid/internal/domain"
	"driverid/pkg/errors"

	"github.com/jmoiron/sqlx"
)

// DocumentRepository stores uploaded POA documents. One row per
// (driver_email, job_id, slot); a re-upload replaces the previous image.
type DocumentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Save(ctx context.Context, doc *domain.PoaDocument) error {
	query := `
		INSERT INTO poa_documents (
			driver_email, job_id, slot, file_name, content_type, image, uploaded_at
		) VALUES (
			:driver_email, :job_id, :slot, :file_name, :content_type, :image, :uploaded_at
		)
		ON CONFLICT (driver_email, job_id, slot) DO UPDATE
		SET file_name = EXCLUDED.file_name,
		    content_type = EXCLUDED.content_type,
		    image = EXCLUDED.image,
		    uploaded_at = EXCLUDED.uploaded_at
	`

	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return errors.Wrap(err, "failed to save poa document")
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, email, jobID string, slot int) (*domain.PoaDocument, error) {
	query := `
		SELECT * FROM poa_documents
		WHERE driver_email = $1 AND job_id = $2 AND slot = $3
	`

	var doc domain.PoaDocument
	err := r.db.GetContext(ctx, &doc, query, email, jobID, slot)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get poa document")
	}
	return &doc, nil
}

func (r *DocumentRepository) ListPoaDocuments(ctx context.Context, email, jobID string) ([]*domain.PoaDocument, error) {
	query := `
		SELECT * FROM poa_documents
		WHERE driver_email = $1 AND job_id = $2
		ORDER BY slot
	`

	var docs []*domain.PoaDocument
	if err := r.db.SelectContext(ctx, &docs, query, email, jobID); err != nil {
		return nil, errors.Wrap(err, "failed to list poa documents")
	}
	return docs, nil
}
