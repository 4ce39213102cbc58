// ==============================================================================
// QUEUE ITEM REPOSITORY - internal/repository/postgres/queueitem.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"driverid/internal/domain"
	"driverid/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// QueueItemRepository makes queue items survive a restart: queued work is
// picked up again by the next background pass.
type QueueItemRepository struct {
	db *sqlx.DB
}

func NewQueueItemRepository(db *sqlx.DB) *QueueItemRepository {
	return &QueueItemRepository{db: db}
}

type queueItemRow struct {
	ID           uuid.UUID                `db:"id"`
	DocumentType domain.QueueDocumentType `db:"document_type"`
	Status       domain.QueueStatus       `db:"status"`
	Attempts     int                      `db:"attempts"`
	MaxAttempts  int                      `db:"max_attempts"`
	Priority     domain.QueuePriority     `db:"priority"`
	LastAttempt  sql.NullTime             `db:"last_attempt"`
	Error        string                   `db:"error"`
	Request      []byte                   `db:"request"`
	Image        []byte                   `db:"image"`
	Result       []byte                   `db:"result"`
	CreatedAt    sql.NullTime             `db:"created_at"`
}

func toQueueRow(item *domain.QueueItem) (*queueItemRow, error) {
	// The image travels in its own bytea column; the rest of the request is
	// small and rides as JSONB.
	req, err := json.Marshal(item.Request)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal queue request")
	}

	row := &queueItemRow{
		ID:           item.ID,
		DocumentType: item.DocumentType,
		Status:       item.Status,
		Attempts:     item.Attempts,
		MaxAttempts:  item.MaxAttempts,
		Priority:     item.Priority,
		Error:        item.Error,
		Request:      req,
		Image:        item.Request.Image,
		CreatedAt:    sql.NullTime{Time: item.CreatedAt, Valid: !item.CreatedAt.IsZero()},
	}
	if item.LastAttempt != nil {
		row.LastAttempt = sql.NullTime{Time: *item.LastAttempt, Valid: true}
	}
	if item.Result != nil {
		res, err := json.Marshal(item.Result)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal queue result")
		}
		row.Result = res
	}
	return row, nil
}

func (r *queueItemRow) toDomain() (*domain.QueueItem, error) {
	item := &domain.QueueItem{
		ID:           r.ID,
		DocumentType: r.DocumentType,
		Status:       r.Status,
		Attempts:     r.Attempts,
		MaxAttempts:  r.MaxAttempts,
		Priority:     r.Priority,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt.Time,
	}
	if r.LastAttempt.Valid {
		t := r.LastAttempt.Time
		item.LastAttempt = &t
	}
	if len(r.Request) > 0 {
		if err := json.Unmarshal(r.Request, &item.Request); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal queue request")
		}
	}
	item.Request.Image = r.Image
	if len(r.Result) > 0 {
		var res domain.PoaExtraction
		if err := json.Unmarshal(r.Result, &res); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal queue result")
		}
		item.Result = &res
	}
	return item, nil
}

func (r *QueueItemRepository) Save(ctx context.Context, item *domain.QueueItem) error {
	row, err := toQueueRow(item)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO queue_items (
			id, document_type, status, attempts, max_attempts, priority,
			last_attempt, error, request, image, result, created_at
		) VALUES (
			:id, :document_type, :status, :attempts, :max_attempts, :priority,
			:last_attempt, :error, :request, :image, :result, :created_at
		)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    attempts = EXCLUDED.attempts,
		    last_attempt = EXCLUDED.last_attempt,
		    error = EXCLUDED.error,
		    result = EXCLUDED.result
	`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return errors.Wrap(err, "failed to save queue item")
	}
	return nil
}

func (r *QueueItemRepository) Get(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	query := `
		SELECT * FROM queue_items
		WHERE id = $1
	`

	var row queueItemRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrQueueItemNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get queue item")
	}
	return row.toDomain()
}

func (r *QueueItemRepository) List(ctx context.Context, statuses ...domain.QueueStatus) ([]*domain.QueueItem, error) {
	query := `
		SELECT * FROM queue_items
		ORDER BY created_at
	`
	args := []interface{}{}
	if len(statuses) > 0 {
		strs := make([]string, len(statuses))
		for i, s := range statuses {
			strs[i] = string(s)
		}
		query = `
			SELECT * FROM queue_items
			WHERE status = ANY($1)
			ORDER BY created_at
		`
		args = append(args, pq.Array(strs))
	}

	var rows []queueItemRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list queue items")
	}

	items := make([]*domain.QueueItem, 0, len(rows))
	for i := range rows {
		item, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *QueueItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM queue_items
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete queue item")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrQueueItemNotFound
	}
	return nil
}

// isUniqueViolation reports whether a postgres error is a unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(fmt.Sprint(err), "23505")
}
