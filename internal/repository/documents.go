package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/transportschein/constants"
	"github.com/joseph-ayodele/transportschein/internal/common"
)

// Document is one uploaded prescription form and its processing state.
type Document struct {
	ID           uuid.UUID
	OriginalName string
	FilePath     string
	Status       constants.ProcessingStatus
	ErrorMessage string
	Record       []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProcessedAt  *time.Time
}

// Documents is the store for uploaded forms.
type Documents struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDocuments(pool *pgxpool.Pool, logger *slog.Logger) *Documents {
	return &Documents{pool: pool, logger: logger}
}

const documentsDDL = `
CREATE TABLE IF NOT EXISTS documents (
    id            UUID PRIMARY KEY,
    original_name TEXT NOT NULL,
    file_path     TEXT NOT NULL,
    status        TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    record        JSONB,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status);
`

// Migrate creates the documents table when missing.
func (s *Documents) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, documentsDDL); err != nil {
		return common.NewAppError("DB_ERROR", "failed to create documents table", err)
	}
	return nil
}

const documentColumns = `id, original_name, file_path, status, error_message, record, created_at, updated_at, processed_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var status string
	err := row.Scan(&d.ID, &d.OriginalName, &d.FilePath, &status, &d.ErrorMessage,
		&d.Record, &d.CreatedAt, &d.UpdatedAt, &d.ProcessedAt)
	if err != nil {
		return Document{}, err
	}
	d.Status = constants.ProcessingStatus(status)
	return d, nil
}

// Create registers a new upload in status uploaded.
func (s *Documents) Create(ctx context.Context, originalName, filePath string) (Document, error) {
	id := uuid.New()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, original_name, file_path, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+documentColumns,
		id, originalName, filePath, string(constants.StatusUploaded))
	doc, err := scanDocument(row)
	if err != nil {
		return Document{}, common.NewAppError("DB_ERROR", "failed to create document", err)
	}
	s.logger.Info("document.created", "document_id", doc.ID, "original_name", originalName)
	return doc, nil
}

// StartProcessing claims a document for the pipeline. The guarded update is
// the single-writer gate: only one caller wins when two workers race.
func (s *Documents) StartProcessing(ctx context.Context, id uuid.UUID) error {
	states := make([]string, 0, len(constants.ReprocessableFrom))
	for _, st := range constants.ReprocessableFrom {
		states = append(states, string(st))
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, error_message = '', updated_at = now()
		WHERE id = $1 AND status = ANY($3)`,
		id, string(constants.StatusProcessing), states)
	if err != nil {
		return common.NewAppError("DB_ERROR", "failed to claim document", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return common.NewAppError("ALREADY_PROCESSING",
			"document is not in a reprocessable state", common.ErrAlreadyProcessing)
	}
	s.logger.Info("document.processing", "document_id", id)
	return nil
}

// MarkError stores the failure verbatim so the review UI can show it.
func (s *Documents) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1`,
		id, string(constants.StatusError), message)
	if err != nil {
		return common.NewAppError("DB_ERROR", "failed to mark document errored", err)
	}
	s.logger.Info("document.errored", "document_id", id, "message", message)
	return nil
}

// SavePendingReview stores the normalized record and moves the document to
// the review queue.
func (s *Documents) SavePendingReview(ctx context.Context, id uuid.UUID, record []byte) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, record = $3, error_message = '', processed_at = now(), updated_at = now()
		WHERE id = $1`,
		id, string(constants.StatusPendingReview), record)
	if err != nil {
		return common.NewAppError("DB_ERROR", "failed to save record", err)
	}
	s.logger.Info("document.pending_review", "document_id", id)
	return nil
}

// Finish confirms a reviewed document. Only pending_review documents can be
// finished.
func (s *Documents) Finish(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		id, string(constants.StatusDone), string(constants.StatusPendingReview))
	if err != nil {
		return common.NewAppError("DB_ERROR", "failed to finish document", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return common.NewAppError("INVALID_STATE", "document is not pending review", common.ErrAlreadyProcessing)
	}
	s.logger.Info("document.done", "document_id", id)
	return nil
}

// Get loads one document.
func (s *Documents) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, common.NewAppError("NOT_FOUND", "document not found", common.ErrNotFound)
		}
		return Document{}, common.NewAppError("DB_ERROR", "failed to load document", err)
	}
	return doc, nil
}

// ListProcessed returns every document that carries an extracted record,
// oldest first. The export service feeds off this.
func (s *Documents) ListProcessed(ctx context.Context) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE status = ANY($1) AND record IS NOT NULL
		ORDER BY created_at`,
		[]string{string(constants.StatusPendingReview), string(constants.StatusDone)})
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "failed to list documents", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "failed to scan document", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "failed to list documents", err)
	}
	return out, nil
}
