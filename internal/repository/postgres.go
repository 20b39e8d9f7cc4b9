// internal/repository/postgres.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/models"

	"github.com/lib/pq"
)

// Postgres stores loan applications, their timeline and uploaded files.
type Postgres struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgres(db *sql.DB, log logger.Logger) *Postgres {
	return &Postgres{db: db, logger: log}
}

// Contact is how the applicant can be reached.
type Contact struct {
	Name  string
	Email string
	Phone string
}

const selectApplication = `
	SELECT id, status, priority, sections, completion, has_partner, is_business_owner,
	       document_progress, selected_offer_id, created_at, updated_at
	FROM loan_applications
	WHERE id = $1`

// Create inserts a new application with its initial timeline.
func (r *Postgres) Create(ctx context.Context, app *models.LoanApplication) error {
	sections, completion, err := encodeJSON(app)
	if err != nil {
		return errors.NewDatabaseWriteFailedError("create_application", err)
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loan_applications (
				id, status, priority, sections, completion, has_partner, is_business_owner,
				document_progress, selected_offer_id, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			app.ID, string(app.Status), string(app.Priority), sections, completion,
			app.Flags.HasPartner, app.Flags.IsBusinessOwner, app.DocumentProgress,
			nullString(app.SelectedOfferID), app.CreatedAt, app.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert application: %w", err)
		}
		for _, ev := range app.Timeline {
			if err := insertEvent(ctx, tx, app.ID, ev); err != nil {
				return err
			}
		}
		return syncFiles(ctx, tx, app.ID, app.Files)
	})
	if err != nil {
		return errors.NewDatabaseWriteFailedError("create_application", err)
	}

	r.logger.Info("Application record created", map[string]interface{}{
		"applicationId": app.ID,
		"status":        string(app.Status),
	})
	return nil
}

// Get loads an application with its timeline and files.
func (r *Postgres) Get(ctx context.Context, id string) (*models.LoanApplication, error) {
	var (
		app        models.LoanApplication
		status     string
		priority   string
		sections   []byte
		completion []byte
		offerID    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectApplication, id).Scan(
		&app.ID, &status, &priority, &sections, &completion,
		&app.Flags.HasPartner, &app.Flags.IsBusinessOwner, &app.DocumentProgress,
		&offerID, &app.CreatedAt, &app.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewDatabaseReadFailedError("get_application", err)
	}

	app.Status = models.ApplicationStatus(status)
	app.Priority = models.Priority(priority)
	app.SelectedOfferID = offerID.String
	app.Sections = map[models.Section]map[string]interface{}{}
	app.Completion = map[models.Section]bool{}
	if err := json.Unmarshal(sections, &app.Sections); err != nil {
		return nil, errors.NewDatabaseReadFailedError("decode_sections", err)
	}
	if len(completion) > 0 {
		if err := json.Unmarshal(completion, &app.Completion); err != nil {
			return nil, errors.NewDatabaseReadFailedError("decode_completion", err)
		}
	}

	if app.Timeline, err = r.timeline(ctx, id); err != nil {
		return nil, errors.NewDatabaseReadFailedError("get_timeline", err)
	}
	if app.Files, err = r.files(ctx, id); err != nil {
		return nil, errors.NewDatabaseReadFailedError("get_files", err)
	}
	return &app, nil
}

func (r *Postgres) timeline(ctx context.Context, id string) ([]models.TimelineEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, description, actor, occurred_at
		FROM loan_application_timeline
		WHERE application_id = $1
		ORDER BY occurred_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TimelineEvent
	for rows.Next() {
		var ev models.TimelineEvent
		var status string
		if err := rows.Scan(&status, &ev.Description, &ev.Actor, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Status = models.ApplicationStatus(status)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Postgres) files(ctx context.Context, id string) ([]models.UploadedFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, document_id, name, size, content_type, url, storage_key,
		       verification_status, signature_required, uploaded_at
		FROM loan_application_files
		WHERE application_id = $1
		ORDER BY uploaded_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UploadedFile
	for rows.Next() {
		var f models.UploadedFile
		var verification string
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Name, &f.Size, &f.ContentType, &f.URL,
			&f.StorageKey, &verification, &f.SignatureRequired, &f.UploadedAt); err != nil {
			return nil, err
		}
		f.VerificationStatus = models.VerificationStatus(verification)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Save writes the application's answers, flags, progress and file rows.
// Status, priority and timeline are only changed by the review writes.
func (r *Postgres) Save(ctx context.Context, app *models.LoanApplication) error {
	sections, completion, err := encodeJSON(app)
	if err != nil {
		return errors.NewDatabaseWriteFailedError("save_application", err)
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE loan_applications
			SET sections = $2, completion = $3, has_partner = $4, is_business_owner = $5,
			    document_progress = $6, selected_offer_id = $7, updated_at = $8
			WHERE id = $1`,
			app.ID, sections, completion, app.Flags.HasPartner, app.Flags.IsBusinessOwner,
			app.DocumentProgress, nullString(app.SelectedOfferID), app.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update application: %w", err)
		}
		if err := expectRow(res, errors.NewApplicationNotFoundError(app.ID)); err != nil {
			return err
		}
		return syncFiles(ctx, tx, app.ID, app.Files)
	})
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeApplicationNotFound) {
			return err
		}
		return errors.NewDatabaseWriteFailedError("save_application", err)
	}
	return nil
}

// UpdateStatus sets the status and records the timeline event in one transaction.
func (r *Postgres) UpdateStatus(ctx context.Context, appID string, status models.ApplicationStatus, ev models.TimelineEvent, updatedAt time.Time) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE loan_applications SET status = $2, updated_at = $3 WHERE id = $1`,
			appID, string(status), updatedAt)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if err := expectRow(res, errors.NewApplicationNotFoundError(appID)); err != nil {
			return err
		}
		return insertEvent(ctx, tx, appID, ev)
	})
	return writeErr("update_status", err)
}

func (r *Postgres) UpdatePriority(ctx context.Context, appID string, priority models.Priority, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE loan_applications SET priority = $2, updated_at = $3 WHERE id = $1`,
		appID, string(priority), updatedAt)
	if err == nil {
		err = expectRow(res, errors.NewApplicationNotFoundError(appID))
	}
	return writeErr("update_priority", err)
}

func (r *Postgres) UpdateFileVerification(ctx context.Context, appID, fileID string, status models.VerificationStatus, updatedAt time.Time) error {
	return r.updateFile(ctx, "update_file_verification",
		`UPDATE loan_application_files SET verification_status = $3 WHERE id = $1 AND application_id = $2`,
		appID, fileID, string(status), updatedAt)
}

func (r *Postgres) UpdateFileSignature(ctx context.Context, appID, fileID string, required bool, updatedAt time.Time) error {
	return r.updateFile(ctx, "update_file_signature",
		`UPDATE loan_application_files SET signature_required = $3 WHERE id = $1 AND application_id = $2`,
		appID, fileID, required, updatedAt)
}

func (r *Postgres) updateFile(ctx context.Context, op, query, appID, fileID string, value interface{}, updatedAt time.Time) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, fileID, appID, value)
		if err != nil {
			return fmt.Errorf("update file: %w", err)
		}
		if err := expectRow(res, errors.NewFileNotFoundError(fileID)); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE loan_applications SET updated_at = $2 WHERE id = $1`, appID, updatedAt)
		return err
	})
	return writeErr(op, err)
}

// GetContact reads the applicant's name, email and phone from the personal section.
func (r *Postgres) GetContact(ctx context.Context, appID string) (*Contact, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT sections->'personal' FROM loan_applications WHERE id = $1`, appID).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewApplicationNotFoundError(appID)
	}
	if err != nil {
		return nil, errors.NewDatabaseReadFailedError("get_contact", err)
	}

	var personal struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &personal); err != nil {
			return nil, errors.NewDatabaseReadFailedError("decode_contact", err)
		}
	}
	name := personal.FirstName
	if personal.LastName != "" {
		if name != "" {
			name += " "
		}
		name += personal.LastName
	}
	return &Contact{Name: name, Email: personal.Email, Phone: personal.Phone}, nil
}

func (r *Postgres) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Warn("Rollback failed", map[string]interface{}{"error": rbErr.Error()})
		}
		return err
	}
	return tx.Commit()
}

func insertEvent(ctx context.Context, tx *sql.Tx, appID string, ev models.TimelineEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO loan_application_timeline (application_id, status, description, actor, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		appID, string(ev.Status), ev.Description, ev.Actor, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("insert timeline event: %w", err)
	}
	return nil
}

// syncFiles makes the file rows of appID match files.
func syncFiles(ctx context.Context, tx *sql.Tx, appID string, files []models.UploadedFile) error {
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM loan_application_files WHERE application_id = $1 AND NOT (id = ANY($2))`,
		appID, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete removed files: %w", err)
	}

	for _, f := range files {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loan_application_files (
				id, application_id, document_id, name, size, content_type, url, storage_key,
				verification_status, signature_required, uploaded_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				name = EXCLUDED.name,
				size = EXCLUDED.size,
				content_type = EXCLUDED.content_type,
				url = EXCLUDED.url,
				storage_key = EXCLUDED.storage_key`,
			f.ID, appID, f.DocumentID, f.Name, f.Size, f.ContentType, f.URL, f.StorageKey,
			string(f.VerificationStatus), f.SignatureRequired, f.UploadedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert file %s: %w", f.ID, err)
		}
	}
	return nil
}

func encodeJSON(app *models.LoanApplication) ([]byte, []byte, error) {
	sections, err := json.Marshal(nonNilSections(app.Sections))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal sections: %w", err)
	}
	completion, err := json.Marshal(nonNilCompletion(app.Completion))
	if err != nil {
		return nil, nil, fmt.Errorf("marshal completion: %w", err)
	}
	return sections, completion, nil
}

func nonNilSections(m map[models.Section]map[string]interface{}) map[models.Section]map[string]interface{} {
	if m == nil {
		return map[models.Section]map[string]interface{}{}
	}
	return m
}

func nonNilCompletion(m map[models.Section]bool) map[models.Section]bool {
	if m == nil {
		return map[models.Section]bool{}
	}
	return m
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.HasCode(err, errors.ErrCodeApplicationNotFound) || errors.HasCode(err, errors.ErrCodeFileNotFound) {
		return err
	}
	return errors.NewDatabaseWriteFailedError(op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
