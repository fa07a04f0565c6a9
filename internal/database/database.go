package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	apperrors "sendlater/internal/errors"
	"sendlater/internal/migrations"
	"sendlater/internal/models"
	"sendlater/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the durable message store. Every operation is a single SQL
// statement, so records never need multi-statement transactions; the pending
// check on mutations rides in the statement's WHERE clause.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

const messageColumns = `id, sender_id, recipient_name, text, deliver_after, status, created_at, updated_at`

// InsertMessage stores a new message record.
func (d *Database) InsertMessage(ctx context.Context, msg *models.Message) error {
	encryptedRecipient, err := d.encryptor.EncryptIfEnabled(msg.RecipientName)
	if err != nil {
		return fmt.Errorf("failed to encrypt recipient: %w", err)
	}
	encryptedText, err := d.encryptor.EncryptIfEnabled(msg.Text)
	if err != nil {
		return fmt.Errorf("failed to encrypt text: %w", err)
	}

	query := `
		INSERT INTO messages (
			id, sender_id, recipient_name, text, deliver_after, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = d.db.ExecContext(ctx, query,
		msg.ID,
		msg.SenderID,
		encryptedRecipient,
		encryptedText,
		msg.DeliverAfter.UTC(),
		msg.Status,
		msg.CreatedAt.UTC(),
		msg.UpdatedAt.UTC(),
	)
	if err != nil {
		return apperrors.NewStoreError("insert", err)
	}

	return nil
}

// GetMessage returns the message with the given id.
func (d *Database) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`

	msg, err := d.scanMessage(d.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("message", id)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get", err)
	}
	return msg, nil
}

// ListMessages returns all messages matching the filter, newest scheduled last.
func (d *Database) ListMessages(ctx context.Context, senderID string, filter models.MessageFilter) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE sender_id = ?`
	args := []interface{}{senderID}

	if filter != models.FilterAll && filter != "" {
		query += ` AND status = ?`
		args = append(args, string(filter))
	}
	query += ` ORDER BY deliver_after ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("list", err)
	}
	defer func() { _ = rows.Close() }()

	return d.collectMessages(rows)
}

// DueMessages returns pending messages whose delivery time is at or before
// now, ordered by deliver_after ascending. This is the sync engine's per-cycle
// snapshot.
func (d *Database) DueMessages(ctx context.Context, now time.Time) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE status = ? AND deliver_after <= ?
		ORDER BY deliver_after ASC
	`

	rows, err := d.db.QueryContext(ctx, query, models.MessageStatusPending, now.UTC())
	if err != nil {
		return nil, apperrors.NewStoreError("due", err)
	}
	defer func() { _ = rows.Close() }()

	return d.collectMessages(rows)
}

// UpdateMessage applies a partial content update to a pending message. The
// pending check rides in the UPDATE's WHERE clause so an edit can never race
// a concurrent status transition.
func (d *Database) UpdateMessage(ctx context.Context, id string, update models.MessageUpdate) error {
	if update.Empty() {
		return nil
	}

	query := `UPDATE messages SET updated_at = ?`
	args := []interface{}{time.Now().UTC()}

	if update.RecipientName != nil {
		encrypted, err := d.encryptor.EncryptIfEnabled(*update.RecipientName)
		if err != nil {
			return fmt.Errorf("failed to encrypt recipient: %w", err)
		}
		query += `, recipient_name = ?`
		args = append(args, encrypted)
	}
	if update.Text != nil {
		encrypted, err := d.encryptor.EncryptIfEnabled(*update.Text)
		if err != nil {
			return fmt.Errorf("failed to encrypt text: %w", err)
		}
		query += `, text = ?`
		args = append(args, encrypted)
	}
	if update.DeliverAfter != nil {
		query += `, deliver_after = ?`
		args = append(args, update.DeliverAfter.UTC())
	}

	query += ` WHERE id = ? AND status = ?`
	args = append(args, id, models.MessageStatusPending)

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStoreError("update", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("update", err)
	}
	if affected == 0 {
		return d.classifyMissedEdit(ctx, id)
	}
	return nil
}

// SetMessageStatus transitions a pending message to sent or failed.
func (d *Database) SetMessageStatus(ctx context.Context, id string, status models.MessageStatus) error {
	if !status.IsTerminal() {
		return apperrors.NewInvalidTransitionError(id, string(models.MessageStatusPending), string(status))
	}

	query := `UPDATE messages SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := d.db.ExecContext(ctx, query, status, time.Now().UTC(), id, models.MessageStatusPending)
	if err != nil {
		return apperrors.NewStoreError("setStatus", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("setStatus", err)
	}
	if affected == 0 {
		return d.classifyMissedTransition(ctx, id, status)
	}
	return nil
}

// DeleteMessage removes a message at any status.
func (d *Database) DeleteMessage(ctx context.Context, id string) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewStoreError("delete", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("delete", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("message", id)
	}
	return nil
}

// MessageStats returns per-status counts for one sender.
func (d *Database) MessageStats(ctx context.Context, senderID string) (models.MessageStats, error) {
	query := `SELECT status, COUNT(*) FROM messages WHERE sender_id = ? GROUP BY status`

	rows, err := d.db.QueryContext(ctx, query, senderID)
	if err != nil {
		return models.MessageStats{}, apperrors.NewStoreError("stats", err)
	}
	defer func() { _ = rows.Close() }()

	var stats models.MessageStats
	for rows.Next() {
		var status models.MessageStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return models.MessageStats{}, apperrors.NewStoreError("stats", err)
		}
		switch status {
		case models.MessageStatusPending:
			stats.Pending = count
		case models.MessageStatusSent:
			stats.Sent = count
		case models.MessageStatusFailed:
			stats.Failed = count
		}
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return models.MessageStats{}, apperrors.NewStoreError("stats", err)
	}
	return stats, nil
}

// ClearMessages removes all messages owned by a sender.
func (d *Database) ClearMessages(ctx context.Context, senderID string) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM messages WHERE sender_id = ?`, senderID)
	if err != nil {
		return 0, apperrors.NewStoreError("clear", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewStoreError("clear", err)
	}
	return affected, nil
}

// CleanupOldMessages deletes terminal messages whose last update is older
// than the retention window. Pending messages are never cleaned up.
func (d *Database) CleanupOldMessages(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	query := `DELETE FROM messages WHERE status IN (?, ?) AND updated_at < ?`
	result, err := d.db.ExecContext(ctx, query, models.MessageStatusSent, models.MessageStatusFailed, cutoff)
	if err != nil {
		return 0, apperrors.NewStoreError("cleanup", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewStoreError("cleanup", err)
	}
	return affected, nil
}

// classifyMissedEdit decides whether a guarded UPDATE missed because the row
// is absent or because the message already left the pending state.
func (d *Database) classifyMissedEdit(ctx context.Context, id string) error {
	msg, err := d.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.NewInvalidStateError(id, string(msg.Status))
}

func (d *Database) classifyMissedTransition(ctx context.Context, id string, target models.MessageStatus) error {
	msg, err := d.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.NewInvalidTransitionError(id, string(msg.Status), string(target))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanMessage(row rowScanner) (*models.Message, error) {
	var encryptedRecipient, encryptedText string
	msg := &models.Message{}

	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&encryptedRecipient,
		&encryptedText,
		&msg.DeliverAfter,
		&msg.Status,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.RecipientName, err = d.encryptor.DecryptIfEnabled(encryptedRecipient)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt recipient: %w", err)
	}
	msg.Text, err = d.encryptor.DecryptIfEnabled(encryptedText)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt text: %w", err)
	}

	return msg, nil
}

func (d *Database) collectMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		msg, err := d.scanMessage(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("scan", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("scan", err)
	}
	return messages, nil
}
