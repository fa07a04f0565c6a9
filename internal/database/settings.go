package database

import (
	"context"
	"database/sql"
	"time"

	apperrors "sendlater/internal/errors"
	"sendlater/internal/models"
)

// GetSettings returns the stored settings for a sender, or the defaults when
// no record exists yet.
func (d *Database) GetSettings(ctx context.Context, senderID string) (models.Settings, error) {
	query := `
		SELECT auto_sync, silent_mode, auto_delete_days, data_saver, analytics
		FROM settings
		WHERE sender_id = ?
	`

	var settings models.Settings
	err := d.db.QueryRowContext(ctx, query, senderID).Scan(
		&settings.AutoSync,
		&settings.SilentMode,
		&settings.AutoDeleteDays,
		&settings.DataSaver,
		&settings.Analytics,
	)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, apperrors.NewStoreError("getSettings", err)
	}
	return settings, nil
}

// SaveSettings upserts the settings record for a sender.
func (d *Database) SaveSettings(ctx context.Context, senderID string, settings models.Settings) error {
	query := `
		INSERT INTO settings (sender_id, auto_sync, silent_mode, auto_delete_days, data_saver, analytics, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sender_id) DO UPDATE SET
			auto_sync = excluded.auto_sync,
			silent_mode = excluded.silent_mode,
			auto_delete_days = excluded.auto_delete_days,
			data_saver = excluded.data_saver,
			analytics = excluded.analytics,
			updated_at = excluded.updated_at
	`

	_, err := d.db.ExecContext(ctx, query,
		senderID,
		settings.AutoSync,
		settings.SilentMode,
		settings.AutoDeleteDays,
		settings.DataSaver,
		settings.Analytics,
		time.Now().UTC(),
	)
	if err != nil {
		return apperrors.NewStoreError("saveSettings", err)
	}
	return nil
}

// LastAutoSync returns the auto-sync flag from the most recently updated
// settings record, falling back to def when none has been saved yet.
func (d *Database) LastAutoSync(ctx context.Context, def bool) (bool, error) {
	var autoSync bool
	err := d.db.QueryRowContext(ctx, `SELECT auto_sync FROM settings ORDER BY updated_at DESC LIMIT 1`).Scan(&autoSync)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return def, apperrors.NewStoreError("autoSync", err)
	}
	return autoSync, nil
}

// IncrementDailyOpen bumps the open counter for the given day (YYYY-MM-DD).
func (d *Database) IncrementDailyOpen(ctx context.Context, day string) error {
	query := `
		INSERT INTO daily_opens (day, opens) VALUES (?, 1)
		ON CONFLICT(day) DO UPDATE SET opens = opens + 1
	`
	if _, err := d.db.ExecContext(ctx, query, day); err != nil {
		return apperrors.NewStoreError("dailyOpen", err)
	}
	return nil
}

// GetDailyOpens returns the open counter for the given day.
func (d *Database) GetDailyOpens(ctx context.Context, day string) (int, error) {
	var opens int
	err := d.db.QueryRowContext(ctx, `SELECT opens FROM daily_opens WHERE day = ?`, day).Scan(&opens)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewStoreError("dailyOpen", err)
	}
	return opens, nil
}
