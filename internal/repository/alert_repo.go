package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"

	"sphincs.io/sphincs/internal/domain"
)

// markReadBatchSize bounds the IN list of one mark-read statement.
const markReadBatchSize = 500

const alertColumns = `id, module, title, message, severity, source_type, source_id,
	payload, triggered_at, is_read, read_at, notified_user_id`

type alertRow struct {
	ID             int64          `db:"id"`
	Module         string         `db:"module"`
	Title          string         `db:"title"`
	Message        string         `db:"message"`
	Severity       string         `db:"severity"`
	SourceType     sql.NullString `db:"source_type"`
	SourceID       sql.NullInt64  `db:"source_id"`
	Payload        sql.NullString `db:"payload"`
	TriggeredAt    time.Time      `db:"triggered_at"`
	IsRead         bool           `db:"is_read"`
	ReadAt         sql.NullTime   `db:"read_at"`
	NotifiedUserID sql.NullInt64  `db:"notified_user_id"`
}

func (r alertRow) toDomain() (domain.Alert, error) {
	a := domain.Alert{
		ID:             r.ID,
		Module:         domain.Module(r.Module),
		Title:          r.Title,
		Message:        r.Message,
		Severity:       domain.Severity(r.Severity),
		TriggeredAt:    r.TriggeredAt.UTC(),
		IsRead:         r.IsRead,
		ReadAt:         timePtr(r.ReadAt),
		NotifiedUserID: int64Ptr(r.NotifiedUserID),
	}
	if r.SourceType.Valid && r.SourceID.Valid {
		a.Source = &domain.Source{Type: r.SourceType.String, ID: r.SourceID.Int64}
	}
	if r.Payload.Valid && r.Payload.String != "" {
		if err := json.Unmarshal([]byte(r.Payload.String), &a.Payload); err != nil {
			return domain.Alert{}, fmt.Errorf("decoding payload of alert %d: %w", r.ID, err)
		}
	}
	return a, nil
}

func rowsToAlerts(rows []alertRow) ([]domain.Alert, error) {
	out := make([]domain.Alert, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// AlertRepository persists alerts. Rows are only ever inserted or flipped to
// read; nothing here deletes.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates an alert repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert persists a new alert and sets its ID.
func (r *AlertRepository) Insert(ctx context.Context, a *domain.Alert) error {
	var payload sql.NullString
	if len(a.Payload) > 0 {
		b, err := json.Marshal(a.Payload)
		if err != nil {
			return fmt.Errorf("encoding alert payload: %w", err)
		}
		payload = sql.NullString{String: string(b), Valid: true}
	}

	var sourceType sql.NullString
	var sourceID sql.NullInt64
	if a.Source != nil {
		sourceType = sql.NullString{String: a.Source.Type, Valid: true}
		sourceID = sql.NullInt64{Int64: a.Source.ID, Valid: true}
	}

	q := r.db.Rebind(`
		INSERT INTO alerts (
			module, title, message, severity, source_type, source_id,
			payload, triggered_at, is_read, read_at, notified_user_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := r.db.GetContext(ctx, &id, q,
		string(a.Module), a.Title, a.Message, string(a.Severity), sourceType, sourceID,
		payload, a.TriggeredAt.UTC(), a.IsRead, nullTime(a.ReadAt), nullInt64(a.NotifiedUserID),
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	a.ID = id
	return nil
}

// FindUnreadBySource returns the oldest unread alert for the given module and
// source, or nil when there is none.
func (r *AlertRepository) FindUnreadBySource(ctx context.Context, module domain.Module, sourceType string, sourceID int64) (*domain.Alert, error) {
	q := r.db.Rebind(`SELECT ` + alertColumns + ` FROM alerts
		WHERE module = ? AND source_type = ? AND source_id = ? AND is_read = ?
		ORDER BY id ASC LIMIT 1`)

	var row alertRow
	err := r.db.GetContext(ctx, &row, q, string(module), sourceType, sourceID, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding unread alert for %s/%d: %w", sourceType, sourceID, err)
	}
	a, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Get returns one alert by id or ErrNotFound.
func (r *AlertRepository) Get(ctx context.Context, id int64) (*domain.Alert, error) {
	var row alertRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+alertColumns+` FROM alerts WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting alert %d: %w", id, err)
	}
	a, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListRecent returns up to limit alerts, newest first.
func (r *AlertRepository) ListRecent(ctx context.Context, limit int) ([]domain.Alert, error) {
	var rows []alertRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT `+alertColumns+` FROM alerts
		ORDER BY triggered_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent alerts: %w", err)
	}
	return rowsToAlerts(rows)
}

// ListRecentForUser returns up to limit broadcast alerts plus alerts targeted
// at userID, newest first.
func (r *AlertRepository) ListRecentForUser(ctx context.Context, userID int64, limit int) ([]domain.Alert, error) {
	var rows []alertRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT `+alertColumns+` FROM alerts
		WHERE notified_user_id IS NULL OR notified_user_id = ?
		ORDER BY triggered_at DESC, id DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent alerts for user %d: %w", userID, err)
	}
	return rowsToAlerts(rows)
}

// CountUnread counts every unread alert.
func (r *AlertRepository) CountUnread(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM alerts WHERE is_read = ?`), false); err != nil {
		return 0, fmt.Errorf("counting unread alerts: %w", err)
	}
	return n, nil
}

// MarkRead flips one alert to read. changed is false when the alert was
// already read (read_at is left untouched); found is false for unknown ids.
func (r *AlertRepository) MarkRead(ctx context.Context, id int64, at time.Time) (changed, found bool, err error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE alerts SET is_read = ?, read_at = ? WHERE id = ? AND is_read = ?`),
		true, at.UTC(), id, false)
	if err != nil {
		return false, false, fmt.Errorf("marking alert %d read: %w", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, false, fmt.Errorf("marking alert %d read: %w", id, err)
	}
	if n > 0 {
		return true, true, nil
	}

	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM alerts WHERE id = ?`), id); err != nil {
		return false, false, fmt.Errorf("checking alert %d: %w", id, err)
	}
	return false, count > 0, nil
}

// MarkManyRead flips every unread alert in ids and returns how many changed.
func (r *AlertRepository) MarkManyRead(ctx context.Context, ids []int64, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning batch mark-read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	total := 0
	for batch := range slices.Chunk(ids, markReadBatchSize) {
		q, args, err := sqlx.In(`UPDATE alerts SET is_read = ?, read_at = ? WHERE is_read = ? AND id IN (?)`,
			true, at.UTC(), false, batch)
		if err != nil {
			return 0, fmt.Errorf("building batch mark-read: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(q), args...)
		if err != nil {
			return 0, fmt.Errorf("marking %d alerts read: %w", len(batch), err)
		}
		n, err := rowsAffected(res)
		if err != nil {
			return 0, err
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch mark-read: %w", err)
	}
	return total, nil
}

// MarkAllRead flips every unread alert and returns how many changed.
func (r *AlertRepository) MarkAllRead(ctx context.Context, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE alerts SET is_read = ?, read_at = ? WHERE is_read = ?`),
		true, at.UTC(), false)
	if err != nil {
		return 0, fmt.Errorf("marking all alerts read: %w", err)
	}
	return rowsAffected(res)
}

// ResolveBySource marks every unread alert for the source read, whatever
// module raised it.
func (r *AlertRepository) ResolveBySource(ctx context.Context, sourceType string, sourceID int64, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`UPDATE alerts SET is_read = ?, read_at = ?
			WHERE source_type = ? AND source_id = ? AND is_read = ?`),
		true, at.UTC(), sourceType, sourceID, false)
	if err != nil {
		return 0, fmt.Errorf("resolving alerts for %s/%d: %w", sourceType, sourceID, err)
	}
	return rowsAffected(res)
}

// UnreadSourceIDs lists the distinct source ids that still have an unread
// alert of sourceType, ascending.
func (r *AlertRepository) UnreadSourceIDs(ctx context.Context, sourceType string) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`SELECT DISTINCT source_id FROM alerts
		WHERE source_type = ? AND is_read = ? AND source_id IS NOT NULL
		ORDER BY source_id`), sourceType, false)
	if err != nil {
		return nil, fmt.Errorf("listing unread %s sources: %w", sourceType, err)
	}
	return ids, nil
}
