package database

import (
	"context"
	"fmt"
	"time"

	"sweepsapp/models"
)

const smsColumns = `id, msisdn, message, template, status, attempts, last_error, claimed_at, created_at`

// InsertIntoSMSQueue queues an outbound message for the drain job.
func (db *Database) InsertIntoSMSQueue(ctx context.Context, msisdn, message, template string) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx, `INSERT INTO sms_queue (msisdn, message, template) VALUES ($1, $2, $3) RETURNING id`,
		msisdn, message, template).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to queue sms: %w", err)
	}
	return id, nil
}

// ClaimSMSBatch moves up to limit queued messages to sending and returns
// them. Rows held by another drainer are skipped, and once claimed they no
// longer match the queued filter.
func (db *Database) ClaimSMSBatch(ctx context.Context, limit int) ([]models.SMSMessage, error) {
	rows, err := db.pool.Query(ctx, `UPDATE sms_queue SET status = $3, claimed_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM sms_queue WHERE status = $1
			ORDER BY id LIMIT $2 FOR UPDATE SKIP LOCKED
		)
		RETURNING `+smsColumns, models.SMSQueued, limit, models.SMSSending)
	if err != nil {
		return nil, fmt.Errorf("failed to claim sms batch: %w", err)
	}
	defer rows.Close()

	var out []models.SMSMessage
	for rows.Next() {
		var m models.SMSMessage
		if err := rows.Scan(&m.ID, &m.Msisdn, &m.Message, &m.Template, &m.Status, &m.Attempts, &m.LastError,
			&m.ClaimedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sms: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RequeueStaleSMS returns sending rows claimed more than lease ago to the
// queue. A drainer that died mid-batch leaves its rows behind this way.
func (db *Database) RequeueStaleSMS(ctx context.Context, lease time.Duration) (int64, error) {
	tag, err := db.pool.Exec(ctx, `UPDATE sms_queue SET status = $1, claimed_at = NULL, updated_at = now()
		WHERE status = $2 AND claimed_at < now() - make_interval(secs => $3)`,
		models.SMSQueued, models.SMSSending, lease.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale sms: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkSMS records one delivery attempt. A failed attempt goes back to the
// queue until maxAttempts is reached.
func (db *Database) MarkSMS(ctx context.Context, id int64, sendErr error, maxAttempts int) error {
	var err error
	if sendErr == nil {
		_, err = db.pool.Exec(ctx, `UPDATE sms_queue
			SET status = $2, attempts = attempts + 1, claimed_at = NULL, updated_at = now()
			WHERE id = $1`, id, models.SMSSent)
	} else {
		_, err = db.pool.Exec(ctx, `UPDATE sms_queue
			SET attempts = attempts + 1,
				last_error = $2,
				status = CASE WHEN attempts + 1 >= $3 THEN $4 ELSE $5 END,
				claimed_at = NULL,
				updated_at = now()
			WHERE id = $1`, id, sendErr.Error(), maxAttempts, models.SMSFailed, models.SMSQueued)
	}
	if err != nil {
		return fmt.Errorf("failed to mark sms %d: %w", id, err)
	}
	return nil
}
