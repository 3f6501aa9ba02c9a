package database

import (
	"context"
	"fmt"
	"time"

	"sweepsapp/models"
)

// InsertOTP stores a new hashed code and retires earlier unused ones.
func (db *Database) InsertOTP(ctx context.Context, msisdn, codeHash string, expiresAt time.Time) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `UPDATE otp_codes SET used = TRUE WHERE msisdn = $1 AND used = FALSE`, msisdn); err != nil {
		return fmt.Errorf("failed to retire codes: %w", err)
	}
	_, err = conn.Exec(ctx, `INSERT INTO otp_codes (msisdn, code_hash, expires_at) VALUES ($1, $2, $3)`,
		msisdn, codeHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert code: %w", err)
	}
	return nil
}

// LatestOTP returns the newest unused code for msisdn.
func (db *Database) LatestOTP(ctx context.Context, msisdn string) (*models.OTPCode, error) {
	var c models.OTPCode
	err := db.pool.QueryRow(ctx, `SELECT id, msisdn, code_hash, attempts, used, expires_at, created_at
		FROM otp_codes WHERE msisdn = $1 AND used = FALSE
		ORDER BY id DESC LIMIT 1`, msisdn).
		Scan(&c.ID, &c.Msisdn, &c.CodeHash, &c.Attempts, &c.Used, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (db *Database) IncrementOTPAttempts(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := db.pool.QueryRow(ctx, `UPDATE otp_codes SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("failed to count attempt: %w", notFound(err))
	}
	return attempts, nil
}

// ConsumeOTP marks a code used. It returns ErrNotFound when another request
// consumed it first.
func (db *Database) ConsumeOTP(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, `UPDATE otp_codes SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to consume code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
