package database

import (
	"context"
	"fmt"

	"sweepsapp/models"

	"github.com/jackc/pgx/v5"
)

const kycColumns = `id, player_id, legal_name, date_of_birth, address_line, city, state, postal_code, country,
	document_type, document_last, document_ref, status, reason, reviewed_by, reviewed_at, created_at`

func scanKYC(row pgx.Row) (*models.KYCSubmission, error) {
	var k models.KYCSubmission
	err := row.Scan(&k.ID, &k.PlayerID, &k.LegalName, &k.DateOfBirth, &k.AddressLine, &k.City, &k.State,
		&k.PostalCode, &k.Country, &k.DocumentType, &k.DocumentLast, &k.DocumentRef, &k.Status, &k.Reason,
		&k.ReviewedBy, &k.ReviewedAt, &k.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &k, nil
}

// CreateKYC stores a submission and moves the player to pending. A second
// pending submission for the same player returns ErrDuplicate.
func (db *Database) CreateKYC(ctx context.Context, k models.KYCSubmission) (*models.KYCSubmission, error) {
	var out *models.KYCSubmission
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanKYC(tx.QueryRow(ctx, `INSERT INTO kyc_submissions
			(player_id, legal_name, date_of_birth, address_line, city, state, postal_code, country,
			 document_type, document_last, document_ref, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING `+kycColumns,
			k.PlayerID, k.LegalName, k.DateOfBirth, k.AddressLine, k.City, k.State, k.PostalCode, k.Country,
			k.DocumentType, k.DocumentLast, k.DocumentRef, models.KYCPending))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to insert kyc: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE players SET kyc_status = $2, updated_at = now() WHERE id = $1`, k.PlayerID, models.KYCPending)
		if err != nil {
			return fmt.Errorf("failed to update kyc status: %w", err)
		}
		return nil
	})
	return out, err
}

func (db *Database) LatestKYC(ctx context.Context, playerID int64) (*models.KYCSubmission, error) {
	k, err := scanKYC(db.pool.QueryRow(ctx, `SELECT `+kycColumns+` FROM kyc_submissions
		WHERE player_id = $1 ORDER BY id DESC LIMIT 1`, playerID))
	if err != nil {
		return nil, fmt.Errorf("failed to get kyc: %w", err)
	}
	return k, nil
}

func (db *Database) ListKYC(ctx context.Context, status string, page models.Page) ([]models.KYCSubmission, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+kycColumns+` FROM kyc_submissions
		WHERE ($1 = '' OR status = $1) ORDER BY id LIMIT $2 OFFSET $3`, status, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list kyc: %w", err)
	}
	defer rows.Close()

	out := []models.KYCSubmission{}
	for rows.Next() {
		k, err := scanKYC(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kyc: %w", err)
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

// ReviewKYC closes a pending submission and mirrors the decision on the player.
func (db *Database) ReviewKYC(ctx context.Context, id int64, status string, reason *string, reviewer int64) (*models.KYCSubmission, error) {
	var out *models.KYCSubmission
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		k, err := scanKYC(tx.QueryRow(ctx, `SELECT `+kycColumns+` FROM kyc_submissions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if k.Status != models.KYCPending {
			return ErrInvalidState
		}
		out, err = scanKYC(tx.QueryRow(ctx, `UPDATE kyc_submissions
			SET status = $2, reason = $3, reviewed_by = $4, reviewed_at = now()
			WHERE id = $1 RETURNING `+kycColumns, id, status, reason, reviewer))
		if err != nil {
			return fmt.Errorf("failed to review kyc: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE players SET kyc_status = $2, updated_at = now() WHERE id = $1`, k.PlayerID, status)
		if err != nil {
			return fmt.Errorf("failed to update kyc status: %w", err)
		}
		return nil
	})
	return out, err
}
