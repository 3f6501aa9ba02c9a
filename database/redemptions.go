package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrDailyLimit is returned when a redemption would push the day's total over the cap.
var ErrDailyLimit = errors.New("daily redemption limit reached")

const redemptionColumns = `id, player_id, amount, method, status, fraud_score, hold_txn_id, reason, reviewed_by, created_at, updated_at`

func scanRedemption(row pgx.Row) (*models.Redemption, error) {
	var r models.Redemption
	err := row.Scan(&r.ID, &r.PlayerID, &r.Amount, &r.Method, &r.Status, &r.FraudScore, &r.HoldTxnID,
		&r.Reason, &r.ReviewedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// NewRedemption is what CreateRedemption needs besides the hold request.
type NewRedemption struct {
	Method     string
	Status     string
	FraudScore int
	DailyMax   decimal.Decimal
	DayStart   time.Time
}

// CreateRedemption holds the coins and records the request atomically. The
// daily cap is checked under the wallet lock so parallel requests cannot
// both slip under it.
func (db *Database) CreateRedemption(ctx context.Context, hold ledger.Request, in NewRedemption) (*models.Redemption, error) {
	var out *models.Redemption
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockWallet(ctx, tx, hold.PlayerID, ledger.SweepsCoins); err != nil {
			return err
		}

		var today decimal.Decimal
		err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM redemptions
			WHERE player_id = $1 AND created_at >= $2 AND status <> ALL($3)`,
			hold.PlayerID, in.DayStart, []string{models.RedemptionRejected, models.RedemptionCancelled}).Scan(&today)
		if err != nil {
			return fmt.Errorf("failed to sum redemptions: %w", err)
		}
		if in.DailyMax.IsPositive() && today.Add(hold.Amount).GreaterThan(in.DailyMax) {
			return ErrDailyLimit
		}

		t, _, err := applyTxn(ctx, tx, hold)
		if err != nil {
			return err
		}
		out, err = scanRedemption(tx.QueryRow(ctx, `INSERT INTO redemptions
			(player_id, amount, method, status, fraud_score, hold_txn_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+redemptionColumns,
			hold.PlayerID, hold.Amount, in.Method, in.Status, in.FraudScore, t.ID))
		if err != nil {
			return fmt.Errorf("failed to insert redemption: %w", err)
		}
		return nil
	})
	return out, err
}

func (db *Database) GetRedemption(ctx context.Context, id int64) (*models.Redemption, error) {
	r, err := scanRedemption(db.pool.QueryRow(ctx, `SELECT `+redemptionColumns+` FROM redemptions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get redemption %d: %w", id, err)
	}
	return r, nil
}

// ListRedemptions filters by player (0 for all) and statuses (empty for all).
func (db *Database) ListRedemptions(ctx context.Context, playerID int64, statuses []string, page models.Page) ([]models.Redemption, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+redemptionColumns+` FROM redemptions
		WHERE ($1::bigint = 0 OR player_id = $1) AND (COALESCE(cardinality($2::text[]), 0) = 0 OR status = ANY($2))
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, playerID, statuses, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	defer rows.Close()

	out := []models.Redemption{}
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CloseRedemption moves an open redemption to status. Rejections and
// cancellations refund the held coins in the same transaction.
func (db *Database) CloseRedemption(ctx context.Context, id int64, status string, reason *string, reviewer *int64) (*models.Redemption, error) {
	var out *models.Redemption
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		r, err := scanRedemption(tx.QueryRow(ctx, `SELECT `+redemptionColumns+` FROM redemptions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if !r.Open() {
			return ErrInvalidState
		}

		if status == models.RedemptionRejected || status == models.RedemptionCancelled {
			_, _, err := applyTxn(ctx, tx, ledger.Request{
				IdempotencyKey: "redemption-refund:" + strconv.FormatInt(id, 10),
				PlayerID:       r.PlayerID,
				Currency:       ledger.SweepsCoins,
				Type:           ledger.TxnRedemptionRefund,
				Amount:         r.Amount,
				Reference:      strconv.FormatInt(id, 10),
				Note:           status,
			})
			if err != nil {
				return err
			}
		}

		out, err = scanRedemption(tx.QueryRow(ctx, `UPDATE redemptions
			SET status = $2, reason = COALESCE($3, reason), reviewed_by = COALESCE($4, reviewed_by), updated_at = now()
			WHERE id = $1 RETURNING `+redemptionColumns, id, status, reason, reviewer))
		if err != nil {
			return fmt.Errorf("failed to update redemption: %w", err)
		}
		return nil
	})
	return out, err
}
