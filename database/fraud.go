package database

import (
	"context"
	"fmt"
	"time"

	"sweepsapp/models"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"
)

// FraudSignals gathers the raw facts for a player. The queries are
// independent and run concurrently.
func (db *Database) FraudSignals(ctx context.Context, playerID int64) (models.FraudSignals, error) {
	var s models.FraudSignals

	p, err := db.GetPlayer(ctx, playerID)
	if err != nil {
		return s, err
	}
	s.AccountAge = time.Since(p.CreatedAt)
	s.HasPurchased = p.HasPurchased
	s.KYCApproved = p.KYCStatus == models.KYCApproved

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if p.LastIP == nil || *p.LastIP == "" {
			return nil
		}
		return db.pool.QueryRow(gctx, `SELECT COUNT(*) FROM players WHERE last_ip = $1`, *p.LastIP).Scan(&s.SharedIPAccounts)
	})
	g.Go(func() error {
		return db.pool.QueryRow(gctx, `SELECT COUNT(*) FROM redemptions
			WHERE player_id = $1 AND created_at > now() - interval '24 hours'`, playerID).Scan(&s.RedemptionsLast24h)
	})
	g.Go(func() error {
		return db.pool.QueryRow(gctx, `SELECT COALESCE(SUM(amount), 0) FROM redemptions
			WHERE player_id = $1 AND created_at > now() - interval '30 days' AND status IN ('pending', 'review', 'paid')`,
			playerID).Scan(&s.RedeemedSC30d)
	})
	g.Go(func() error {
		return db.pool.QueryRow(gctx, `SELECT COALESCE(SUM(amount_usd), 0) FROM orders
			WHERE player_id = $1 AND status = 'paid' AND created_at > now() - interval '30 days'`,
			playerID).Scan(&s.PurchasedUSD30d)
	})
	g.Go(func() error {
		return db.pool.QueryRow(gctx, `SELECT COALESCE(SUM(attempts), 0) FROM otp_codes
			WHERE msisdn = $1 AND created_at > now() - interval '24 hours'`, p.Msisdn).Scan(&s.FailedOTPs24h)
	})
	if err := g.Wait(); err != nil {
		return s, fmt.Errorf("failed to load fraud signals: %w", err)
	}
	return s, nil
}

const flagColumns = `id, player_id, score, reasons, source, status, note, resolved_by, created_at, resolved_at`

func scanFlag(row pgx.Row) (*models.FraudFlag, error) {
	var f models.FraudFlag
	err := row.Scan(&f.ID, &f.PlayerID, &f.Score, &f.Reasons, &f.Source, &f.Status, &f.Note,
		&f.ResolvedBy, &f.CreatedAt, &f.ResolvedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (db *Database) CreateFlag(ctx context.Context, f models.FraudFlag) (*models.FraudFlag, error) {
	out, err := scanFlag(db.pool.QueryRow(ctx, `INSERT INTO fraud_flags (player_id, score, reasons, source, status)
		VALUES ($1, $2, COALESCE($3::text[], '{}'), $4, $5) RETURNING `+flagColumns, f.PlayerID, f.Score, f.Reasons, f.Source, models.FlagOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to create flag: %w", err)
	}
	return out, nil
}

// ListFlags filters by status and player; zero values mean any.
func (db *Database) ListFlags(ctx context.Context, status string, playerID int64, page models.Page) ([]models.FraudFlag, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+flagColumns+` FROM fraud_flags
		WHERE ($1 = '' OR status = $1) AND ($2::bigint = 0 OR player_id = $2)
		ORDER BY score DESC, id DESC LIMIT $3 OFFSET $4`, status, playerID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	defer rows.Close()

	out := []models.FraudFlag{}
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (db *Database) ResolveFlag(ctx context.Context, id int64, note string, adminID int64) (*models.FraudFlag, error) {
	f, err := scanFlag(db.pool.QueryRow(ctx, `UPDATE fraud_flags
		SET status = $2, note = $3, resolved_by = $4, resolved_at = now()
		WHERE id = $1 AND status = $5 RETURNING `+flagColumns, id, models.FlagResolved, note, adminID, models.FlagOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve flag %d: %w", id, err)
	}
	return f, nil
}
