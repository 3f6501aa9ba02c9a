package database

import (
	"context"
	"encoding/json"
	"fmt"

	"sweepsapp/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const adminColumns = `id, email, password_hash, role, active, created_at`

func scanAdmin(row pgx.Row) (*models.AdminUser, error) {
	var a models.AdminUser
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.Active, &a.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (db *Database) CreateAdmin(ctx context.Context, email, passwordHash, role string) (*models.AdminUser, error) {
	a, err := scanAdmin(db.pool.QueryRow(ctx, `INSERT INTO admin_users (email, password_hash, role)
		VALUES ($1, $2, $3) RETURNING `+adminColumns, email, passwordHash, role))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	return a, nil
}

func (db *Database) GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	a, err := scanAdmin(db.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return a, nil
}

func (db *Database) InsertAudit(ctx context.Context, adminID int64, action, target string, details interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	_, err = db.pool.Exec(ctx, `INSERT INTO admin_audit (admin_id, action, target, details) VALUES ($1, $2, $3, $4)`,
		adminID, action, target, raw)
	if err != nil {
		return fmt.Errorf("failed to write audit: %w", err)
	}
	return nil
}

func (db *Database) ListAudit(ctx context.Context, target string, page models.Page) ([]models.AuditEntry, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, admin_id, action, target, details, created_at FROM admin_audit
		WHERE ($1 = '' OR target = $1) ORDER BY id DESC LIMIT $2 OFFSET $3`, target, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit: %w", err)
	}
	defer rows.Close()

	out := []models.AuditEntry{}
	for rows.Next() {
		var (
			e   models.AuditEntry
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.Target, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", err)
		}
		e.Details = json.RawMessage(raw)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DashboardStats runs the dashboard counters concurrently.
func (db *Database) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	s := models.DashboardStats{JackpotTotals: map[string]decimal.Decimal{}}

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, query string, args ...interface{}) {
		g.Go(func() error {
			return db.pool.QueryRow(gctx, query, args...).Scan(dst)
		})
	}
	count(&s.Players, `SELECT COUNT(*) FROM players`)
	count(&s.NewPlayers24h, `SELECT COUNT(*) FROM players WHERE created_at > now() - interval '24 hours'`)
	count(&s.PendingKYC, `SELECT COUNT(*) FROM kyc_submissions WHERE status = $1`, models.KYCPending)
	count(&s.PendingRedemptions, `SELECT COUNT(*) FROM redemptions WHERE status = ANY($1)`,
		[]string{models.RedemptionPending, models.RedemptionReview})
	count(&s.OpenFraudFlags, `SELECT COUNT(*) FROM fraud_flags WHERE status = $1`, models.FlagOpen)

	g.Go(func() error {
		return db.pool.QueryRow(gctx, `SELECT COALESCE(SUM(amount_usd), 0) FROM orders
			WHERE status = 'paid' AND updated_at > now() - interval '24 hours'`).Scan(&s.SalesUSD24h)
	})
	g.Go(func() error {
		return db.pool.QueryRow(gctx, `SELECT COALESCE(SUM(amount), 0) FROM redemptions
			WHERE status = 'paid' AND updated_at > now() - interval '24 hours'`).Scan(&s.RedeemedSC24h)
	})

	totals := map[string]decimal.Decimal{}
	g.Go(func() error {
		rows, err := db.pool.Query(gctx, `SELECT currency, SUM(amount) FROM jackpot_pools WHERE active GROUP BY currency`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				cur string
				sum decimal.Decimal
			)
			if err := rows.Scan(&cur, &sum); err != nil {
				return err
			}
			totals[cur] = sum
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return s, fmt.Errorf("failed to load dashboard: %w", err)
	}
	s.JackpotTotals = totals
	return s, nil
}
