package database

import (
	"context"
	"fmt"
	"time"

	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/jackc/pgx/v5"
)

const packageColumns = `id, name, price_usd, gold_coins, bonus_sweeps_coins, badge, sort_order, active, created_at, updated_at`

func scanPackage(row pgx.Row) (*models.Package, error) {
	var p models.Package
	err := row.Scan(&p.ID, &p.Name, &p.PriceUSD, &p.GoldCoins, &p.BonusSweepsCoins, &p.Badge,
		&p.SortOrder, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (db *Database) ListPackages(ctx context.Context, activeOnly bool) ([]models.Package, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+packageColumns+` FROM packages
		WHERE active OR NOT $1
		ORDER BY sort_order, price_usd`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	out := []models.Package{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (db *Database) GetPackage(ctx context.Context, id int64) (*models.Package, error) {
	p, err := scanPackage(db.pool.QueryRow(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get package %d: %w", id, err)
	}
	return p, nil
}

func (db *Database) CreatePackage(ctx context.Context, p models.Package) (*models.Package, error) {
	out, err := scanPackage(db.pool.QueryRow(ctx, `INSERT INTO packages
		(name, price_usd, gold_coins, bonus_sweeps_coins, badge, sort_order, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+packageColumns,
		p.Name, p.PriceUSD, p.GoldCoins, p.BonusSweepsCoins, p.Badge, p.SortOrder, p.Active))
	if err != nil {
		return nil, fmt.Errorf("failed to create package: %w", err)
	}
	return out, nil
}

func (db *Database) UpdatePackage(ctx context.Context, p models.Package) (*models.Package, error) {
	out, err := scanPackage(db.pool.QueryRow(ctx, `UPDATE packages SET
		name = $2, price_usd = $3, gold_coins = $4, bonus_sweeps_coins = $5, badge = $6,
		sort_order = $7, active = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+packageColumns,
		p.ID, p.Name, p.PriceUSD, p.GoldCoins, p.BonusSweepsCoins, p.Badge, p.SortOrder, p.Active))
	if err != nil {
		return nil, fmt.Errorf("failed to update package %d: %w", p.ID, err)
	}
	return out, nil
}

func (db *Database) DeactivatePackage(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, `UPDATE packages SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate package: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const orderColumns = `id, player_id, package_id, amount_usd, gold_coins, sweeps_coins, status, provider_ref, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.PlayerID, &o.PackageID, &o.AmountUSD, &o.GoldCoins, &o.SweepsCoins,
		&o.Status, &o.ProviderRef, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (db *Database) CreateOrder(ctx context.Context, o models.Order) (*models.Order, error) {
	out, err := scanOrder(db.pool.QueryRow(ctx, `INSERT INTO orders
		(id, player_id, package_id, amount_usd, gold_coins, sweeps_coins, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+orderColumns,
		o.ID, o.PlayerID, o.PackageID, o.AmountUSD, o.GoldCoins, o.SweepsCoins, models.OrderPending))
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return out, nil
}

func (db *Database) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(db.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (db *Database) ListOrders(ctx context.Context, playerID int64, page models.Page) ([]models.Order, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE player_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, playerID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	out := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// PayOrder books the coin credits and marks the order paid in one
// transaction. It returns the status the order had before: paid means the
// call was a replay. Failed and expired orders are still paid because the
// provider has captured the money.
func (db *Database) PayOrder(ctx context.Context, orderID, providerRef string, credits []ledger.Request) (*models.Order, string, error) {
	var (
		out   *models.Order
		prior string
	)
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
		if err != nil {
			return err
		}
		prior = o.Status
		switch o.Status {
		case models.OrderPaid:
			out = o
			return nil
		case models.OrderPending, models.OrderFailed, models.OrderExpired:
		default:
			return ErrInvalidState
		}

		for _, req := range credits {
			if _, _, err := applyTxn(ctx, tx, req); err != nil {
				return err
			}
		}
		out, err = scanOrder(tx.QueryRow(ctx, `UPDATE orders SET status = $2, provider_ref = $3, updated_at = now()
			WHERE id = $1 RETURNING `+orderColumns, orderID, models.OrderPaid, providerRef))
		if err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE players SET has_purchased = TRUE, updated_at = now() WHERE id = $1 AND NOT has_purchased`, o.PlayerID)
		if err != nil {
			return fmt.Errorf("failed to flag purchaser: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, prior, nil
}

// CloseOrder moves a pending order to status (failed or expired).
func (db *Database) CloseOrder(ctx context.Context, orderID, status string) error {
	tag, err := db.pool.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`, orderID, status, models.OrderPending)
	if err != nil {
		return fmt.Errorf("failed to close order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// ExpireOrders closes pending orders created before cutoff.
func (db *Database) ExpireOrders(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.pool.Exec(ctx, `UPDATE orders SET status = $1, updated_at = now()
		WHERE status = $2 AND created_at < $3`, models.OrderExpired, models.OrderPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire orders: %w", err)
	}
	return tag.RowsAffected(), nil
}
