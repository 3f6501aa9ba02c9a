package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"sweepsapp/games"
	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const poolColumns = `id, name, currency, seed_amount, amount, contribution_rate, must_hit_by, active, last_winner_id, last_won_at, updated_at`

func scanPool(row pgx.Row) (*models.JackpotPool, error) {
	var p models.JackpotPool
	err := row.Scan(&p.ID, &p.Name, &p.Currency, &p.SeedAmount, &p.Amount, &p.ContributionRate,
		&p.MustHitBy, &p.Active, &p.LastWinnerID, &p.LastWonAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (db *Database) ListPools(ctx context.Context, activeOnly bool) ([]models.JackpotPool, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+poolColumns+` FROM jackpot_pools
		WHERE active OR NOT $1 ORDER BY amount DESC`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	defer rows.Close()

	out := []models.JackpotPool{}
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pool: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (db *Database) GetPool(ctx context.Context, id int64) (*models.JackpotPool, error) {
	p, err := scanPool(db.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM jackpot_pools WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get pool %d: %w", id, err)
	}
	return p, nil
}

func (db *Database) CreatePool(ctx context.Context, p models.JackpotPool) (*models.JackpotPool, error) {
	out, err := scanPool(db.pool.QueryRow(ctx, `INSERT INTO jackpot_pools
		(name, currency, seed_amount, amount, contribution_rate, must_hit_by, active)
		VALUES ($1, $2, $3, $3, $4, $5, $6)
		RETURNING `+poolColumns,
		p.Name, p.Currency, p.SeedAmount, p.ContributionRate, p.MustHitBy, p.Active))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return out, nil
}

// UpdatePool changes the pool settings; the running amount is left alone.
func (db *Database) UpdatePool(ctx context.Context, p models.JackpotPool) (*models.JackpotPool, error) {
	out, err := scanPool(db.pool.QueryRow(ctx, `UPDATE jackpot_pools SET
		name = $2, seed_amount = $3, contribution_rate = $4, must_hit_by = $5, active = $6, updated_at = now()
		WHERE id = $1 RETURNING `+poolColumns,
		p.ID, p.Name, p.SeedAmount, p.ContributionRate, p.MustHitBy, p.Active))
	if err != nil {
		return nil, fmt.Errorf("failed to update pool %d: %w", p.ID, err)
	}
	return out, nil
}

func (db *Database) PoolWins(ctx context.Context, poolID int64, page models.Page) ([]models.JackpotWin, error) {
	rows, err := db.pool.Query(ctx, `SELECT w.id, w.pool_id, p.name, w.player_id, w.amount, w.currency, w.round_key, w.created_at
		FROM jackpot_wins w JOIN jackpot_pools p ON p.id = w.pool_id
		WHERE ($1::bigint = 0 OR w.pool_id = $1)
		ORDER BY w.created_at DESC LIMIT $2 OFFSET $3`, poolID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list wins: %w", err)
	}
	defer rows.Close()

	out := []models.JackpotWin{}
	for rows.Next() {
		var w models.JackpotWin
		if err := rows.Scan(&w.ID, &w.PoolID, &w.PoolName, &w.PlayerID, &w.Amount, &w.Currency, &w.RoundKey, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan win: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// contribute feeds one house bet into its pool under a row lock and pays the
// pool out when it crosses must_hit_by. Bets in another currency are ignored.
func contribute(ctx context.Context, tx pgx.Tx, poolID int64, in HouseRound) (*models.JackpotHit, decimal.Decimal, error) {
	p, err := scanPool(tx.QueryRow(ctx, `SELECT `+poolColumns+` FROM jackpot_pools WHERE id = $1 FOR UPDATE`, poolID))
	if errors.Is(err, ErrNotFound) {
		return nil, decimal.Zero, nil
	}
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to lock pool: %w", err)
	}
	if !p.Active || p.Currency != string(in.Currency) {
		return nil, decimal.Zero, nil
	}

	next, payout, hit := games.Contribute(games.PoolState{
		Amount:    p.Amount,
		Seed:      p.SeedAmount,
		Rate:      p.ContributionRate,
		MustHitBy: p.MustHitBy,
	}, in.Bet)

	if !hit {
		_, err = tx.Exec(ctx, `UPDATE jackpot_pools SET amount = $2, updated_at = now() WHERE id = $1`, poolID, next)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("failed to update pool: %w", err)
		}
		return nil, decimal.Zero, nil
	}

	_, err = tx.Exec(ctx, `UPDATE jackpot_pools
		SET amount = $2, last_winner_id = $3, last_won_at = now(), updated_at = now() WHERE id = $1`,
		poolID, next, in.PlayerID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to reset pool: %w", err)
	}
	var winID int64
	err = tx.QueryRow(ctx, `INSERT INTO jackpot_wins (pool_id, player_id, amount, currency, round_key)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`, poolID, in.PlayerID, payout, p.Currency, in.RoundKey).Scan(&winID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to record jackpot win: %w", err)
	}
	t, _, err := applyTxn(ctx, tx, ledger.Request{
		IdempotencyKey: "jackpot:" + strconv.FormatInt(winID, 10),
		PlayerID:       in.PlayerID,
		Currency:       in.Currency,
		Type:           ledger.TxnJackpotWin,
		Amount:         payout,
		Reference:      in.RoundKey,
		Note:           p.Name,
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return &models.JackpotHit{
		WinID:    winID,
		PoolID:   poolID,
		PoolName: p.Name,
		Amount:   payout,
		Currency: p.Currency,
	}, t.BalanceAfter, nil
}
