package database

import (
	"context"
	"errors"
	"fmt"

	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/jackc/pgx/v5"
)

func (db *Database) LastBonusClaim(ctx context.Context, playerID int64) (*models.DailyBonusClaim, error) {
	var c models.DailyBonusClaim
	err := db.pool.QueryRow(ctx, `SELECT player_id, claim_date, streak, gc, sc, created_at
		FROM daily_bonus_claims WHERE player_id = $1
		ORDER BY claim_date DESC LIMIT 1`, playerID).
		Scan(&c.PlayerID, &c.ClaimDate, &c.Streak, &c.GC, &c.SC, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ClaimDailyBonus records the claim row and books its credits atomically.
// A second claim for the same day returns the stored row with replayed set.
func (db *Database) ClaimDailyBonus(ctx context.Context, claim models.DailyBonusClaim, credits []ledger.Request) (*models.DailyBonusClaim, bool, error) {
	var (
		out      models.DailyBonusClaim
		replayed bool
	)
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO daily_bonus_claims (player_id, claim_date, streak, gc, sc)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (player_id, claim_date) DO NOTHING
			RETURNING player_id, claim_date, streak, gc, sc, created_at`,
			claim.PlayerID, claim.ClaimDate, claim.Streak, claim.GC, claim.SC).
			Scan(&out.PlayerID, &out.ClaimDate, &out.Streak, &out.GC, &out.SC, &out.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			replayed = true
			return tx.QueryRow(ctx, `SELECT player_id, claim_date, streak, gc, sc, created_at
				FROM daily_bonus_claims WHERE player_id = $1 AND claim_date = $2`, claim.PlayerID, claim.ClaimDate).
				Scan(&out.PlayerID, &out.ClaimDate, &out.Streak, &out.GC, &out.SC, &out.CreatedAt)
		}
		if err != nil {
			return fmt.Errorf("failed to insert claim: %w", err)
		}
		for _, req := range credits {
			if _, _, err := applyTxn(ctx, tx, req); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, replayed, nil
}
