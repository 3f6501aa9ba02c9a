package database

import (
	"context"
	"errors"
	"fmt"

	"sweepsapp/games"
	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const gameColumns = `id, slug, name, category, provider, rtp, min_bet, max_bet, jackpot_pool_id, active, sort_order`

func scanGame(row pgx.Row) (*models.Game, error) {
	var g models.Game
	err := row.Scan(&g.ID, &g.Slug, &g.Name, &g.Category, &g.Provider, &g.RTP, &g.MinBet, &g.MaxBet,
		&g.JackpotPoolID, &g.Active, &g.SortOrder)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// ListGames returns the catalog, optionally narrowed to one category.
func (db *Database) ListGames(ctx context.Context, category string, activeOnly bool) ([]models.Game, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+gameColumns+` FROM games
		WHERE ($1 = '' OR category = $1) AND (active OR NOT $2)
		ORDER BY category, sort_order, name`, category, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	out := []models.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (db *Database) GetGameBySlug(ctx context.Context, slug string) (*models.Game, error) {
	g, err := scanGame(db.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE slug = $1`, slug))
	if err != nil {
		return nil, fmt.Errorf("failed to get game %q: %w", slug, err)
	}
	return g, nil
}

func (db *Database) UpsertGame(ctx context.Context, g models.Game) (*models.Game, error) {
	out, err := scanGame(db.pool.QueryRow(ctx, `INSERT INTO games
		(slug, name, category, provider, rtp, min_bet, max_bet, jackpot_pool_id, active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, provider = EXCLUDED.provider,
			rtp = EXCLUDED.rtp, min_bet = EXCLUDED.min_bet, max_bet = EXCLUDED.max_bet,
			jackpot_pool_id = EXCLUDED.jackpot_pool_id, active = EXCLUDED.active, sort_order = EXCLUDED.sort_order
		RETURNING `+gameColumns,
		g.Slug, g.Name, g.Category, g.Provider, g.RTP, g.MinBet, g.MaxBet, g.JackpotPoolID, g.Active, g.SortOrder))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert game: %w", err)
	}
	return out, nil
}

func (db *Database) SetGameActive(ctx context.Context, slug string, active bool) (*models.Game, error) {
	g, err := scanGame(db.pool.QueryRow(ctx, `UPDATE games SET active = $2 WHERE slug = $1 RETURNING `+gameColumns, slug, active))
	if err != nil {
		return nil, fmt.Errorf("failed to set game active: %w", err)
	}
	return g, nil
}

// GetSeed returns the player's current seed pair, creating one on first use.
func (db *Database) GetSeed(ctx context.Context, playerID int64) (*models.FairSeed, error) {
	var out *models.FairSeed
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = lockSeed(ctx, tx, playerID)
		return err
	})
	return out, err
}

func lockSeed(ctx context.Context, tx pgx.Tx, playerID int64) (*models.FairSeed, error) {
	fresh, err := games.NewSeed("")
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx, `INSERT INTO fair_seeds (player_id, server_seed, server_hash, client_seed)
		VALUES ($1, $2, $3, $4) ON CONFLICT (player_id) DO NOTHING`,
		playerID, fresh.ServerSeed, fresh.ServerHash, fresh.ClientSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to create seed: %w", err)
	}

	s := models.FairSeed{PlayerID: playerID}
	err = tx.QueryRow(ctx, `SELECT server_seed, server_hash, client_seed, nonce FROM fair_seeds
		WHERE player_id = $1 FOR UPDATE`, playerID).Scan(&s.ServerSeed, &s.ServerHash, &s.ClientSeed, &s.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to lock seed: %w", err)
	}
	return &s, nil
}

func (db *Database) SetClientSeed(ctx context.Context, playerID int64, clientSeed string) (*models.FairSeed, error) {
	var out *models.FairSeed
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		s, err := lockSeed(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE fair_seeds SET client_seed = $2 WHERE player_id = $1`, playerID, clientSeed); err != nil {
			return fmt.Errorf("failed to set client seed: %w", err)
		}
		s.ClientSeed = clientSeed
		out = s
		return nil
	})
	return out, err
}

// RotateSeed swaps in next and returns the retired pair with its secret.
func (db *Database) RotateSeed(ctx context.Context, playerID int64, next games.Seed) (*models.RevealedSeed, *models.FairSeed, error) {
	var (
		revealed *models.RevealedSeed
		current  *models.FairSeed
	)
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		old, err := lockSeed(ctx, tx, playerID)
		if err != nil {
			return err
		}
		if next.ClientSeed == "" {
			next.ClientSeed = old.ClientSeed
		}
		_, err = tx.Exec(ctx, `UPDATE fair_seeds SET server_seed = $2, server_hash = $3, client_seed = $4, nonce = 0,
			created_at = now() WHERE player_id = $1`, playerID, next.ServerSeed, next.ServerHash, next.ClientSeed)
		if err != nil {
			return fmt.Errorf("failed to rotate seed: %w", err)
		}
		revealed = &models.RevealedSeed{
			ServerSeed: old.ServerSeed,
			ServerHash: old.ServerHash,
			ClientSeed: old.ClientSeed,
			LastNonce:  old.Nonce - 1,
		}
		current = &models.FairSeed{PlayerID: playerID, ServerSeed: next.ServerSeed, ServerHash: next.ServerHash, ClientSeed: next.ClientSeed}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return revealed, current, nil
}

const roundColumns = `id, round_key, player_id, game_id, currency, bet, win, multiplier, symbols,
	server_hash, client_seed, nonce, status, created_at`

func scanRound(row pgx.Row) (*models.GameRound, error) {
	var r models.GameRound
	err := row.Scan(&r.ID, &r.RoundKey, &r.PlayerID, &r.GameID, &r.Currency, &r.Bet, &r.Win, &r.Multiplier,
		&r.Symbols, &r.ServerHash, &r.ClientSeed, &r.Nonce, &r.Status, &r.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (db *Database) GetRound(ctx context.Context, roundKey string) (*models.GameRound, error) {
	r, err := scanRound(db.pool.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds WHERE round_key = $1`, roundKey))
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return r, nil
}

// HouseRound is one server-side play.
type HouseRound struct {
	RoundKey string
	PlayerID int64
	Game     models.Game
	Currency ledger.Currency
	Bet      decimal.Decimal
}

type RoundResult struct {
	Round    models.GameRound    `json:"round"`
	Jackpots []models.JackpotHit `json:"jackpots,omitempty"`
	Balance  decimal.Decimal     `json:"balance"`
	Replayed bool                `json:"replayed"`
}

// PlayHouseRound settles a whole house round in one transaction: bet debit,
// jackpot contribution, outcome, win credit and the round row. play draws the
// outcome from the seed at the nonce reserved for this round.
func (db *Database) PlayHouseRound(ctx context.Context, in HouseRound, play func(seed models.FairSeed) games.Outcome) (*RoundResult, error) {
	var res RoundResult
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		existing, err := scanRound(tx.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds WHERE round_key = $1`, in.RoundKey))
		switch {
		case err == nil:
			if existing.PlayerID != in.PlayerID || !existing.Bet.Equal(in.Bet) || existing.GameID != in.Game.ID ||
				existing.Currency != string(in.Currency) {
				return ledger.ErrIdempotencyConflict
			}
			res.Round, res.Replayed = *existing, true
			return nil
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("failed to check round: %w", err)
		}

		seed, err := lockSeed(ctx, tx, in.PlayerID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE fair_seeds SET nonce = nonce + 1 WHERE player_id = $1`, in.PlayerID); err != nil {
			return fmt.Errorf("failed to advance nonce: %w", err)
		}

		roundID := uuid.NewString()
		betTxn, _, err := applyTxn(ctx, tx, ledger.Request{
			IdempotencyKey: "bet:" + in.RoundKey,
			PlayerID:       in.PlayerID,
			Currency:       in.Currency,
			Type:           ledger.TxnBet,
			Amount:         in.Bet,
			Reference:      roundID,
			Note:           in.Game.Slug,
		})
		if err != nil {
			return err
		}
		res.Balance = betTxn.BalanceAfter

		if in.Game.JackpotPoolID != nil {
			hit, balance, err := contribute(ctx, tx, *in.Game.JackpotPoolID, in)
			if err != nil {
				return err
			}
			if hit != nil {
				res.Jackpots = append(res.Jackpots, *hit)
				res.Balance = balance
			}
		}

		outcome := play(*seed)
		win := outcome.Payout(in.Bet)
		if win.IsPositive() {
			winTxn, _, err := applyTxn(ctx, tx, ledger.Request{
				IdempotencyKey: "win:" + in.RoundKey,
				PlayerID:       in.PlayerID,
				Currency:       in.Currency,
				Type:           ledger.TxnWin,
				Amount:         win,
				Reference:      roundID,
				Note:           in.Game.Slug,
			})
			if err != nil {
				return err
			}
			res.Balance = winTxn.BalanceAfter
		}

		r, err := scanRound(tx.QueryRow(ctx, `INSERT INTO game_rounds
			(id, round_key, player_id, game_id, currency, bet, win, multiplier, symbols, server_hash, client_seed, nonce, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING `+roundColumns,
			roundID, in.RoundKey, in.PlayerID, in.Game.ID, in.Currency, in.Bet, win, outcome.Multiplier,
			outcome.Symbols, seed.ServerHash, seed.ClientSeed, seed.Nonce, models.RoundSettled))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("failed to insert round: %w", err)
		}
		res.Round = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ProviderRound is a bet reported by an external game provider.
type ProviderRound struct {
	RoundKey string
	PlayerID int64
	GameID   int64
	Currency ledger.Currency
	Bet      decimal.Decimal
}

func (db *Database) OpenProviderRound(ctx context.Context, in ProviderRound) (*models.GameRound, ledger.Txn, bool, error) {
	var (
		round    *models.GameRound
		txn      ledger.Txn
		replayed bool
	)
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		existing, err := scanRound(tx.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds WHERE round_key = $1 FOR UPDATE`, in.RoundKey))
		switch {
		case err == nil:
			if existing.PlayerID != in.PlayerID || !existing.Bet.Equal(in.Bet) || existing.Currency != string(in.Currency) {
				return ledger.ErrIdempotencyConflict
			}
			round, replayed = existing, true
			txn, err = txnByKey(ctx, tx, "bet:"+in.RoundKey)
			return err
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("failed to check round: %w", err)
		}

		roundID := uuid.NewString()
		txn, _, err = applyTxn(ctx, tx, ledger.Request{
			IdempotencyKey: "bet:" + in.RoundKey,
			PlayerID:       in.PlayerID,
			Currency:       in.Currency,
			Type:           ledger.TxnBet,
			Amount:         in.Bet,
			Reference:      roundID,
		})
		if err != nil {
			return err
		}
		round, err = scanRound(tx.QueryRow(ctx, `INSERT INTO game_rounds
			(id, round_key, player_id, game_id, currency, bet, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+roundColumns,
			roundID, in.RoundKey, in.PlayerID, in.GameID, in.Currency, in.Bet, models.RoundOpen))
		if err != nil {
			return fmt.Errorf("failed to insert round: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, ledger.Txn{}, false, err
	}
	return round, txn, replayed, nil
}

// SettleProviderRound pays win (possibly zero) on an open round.
func (db *Database) SettleProviderRound(ctx context.Context, roundKey string, win decimal.Decimal) (*models.GameRound, decimal.Decimal, bool, error) {
	var (
		round    *models.GameRound
		balance  decimal.Decimal
		replayed bool
	)
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		r, err := scanRound(tx.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds WHERE round_key = $1 FOR UPDATE`, roundKey))
		if err != nil {
			return err
		}
		switch r.Status {
		case models.RoundSettled:
			if !r.Win.Equal(win) {
				return ledger.ErrIdempotencyConflict
			}
			round, replayed = r, true
			balance, err = currentBalance(ctx, tx, r.PlayerID, ledger.Currency(r.Currency))
			return err
		case models.RoundRolledBack:
			return ErrInvalidState
		}

		if win.IsPositive() {
			t, _, err := applyTxn(ctx, tx, ledger.Request{
				IdempotencyKey: "win:" + roundKey,
				PlayerID:       r.PlayerID,
				Currency:       ledger.Currency(r.Currency),
				Type:           ledger.TxnWin,
				Amount:         win,
				Reference:      r.ID,
			})
			if err != nil {
				return err
			}
			balance = t.BalanceAfter
		} else {
			balance, err = currentBalance(ctx, tx, r.PlayerID, ledger.Currency(r.Currency))
			if err != nil {
				return err
			}
		}
		round, err = scanRound(tx.QueryRow(ctx, `UPDATE game_rounds SET win = $2, status = $3, updated_at = now()
			WHERE round_key = $1 RETURNING `+roundColumns, roundKey, win, models.RoundSettled))
		if err != nil {
			return fmt.Errorf("failed to settle round: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, false, err
	}
	return round, balance, replayed, nil
}

// RollbackProviderRound refunds the bet of an open round.
func (db *Database) RollbackProviderRound(ctx context.Context, roundKey string) (*models.GameRound, decimal.Decimal, bool, error) {
	var (
		round    *models.GameRound
		balance  decimal.Decimal
		replayed bool
	)
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		r, err := scanRound(tx.QueryRow(ctx, `SELECT `+roundColumns+` FROM game_rounds WHERE round_key = $1 FOR UPDATE`, roundKey))
		if err != nil {
			return err
		}
		switch r.Status {
		case models.RoundRolledBack:
			round, replayed = r, true
			balance, err = currentBalance(ctx, tx, r.PlayerID, ledger.Currency(r.Currency))
			return err
		case models.RoundSettled:
			return ErrInvalidState
		}

		t, _, err := applyTxn(ctx, tx, ledger.Request{
			IdempotencyKey: "rollback:" + roundKey,
			PlayerID:       r.PlayerID,
			Currency:       ledger.Currency(r.Currency),
			Type:           ledger.TxnRollback,
			Amount:         r.Bet,
			Reference:      r.ID,
		})
		if err != nil {
			return err
		}
		balance = t.BalanceAfter
		round, err = scanRound(tx.QueryRow(ctx, `UPDATE game_rounds SET status = $2, updated_at = now()
			WHERE round_key = $1 RETURNING `+roundColumns, roundKey, models.RoundRolledBack))
		if err != nil {
			return fmt.Errorf("failed to roll back round: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, false, err
	}
	return round, balance, replayed, nil
}

// RecentWins feeds the live winners list.
func (db *Database) RecentWins(ctx context.Context, limit int) ([]models.BigWin, error) {
	rows, err := db.pool.Query(ctx, `SELECT COALESCE(p.name, p.msisdn), g.name, r.win, r.currency, r.created_at
		FROM game_rounds r
		JOIN players p ON p.id = r.player_id
		JOIN games g ON g.id = r.game_id
		WHERE r.win > 0
		ORDER BY r.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wins: %w", err)
	}
	defer rows.Close()

	out := []models.BigWin{}
	for rows.Next() {
		var w models.BigWin
		if err := rows.Scan(&w.PlayerName, &w.GameName, &w.Amount, &w.Currency, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan win: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func txnByKey(ctx context.Context, tx pgx.Tx, key string) (ledger.Txn, error) {
	t, err := scanTxn(tx.QueryRow(ctx, `SELECT `+txnColumns+` FROM wallet_txns WHERE idempotency_key = $1`, key))
	if err != nil {
		return ledger.Txn{}, fmt.Errorf("failed to load txn %q: %w", key, err)
	}
	return *t, nil
}

func currentBalance(ctx context.Context, tx pgx.Tx, playerID int64, currency ledger.Currency) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE player_id = $1 AND currency = $2`, playerID, currency).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}
	return b, nil
}
