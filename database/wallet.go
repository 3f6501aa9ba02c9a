package database

import (
	"context"
	"errors"
	"fmt"

	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const txnColumns = `id, idempotency_key, player_id, currency, type, direction, amount,
	balance_after, reference, note, created_at`

func scanTxn(row pgx.Row) (*ledger.Txn, error) {
	var t ledger.Txn
	err := row.Scan(&t.ID, &t.IdempotencyKey, &t.PlayerID, &t.Currency, &t.Type, &t.Direction,
		&t.Amount, &t.BalanceAfter, &t.Reference, &t.Note, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// ApplyTxn books one wallet movement in its own transaction. replayed is true
// when the idempotency key was already used by an identical request.
func (db *Database) ApplyTxn(ctx context.Context, req ledger.Request) (ledger.Txn, bool, error) {
	var (
		txn      ledger.Txn
		replayed bool
	)
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		txn, replayed, err = applyTxn(ctx, tx, req)
		return err
	})
	if err != nil {
		return ledger.Txn{}, false, err
	}
	return txn, replayed, nil
}

// applyTxn locks the wallet row, checks the idempotency key and writes the
// transaction with its two ledger entries. Callers own tx.
func applyTxn(ctx context.Context, tx pgx.Tx, req ledger.Request) (ledger.Txn, bool, error) {
	if err := ledger.Validate(req); err != nil {
		return ledger.Txn{}, false, err
	}

	balance, err := lockWallet(ctx, tx, req.PlayerID, req.Currency)
	if err != nil {
		return ledger.Txn{}, false, err
	}

	// The key is checked after the row lock so a concurrent twin sees the
	// committed first attempt.
	existing, err := scanTxn(tx.QueryRow(ctx, `SELECT `+txnColumns+` FROM wallet_txns WHERE idempotency_key = $1`, req.IdempotencyKey))
	switch {
	case err == nil:
		t, err := ledger.Replay(*existing, req)
		return t, err == nil, err
	case !errors.Is(err, ErrNotFound):
		return ledger.Txn{}, false, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	plan, err := ledger.Build(balance, req)
	if err != nil {
		return ledger.Txn{}, false, err
	}

	_, err = tx.Exec(ctx, `UPDATE wallets SET balance = $3, updated_at = now()
		WHERE player_id = $1 AND currency = $2`, req.PlayerID, req.Currency, plan.BalanceAfter)
	if err != nil {
		return ledger.Txn{}, false, fmt.Errorf("failed to update wallet: %w", err)
	}

	txn := ledger.Txn{
		ID:             uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		PlayerID:       req.PlayerID,
		Currency:       req.Currency,
		Type:           req.Type,
		Direction:      plan.Direction,
		Amount:         req.Amount,
		BalanceAfter:   plan.BalanceAfter,
		Reference:      req.Reference,
		Note:           req.Note,
	}
	err = tx.QueryRow(ctx, `INSERT INTO wallet_txns
		(id, idempotency_key, player_id, currency, type, direction, amount, balance_after, reference, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		txn.ID, txn.IdempotencyKey, txn.PlayerID, txn.Currency, txn.Type, txn.Direction,
		txn.Amount, txn.BalanceAfter, txn.Reference, txn.Note).Scan(&txn.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.Txn{}, false, ledger.ErrIdempotencyConflict
		}
		return ledger.Txn{}, false, fmt.Errorf("failed to insert wallet txn: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range plan.Entries {
		batch.Queue(`INSERT INTO ledger_entries (txn_id, account, direction, amount) VALUES ($1, $2, $3, $4)`,
			txn.ID, e.Account, e.Direction, e.Amount)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return ledger.Txn{}, false, fmt.Errorf("failed to insert ledger entries: %w", err)
	}
	return txn, false, nil
}

// lockWallet creates the wallet row on first use and returns its balance
// under FOR UPDATE.
func lockWallet(ctx context.Context, tx pgx.Tx, playerID int64, currency ledger.Currency) (decimal.Decimal, error) {
	_, err := tx.Exec(ctx, `INSERT INTO wallets (player_id, currency) VALUES ($1, $2)
		ON CONFLICT (player_id, currency) DO NOTHING`, playerID, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create wallet: %w", err)
	}
	var balance decimal.Decimal
	err = tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE player_id = $1 AND currency = $2 FOR UPDATE`,
		playerID, currency).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return balance, nil
}

func (db *Database) GetBalances(ctx context.Context, playerID int64) (models.Balances, error) {
	b := models.Balances{GC: decimal.Zero, SC: decimal.Zero}
	rows, err := db.pool.Query(ctx, `SELECT currency, balance FROM wallets WHERE player_id = $1`, playerID)
	if err != nil {
		return b, fmt.Errorf("failed to get balances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cur ledger.Currency
			bal decimal.Decimal
		)
		if err := rows.Scan(&cur, &bal); err != nil {
			return b, fmt.Errorf("failed to scan balance: %w", err)
		}
		switch cur {
		case ledger.GoldCoins:
			b.GC = bal
		case ledger.SweepsCoins:
			b.SC = bal
		}
	}
	return b, rows.Err()
}

// ListTxns pages through a player's history, newest first. An empty currency
// lists both.
func (db *Database) ListTxns(ctx context.Context, playerID int64, currency ledger.Currency, page models.Page) ([]ledger.Txn, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+txnColumns+` FROM wallet_txns
		WHERE player_id = $1 AND ($2 = '' OR currency = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`, playerID, string(currency), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list txns: %w", err)
	}
	defer rows.Close()

	out := []ledger.Txn{}
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan txn: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (db *Database) TxnEntries(ctx context.Context, txnID string) ([]ledger.Entry, error) {
	rows, err := db.pool.Query(ctx, `SELECT account, direction, amount FROM ledger_entries WHERE txn_id = $1 ORDER BY id`, txnID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.Account, &e.Direction, &e.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LedgerCheck reports transactions whose entries do not balance and wallets
// whose stored balance differs from the sum of their entries.
type LedgerCheck struct {
	UnbalancedTxns  []string `json:"unbalanced_txns"`
	DriftedAccounts []string `json:"drifted_accounts"`
}

func (c LedgerCheck) OK() bool {
	return len(c.UnbalancedTxns) == 0 && len(c.DriftedAccounts) == 0
}

func (db *Database) CheckLedger(ctx context.Context) (LedgerCheck, error) {
	var check LedgerCheck

	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return check, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT txn_id::text FROM ledger_entries
		GROUP BY txn_id
		HAVING COUNT(*) <> 2
			OR SUM(CASE WHEN direction = 'debit' THEN amount ELSE -amount END) <> 0`)
	if err != nil {
		return check, fmt.Errorf("failed to check entries: %w", err)
	}
	check.UnbalancedTxns, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return check, fmt.Errorf("failed to scan unbalanced txns: %w", err)
	}

	rows, err = conn.Query(ctx, `SELECT 'player:' || w.player_id || ':' || w.currency
		FROM wallets w
		LEFT JOIN ledger_entries e ON e.account = 'player:' || w.player_id || ':' || w.currency
		GROUP BY w.player_id, w.currency, w.balance
		HAVING w.balance <> COALESCE(SUM(CASE WHEN e.direction = 'credit' THEN e.amount ELSE -e.amount END), 0)`)
	if err != nil {
		return check, fmt.Errorf("failed to check balances: %w", err)
	}
	check.DriftedAccounts, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return check, fmt.Errorf("failed to scan drifted accounts: %w", err)
	}
	return check, nil
}
