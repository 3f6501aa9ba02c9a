package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a throwaway Postgres when TEST_DATABASE_URL is set.
func testDB(t *testing.T) *Database {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := NewDatabaseWithPool(pool)
	require.NoError(t, db.Migrate(ctx))
	return db
}

func newPlayer(t *testing.T, db *Database) *models.Player {
	t.Helper()
	p, created, err := db.UpsertPlayerByMsisdn(context.Background(), "+1555"+uuid.NewString()[:7])
	require.NoError(t, err)
	require.True(t, created)
	return p
}

func credit(playerID int64, cur ledger.Currency, amount string) ledger.Request {
	return ledger.Request{
		IdempotencyKey: uuid.NewString(),
		PlayerID:       playerID,
		Currency:       cur,
		Type:           ledger.TxnBonus,
		Amount:         decimal.RequireFromString(amount),
	}
}

func TestApplyTxn_ReplayAndConflict(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := newPlayer(t, db)

	req := credit(p.ID, ledger.GoldCoins, "100")
	first, replayed, err := db.ApplyTxn(ctx, req)
	require.NoError(t, err)
	assert.False(t, replayed)

	again, replayed, err := db.ApplyTxn(ctx, req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, again.ID)

	req.Amount = decimal.NewFromInt(5)
	_, _, err = db.ApplyTxn(ctx, req)
	assert.ErrorIs(t, err, ledger.ErrIdempotencyConflict)

	b, err := db.GetBalances(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, b.GC.Equal(decimal.NewFromInt(100)))

	entries, err := db.TxnEntries(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.True(t, ledger.Balanced(entries))
}

func TestApplyTxn_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := newPlayer(t, db)

	_, _, err := db.ApplyTxn(ctx, credit(p.ID, ledger.SweepsCoins, "10"))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		poor int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := db.ApplyTxn(ctx, ledger.Request{
				IdempotencyKey: fmt.Sprintf("bet:%d:%s", i, uuid.NewString()),
				PlayerID:       p.ID,
				Currency:       ledger.SweepsCoins,
				Type:           ledger.TxnBet,
				Amount:         decimal.NewFromInt(1),
			})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				ok++
			case ledger.ErrInsufficientFunds:
				poor++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 15, poor)
	b, err := db.GetBalances(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, b.SC.IsZero())

	check, err := db.CheckLedger(ctx)
	require.NoError(t, err)
	assert.True(t, check.OK(), "%+v", check)
}

func TestPlayHouseRound_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := newPlayer(t, db)

	_, _, err := db.ApplyTxn(ctx, credit(p.ID, ledger.GoldCoins, "50"))
	require.NoError(t, err)

	g := newHouseGame(t, db, nil)
	in := HouseRound{RoundKey: "it:" + uuid.NewString(), PlayerID: p.ID, Game: *g, Currency: ledger.GoldCoins, Bet: decimal.NewFromInt(2)}

	first, err := db.PlayHouseRound(ctx, in, playSlots)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := db.PlayHouseRound(ctx, in, playSlots)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Round.ID, second.Round.ID)

	b, err := db.GetBalances(ctx, p.ID)
	require.NoError(t, err)
	want := decimal.NewFromInt(48).Add(first.Round.Win)
	assert.True(t, b.GC.Equal(want), "balance %s want %s", b.GC, want)
}
