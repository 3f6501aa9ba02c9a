package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreService(t *testing.T) (*StoreService, *memStore) {
	cfg := testConfig(t)
	store := newMemStore()
	return NewStoreService(store, store, NewNotifyService(store, &fakeSender{}), cfg.Store), store
}

func webhookBody(event, orderID, amount string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"order_id":%q,"provider_ref":"pi_123","amount":%q}`, event, orderID, amount))
}

func TestPackageValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newStoreService(t)

	_, err := s.Create(ctx, models.Package{Name: " ", PriceUSD: decimal.NewFromInt(10), GoldCoins: decimal.NewFromInt(1000)})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Create(ctx, models.Package{Name: "Starter", PriceUSD: decimal.RequireFromString("9.999"), GoldCoins: decimal.NewFromInt(1000)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	p, err := s.Create(ctx, models.Package{Name: "Starter", PriceUSD: decimal.RequireFromString("9.99"),
		GoldCoins: decimal.NewFromInt(10000), BonusSweepsCoins: decimal.NewFromInt(10), Active: true})
	require.NoError(t, err)

	require.NoError(t, s.Deactivate(ctx, p.ID))
	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPurchaseWebhook(t *testing.T) {
	ctx := context.Background()
	s, store := newStoreService(t)
	player := store.addPlayer("+14155550300", "", "")

	pkg, err := s.Create(ctx, models.Package{Name: "Starter", PriceUSD: decimal.RequireFromString("9.99"),
		GoldCoins: decimal.NewFromInt(10000), BonusSweepsCoins: decimal.NewFromInt(10), Active: true})
	require.NoError(t, err)

	order, err := s.CreateOrder(ctx, player.ID, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.True(t, order.AmountUSD.Equal(pkg.PriceUSD))

	body := webhookBody(EventPaymentSucceeded, order.ID, "9.99")
	_, err = s.HandleWebhook(ctx, body, "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	mismatch := webhookBody(EventPaymentSucceeded, order.ID, "1.00")
	_, err = s.HandleWebhook(ctx, mismatch, SignPayload("hook-secret", mismatch))
	assert.ErrorIs(t, err, ErrAmountMismatch)

	paid, err := s.HandleWebhook(ctx, body, SignPayload("hook-secret", body))
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, paid.Status)
	assert.True(t, store.balance(player.ID, ledger.GoldCoins).Equal(decimal.NewFromInt(10000)))
	assert.True(t, store.balance(player.ID, ledger.SweepsCoins).Equal(decimal.NewFromInt(10)))
	assert.Len(t, store.queued("purchase"), 1)

	p, err := store.GetPlayer(ctx, player.ID)
	require.NoError(t, err)
	assert.True(t, p.HasPurchased)

	// provider retries must not double credit
	_, err = s.HandleWebhook(ctx, body, SignPayload("hook-secret", body))
	require.NoError(t, err)
	assert.True(t, store.balance(player.ID, ledger.GoldCoins).Equal(decimal.NewFromInt(10000)))
	assert.Len(t, store.queued("purchase"), 1)

	// a late failure event leaves the paid order alone
	failed := webhookBody(EventPaymentFailed, order.ID, "9.99")
	o, err := s.HandleWebhook(ctx, failed, SignPayload("hook-secret", failed))
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, o.Status)
}

func TestFailedAndExpiredOrders(t *testing.T) {
	ctx := context.Background()
	s, store := newStoreService(t)
	player := store.addPlayer("+14155550301", "", "")
	pkg, err := s.Create(ctx, models.Package{Name: "Big", PriceUSD: decimal.NewFromInt(50), GoldCoins: decimal.NewFromInt(60000), Active: true})
	require.NoError(t, err)

	o1, err := s.CreateOrder(ctx, player.ID, pkg.ID)
	require.NoError(t, err)
	o2, err := s.CreateOrder(ctx, player.ID, pkg.ID)
	require.NoError(t, err)

	require.NoError(t, s.FailPayment(ctx, o1.ID))
	assert.ErrorIs(t, s.FailPayment(ctx, o1.ID), ErrInvalidState)

	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err := s.ExpireStale(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	got, err := store.GetOrder(ctx, o2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderExpired, got.Status)
	assert.True(t, store.balance(player.ID, ledger.GoldCoins).IsZero())
}

func TestLateCaptureOnClosedOrderCredits(t *testing.T) {
	ctx := context.Background()
	s, store := newStoreService(t)
	player := store.addPlayer("+14155550303", "", "")
	pkg, err := s.Create(ctx, models.Package{Name: "Big", PriceUSD: decimal.NewFromInt(50), GoldCoins: decimal.NewFromInt(60000), Active: true})
	require.NoError(t, err)

	failed, err := s.CreateOrder(ctx, player.ID, pkg.ID)
	require.NoError(t, err)
	require.NoError(t, s.FailPayment(ctx, failed.ID))

	paid, replayed, err := s.ConfirmPayment(ctx, failed.ID, "pi_late", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, models.OrderPaid, paid.Status)
	assert.True(t, store.balance(player.ID, ledger.GoldCoins).Equal(decimal.NewFromInt(60000)))

	expired, err := s.CreateOrder(ctx, player.ID, pkg.ID)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = s.ExpireStale(ctx)
	require.NoError(t, err)

	body := webhookBody(EventPaymentSucceeded, expired.ID, "50")
	o, err := s.HandleWebhook(ctx, body, SignPayload("hook-secret", body))
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, o.Status)
	assert.True(t, store.balance(player.ID, ledger.GoldCoins).Equal(decimal.NewFromInt(120000)))

	_, replayed, err = s.ConfirmPayment(ctx, expired.ID, "pi_late", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.True(t, store.balance(player.ID, ledger.GoldCoins).Equal(decimal.NewFromInt(120000)))
}

func TestCreateOrderRejectsExcludedPlayer(t *testing.T) {
	ctx := context.Background()
	s, store := newStoreService(t)
	player := store.addPlayer("+14155550302", "", "")
	require.NoError(t, store.SetSelfExclusion(ctx, player.ID, time.Now().Add(time.Hour)))
	pkg, err := s.Create(ctx, models.Package{Name: "Big", PriceUSD: decimal.NewFromInt(50), GoldCoins: decimal.NewFromInt(60000), Active: true})
	require.NoError(t, err)

	_, err = s.CreateOrder(ctx, player.ID, pkg.ID)
	assert.ErrorIs(t, err, ErrSelfExcluded)
}
