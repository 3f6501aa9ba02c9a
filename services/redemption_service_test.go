package services

import (
	"context"
	"testing"
	"time"

	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedemptions(t *testing.T) (*RedemptionService, *memStore) {
	cfg := testConfig(t)
	store := newMemStore()
	notify := NewNotifyService(store, &fakeSender{})
	return NewRedemptionService(store, store, NewFraudService(store), notify, cfg), store
}

func verifiedPlayer(store *memStore, msisdn, sc string) *models.Player {
	p := store.addPlayer(msisdn, "", sc)
	store.mu.Lock()
	store.players[p.ID].KYCStatus = models.KYCApproved
	store.mu.Unlock()
	return p
}

func TestRedemptionRequiresKYC(t *testing.T) {
	ctx := context.Background()
	s, store := newRedemptions(t)
	p := store.addPlayer("+14155550500", "", "500")

	_, err := s.Request(ctx, p.ID, dec("150"), MethodBankTransfer)
	assert.ErrorIs(t, err, ErrKYCRequired)
	assert.True(t, store.balance(p.ID, ledger.SweepsCoins).Equal(dec("500")))
}

func TestRedemptionValidation(t *testing.T) {
	ctx := context.Background()
	s, store := newRedemptions(t)
	p := verifiedPlayer(store, "+14155550501", "500")

	_, err := s.Request(ctx, p.ID, dec("150"), "crypto")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Request(ctx, p.ID, dec("99.99"), MethodGiftCard)
	assert.ErrorIs(t, err, ErrBelowMinimum)
	_, err = s.Request(ctx, p.ID, dec("600"), MethodGiftCard)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestRedemptionHoldAndApprove(t *testing.T) {
	ctx := context.Background()
	s, store := newRedemptions(t)
	p := verifiedPlayer(store, "+14155550502", "500")

	r, err := s.Request(ctx, p.ID, dec("150"), MethodBankTransfer)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionPending, r.Status)
	assert.True(t, store.balance(p.ID, ledger.SweepsCoins).Equal(dec("350")))

	queue, err := s.Queue(ctx, nil, models.NewPage(10, 0))
	require.NoError(t, err)
	assert.Len(t, queue, 1)

	paid, err := s.Approve(ctx, r.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionPaid, paid.Status)
	assert.True(t, store.balance(p.ID, ledger.SweepsCoins).Equal(dec("350")))
	assert.Len(t, store.queued("redemption_paid"), 1)

	_, err = s.Reject(ctx, r.ID, 9, "too late")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRedemptionRejectAndCancelRefund(t *testing.T) {
	ctx := context.Background()
	s, store := newRedemptions(t)
	p := verifiedPlayer(store, "+14155550503", "500")
	other := verifiedPlayer(store, "+14155550504", "0")

	r1, err := s.Request(ctx, p.ID, dec("100"), MethodGiftCard)
	require.NoError(t, err)
	r2, err := s.Request(ctx, p.ID, dec("200"), MethodGiftCard)
	require.NoError(t, err)
	assert.True(t, store.balance(p.ID, ledger.SweepsCoins).Equal(dec("200")))

	_, err = s.Reject(ctx, r1.ID, 9, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	rej, err := s.Reject(ctx, r1.ID, 9, "name mismatch")
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionRejected, rej.Status)
	assert.True(t, store.balance(p.ID, ledger.SweepsCoins).Equal(dec("300")))
	assert.Len(t, store.queued("redemption_rejected"), 1)

	_, err = s.Cancel(ctx, other.ID, r2.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	c, err := s.Cancel(ctx, p.ID, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionCancelled, c.Status)
	assert.True(t, store.balance(p.ID, ledger.SweepsCoins).Equal(dec("500")))

	_, err = s.Cancel(ctx, p.ID, r2.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRedemptionDailyLimit(t *testing.T) {
	ctx := context.Background()
	s, store := newRedemptions(t)
	s.cfg.Redemption.DailyMaxSC = dec("300")
	p := verifiedPlayer(store, "+14155550505", "1000")

	_, err := s.Request(ctx, p.ID, dec("200"), MethodGiftCard)
	require.NoError(t, err)
	_, err = s.Request(ctx, p.ID, dec("150"), MethodGiftCard)
	assert.ErrorIs(t, err, ErrDailyLimit)
	assert.True(t, store.balance(p.ID, ledger.SweepsCoins).Equal(dec("800")))

	s.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	_, err = s.Request(ctx, p.ID, dec("150"), MethodGiftCard)
	assert.NoError(t, err)
}

func TestRiskyRedemptionGoesToReview(t *testing.T) {
	ctx := context.Background()
	s, store := newRedemptions(t)
	p := verifiedPlayer(store, "+14155550506", "500")
	store.signals = models.FraudSignals{
		AccountAge:       time.Hour,
		SharedIPAccounts: 4,
		HasPurchased:     false,
	}

	r, err := s.Request(ctx, p.ID, dec("100"), MethodGiftCard)
	require.NoError(t, err)
	assert.Equal(t, models.RedemptionReview, r.Status)
	assert.Equal(t, 60, r.FraudScore)

	flags, err := store.ListFlags(ctx, models.FlagOpen, p.ID, models.NewPage(10, 0))
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.ElementsMatch(t, []string{ReasonNewAccount, ReasonSharedIP, ReasonNoPurchase}, flags[0].Reasons)

	// players can only cancel while pending
	_, err = s.Cancel(ctx, p.ID, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}
