package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sweepsapp/config"
	"sweepsapp/database"
	"sweepsapp/ledger"
	"sweepsapp/metrics"
	"sweepsapp/models"
	"sweepsapp/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	MethodBankTransfer = "bank_transfer"
	MethodGiftCard     = "gift_card"
)

type RedemptionService struct {
	store    RedemptionStore
	players  PlayerStore
	fraud    *FraudService
	notifier Notifier
	cfg      *config.Config
	now      func() time.Time
}

func NewRedemptionService(store RedemptionStore, players PlayerStore, fraud *FraudService, notifier Notifier, cfg *config.Config) *RedemptionService {
	return &RedemptionService{store: store, players: players, fraud: fraud, notifier: notifier, cfg: cfg, now: time.Now}
}

// Request holds the SC and queues the redemption for review.
func (s *RedemptionService) Request(ctx context.Context, playerID int64, amount decimal.Decimal, method string) (*models.Redemption, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method != MethodBankTransfer && method != MethodGiftCard {
		return nil, fmt.Errorf("%w: method must be bank_transfer or gift_card", ErrInvalidInput)
	}
	if !amount.IsPositive() || amount.Exponent() < -ledger.Precision {
		return nil, ledger.ErrInvalidAmount
	}
	if amount.LessThan(s.cfg.Redemption.MinSC) {
		return nil, fmt.Errorf("%w: minimum is %s SC", ErrBelowMinimum, s.cfg.Redemption.MinSC.String())
	}

	p, err := s.players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PlayerActive {
		return nil, ErrPlayerBlocked
	}
	if p.KYCStatus != models.KYCApproved {
		return nil, ErrKYCRequired
	}

	a, err := s.fraud.AssessPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	status := models.RedemptionPending
	if a.Score >= s.cfg.Fraud.ReviewThreshold {
		status = models.RedemptionReview
	}

	unlock := utils.LockPlayer(playerID)
	defer unlock()

	holdKey := "redemption-hold:" + uuid.NewString()
	r, err := s.store.CreateRedemption(ctx, ledger.Request{
		IdempotencyKey: holdKey,
		PlayerID:       playerID,
		Currency:       ledger.SweepsCoins,
		Type:           ledger.TxnRedemptionHold,
		Amount:         amount,
		Note:           method,
	}, database.NewRedemption{
		Method:     method,
		Status:     status,
		FraudScore: a.Score,
		DailyMax:   s.cfg.Redemption.DailyMaxSC,
		DayStart:   utcDay(s.now()),
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordWalletTxn(string(ledger.TxnRedemptionHold), string(ledger.SweepsCoins), false)
	metrics.RecordRedemption(r.Status)

	if a.Score >= s.cfg.Fraud.FlagThreshold {
		if _, err := s.fraud.Flag(ctx, playerID, a, fmt.Sprintf("redemption:%d", r.ID)); err != nil {
			logrus.WithField("redemption_id", r.ID).WithError(err).Error("Failed to persist fraud flag")
		}
	}
	logrus.WithFields(logrus.Fields{
		"player_id":     playerID,
		"redemption_id": r.ID,
		"amount":        amount.String(),
		"status":        r.Status,
		"fraud_score":   a.Score,
	}).Info("Redemption requested")
	return r, nil
}

func (s *RedemptionService) List(ctx context.Context, playerID int64, page models.Page) ([]models.Redemption, error) {
	return s.store.ListRedemptions(ctx, playerID, nil, page)
}

// Queue lists redemptions awaiting a decision.
func (s *RedemptionService) Queue(ctx context.Context, statuses []string, page models.Page) ([]models.Redemption, error) {
	if len(statuses) == 0 {
		statuses = []string{models.RedemptionPending, models.RedemptionReview}
	}
	return s.store.ListRedemptions(ctx, 0, statuses, page)
}

// Cancel refunds a redemption the player still owns.
func (s *RedemptionService) Cancel(ctx context.Context, playerID, id int64) (*models.Redemption, error) {
	r, err := s.store.GetRedemption(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.PlayerID != playerID {
		return nil, ErrNotFound
	}
	if r.Status != models.RedemptionPending {
		return nil, ErrInvalidState
	}
	unlock := utils.LockPlayer(playerID)
	defer unlock()

	out, err := s.store.CloseRedemption(ctx, id, models.RedemptionCancelled, nil, nil)
	if err != nil {
		return nil, err
	}
	metrics.RecordWalletTxn(string(ledger.TxnRedemptionRefund), string(ledger.SweepsCoins), false)
	metrics.RecordRedemption(out.Status)
	return out, nil
}

func (s *RedemptionService) Approve(ctx context.Context, id, adminID int64) (*models.Redemption, error) {
	out, err := s.store.CloseRedemption(ctx, id, models.RedemptionPaid, nil, &adminID)
	if err != nil {
		return nil, err
	}
	metrics.RecordRedemption(out.Status)
	s.notify(ctx, out.PlayerID, "redemption_paid", out.ID, out.Amount.StringFixed(2))
	return out, nil
}

func (s *RedemptionService) Reject(ctx context.Context, id, adminID int64, reason string) (*models.Redemption, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	r, err := s.store.GetRedemption(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock := utils.LockPlayer(r.PlayerID)
	defer unlock()

	out, err := s.store.CloseRedemption(ctx, id, models.RedemptionRejected, &reason, &adminID)
	if err != nil {
		return nil, err
	}
	metrics.RecordWalletTxn(string(ledger.TxnRedemptionRefund), string(ledger.SweepsCoins), false)
	metrics.RecordRedemption(out.Status)
	s.notify(ctx, out.PlayerID, "redemption_rejected", out.ID, out.Amount.StringFixed(2), reason)
	return out, nil
}

func (s *RedemptionService) notify(ctx context.Context, playerID int64, template string, args ...interface{}) {
	p, err := s.players.GetPlayer(ctx, playerID)
	if err == nil {
		err = s.notifier.Send(ctx, p.Msisdn, template, args...)
	}
	if err != nil {
		logrus.WithField("player_id", playerID).WithError(err).Warn("Failed to queue redemption sms")
	}
}
