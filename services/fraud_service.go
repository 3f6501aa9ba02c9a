package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sweepsapp/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Reason codes attached to an assessment.
const (
	ReasonNewAccount     = "new_account"
	ReasonSharedIP       = "shared_ip"
	ReasonRedemptionRate = "frequent_redemptions"
	ReasonRedeemRatio    = "redeemed_over_5x_purchases"
	ReasonNoPurchase     = "never_purchased"
	ReasonFailedOTPs     = "failed_otps"
)

type Assessment struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

var redeemRatio = decimal.NewFromInt(5)

// Assess scores the signals of a player who is redeeming. Scores are clamped
// to 100.
func Assess(s models.FraudSignals) Assessment {
	a := Assessment{Reasons: []string{}}
	add := func(weight int, reason string) {
		a.Score += weight
		a.Reasons = append(a.Reasons, reason)
	}

	if s.AccountAge < 24*time.Hour {
		add(20, ReasonNewAccount)
	}
	if s.SharedIPAccounts >= 3 {
		add(25, ReasonSharedIP)
	}
	if s.RedemptionsLast24h >= 3 {
		add(20, ReasonRedemptionRate)
	}
	if s.PurchasedUSD30d.IsPositive() && s.RedeemedSC30d.GreaterThan(s.PurchasedUSD30d.Mul(redeemRatio)) {
		add(20, ReasonRedeemRatio)
	}
	if !s.HasPurchased {
		add(15, ReasonNoPurchase)
	}
	if s.FailedOTPs24h >= 5 {
		add(10, ReasonFailedOTPs)
	}
	if a.Score > 100 {
		a.Score = 100
	}
	return a
}

type FraudService struct {
	store FraudStore
}

func NewFraudService(store FraudStore) *FraudService {
	return &FraudService{store: store}
}

func (s *FraudService) AssessPlayer(ctx context.Context, playerID int64) (Assessment, error) {
	sig, err := s.store.FraudSignals(ctx, playerID)
	if err != nil {
		return Assessment{}, err
	}
	return Assess(sig), nil
}

// Flag persists an assessment for the review queue.
func (s *FraudService) Flag(ctx context.Context, playerID int64, a Assessment, source string) (*models.FraudFlag, error) {
	f, err := s.store.CreateFlag(ctx, models.FraudFlag{
		PlayerID: playerID,
		Score:    a.Score,
		Reasons:  a.Reasons,
		Source:   source,
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"player_id": playerID, "score": a.Score, "reasons": strings.Join(a.Reasons, ",")}).
		Warn("Fraud flag raised")
	return f, nil
}

func (s *FraudService) ListFlags(ctx context.Context, status string, playerID int64, page models.Page) ([]models.FraudFlag, error) {
	if status != "" && status != models.FlagOpen && status != models.FlagResolved {
		return nil, fmt.Errorf("%w: status", ErrInvalidInput)
	}
	return s.store.ListFlags(ctx, status, playerID, page)
}

func (s *FraudService) Resolve(ctx context.Context, id int64, note string, adminID int64) (*models.FraudFlag, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fmt.Errorf("%w: note is required", ErrInvalidInput)
	}
	return s.store.ResolveFlag(ctx, id, note, adminID)
}
