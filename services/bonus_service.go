package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sweepsapp/config"
	"sweepsapp/ledger"
	"sweepsapp/metrics"
	"sweepsapp/models"
	"sweepsapp/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

var streakStep = decimal.RequireFromString("0.25")

type BonusService struct {
	store   BonusStore
	players PlayerStore
	cfg     config.Bonus
	now     func() time.Time
}

func NewBonusService(store BonusStore, players PlayerStore, cfg config.Bonus) *BonusService {
	return &BonusService{store: store, players: players, cfg: cfg, now: time.Now}
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// nextStreak is the streak a claim made today would have.
func (s *BonusService) nextStreak(last *models.DailyBonusClaim, today time.Time) int {
	if last == nil {
		return 1
	}
	if utcDay(last.ClaimDate).Equal(today.AddDate(0, 0, -1)) {
		if last.Streak+1 > s.cfg.StreakCap {
			return s.cfg.StreakCap
		}
		return last.Streak + 1
	}
	return 1
}

// Award returns the GC and SC paid for a given streak day.
func (s *BonusService) Award(streak int) (gc, sc decimal.Decimal) {
	mult := decimal.NewFromInt(1).Add(streakStep.Mul(decimal.NewFromInt(int64(streak - 1))))
	return s.cfg.DailyGC.Mul(mult).Round(ledger.Precision), s.cfg.DailySC.Round(ledger.Precision)
}

func (s *BonusService) lastClaim(ctx context.Context, playerID int64) (*models.DailyBonusClaim, error) {
	last, err := s.store.LastBonusClaim(ctx, playerID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return last, err
}

func (s *BonusService) Status(ctx context.Context, playerID int64) (*models.BonusStatus, error) {
	last, err := s.lastClaim(ctx, playerID)
	if err != nil {
		return nil, err
	}
	today := utcDay(s.now())
	st := &models.BonusStatus{Claimable: true, NextClaimAt: today}
	if last != nil && utcDay(last.ClaimDate).Equal(today) {
		st.Claimable = false
		st.NextClaimAt = today.AddDate(0, 0, 1)
		st.Streak = last.Streak
		st.NextGC, st.NextSC = s.Award(s.nextStreak(last, today.AddDate(0, 0, 1)))
		return st, nil
	}
	if last != nil {
		st.Streak = last.Streak
	}
	st.NextGC, st.NextSC = s.Award(s.nextStreak(last, today))
	return st, nil
}

// Claim pays today's bonus. A second claim on the same UTC day returns the
// first claim with replayed set.
func (s *BonusService) Claim(ctx context.Context, playerID int64) (*models.DailyBonusClaim, bool, error) {
	p, err := s.players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, false, err
	}
	if !p.CanPlay(s.now()) {
		return nil, false, ErrPlayerBlocked
	}

	unlock := utils.LockPlayer(playerID)
	defer unlock()

	last, err := s.lastClaim(ctx, playerID)
	if err != nil {
		return nil, false, err
	}
	today := utcDay(s.now())
	if last != nil && utcDay(last.ClaimDate).Equal(today) {
		return last, true, nil
	}

	streak := s.nextStreak(last, today)
	gc, sc := s.Award(streak)
	key := fmt.Sprintf("daily:%d:%s", playerID, today.Format(dateLayout))
	credits := []ledger.Request{{
		IdempotencyKey: key + ":GC",
		PlayerID:       playerID,
		Currency:       ledger.GoldCoins,
		Type:           ledger.TxnBonus,
		Amount:         gc,
		Reference:      key,
		Note:           fmt.Sprintf("daily bonus day %d", streak),
	}}
	if sc.IsPositive() {
		credits = append(credits, ledger.Request{
			IdempotencyKey: key + ":SC",
			PlayerID:       playerID,
			Currency:       ledger.SweepsCoins,
			Type:           ledger.TxnBonus,
			Amount:         sc,
			Reference:      key,
			Note:           fmt.Sprintf("daily bonus day %d", streak),
		})
	}

	claim, replayed, err := s.store.ClaimDailyBonus(ctx, models.DailyBonusClaim{
		PlayerID:  playerID,
		ClaimDate: today,
		Streak:    streak,
		GC:        gc,
		SC:        sc,
	}, credits)
	if err != nil {
		return nil, false, err
	}
	if !replayed {
		for _, c := range credits {
			metrics.RecordWalletTxn(string(c.Type), string(c.Currency), false)
		}
		logrus.WithFields(logrus.Fields{"player_id": playerID, "streak": streak, "gc": gc.String(), "sc": sc.String()}).
			Info("Daily bonus claimed")
	}
	return claim, replayed, nil
}
