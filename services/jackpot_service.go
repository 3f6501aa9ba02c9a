package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sweepsapp/cache"
	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	feedJackpotsKey = "feed:jackpots"
	feedJackpotsTTL = 5 * time.Second
)

type JackpotService struct {
	store JackpotStore
	cache cache.Cache
}

func NewJackpotService(store JackpotStore, c cache.Cache) *JackpotService {
	return &JackpotService{store: store, cache: c}
}

// List returns the active pools for the lobby and live feed.
func (s *JackpotService) List(ctx context.Context) ([]models.JackpotPool, error) {
	var pools []models.JackpotPool
	found, err := s.cache.Get(ctx, feedJackpotsKey, &pools)
	if err != nil {
		logrus.WithError(err).Warn("Jackpot cache read failed")
	}
	if found {
		return pools, nil
	}
	pools, err = s.store.ListPools(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, feedJackpotsKey, pools, feedJackpotsTTL); err != nil {
		logrus.WithError(err).Warn("Jackpot cache write failed")
	}
	return pools, nil
}

func (s *JackpotService) ListAll(ctx context.Context) ([]models.JackpotPool, error) {
	return s.store.ListPools(ctx, false)
}

func validatePool(p *models.JackpotPool) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name", ErrInvalidInput)
	case !ledger.Currency(p.Currency).Valid():
		return ledger.ErrInvalidCurrency
	case !p.SeedAmount.IsPositive():
		return fmt.Errorf("%w: seed_amount must be positive", ErrInvalidInput)
	case !p.ContributionRate.IsPositive() || p.ContributionRate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return fmt.Errorf("%w: contribution_rate must be in (0, 1)", ErrInvalidInput)
	case !p.MustHitBy.GreaterThan(p.SeedAmount):
		return fmt.Errorf("%w: must_hit_by must exceed seed_amount", ErrInvalidInput)
	}
	return nil
}

func (s *JackpotService) Create(ctx context.Context, p models.JackpotPool) (*models.JackpotPool, error) {
	if err := validatePool(&p); err != nil {
		return nil, err
	}
	out, err := s.store.CreatePool(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return out, nil
}

func (s *JackpotService) Update(ctx context.Context, p models.JackpotPool) (*models.JackpotPool, error) {
	cur, err := s.store.GetPool(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	// currency is fixed once coins have been contributed
	p.Currency = cur.Currency
	if err := validatePool(&p); err != nil {
		return nil, err
	}
	out, err := s.store.UpdatePool(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return out, nil
}

func (s *JackpotService) Wins(ctx context.Context, poolID int64, page models.Page) ([]models.JackpotWin, error) {
	return s.store.PoolWins(ctx, poolID, page)
}

func (s *JackpotService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, feedJackpotsKey); err != nil {
		logrus.WithError(err).Warn("Jackpot cache invalidation failed")
	}
}
