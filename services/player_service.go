package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"sweepsapp/models"

	"github.com/sirupsen/logrus"
)

type PlayerService struct {
	players PlayerStore
	wallet  WalletStore
	now     func() time.Time
}

func NewPlayerService(players PlayerStore, wallet WalletStore) *PlayerService {
	return &PlayerService{players: players, wallet: wallet, now: time.Now}
}

type Profile struct {
	*models.Player
	Balances models.Balances `json:"balances"`
}

func (s *PlayerService) GetProfile(ctx context.Context, playerID int64) (*Profile, error) {
	p, err := s.players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	b, err := s.wallet.GetBalances(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &Profile{Player: p, Balances: b}, nil
}

type ProfileUpdate struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	State *string `json:"state"`
}

func (u *ProfileUpdate) normalize() error {
	if u.Name != nil {
		n := strings.TrimSpace(*u.Name)
		if n == "" || len(n) > 120 {
			return fmt.Errorf("%w: name", ErrInvalidInput)
		}
		u.Name = &n
	}
	if u.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*u.Email))
		if _, err := mail.ParseAddress(e); err != nil {
			return fmt.Errorf("%w: email", ErrInvalidInput)
		}
		u.Email = &e
	}
	if u.State != nil {
		st := strings.ToUpper(strings.TrimSpace(*u.State))
		if !validState(st) {
			return fmt.Errorf("%w: state must be a 2-letter code", ErrInvalidInput)
		}
		u.State = &st
	}
	return nil
}

func validState(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (s *PlayerService) UpdateProfile(ctx context.Context, playerID int64, u ProfileUpdate) (*models.Player, error) {
	if err := u.normalize(); err != nil {
		return nil, err
	}
	return s.players.UpdatePlayerProfile(ctx, playerID, u.Name, u.Email, u.State)
}

// SelfExclude blocks login and play for the given number of days. An active
// exclusion can only be extended.
func (s *PlayerService) SelfExclude(ctx context.Context, playerID int64, days int) (time.Time, error) {
	if days < 1 || days > 3650 {
		return time.Time{}, fmt.Errorf("%w: days must be between 1 and 3650", ErrInvalidInput)
	}
	p, err := s.players.GetPlayer(ctx, playerID)
	if err != nil {
		return time.Time{}, err
	}
	until := s.now().UTC().AddDate(0, 0, days)
	if p.ExcludedUntil != nil && p.ExcludedUntil.After(until) {
		return *p.ExcludedUntil, nil
	}
	if err := s.players.SetSelfExclusion(ctx, playerID, until); err != nil {
		return time.Time{}, err
	}
	logrus.WithFields(logrus.Fields{"player_id": playerID, "until": until}).Info("Player self-excluded")
	return until, nil
}
