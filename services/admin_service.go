package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type AdminService struct {
	store  Store
	wallet *WalletService
}

func NewAdminService(store Store, wallet *WalletService) *AdminService {
	return &AdminService{store: store, wallet: wallet}
}

func (s *AdminService) Search(ctx context.Context, q, status string, page models.Page) ([]models.Player, error) {
	if status != "" && !models.ValidPlayerStatus(status) {
		return nil, fmt.Errorf("%w: status", ErrInvalidInput)
	}
	return s.store.SearchPlayers(ctx, strings.TrimSpace(q), status, page)
}

type PlayerDetail struct {
	Player       *models.Player        `json:"player"`
	Balances     models.Balances       `json:"balances"`
	Transactions []ledger.Txn          `json:"transactions"`
	KYC          *models.KYCSubmission `json:"kyc,omitempty"`
	Flags        []models.FraudFlag    `json:"open_flags"`
	Redemptions  []models.Redemption   `json:"redemptions"`
}

// Detail loads everything support needs about one player in parallel.
func (s *AdminService) Detail(ctx context.Context, playerID int64) (*PlayerDetail, error) {
	var d PlayerDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Player, err = s.store.GetPlayer(gctx, playerID)
		return err
	})
	g.Go(func() (err error) {
		d.Balances, err = s.store.GetBalances(gctx, playerID)
		return err
	})
	g.Go(func() (err error) {
		d.Transactions, err = s.store.ListTxns(gctx, playerID, "", models.NewPage(20, 0))
		return err
	})
	g.Go(func() error {
		k, err := s.store.LatestKYC(gctx, playerID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		d.KYC = k
		return err
	})
	g.Go(func() (err error) {
		d.Flags, err = s.store.ListFlags(gctx, models.FlagOpen, playerID, models.NewPage(50, 0))
		return err
	})
	g.Go(func() (err error) {
		d.Redemptions, err = s.store.ListRedemptions(gctx, playerID, nil, models.NewPage(20, 0))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *AdminService) SetStatus(ctx context.Context, adminID, playerID int64, status, reason string) error {
	if !models.ValidPlayerStatus(status) {
		return fmt.Errorf("%w: status must be active, suspended or banned", ErrInvalidInput)
	}
	if err := s.store.SetPlayerStatus(ctx, playerID, status); err != nil {
		return err
	}
	s.Audit(ctx, adminID, "player.status", fmt.Sprintf("player:%d", playerID), models.H{"status": status, "reason": reason})
	return nil
}

type Adjustment struct {
	PlayerID       int64           `json:"player_id"`
	Currency       ledger.Currency `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Adjust books a manual correction. Positive amounts credit the player,
// negative amounts debit.
func (s *AdminService) Adjust(ctx context.Context, adminID int64, role string, a Adjustment) (ledger.Txn, bool, error) {
	if role != models.RoleAdmin {
		return ledger.Txn{}, false, ErrForbidden
	}
	a.Reason = strings.TrimSpace(a.Reason)
	if a.Reason == "" {
		return ledger.Txn{}, false, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	if a.IdempotencyKey == "" {
		return ledger.Txn{}, false, ledger.ErrMissingKey
	}
	if a.Amount.IsZero() {
		return ledger.Txn{}, false, ledger.ErrInvalidAmount
	}
	req := ledger.Request{
		IdempotencyKey: "adjust:" + a.IdempotencyKey,
		PlayerID:       a.PlayerID,
		Currency:       a.Currency,
		Type:           ledger.TxnAdjustment,
		Amount:         a.Amount.Abs(),
		Reference:      fmt.Sprintf("admin:%d", adminID),
		Note:           a.Reason,
	}

	var (
		txn      ledger.Txn
		replayed bool
		err      error
	)
	if a.Amount.IsPositive() {
		txn, replayed, err = s.wallet.Credit(ctx, req)
	} else {
		txn, replayed, err = s.wallet.Debit(ctx, req)
	}
	if err != nil {
		return ledger.Txn{}, false, err
	}
	if !replayed {
		s.Audit(ctx, adminID, "wallet.adjust", fmt.Sprintf("player:%d", a.PlayerID), models.H{
			"txn_id":   txn.ID,
			"currency": a.Currency,
			"amount":   a.Amount.String(),
			"reason":   a.Reason,
		})
	}
	return txn, replayed, nil
}

func (s *AdminService) Stats(ctx context.Context) (models.DashboardStats, error) {
	return s.store.DashboardStats(ctx)
}

// Audit records an admin action. Failures are logged, not returned; the
// action itself already happened.
func (s *AdminService) Audit(ctx context.Context, adminID int64, action, target string, details interface{}) {
	if err := s.store.InsertAudit(ctx, adminID, action, target, details); err != nil {
		logrus.WithFields(logrus.Fields{"admin_id": adminID, "action": action, "target": target}).
			WithError(err).Error("Failed to write audit entry")
	}
}

func (s *AdminService) AuditLog(ctx context.Context, target string, page models.Page) ([]models.AuditEntry, error) {
	return s.store.ListAudit(ctx, target, page)
}
