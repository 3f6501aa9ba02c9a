package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sweepsapp/config"
	"sweepsapp/ledger"
	"sweepsapp/metrics"
	"sweepsapp/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type StoreService struct {
	store    CatalogStore
	players  PlayerStore
	notifier Notifier
	cfg      config.Store
	now      func() time.Time
}

func NewStoreService(store CatalogStore, players PlayerStore, notifier Notifier, cfg config.Store) *StoreService {
	return &StoreService{store: store, players: players, notifier: notifier, cfg: cfg, now: time.Now}
}

func (s *StoreService) ListActive(ctx context.Context) ([]models.Package, error) {
	return s.store.ListPackages(ctx, true)
}

func (s *StoreService) ListAll(ctx context.Context) ([]models.Package, error) {
	return s.store.ListPackages(ctx, false)
}

func (s *StoreService) Get(ctx context.Context, id int64) (*models.Package, error) {
	return s.store.GetPackage(ctx, id)
}

func validatePackage(p *models.Package) error {
	p.Name = strings.TrimSpace(p.Name)
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case !p.PriceUSD.IsPositive() || p.PriceUSD.Exponent() < -2:
		return fmt.Errorf("%w: price_usd must be positive with at most 2 decimals", ErrInvalidInput)
	case !p.GoldCoins.IsPositive():
		return fmt.Errorf("%w: gold_coins must be positive", ErrInvalidInput)
	case p.BonusSweepsCoins.IsNegative():
		return fmt.Errorf("%w: bonus_sweeps_coins cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (s *StoreService) Create(ctx context.Context, p models.Package) (*models.Package, error) {
	if err := validatePackage(&p); err != nil {
		return nil, err
	}
	return s.store.CreatePackage(ctx, p)
}

func (s *StoreService) Update(ctx context.Context, p models.Package) (*models.Package, error) {
	if p.ID <= 0 {
		return nil, fmt.Errorf("%w: id", ErrInvalidInput)
	}
	if err := validatePackage(&p); err != nil {
		return nil, err
	}
	return s.store.UpdatePackage(ctx, p)
}

func (s *StoreService) Deactivate(ctx context.Context, id int64) error {
	return s.store.DeactivatePackage(ctx, id)
}

// CreateOrder snapshots the package price and coins into a pending order.
func (s *StoreService) CreateOrder(ctx context.Context, playerID, packageID int64) (*models.Order, error) {
	p, err := s.players.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PlayerActive {
		return nil, ErrPlayerBlocked
	}
	if p.SelfExcluded(s.now()) {
		return nil, ErrSelfExcluded
	}
	pkg, err := s.store.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, ErrNotFound
	}
	return s.store.CreateOrder(ctx, models.Order{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		PackageID:   pkg.ID,
		AmountUSD:   pkg.PriceUSD,
		GoldCoins:   pkg.GoldCoins,
		SweepsCoins: pkg.BonusSweepsCoins,
	})
}

func (s *StoreService) Orders(ctx context.Context, playerID int64, page models.Page) ([]models.Order, error) {
	return s.store.ListOrders(ctx, playerID, page)
}

// VerifySignature checks the hex HMAC-SHA256 of body under the webhook secret.
func (s *StoreService) VerifySignature(body []byte, signature string) bool {
	if s.cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// SignPayload is the counterpart of VerifySignature, used by tests and
// operator tooling.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ConfirmPayment credits the order's coins and marks it paid. Repeated
// confirmations of a paid order return it unchanged.
func (s *StoreService) ConfirmPayment(ctx context.Context, orderID, providerRef string, amount decimal.Decimal) (*models.Order, bool, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if !amount.Equal(o.AmountUSD) {
		logrus.WithFields(logrus.Fields{"order_id": orderID, "expected": o.AmountUSD.String(), "got": amount.String()}).
			Warn("Payment amount mismatch")
		return nil, false, ErrAmountMismatch
	}

	credits := []ledger.Request{{
		IdempotencyKey: "purchase:" + o.ID + ":GC",
		PlayerID:       o.PlayerID,
		Currency:       ledger.GoldCoins,
		Type:           ledger.TxnPurchase,
		Amount:         o.GoldCoins,
		Reference:      o.ID,
		Note:           providerRef,
	}}
	if o.SweepsCoins.IsPositive() {
		credits = append(credits, ledger.Request{
			IdempotencyKey: "purchase:" + o.ID + ":SC",
			PlayerID:       o.PlayerID,
			Currency:       ledger.SweepsCoins,
			Type:           ledger.TxnPurchase,
			Amount:         o.SweepsCoins,
			Reference:      o.ID,
			Note:           providerRef,
		})
	}

	paid, prior, err := s.store.PayOrder(ctx, o.ID, providerRef, credits)
	if err != nil {
		return nil, false, err
	}
	if prior == models.OrderPaid {
		return paid, true, nil
	}
	if prior != models.OrderPending {
		logrus.WithFields(logrus.Fields{
			"order_id":     o.ID,
			"player_id":    o.PlayerID,
			"provider_ref": providerRef,
			"prior_status": prior,
		}).Warn("Late payment captured on a closed order, coins credited")
	}
	for _, c := range credits {
		metrics.RecordWalletTxn(string(c.Type), string(c.Currency), false)
	}
	logrus.WithFields(logrus.Fields{"order_id": o.ID, "player_id": o.PlayerID, "amount": o.AmountUSD.String()}).Info("Order paid")

	if p, err := s.players.GetPlayer(ctx, o.PlayerID); err == nil {
		if err := s.notifier.Send(ctx, p.Msisdn, "purchase", o.GoldCoins.String(), o.SweepsCoins.String()); err != nil {
			logrus.WithField("order_id", o.ID).WithError(err).Warn("Failed to queue purchase sms")
		}
	}
	return paid, false, nil
}

func (s *StoreService) FailPayment(ctx context.Context, orderID string) error {
	return s.store.CloseOrder(ctx, orderID, models.OrderFailed)
}

// ExpireStale moves pending orders older than the order TTL to expired.
func (s *StoreService) ExpireStale(ctx context.Context) (int64, error) {
	return s.store.ExpireOrders(ctx, s.now().Add(-s.cfg.OrderTTL))
}

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)

type PaymentEvent struct {
	Event       string          `json:"event"`
	OrderID     string          `json:"order_id"`
	ProviderRef string          `json:"provider_ref"`
	Amount      decimal.Decimal `json:"amount"`
}

// HandleWebhook verifies and applies a payment provider callback.
func (s *StoreService) HandleWebhook(ctx context.Context, body []byte, signature string) (*models.Order, error) {
	if !s.VerifySignature(body, signature) {
		return nil, ErrInvalidSignature
	}
	var ev PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := uuid.Parse(ev.OrderID); err != nil {
		return nil, fmt.Errorf("%w: order_id", ErrInvalidInput)
	}

	switch ev.Event {
	case EventPaymentSucceeded:
		o, _, err := s.ConfirmPayment(ctx, ev.OrderID, ev.ProviderRef, ev.Amount)
		return o, err
	case EventPaymentFailed:
		err := s.FailPayment(ctx, ev.OrderID)
		if errors.Is(err, ErrInvalidState) {
			// already paid or expired; nothing to do
			err = nil
		}
		if err != nil {
			return nil, err
		}
		return s.store.GetOrder(ctx, ev.OrderID)
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidInput, ev.Event)
	}
}
