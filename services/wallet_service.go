package services

import (
	"context"
	"fmt"

	"sweepsapp/ledger"
	"sweepsapp/metrics"
	"sweepsapp/models"
	"sweepsapp/utils"

	"github.com/sirupsen/logrus"
)

type WalletService struct {
	store WalletStore
}

func NewWalletService(store WalletStore) *WalletService {
	return &WalletService{store: store}
}

func (s *WalletService) Balances(ctx context.Context, playerID int64) (models.Balances, error) {
	return s.store.GetBalances(ctx, playerID)
}

// Credit books a movement that adds to the player's balance.
func (s *WalletService) Credit(ctx context.Context, req ledger.Request) (ledger.Txn, bool, error) {
	return s.apply(ctx, req, ledger.Credit)
}

// Debit books a movement that takes from the player's balance.
func (s *WalletService) Debit(ctx context.Context, req ledger.Request) (ledger.Txn, bool, error) {
	return s.apply(ctx, req, ledger.Debit)
}

func (s *WalletService) apply(ctx context.Context, req ledger.Request, dir ledger.Direction) (ledger.Txn, bool, error) {
	if fixed := ledger.PlayerDirection(req.Type); fixed != "" && fixed != dir {
		return ledger.Txn{}, false, fmt.Errorf("%w: %s is not a %s", ErrInvalidInput, req.Type, dir)
	}
	req.Direction = dir

	unlock := utils.LockPlayer(req.PlayerID)
	defer unlock()

	txn, replayed, err := s.store.ApplyTxn(ctx, req)
	if err != nil {
		return ledger.Txn{}, false, err
	}
	metrics.RecordWalletTxn(string(txn.Type), string(txn.Currency), replayed)
	logrus.WithFields(logrus.Fields{
		"player_id": txn.PlayerID,
		"txn_id":    txn.ID,
		"type":      txn.Type,
		"amount":    txn.Amount.String(),
		"currency":  txn.Currency,
		"replayed":  replayed,
	}).Debug("wallet txn")
	return txn, replayed, nil
}

// History pages through transactions. An empty currency lists both.
func (s *WalletService) History(ctx context.Context, playerID int64, currency ledger.Currency, page models.Page) ([]ledger.StatementLine, error) {
	if currency != "" && !currency.Valid() {
		return nil, ledger.ErrInvalidCurrency
	}
	txns, err := s.store.ListTxns(ctx, playerID, currency, page)
	if err != nil {
		return nil, err
	}
	return ledger.Statement(txns), nil
}
