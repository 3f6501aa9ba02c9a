// Package ledger holds the double-entry rules behind player wallets.
//
// Every wallet movement is one transaction made of exactly two entries: a debit
// on one account and a credit of the same amount on another. Player accounts
// are never allowed to go negative; house accounts absorb the other side.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	GoldCoins   Currency = "GC"
	SweepsCoins Currency = "SC"
)

func (c Currency) Valid() bool {
	return c == GoldCoins || c == SweepsCoins
}

type TxnType string

const (
	TxnPurchase         TxnType = "purchase"
	TxnBonus            TxnType = "bonus"
	TxnBet              TxnType = "bet"
	TxnWin              TxnType = "win"
	TxnJackpotWin       TxnType = "jackpot_win"
	TxnRedemptionHold   TxnType = "redemption_hold"
	TxnRedemptionRefund TxnType = "redemption_refund"
	TxnAdjustment       TxnType = "adjustment"
	TxnRollback         TxnType = "rollback"
)

type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// house accounts
const (
	HouseStore       = "house:store"
	HousePromo       = "house:promo"
	HouseGames       = "house:games"
	HouseJackpot     = "house:jackpot"
	HouseRedemptions = "house:redemptions"
	HouseAdjustments = "house:adjustments"
)

// Precision is the number of decimal places kept for GC and SC.
const Precision = 2

type rule struct {
	counter   string
	direction Direction // direction on the player account
	scOnly    bool
}

var rules = map[TxnType]rule{
	TxnPurchase:         {counter: HouseStore, direction: Credit},
	TxnBonus:            {counter: HousePromo, direction: Credit},
	TxnBet:              {counter: HouseGames, direction: Debit},
	TxnWin:              {counter: HouseGames, direction: Credit},
	TxnRollback:         {counter: HouseGames, direction: Credit},
	TxnJackpotWin:       {counter: HouseJackpot, direction: Credit},
	TxnRedemptionHold:   {counter: HouseRedemptions, direction: Debit, scOnly: true},
	TxnRedemptionRefund: {counter: HouseRedemptions, direction: Credit, scOnly: true},
	// adjustments pick their direction from the request
	TxnAdjustment: {counter: HouseAdjustments},
}

// Request describes a single wallet movement. For adjustments Direction must be
// set; every other type derives it.
type Request struct {
	IdempotencyKey string
	PlayerID       int64
	Currency       Currency
	Type           TxnType
	Direction      Direction
	Amount         decimal.Decimal
	Reference      string
	Note           string
}

type Entry struct {
	Account   string          `json:"account"`
	Direction Direction       `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
}

type Txn struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	PlayerID       int64           `json:"player_id"`
	Currency       Currency        `json:"currency"`
	Type           TxnType         `json:"type"`
	Direction      Direction       `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	Reference      string          `json:"reference"`
	Note           string          `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Plan struct {
	Direction    Direction
	Entries      [2]Entry
	BalanceAfter decimal.Decimal
}

// PlayerAccount returns the ledger account id of a player's wallet.
func PlayerAccount(playerID int64, currency Currency) string {
	return fmt.Sprintf("player:%d:%s", playerID, currency)
}

// HouseAccount returns the currency-scoped house account name.
func HouseAccount(name string, currency Currency) string {
	return name + ":" + string(currency)
}

// Validate checks the request shape without looking at balances.
func Validate(req Request) error {
	if req.IdempotencyKey == "" {
		return ErrMissingKey
	}
	if req.PlayerID <= 0 {
		return ErrInvalidPlayer
	}
	if !req.Currency.Valid() {
		return ErrInvalidCurrency
	}
	r, ok := rules[req.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}
	if r.scOnly && req.Currency != SweepsCoins {
		return ErrCurrencyMismatch
	}
	if req.Type == TxnAdjustment && req.Direction != Debit && req.Direction != Credit {
		return ErrMissingDirection
	}
	if !req.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !req.Amount.Equal(req.Amount.Round(Precision)) {
		return ErrInvalidAmount
	}
	return nil
}

// Build turns a request into balanced entries against the current balance.
func Build(balance decimal.Decimal, req Request) (Plan, error) {
	if err := Validate(req); err != nil {
		return Plan{}, err
	}
	r := rules[req.Type]
	dir := r.direction
	if req.Type == TxnAdjustment {
		dir = req.Direction
	}

	player := PlayerAccount(req.PlayerID, req.Currency)
	house := HouseAccount(r.counter, req.Currency)

	var p Plan
	p.Direction = dir
	switch dir {
	case Credit:
		p.BalanceAfter = balance.Add(req.Amount)
		p.Entries = [2]Entry{
			{Account: house, Direction: Debit, Amount: req.Amount},
			{Account: player, Direction: Credit, Amount: req.Amount},
		}
	case Debit:
		if balance.LessThan(req.Amount) {
			return Plan{}, ErrInsufficientFunds
		}
		p.BalanceAfter = balance.Sub(req.Amount)
		p.Entries = [2]Entry{
			{Account: player, Direction: Debit, Amount: req.Amount},
			{Account: house, Direction: Credit, Amount: req.Amount},
		}
	}
	return p, nil
}

// Balanced reports whether debits and credits cancel out.
func Balanced(entries []Entry) bool {
	sum := decimal.Zero
	for _, e := range entries {
		switch e.Direction {
		case Debit:
			sum = sum.Sub(e.Amount)
		case Credit:
			sum = sum.Add(e.Amount)
		default:
			return false
		}
	}
	return sum.IsZero()
}

// Replay decides what to do when an idempotency key was already used. A
// matching request returns the stored transaction; anything else conflicts.
func Replay(existing Txn, req Request) (Txn, error) {
	if existing.PlayerID != req.PlayerID ||
		existing.Currency != req.Currency ||
		existing.Type != req.Type ||
		!existing.Amount.Equal(req.Amount) {
		return Txn{}, ErrIdempotencyConflict
	}
	if req.Type == TxnAdjustment && existing.Direction != req.Direction {
		return Txn{}, ErrIdempotencyConflict
	}
	return existing, nil
}

// Signed returns the amount as seen from the player: negative for debits.
func (t Txn) Signed() decimal.Decimal {
	if t.Direction == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// StatementLine is a transaction as listed to its player.
type StatementLine struct {
	Txn
	SignedAmount decimal.Decimal `json:"signed_amount"`
}

func Statement(txns []Txn) []StatementLine {
	out := make([]StatementLine, len(txns))
	for i, t := range txns {
		out[i] = StatementLine{Txn: t, SignedAmount: t.Signed()}
	}
	return out
}

// PlayerDirection is the fixed direction of t on the player account. It is
// empty for adjustments, which carry their own.
func PlayerDirection(t TxnType) Direction {
	return rules[t].direction
}
