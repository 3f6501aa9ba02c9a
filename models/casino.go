package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Package struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	PriceUSD         decimal.Decimal `json:"price_usd"`
	GoldCoins        decimal.Decimal `json:"gold_coins"`
	BonusSweepsCoins decimal.Decimal `json:"bonus_sweeps_coins"`
	Badge            *string         `json:"badge,omitempty"`
	SortOrder        int             `json:"sort_order"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

const (
	OrderPending = "pending"
	OrderPaid    = "paid"
	OrderFailed  = "failed"
	OrderExpired = "expired"
)

type Order struct {
	ID          string          `json:"id"`
	PlayerID    int64           `json:"player_id"`
	PackageID   int64           `json:"package_id"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	GoldCoins   decimal.Decimal `json:"gold_coins"`
	SweepsCoins decimal.Decimal `json:"sweeps_coins"`
	Status      string          `json:"status"`
	ProviderRef *string         `json:"provider_ref,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Game struct {
	ID            int64           `json:"id"`
	Slug          string          `json:"slug"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Provider      string          `json:"provider"`
	RTP           decimal.Decimal `json:"rtp"`
	MinBet        decimal.Decimal `json:"min_bet"`
	MaxBet        decimal.Decimal `json:"max_bet"`
	JackpotPoolID *int64          `json:"jackpot_pool_id,omitempty"`
	Active        bool            `json:"active"`
	SortOrder     int             `json:"sort_order"`
}

const ProviderHouse = "house"

func (g *Game) InHouse() bool { return g.Provider == ProviderHouse }

type GameRound struct {
	ID         string          `json:"id"`
	RoundKey   string          `json:"round_key"`
	PlayerID   int64           `json:"player_id"`
	GameID     int64           `json:"game_id"`
	Currency   string          `json:"currency"`
	Bet        decimal.Decimal `json:"bet"`
	Win        decimal.Decimal `json:"win"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Symbols    []string        `json:"symbols"`
	ServerHash string          `json:"server_seed_hash,omitempty"`
	ClientSeed string          `json:"client_seed,omitempty"`
	Nonce      int64           `json:"nonce"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

const (
	RoundOpen       = "open"
	RoundSettled    = "settled"
	RoundRolledBack = "rolled_back"
)

type JackpotPool struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Currency         string          `json:"currency"`
	SeedAmount       decimal.Decimal `json:"seed_amount"`
	Amount           decimal.Decimal `json:"amount"`
	ContributionRate decimal.Decimal `json:"contribution_rate"`
	MustHitBy        decimal.Decimal `json:"must_hit_by"`
	Active           bool            `json:"active"`
	LastWinnerID     *int64          `json:"last_winner_id,omitempty"`
	LastWonAt        *time.Time      `json:"last_won_at,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type JackpotWin struct {
	ID        int64           `json:"id"`
	PoolID    int64           `json:"pool_id"`
	PoolName  string          `json:"pool_name,omitempty"`
	PlayerID  int64           `json:"player_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	RoundKey  string          `json:"round_key"`
	CreatedAt time.Time       `json:"created_at"`
}

// JackpotHit is what a contribution returns when it crossed the trigger.
type JackpotHit struct {
	WinID    int64           `json:"win_id"`
	PoolID   int64           `json:"pool_id"`
	PoolName string          `json:"pool_name"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type KYCSubmission struct {
	ID           int64      `json:"id"`
	PlayerID     int64      `json:"player_id"`
	LegalName    string     `json:"legal_name"`
	DateOfBirth  time.Time  `json:"date_of_birth"`
	AddressLine  string     `json:"address_line"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	PostalCode   string     `json:"postal_code"`
	Country      string     `json:"country"`
	DocumentType string     `json:"document_type"`
	DocumentLast string     `json:"document_last4"`
	DocumentRef  string     `json:"document_ref"`
	Status       string     `json:"status"`
	Reason       *string    `json:"reason,omitempty"`
	ReviewedBy   *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

const (
	RedemptionPending   = "pending"
	RedemptionReview    = "review"
	RedemptionPaid      = "paid"
	RedemptionRejected  = "rejected"
	RedemptionCancelled = "cancelled"
)

type Redemption struct {
	ID         int64           `json:"id"`
	PlayerID   int64           `json:"player_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Status     string          `json:"status"`
	FraudScore int             `json:"fraud_score"`
	HoldTxnID  string          `json:"hold_txn_id"`
	Reason     *string         `json:"reason,omitempty"`
	ReviewedBy *int64          `json:"reviewed_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Open is true while the held coins can still be refunded.
func (r *Redemption) Open() bool {
	return r.Status == RedemptionPending || r.Status == RedemptionReview
}

const (
	FlagOpen     = "open"
	FlagResolved = "resolved"
)

type FraudFlag struct {
	ID         int64      `json:"id"`
	PlayerID   int64      `json:"player_id"`
	Score      int        `json:"score"`
	Reasons    []string   `json:"reasons"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	Note       *string    `json:"note,omitempty"`
	ResolvedBy *int64     `json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

const (
	RoleAdmin   = "admin"
	RoleSupport = "support"
	RolePlayer  = "player"
)

type AdminUser struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuditEntry struct {
	ID        int64           `json:"id"`
	AdminID   int64           `json:"admin_id"`
	Action    string          `json:"action"`
	Target    string          `json:"target"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	SMSQueued  = "queued"
	SMSSending = "sending"
	SMSSent    = "sent"
	SMSFailed  = "failed"
)

type SMSMessage struct {
	ID        int64      `json:"id"`
	Msisdn    string     `json:"msisdn"`
	Message   string     `json:"message"`
	Template  string     `json:"template"`
	Status    string     `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError *string    `json:"last_error,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type DashboardStats struct {
	Players            int64                      `json:"players"`
	NewPlayers24h      int64                      `json:"new_players_24h"`
	SalesUSD24h        decimal.Decimal            `json:"sales_usd_24h"`
	RedeemedSC24h      decimal.Decimal            `json:"redeemed_sc_24h"`
	PendingKYC         int64                      `json:"pending_kyc"`
	PendingRedemptions int64                      `json:"pending_redemptions"`
	OpenFraudFlags     int64                      `json:"open_fraud_flags"`
	JackpotTotals      map[string]decimal.Decimal `json:"jackpot_totals"`
}

// FraudSignals are the raw facts the fraud rules score.
type FraudSignals struct {
	AccountAge         time.Duration
	SharedIPAccounts   int
	RedemptionsLast24h int
	RedeemedSC30d      decimal.Decimal
	PurchasedUSD30d    decimal.Decimal
	HasPurchased       bool
	KYCApproved        bool
	FailedOTPs24h      int
}

type BigWin struct {
	PlayerName string          `json:"player"`
	GameName   string          `json:"game"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
}
