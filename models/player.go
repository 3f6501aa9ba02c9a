package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PlayerActive    = "active"
	PlayerSuspended = "suspended"
	PlayerBanned    = "banned"
)

func ValidPlayerStatus(s string) bool {
	return s == PlayerActive || s == PlayerSuspended || s == PlayerBanned
}

const (
	KYCNone     = "none"
	KYCPending  = "pending"
	KYCApproved = "approved"
	KYCRejected = "rejected"
)

type Player struct {
	ID            int64      `json:"id"`
	Msisdn        string     `json:"msisdn"`
	Name          *string    `json:"name,omitempty"`
	Email         *string    `json:"email,omitempty"`
	State         *string    `json:"state,omitempty"`
	Status        string     `json:"status"`
	KYCStatus     string     `json:"kyc_status"`
	HasPurchased  bool       `json:"has_purchased"`
	ExcludedUntil *time.Time `json:"excluded_until,omitempty"`
	LastIP        *string    `json:"last_ip,omitempty"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SelfExcluded reports whether a self-exclusion is still running at now.
func (p *Player) SelfExcluded(now time.Time) bool {
	return p.ExcludedUntil != nil && now.Before(*p.ExcludedUntil)
}

// CanPlay is true for active players outside a self-exclusion window.
func (p *Player) CanPlay(now time.Time) bool {
	return p.Status == PlayerActive && !p.SelfExcluded(now)
}

type Balances struct {
	GC decimal.Decimal `json:"gc"`
	SC decimal.Decimal `json:"sc"`
}

type OTPCode struct {
	ID        int64     `json:"id"`
	Msisdn    string    `json:"msisdn"`
	CodeHash  string    `json:"-"`
	Attempts  int       `json:"attempts"`
	Used      bool      `json:"used"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type DailyBonusClaim struct {
	PlayerID  int64           `json:"player_id"`
	ClaimDate time.Time       `json:"claim_date"`
	Streak    int             `json:"streak"`
	GC        decimal.Decimal `json:"gc"`
	SC        decimal.Decimal `json:"sc"`
	CreatedAt time.Time       `json:"created_at"`
}

type BonusStatus struct {
	Claimable   bool            `json:"claimable"`
	NextClaimAt time.Time       `json:"next_claim_at"`
	Streak      int             `json:"streak"`
	NextGC      decimal.Decimal `json:"next_gc"`
	NextSC      decimal.Decimal `json:"next_sc"`
}

type FairSeed struct {
	PlayerID   int64  `json:"player_id"`
	ServerSeed string `json:"-"`
	ServerHash string `json:"server_seed_hash"`
	ClientSeed string `json:"client_seed"`
	Nonce      int64  `json:"nonce"`
}

// RevealedSeed is returned after rotation so old rounds can be verified.
type RevealedSeed struct {
	ServerSeed string `json:"server_seed"`
	ServerHash string `json:"server_seed_hash"`
	ClientSeed string `json:"client_seed"`
	LastNonce  int64  `json:"last_nonce"`
}
