package services

import (
	"context"
	"time"

	"sweepsapp/database"
	"sweepsapp/games"
	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/shopspring/decimal"
)

// The store interfaces below are the slices of *database.Database each
// service needs.

type WalletStore interface {
	ApplyTxn(ctx context.Context, req ledger.Request) (ledger.Txn, bool, error)
	GetBalances(ctx context.Context, playerID int64) (models.Balances, error)
	ListTxns(ctx context.Context, playerID int64, currency ledger.Currency, page models.Page) ([]ledger.Txn, error)
}

type PlayerStore interface {
	UpsertPlayerByMsisdn(ctx context.Context, msisdn string) (*models.Player, bool, error)
	GetPlayer(ctx context.Context, id int64) (*models.Player, error)
	UpdatePlayerProfile(ctx context.Context, id int64, name, email, state *string) (*models.Player, error)
	SetSelfExclusion(ctx context.Context, id int64, until time.Time) error
	RecordLogin(ctx context.Context, id int64, ip string) error
	SetPlayerStatus(ctx context.Context, id int64, status string) error
	SearchPlayers(ctx context.Context, q, status string, page models.Page) ([]models.Player, error)
}

type OTPStore interface {
	InsertOTP(ctx context.Context, msisdn, codeHash string, expiresAt time.Time) error
	LatestOTP(ctx context.Context, msisdn string) (*models.OTPCode, error)
	IncrementOTPAttempts(ctx context.Context, id int64) (int, error)
	ConsumeOTP(ctx context.Context, id int64) error
}

type AdminStore interface {
	CreateAdmin(ctx context.Context, email, passwordHash, role string) (*models.AdminUser, error)
	GetAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	InsertAudit(ctx context.Context, adminID int64, action, target string, details interface{}) error
	ListAudit(ctx context.Context, target string, page models.Page) ([]models.AuditEntry, error)
	DashboardStats(ctx context.Context) (models.DashboardStats, error)
}

type BonusStore interface {
	LastBonusClaim(ctx context.Context, playerID int64) (*models.DailyBonusClaim, error)
	ClaimDailyBonus(ctx context.Context, claim models.DailyBonusClaim, credits []ledger.Request) (*models.DailyBonusClaim, bool, error)
}

type CatalogStore interface {
	ListPackages(ctx context.Context, activeOnly bool) ([]models.Package, error)
	GetPackage(ctx context.Context, id int64) (*models.Package, error)
	CreatePackage(ctx context.Context, p models.Package) (*models.Package, error)
	UpdatePackage(ctx context.Context, p models.Package) (*models.Package, error)
	DeactivatePackage(ctx context.Context, id int64) error
	CreateOrder(ctx context.Context, o models.Order) (*models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, playerID int64, page models.Page) ([]models.Order, error)
	PayOrder(ctx context.Context, orderID, providerRef string, credits []ledger.Request) (*models.Order, string, error)
	CloseOrder(ctx context.Context, orderID, status string) error
	ExpireOrders(ctx context.Context, cutoff time.Time) (int64, error)
}

type GameStore interface {
	ListGames(ctx context.Context, category string, activeOnly bool) ([]models.Game, error)
	GetGameBySlug(ctx context.Context, slug string) (*models.Game, error)
	UpsertGame(ctx context.Context, g models.Game) (*models.Game, error)
	SetGameActive(ctx context.Context, slug string, active bool) (*models.Game, error)
	GetSeed(ctx context.Context, playerID int64) (*models.FairSeed, error)
	SetClientSeed(ctx context.Context, playerID int64, clientSeed string) (*models.FairSeed, error)
	RotateSeed(ctx context.Context, playerID int64, next games.Seed) (*models.RevealedSeed, *models.FairSeed, error)
	PlayHouseRound(ctx context.Context, in database.HouseRound, play func(seed models.FairSeed) games.Outcome) (*database.RoundResult, error)
	GetRound(ctx context.Context, roundKey string) (*models.GameRound, error)
	OpenProviderRound(ctx context.Context, in database.ProviderRound) (*models.GameRound, ledger.Txn, bool, error)
	SettleProviderRound(ctx context.Context, roundKey string, win decimal.Decimal) (*models.GameRound, decimal.Decimal, bool, error)
	RollbackProviderRound(ctx context.Context, roundKey string) (*models.GameRound, decimal.Decimal, bool, error)
	RecentWins(ctx context.Context, limit int) ([]models.BigWin, error)
}

type JackpotStore interface {
	ListPools(ctx context.Context, activeOnly bool) ([]models.JackpotPool, error)
	GetPool(ctx context.Context, id int64) (*models.JackpotPool, error)
	CreatePool(ctx context.Context, p models.JackpotPool) (*models.JackpotPool, error)
	UpdatePool(ctx context.Context, p models.JackpotPool) (*models.JackpotPool, error)
	PoolWins(ctx context.Context, poolID int64, page models.Page) ([]models.JackpotWin, error)
}

type KYCStore interface {
	CreateKYC(ctx context.Context, k models.KYCSubmission) (*models.KYCSubmission, error)
	LatestKYC(ctx context.Context, playerID int64) (*models.KYCSubmission, error)
	ListKYC(ctx context.Context, status string, page models.Page) ([]models.KYCSubmission, error)
	ReviewKYC(ctx context.Context, id int64, status string, reason *string, reviewer int64) (*models.KYCSubmission, error)
}

type RedemptionStore interface {
	CreateRedemption(ctx context.Context, hold ledger.Request, in database.NewRedemption) (*models.Redemption, error)
	GetRedemption(ctx context.Context, id int64) (*models.Redemption, error)
	ListRedemptions(ctx context.Context, playerID int64, statuses []string, page models.Page) ([]models.Redemption, error)
	CloseRedemption(ctx context.Context, id int64, status string, reason *string, reviewer *int64) (*models.Redemption, error)
}

type FraudStore interface {
	FraudSignals(ctx context.Context, playerID int64) (models.FraudSignals, error)
	CreateFlag(ctx context.Context, f models.FraudFlag) (*models.FraudFlag, error)
	ListFlags(ctx context.Context, status string, playerID int64, page models.Page) ([]models.FraudFlag, error)
	ResolveFlag(ctx context.Context, id int64, note string, adminID int64) (*models.FraudFlag, error)
}

type SMSStore interface {
	InsertIntoSMSQueue(ctx context.Context, msisdn, message, template string) (int64, error)
	ClaimSMSBatch(ctx context.Context, limit int) ([]models.SMSMessage, error)
	MarkSMS(ctx context.Context, id int64, sendErr error, maxAttempts int) error
	RequeueStaleSMS(ctx context.Context, lease time.Duration) (int64, error)
}

// Store is everything; *database.Database satisfies it.
type Store interface {
	WalletStore
	PlayerStore
	OTPStore
	AdminStore
	BonusStore
	CatalogStore
	GameStore
	JackpotStore
	KYCStore
	RedemptionStore
	FraudStore
	SMSStore
}

var _ Store = (*database.Database)(nil)
