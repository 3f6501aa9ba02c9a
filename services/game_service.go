package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sweepsapp/cache"
	"sweepsapp/database"
	"sweepsapp/games"
	"sweepsapp/ledger"
	"sweepsapp/metrics"
	"sweepsapp/models"
	"sweepsapp/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	lobbyTTL    = 60 * time.Second
	lobbyPrefix = "lobby:"
	lobbyAll    = "all"
)

var (
	clientSeedPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	roundKeyPattern   = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,64}$`)
)

type GameService struct {
	store    GameStore
	players  PlayerStore
	cache    cache.Cache
	notifier Notifier
	now      func() time.Time
}

func NewGameService(store GameStore, players PlayerStore, c cache.Cache, notifier Notifier) *GameService {
	return &GameService{store: store, players: players, cache: c, notifier: notifier, now: time.Now}
}

func lobbyKey(category string) string {
	if category == "" {
		category = lobbyAll
	}
	return lobbyPrefix + category
}

// Lobby returns active games grouped by category, served from cache when warm.
func (s *GameService) Lobby(ctx context.Context, category string) (map[string][]models.Game, error) {
	if category != "" && !games.ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	var grouped map[string][]models.Game
	found, err := s.cache.Get(ctx, lobbyKey(category), &grouped)
	if err != nil {
		logrus.WithError(err).Warn("Lobby cache read failed")
	}
	if found {
		return grouped, nil
	}
	return s.loadLobby(ctx, category)
}

func (s *GameService) loadLobby(ctx context.Context, category string) (map[string][]models.Game, error) {
	list, err := s.store.ListGames(ctx, category, true)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]models.Game)
	for _, g := range list {
		grouped[g.Category] = append(grouped[g.Category], g)
	}
	if err := s.cache.Set(ctx, lobbyKey(category), grouped, lobbyTTL); err != nil {
		logrus.WithError(err).Warn("Lobby cache write failed")
	}
	return grouped, nil
}

// WarmLobby refreshes every lobby cache entry.
func (s *GameService) WarmLobby(ctx context.Context) error {
	if _, err := s.loadLobby(ctx, ""); err != nil {
		return err
	}
	for _, c := range games.Categories {
		if _, err := s.loadLobby(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *GameService) invalidateLobby(ctx context.Context) {
	keys := []string{lobbyKey("")}
	for _, c := range games.Categories {
		keys = append(keys, lobbyKey(c))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logrus.WithError(err).Warn("Lobby cache invalidation failed")
	}
}

func (s *GameService) AllGames(ctx context.Context, category string) ([]models.Game, error) {
	return s.store.ListGames(ctx, category, false)
}

func validateGame(g *models.Game) error {
	g.Slug = strings.ToLower(strings.TrimSpace(g.Slug))
	g.Name = strings.TrimSpace(g.Name)
	switch {
	case g.Slug == "" || !roundKeyPattern.MatchString(g.Slug):
		return fmt.Errorf("%w: slug", ErrInvalidInput)
	case g.Name == "":
		return fmt.Errorf("%w: name", ErrInvalidInput)
	case !games.ValidCategory(g.Category):
		return fmt.Errorf("%w: category", ErrInvalidInput)
	case g.Provider == "":
		return fmt.Errorf("%w: provider", ErrInvalidInput)
	case !g.MinBet.IsPositive() || g.MaxBet.LessThan(g.MinBet):
		return fmt.Errorf("%w: bet limits", ErrInvalidInput)
	case !g.RTP.IsPositive() || g.RTP.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: rtp must be in (0, 100]", ErrInvalidInput)
	}
	if g.InHouse() {
		if _, err := games.ForCategory(g.Category); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

func (s *GameService) UpsertGame(ctx context.Context, g models.Game) (*models.Game, error) {
	if err := validateGame(&g); err != nil {
		return nil, err
	}
	out, err := s.store.UpsertGame(ctx, g)
	if err != nil {
		return nil, err
	}
	s.invalidateLobby(ctx)
	return out, nil
}

func (s *GameService) SetActive(ctx context.Context, slug string, active bool) (*models.Game, error) {
	out, err := s.store.SetGameActive(ctx, slug, active)
	if err != nil {
		return nil, err
	}
	s.invalidateLobby(ctx)
	return out, nil
}

func (s *GameService) playable(ctx context.Context, playerID int64) error {
	p, err := s.players.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	if p.Status != models.PlayerActive {
		return ErrPlayerBlocked
	}
	if p.SelfExcluded(s.now()) {
		return ErrSelfExcluded
	}
	return nil
}

func checkBet(g *models.Game, currency ledger.Currency, bet decimal.Decimal) error {
	if !currency.Valid() {
		return ledger.ErrInvalidCurrency
	}
	if !bet.IsPositive() || bet.Exponent() < -ledger.Precision {
		return ledger.ErrInvalidAmount
	}
	if bet.LessThan(g.MinBet) || bet.GreaterThan(g.MaxBet) {
		return ErrBetOutOfRange
	}
	return nil
}

// PlayRequest is one spin or ticket. RoundKey is chosen by the client and makes
// retries safe.
type PlayRequest struct {
	PlayerID int64
	Slug     string
	Currency ledger.Currency
	Bet      decimal.Decimal
	RoundKey string
}

func (s *GameService) Play(ctx context.Context, req PlayRequest) (*database.RoundResult, error) {
	if !roundKeyPattern.MatchString(req.RoundKey) {
		return nil, fmt.Errorf("%w: round_key", ErrInvalidInput)
	}
	g, err := s.store.GetGameBySlug(ctx, req.Slug)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrGameUnavailable
	}
	if err != nil {
		return nil, err
	}
	if !g.Active || !g.InHouse() {
		return nil, ErrGameUnavailable
	}
	engine, err := games.ForCategory(g.Category)
	if err != nil {
		return nil, ErrGameUnavailable
	}
	if err := checkBet(g, req.Currency, req.Bet); err != nil {
		return nil, err
	}
	if err := s.playable(ctx, req.PlayerID); err != nil {
		return nil, err
	}

	unlock := utils.LockPlayer(req.PlayerID)
	defer unlock()

	key := fmt.Sprintf("play:%d:%s", req.PlayerID, req.RoundKey)
	res, err := s.store.PlayHouseRound(ctx, database.HouseRound{
		RoundKey: key,
		PlayerID: req.PlayerID,
		Game:     *g,
		Currency: req.Currency,
		Bet:      req.Bet,
	}, func(seed models.FairSeed) games.Outcome {
		return engine.Play(games.NewRolls(seed.ServerSeed, seed.ClientSeed, seed.Nonce))
	})
	if errors.Is(err, ErrDuplicate) {
		// lost a race with a concurrent retry on another node
		r, gerr := s.store.GetRound(ctx, key)
		if gerr != nil {
			return nil, gerr
		}
		return &database.RoundResult{Round: *r, Replayed: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if res.Replayed {
		metrics.RecordWalletTxn(string(ledger.TxnBet), string(req.Currency), true)
		return res, nil
	}

	metrics.RecordWalletTxn(string(ledger.TxnBet), string(req.Currency), false)
	if res.Round.Win.IsPositive() {
		metrics.RecordWalletTxn(string(ledger.TxnWin), string(req.Currency), false)
	}
	for _, hit := range res.Jackpots {
		metrics.RecordJackpotHit(hit.PoolName)
		metrics.RecordWalletTxn(string(ledger.TxnJackpotWin), hit.Currency, false)
		logrus.WithFields(logrus.Fields{"player_id": req.PlayerID, "pool": hit.PoolName, "amount": hit.Amount.String()}).
			Info("Jackpot hit")
		if p, err := s.players.GetPlayer(ctx, req.PlayerID); err == nil {
			if err := s.notifier.Send(ctx, p.Msisdn, "jackpot_win", hit.PoolName, hit.Amount.StringFixed(2), hit.Currency); err != nil {
				logrus.WithError(err).Warn("Failed to queue jackpot sms")
			}
		}
	}
	return res, nil
}

func (s *GameService) Seed(ctx context.Context, playerID int64) (*models.FairSeed, error) {
	return s.store.GetSeed(ctx, playerID)
}

func (s *GameService) SetClientSeed(ctx context.Context, playerID int64, clientSeed string) (*models.FairSeed, error) {
	clientSeed = strings.TrimSpace(clientSeed)
	if !clientSeedPattern.MatchString(clientSeed) {
		return nil, fmt.Errorf("%w: client seed must be 1-64 letters, digits, '-' or '_'", ErrInvalidInput)
	}
	unlock := utils.LockPlayer(playerID)
	defer unlock()
	return s.store.SetClientSeed(ctx, playerID, clientSeed)
}

// RotateSeed reveals the current server seed and starts a new pair.
func (s *GameService) RotateSeed(ctx context.Context, playerID int64, clientSeed string) (*models.RevealedSeed, *models.FairSeed, error) {
	clientSeed = strings.TrimSpace(clientSeed)
	if clientSeed != "" && !clientSeedPattern.MatchString(clientSeed) {
		return nil, nil, fmt.Errorf("%w: client seed", ErrInvalidInput)
	}
	next, err := games.NewSeed("")
	if err != nil {
		return nil, nil, err
	}
	next.ClientSeed = clientSeed

	unlock := utils.LockPlayer(playerID)
	defer unlock()
	return s.store.RotateSeed(ctx, playerID, next)
}

type Verification struct {
	ServerHash string           `json:"server_seed_hash"`
	ClientSeed string           `json:"client_seed"`
	Nonce      int64            `json:"nonce"`
	Category   string           `json:"category"`
	Multiplier decimal.Decimal  `json:"multiplier"`
	Symbols    []string         `json:"symbols"`
	Won        bool             `json:"won"`
	HitRate    *decimal.Decimal `json:"hit_rate,omitempty"`
}

// Verify recomputes a round from a revealed seed.
func (s *GameService) Verify(serverSeed, clientSeed string, nonce int64, category string) (*Verification, error) {
	if serverSeed == "" || clientSeed == "" || nonce < 0 {
		return nil, fmt.Errorf("%w: server_seed, client_seed and nonce are required", ErrInvalidInput)
	}
	if category == "" {
		category = games.KindSlots
	}
	engine, err := games.ForCategory(category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	out := engine.Play(games.NewRolls(serverSeed, clientSeed, nonce))
	v := &Verification{
		ServerHash: games.HashSeed(serverSeed),
		ClientSeed: clientSeed,
		Nonce:      nonce,
		Category:   category,
		Multiplier: out.Multiplier,
		Symbols:    out.Symbols,
		Won:        out.Won(),
	}
	// fixed-odds engines publish how often a ticket pays
	if h, ok := engine.(interface{ WinProbability() decimal.Decimal }); ok {
		rate := h.WinProbability()
		v.HitRate = &rate
	}
	return v, nil
}

func providerKey(roundID string) (string, error) {
	roundID = strings.TrimSpace(roundID)
	if !roundKeyPattern.MatchString(roundID) {
		return "", fmt.Errorf("%w: round_id", ErrInvalidInput)
	}
	return "provider:" + roundID, nil
}

type ProviderBet struct {
	RoundID  string
	PlayerID int64
	Slug     string
	Currency ledger.Currency
	Amount   decimal.Decimal
}

// ProviderBet debits the stake of an externally run round.
func (s *GameService) ProviderBet(ctx context.Context, in ProviderBet) (*models.GameRound, ledger.Txn, error) {
	key, err := providerKey(in.RoundID)
	if err != nil {
		return nil, ledger.Txn{}, err
	}
	g, err := s.store.GetGameBySlug(ctx, in.Slug)
	if errors.Is(err, ErrNotFound) {
		return nil, ledger.Txn{}, ErrGameUnavailable
	}
	if err != nil {
		return nil, ledger.Txn{}, err
	}
	if g.InHouse() {
		return nil, ledger.Txn{}, ErrGameUnavailable
	}
	if err := checkBet(g, in.Currency, in.Amount); err != nil {
		return nil, ledger.Txn{}, err
	}
	if err := s.playable(ctx, in.PlayerID); err != nil {
		return nil, ledger.Txn{}, err
	}

	unlock := utils.LockPlayer(in.PlayerID)
	defer unlock()

	round, txn, replayed, err := s.store.OpenProviderRound(ctx, database.ProviderRound{
		RoundKey: key,
		PlayerID: in.PlayerID,
		GameID:   g.ID,
		Currency: in.Currency,
		Bet:      in.Amount,
	})
	if err != nil {
		return nil, ledger.Txn{}, err
	}
	metrics.RecordWalletTxn(string(ledger.TxnBet), string(in.Currency), replayed)
	return round, txn, nil
}

func (s *GameService) ProviderSettle(ctx context.Context, roundID string, win decimal.Decimal) (*models.GameRound, decimal.Decimal, error) {
	key, err := providerKey(roundID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if win.IsNegative() || win.Exponent() < -ledger.Precision {
		return nil, decimal.Zero, ledger.ErrInvalidAmount
	}
	round, balance, replayed, err := s.store.SettleProviderRound(ctx, key, win)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if win.IsPositive() {
		metrics.RecordWalletTxn(string(ledger.TxnWin), round.Currency, replayed)
	}
	return round, balance, nil
}

func (s *GameService) ProviderRollback(ctx context.Context, roundID string) (*models.GameRound, decimal.Decimal, error) {
	key, err := providerKey(roundID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	round, balance, replayed, err := s.store.RollbackProviderRound(ctx, key)
	if err != nil {
		return nil, decimal.Zero, err
	}
	metrics.RecordWalletTxn(string(ledger.TxnRollback), round.Currency, replayed)
	return round, balance, nil
}

// RecentWins lists the latest wins with player names masked.
func (s *GameService) RecentWins(ctx context.Context, limit int) ([]models.BigWin, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	wins, err := s.store.RecentWins(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range wins {
		wins[i].PlayerName = maskName(wins[i].PlayerName)
	}
	return wins, nil
}

func maskName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "+") {
		return utils.MaskMsisdn(name)
	}
	r := []rune(name)
	if len(r) <= 2 {
		return name
	}
	return string(r[:2]) + strings.Repeat("*", len(r)-2)
}
