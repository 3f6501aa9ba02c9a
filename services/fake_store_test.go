package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sweepsapp/database"
	"sweepsapp/games"
	"sweepsapp/ledger"
	"sweepsapp/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory Store used by the service tests. Wallet movements
// go through ledger.Build like the real store.
type memStore struct {
	mu sync.Mutex

	nextID   int64
	players  map[int64]*models.Player
	byMsisdn map[string]int64

	balances map[string]decimal.Decimal
	txns     map[string]ledger.Txn
	txnOrder []string

	otps   []*models.OTPCode
	admins map[string]*models.AdminUser
	audit  []models.AuditEntry
	claims map[int64][]models.DailyBonusClaim

	packages map[int64]*models.Package
	orders   map[string]*models.Order

	games  map[string]*models.Game
	seeds  map[int64]*models.FairSeed
	rounds map[string]*models.GameRound

	pools map[int64]*models.JackpotPool
	wins  []models.JackpotWin

	kyc         []*models.KYCSubmission
	redemptions map[int64]*models.Redemption
	flags       []*models.FraudFlag
	signals     models.FraudSignals

	sms []models.SMSMessage
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		players:     map[int64]*models.Player{},
		byMsisdn:    map[string]int64{},
		balances:    map[string]decimal.Decimal{},
		txns:        map[string]ledger.Txn{},
		admins:      map[string]*models.AdminUser{},
		claims:      map[int64][]models.DailyBonusClaim{},
		packages:    map[int64]*models.Package{},
		orders:      map[string]*models.Order{},
		games:       map[string]*models.Game{},
		seeds:       map[int64]*models.FairSeed{},
		rounds:      map[string]*models.GameRound{},
		pools:       map[int64]*models.JackpotPool{},
		redemptions: map[int64]*models.Redemption{},
		signals:     models.FraudSignals{AccountAge: 30 * 24 * time.Hour, HasPurchased: true, KYCApproved: true},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func balanceKey(playerID int64, c ledger.Currency) string {
	return fmt.Sprintf("%d:%s", playerID, c)
}

// addPlayer seeds an active player with optional balances.
func (m *memStore) addPlayer(msisdn string, gc, sc string) *models.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &models.Player{ID: m.id(), Msisdn: msisdn, Status: models.PlayerActive, KYCStatus: models.KYCNone, CreatedAt: time.Now()}
	m.players[p.ID] = p
	m.byMsisdn[msisdn] = p.ID
	if gc != "" {
		m.balances[balanceKey(p.ID, ledger.GoldCoins)] = decimal.RequireFromString(gc)
	}
	if sc != "" {
		m.balances[balanceKey(p.ID, ledger.SweepsCoins)] = decimal.RequireFromString(sc)
	}
	return p
}

func (m *memStore) balance(playerID int64, c ledger.Currency) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[balanceKey(playerID, c)]
}

func (m *memStore) applyLocked(req ledger.Request) (ledger.Txn, bool, error) {
	if err := ledger.Validate(req); err != nil {
		return ledger.Txn{}, false, err
	}
	if existing, ok := m.txns[req.IdempotencyKey]; ok {
		t, err := ledger.Replay(existing, req)
		return t, err == nil, err
	}
	key := balanceKey(req.PlayerID, req.Currency)
	plan, err := ledger.Build(m.balances[key], req)
	if err != nil {
		return ledger.Txn{}, false, err
	}
	m.balances[key] = plan.BalanceAfter
	t := ledger.Txn{
		ID:             uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		PlayerID:       req.PlayerID,
		Currency:       req.Currency,
		Type:           req.Type,
		Direction:      plan.Direction,
		Amount:         req.Amount,
		BalanceAfter:   plan.BalanceAfter,
		Reference:      req.Reference,
		Note:           req.Note,
		CreatedAt:      time.Now(),
	}
	m.txns[req.IdempotencyKey] = t
	m.txnOrder = append(m.txnOrder, req.IdempotencyKey)
	return t, false, nil
}

// snapshot/restore give composite operations all-or-nothing behaviour.
func (m *memStore) snapshot() (map[string]decimal.Decimal, map[string]ledger.Txn, int) {
	b := make(map[string]decimal.Decimal, len(m.balances))
	for k, v := range m.balances {
		b[k] = v
	}
	t := make(map[string]ledger.Txn, len(m.txns))
	for k, v := range m.txns {
		t[k] = v
	}
	return b, t, len(m.txnOrder)
}

func (m *memStore) restore(b map[string]decimal.Decimal, t map[string]ledger.Txn, n int) {
	m.balances, m.txns, m.txnOrder = b, t, m.txnOrder[:n]
}

func (m *memStore) applyAll(reqs []ledger.Request) error {
	b, t, n := m.snapshot()
	for _, r := range reqs {
		if _, _, err := m.applyLocked(r); err != nil {
			m.restore(b, t, n)
			return err
		}
	}
	return nil
}

// wallet

func (m *memStore) ApplyTxn(_ context.Context, req ledger.Request) (ledger.Txn, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(req)
}

func (m *memStore) GetBalances(_ context.Context, playerID int64) (models.Balances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.Balances{
		GC: m.balances[balanceKey(playerID, ledger.GoldCoins)],
		SC: m.balances[balanceKey(playerID, ledger.SweepsCoins)],
	}, nil
}

func (m *memStore) ListTxns(_ context.Context, playerID int64, currency ledger.Currency, page models.Page) ([]ledger.Txn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ledger.Txn{}
	for i := len(m.txnOrder) - 1; i >= 0; i-- {
		t := m.txns[m.txnOrder[i]]
		if t.PlayerID == playerID && (currency == "" || t.Currency == currency) {
			out = append(out, t)
		}
	}
	return paginate(out, page), nil
}

func paginate[T any](in []T, page models.Page) []T {
	if page.Offset >= len(in) {
		return []T{}
	}
	in = in[page.Offset:]
	if page.Limit > 0 && len(in) > page.Limit {
		in = in[:page.Limit]
	}
	return in
}

// players

func (m *memStore) UpsertPlayerByMsisdn(_ context.Context, msisdn string) (*models.Player, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byMsisdn[msisdn]; ok {
		p := *m.players[id]
		return &p, false, nil
	}
	p := &models.Player{ID: m.id(), Msisdn: msisdn, Status: models.PlayerActive, KYCStatus: models.KYCNone, CreatedAt: time.Now()}
	m.players[p.ID] = p
	m.byMsisdn[msisdn] = p.ID
	cp := *p
	return &cp, true, nil
}

func (m *memStore) GetPlayer(_ context.Context, id int64) (*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdatePlayerProfile(_ context.Context, id int64, name, email, state *string) (*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	if name != nil {
		p.Name = name
	}
	if email != nil {
		p.Email = email
	}
	if state != nil {
		p.State = state
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) SetSelfExclusion(_ context.Context, id int64, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return ErrNotFound
	}
	p.ExcludedUntil = &until
	return nil
}

func (m *memStore) RecordLogin(_ context.Context, id int64, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[id]; ok {
		now := time.Now()
		p.LastIP, p.LastLoginAt = &ip, &now
	}
	return nil
}

func (m *memStore) SetPlayerStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	return nil
}

func (m *memStore) SearchPlayers(_ context.Context, q, status string, page models.Page) ([]models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Player{}
	for _, p := range m.players {
		if (status == "" || p.Status == status) && strings.Contains(p.Msisdn, q) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, page), nil
}

// otp

func (m *memStore) InsertOTP(_ context.Context, msisdn, codeHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.otps {
		if o.Msisdn == msisdn {
			o.Used = true
		}
	}
	m.otps = append(m.otps, &models.OTPCode{ID: m.id(), Msisdn: msisdn, CodeHash: codeHash, ExpiresAt: expiresAt, CreatedAt: time.Now()})
	return nil
}

func (m *memStore) LatestOTP(_ context.Context, msisdn string) (*models.OTPCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.otps) - 1; i >= 0; i-- {
		if o := m.otps[i]; o.Msisdn == msisdn && !o.Used {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) IncrementOTPAttempts(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.otps {
		if o.ID == id {
			o.Attempts++
			return o.Attempts, nil
		}
	}
	return 0, ErrNotFound
}

func (m *memStore) ConsumeOTP(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.otps {
		if o.ID == id && !o.Used {
			o.Used = true
			return nil
		}
	}
	return ErrNotFound
}

// admin

func (m *memStore) CreateAdmin(_ context.Context, email, passwordHash, role string) (*models.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admins[email]; ok {
		return nil, ErrDuplicate
	}
	a := &models.AdminUser{ID: m.id(), Email: email, PasswordHash: passwordHash, Role: role, Active: true, CreatedAt: time.Now()}
	m.admins[email] = a
	cp := *a
	return &cp, nil
}

func (m *memStore) GetAdminByEmail(_ context.Context, email string) (*models.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) InsertAudit(_ context.Context, adminID int64, action, target string, details interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, models.AuditEntry{ID: m.id(), AdminID: adminID, Action: action, Target: target, Details: raw, CreatedAt: time.Now()})
	return nil
}

func (m *memStore) ListAudit(_ context.Context, target string, page models.Page) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.AuditEntry{}
	for _, a := range m.audit {
		if target == "" || a.Target == target {
			out = append(out, a)
		}
	}
	return paginate(out, page), nil
}

func (m *memStore) DashboardStats(_ context.Context) (models.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.DashboardStats{Players: int64(len(m.players)), JackpotTotals: map[string]decimal.Decimal{}}, nil
}

// bonus

func (m *memStore) LastBonusClaim(_ context.Context, playerID int64) (*models.DailyBonusClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.claims[playerID]
	if len(c) == 0 {
		return nil, ErrNotFound
	}
	last := c[len(c)-1]
	return &last, nil
}

func (m *memStore) ClaimDailyBonus(_ context.Context, claim models.DailyBonusClaim, credits []ledger.Request) (*models.DailyBonusClaim, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.claims[claim.PlayerID] {
		if c.ClaimDate.Equal(claim.ClaimDate) {
			cp := c
			return &cp, true, nil
		}
	}
	if err := m.applyAll(credits); err != nil {
		return nil, false, err
	}
	claim.CreatedAt = time.Now()
	m.claims[claim.PlayerID] = append(m.claims[claim.PlayerID], claim)
	return &claim, false, nil
}

// catalog

func (m *memStore) ListPackages(_ context.Context, activeOnly bool) ([]models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Package{}
	for _, p := range m.packages {
		if !activeOnly || p.Active {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *memStore) GetPackage(_ context.Context, id int64) (*models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreatePackage(_ context.Context, p models.Package) (*models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.packages[p.ID] = &p
	cp := p
	return &cp, nil
}

func (m *memStore) UpdatePackage(_ context.Context, p models.Package) (*models.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packages[p.ID]; !ok {
		return nil, ErrNotFound
	}
	m.packages[p.ID] = &p
	cp := p
	return &cp, nil
}

func (m *memStore) DeactivatePackage(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[id]
	if !ok {
		return ErrNotFound
	}
	p.Active = false
	return nil
}

func (m *memStore) CreateOrder(_ context.Context, o models.Order) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.Status = models.OrderPending
	o.CreatedAt = time.Now()
	m.orders[o.ID] = &o
	cp := o
	return &cp, nil
}

func (m *memStore) GetOrder(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOrders(_ context.Context, playerID int64, page models.Page) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.PlayerID == playerID {
			out = append(out, *o)
		}
	}
	return paginate(out, page), nil
}

func (m *memStore) PayOrder(_ context.Context, orderID, providerRef string, credits []ledger.Request) (*models.Order, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, "", ErrNotFound
	}
	prior := o.Status
	switch prior {
	case models.OrderPaid:
		cp := *o
		return &cp, prior, nil
	case models.OrderPending, models.OrderFailed, models.OrderExpired:
	default:
		return nil, "", ErrInvalidState
	}
	if err := m.applyAll(credits); err != nil {
		return nil, "", err
	}
	o.Status, o.ProviderRef = models.OrderPaid, &providerRef
	m.players[o.PlayerID].HasPurchased = true
	cp := *o
	return &cp, prior, nil
}

func (m *memStore) CloseOrder(_ context.Context, orderID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.Status != models.OrderPending {
		return ErrInvalidState
	}
	o.Status = status
	return nil
}

func (m *memStore) ExpireOrders(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.orders {
		if o.Status == models.OrderPending && o.CreatedAt.Before(cutoff) {
			o.Status = models.OrderExpired
			n++
		}
	}
	return n, nil
}

// games

func (m *memStore) ListGames(_ context.Context, category string, activeOnly bool) ([]models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Game{}
	for _, g := range m.games {
		if (category == "" || g.Category == category) && (!activeOnly || g.Active) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *memStore) GetGameBySlug(_ context.Context, slug string) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[slug]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memStore) UpsertGame(_ context.Context, g models.Game) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.games[g.Slug]; ok {
		g.ID = cur.ID
	} else {
		g.ID = m.id()
	}
	m.games[g.Slug] = &g
	cp := g
	return &cp, nil
}

func (m *memStore) SetGameActive(_ context.Context, slug string, active bool) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[slug]
	if !ok {
		return nil, ErrNotFound
	}
	g.Active = active
	cp := *g
	return &cp, nil
}

func (m *memStore) seedLocked(playerID int64) *models.FairSeed {
	s, ok := m.seeds[playerID]
	if !ok {
		fresh, _ := games.NewSeed("")
		s = &models.FairSeed{PlayerID: playerID, ServerSeed: fresh.ServerSeed, ServerHash: fresh.ServerHash, ClientSeed: fresh.ClientSeed}
		m.seeds[playerID] = s
	}
	return s
}

func (m *memStore) GetSeed(_ context.Context, playerID int64) (*models.FairSeed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.seedLocked(playerID)
	return &cp, nil
}

func (m *memStore) SetClientSeed(_ context.Context, playerID int64, clientSeed string) (*models.FairSeed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.seedLocked(playerID)
	s.ClientSeed = clientSeed
	cp := *s
	return &cp, nil
}

func (m *memStore) RotateSeed(_ context.Context, playerID int64, next games.Seed) (*models.RevealedSeed, *models.FairSeed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := *m.seedLocked(playerID)
	if next.ClientSeed == "" {
		next.ClientSeed = old.ClientSeed
	}
	cur := &models.FairSeed{PlayerID: playerID, ServerSeed: next.ServerSeed, ServerHash: next.ServerHash, ClientSeed: next.ClientSeed}
	m.seeds[playerID] = cur
	cp := *cur
	return &models.RevealedSeed{ServerSeed: old.ServerSeed, ServerHash: old.ServerHash, ClientSeed: old.ClientSeed, LastNonce: old.Nonce - 1}, &cp, nil
}

func (m *memStore) PlayHouseRound(_ context.Context, in database.HouseRound, play func(seed models.FairSeed) games.Outcome) (*database.RoundResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rounds[in.RoundKey]; ok {
		if r.PlayerID != in.PlayerID || !r.Bet.Equal(in.Bet) || r.GameID != in.Game.ID || r.Currency != string(in.Currency) {
			return nil, ledger.ErrIdempotencyConflict
		}
		return &database.RoundResult{Round: *r, Replayed: true}, nil
	}

	b, t, n := m.snapshot()
	seed := *m.seedLocked(in.PlayerID)
	bet, _, err := m.applyLocked(ledger.Request{
		IdempotencyKey: "bet:" + in.RoundKey, PlayerID: in.PlayerID, Currency: in.Currency, Type: ledger.TxnBet, Amount: in.Bet,
	})
	if err != nil {
		return nil, err
	}
	res := &database.RoundResult{Balance: bet.BalanceAfter}
	if in.Game.JackpotPoolID != nil {
		if p, ok := m.pools[*in.Game.JackpotPoolID]; ok && p.Active && p.Currency == string(in.Currency) {
			next, payout, hit := games.Contribute(games.PoolState{
				Amount: p.Amount, Seed: p.SeedAmount, Rate: p.ContributionRate, MustHitBy: p.MustHitBy,
			}, in.Bet)
			p.Amount = next
			if hit {
				now, winner := time.Now(), in.PlayerID
				p.LastWinnerID, p.LastWonAt = &winner, &now
				w := models.JackpotWin{ID: m.id(), PoolID: p.ID, PoolName: p.Name, PlayerID: in.PlayerID, Amount: payout, Currency: p.Currency, RoundKey: in.RoundKey}
				m.wins = append(m.wins, w)
				jt, _, err := m.applyLocked(ledger.Request{
					IdempotencyKey: fmt.Sprintf("jackpot:%d", w.ID), PlayerID: in.PlayerID, Currency: in.Currency,
					Type: ledger.TxnJackpotWin, Amount: payout,
				})
				if err != nil {
					m.restore(b, t, n)
					return nil, err
				}
				res.Balance = jt.BalanceAfter
				res.Jackpots = append(res.Jackpots, models.JackpotHit{WinID: w.ID, PoolID: p.ID, PoolName: p.Name, Amount: payout, Currency: p.Currency})
			}
		}
	}
	m.seeds[in.PlayerID].Nonce++

	out := play(seed)
	win := out.Payout(in.Bet)
	if win.IsPositive() {
		wt, _, err := m.applyLocked(ledger.Request{
			IdempotencyKey: "win:" + in.RoundKey, PlayerID: in.PlayerID, Currency: in.Currency, Type: ledger.TxnWin, Amount: win,
		})
		if err != nil {
			m.restore(b, t, n)
			return nil, err
		}
		res.Balance = wt.BalanceAfter
	}
	r := &models.GameRound{
		ID: uuid.NewString(), RoundKey: in.RoundKey, PlayerID: in.PlayerID, GameID: in.Game.ID, Currency: string(in.Currency),
		Bet: in.Bet, Win: win, Multiplier: out.Multiplier, Symbols: out.Symbols, ServerHash: seed.ServerHash,
		ClientSeed: seed.ClientSeed, Nonce: seed.Nonce, Status: models.RoundSettled, CreatedAt: time.Now(),
	}
	m.rounds[in.RoundKey] = r
	res.Round = *r
	return res, nil
}

func (m *memStore) GetRound(_ context.Context, roundKey string) (*models.GameRound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) OpenProviderRound(_ context.Context, in database.ProviderRound) (*models.GameRound, ledger.Txn, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rounds[in.RoundKey]; ok {
		if r.PlayerID != in.PlayerID || !r.Bet.Equal(in.Bet) || r.Currency != string(in.Currency) {
			return nil, ledger.Txn{}, false, ledger.ErrIdempotencyConflict
		}
		cp := *r
		return &cp, m.txns["bet:"+in.RoundKey], true, nil
	}
	t, _, err := m.applyLocked(ledger.Request{
		IdempotencyKey: "bet:" + in.RoundKey, PlayerID: in.PlayerID, Currency: in.Currency, Type: ledger.TxnBet, Amount: in.Bet,
	})
	if err != nil {
		return nil, ledger.Txn{}, false, err
	}
	r := &models.GameRound{ID: uuid.NewString(), RoundKey: in.RoundKey, PlayerID: in.PlayerID, GameID: in.GameID,
		Currency: string(in.Currency), Bet: in.Bet, Status: models.RoundOpen}
	m.rounds[in.RoundKey] = r
	cp := *r
	return &cp, t, false, nil
}

func (m *memStore) SettleProviderRound(_ context.Context, roundKey string, win decimal.Decimal) (*models.GameRound, decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundKey]
	if !ok {
		return nil, decimal.Zero, false, ErrNotFound
	}
	cur := ledger.Currency(r.Currency)
	switch r.Status {
	case models.RoundSettled:
		if !r.Win.Equal(win) {
			return nil, decimal.Zero, false, ledger.ErrIdempotencyConflict
		}
		cp := *r
		return &cp, m.balances[balanceKey(r.PlayerID, cur)], true, nil
	case models.RoundRolledBack:
		return nil, decimal.Zero, false, ErrInvalidState
	}
	if win.IsPositive() {
		if _, _, err := m.applyLocked(ledger.Request{
			IdempotencyKey: "win:" + roundKey, PlayerID: r.PlayerID, Currency: cur, Type: ledger.TxnWin, Amount: win,
		}); err != nil {
			return nil, decimal.Zero, false, err
		}
	}
	r.Win, r.Status = win, models.RoundSettled
	cp := *r
	return &cp, m.balances[balanceKey(r.PlayerID, cur)], false, nil
}

func (m *memStore) RollbackProviderRound(_ context.Context, roundKey string) (*models.GameRound, decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundKey]
	if !ok {
		return nil, decimal.Zero, false, ErrNotFound
	}
	cur := ledger.Currency(r.Currency)
	switch r.Status {
	case models.RoundRolledBack:
		cp := *r
		return &cp, m.balances[balanceKey(r.PlayerID, cur)], true, nil
	case models.RoundSettled:
		return nil, decimal.Zero, false, ErrInvalidState
	}
	if _, _, err := m.applyLocked(ledger.Request{
		IdempotencyKey: "rollback:" + roundKey, PlayerID: r.PlayerID, Currency: cur, Type: ledger.TxnRollback, Amount: r.Bet,
	}); err != nil {
		return nil, decimal.Zero, false, err
	}
	r.Status = models.RoundRolledBack
	cp := *r
	return &cp, m.balances[balanceKey(r.PlayerID, cur)], false, nil
}

func (m *memStore) RecentWins(_ context.Context, limit int) ([]models.BigWin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.BigWin{}
	for _, r := range m.rounds {
		if r.Win.IsPositive() {
			out = append(out, models.BigWin{PlayerName: m.players[r.PlayerID].Msisdn, Amount: r.Win, Currency: r.Currency, CreatedAt: r.CreatedAt})
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// jackpots

func (m *memStore) ListPools(_ context.Context, activeOnly bool) ([]models.JackpotPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.JackpotPool{}
	for _, p := range m.pools {
		if !activeOnly || p.Active {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetPool(_ context.Context, id int64) (*models.JackpotPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreatePool(_ context.Context, p models.JackpotPool) (*models.JackpotPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	p.Amount = p.SeedAmount
	m.pools[p.ID] = &p
	cp := p
	return &cp, nil
}

func (m *memStore) UpdatePool(_ context.Context, p models.JackpotPool) (*models.JackpotPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.pools[p.ID]
	if !ok {
		return nil, ErrNotFound
	}
	p.Amount = cur.Amount
	m.pools[p.ID] = &p
	cp := p
	return &cp, nil
}

func (m *memStore) PoolWins(_ context.Context, poolID int64, page models.Page) ([]models.JackpotWin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.JackpotWin{}
	for _, w := range m.wins {
		if poolID == 0 || w.PoolID == poolID {
			out = append(out, w)
		}
	}
	return paginate(out, page), nil
}

// kyc

func (m *memStore) CreateKYC(_ context.Context, k models.KYCSubmission) (*models.KYCSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.kyc {
		if e.PlayerID == k.PlayerID && e.Status == models.KYCPending {
			return nil, ErrDuplicate
		}
	}
	k.ID, k.Status, k.CreatedAt = m.id(), models.KYCPending, time.Now()
	m.kyc = append(m.kyc, &k)
	m.players[k.PlayerID].KYCStatus = models.KYCPending
	cp := k
	return &cp, nil
}

func (m *memStore) LatestKYC(_ context.Context, playerID int64) (*models.KYCSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.kyc) - 1; i >= 0; i-- {
		if m.kyc[i].PlayerID == playerID {
			cp := *m.kyc[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListKYC(_ context.Context, status string, page models.Page) ([]models.KYCSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.KYCSubmission{}
	for _, k := range m.kyc {
		if status == "" || k.Status == status {
			out = append(out, *k)
		}
	}
	return paginate(out, page), nil
}

func (m *memStore) ReviewKYC(_ context.Context, id int64, status string, reason *string, reviewer int64) (*models.KYCSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.kyc {
		if k.ID != id {
			continue
		}
		if k.Status != models.KYCPending {
			return nil, ErrInvalidState
		}
		now := time.Now()
		k.Status, k.Reason, k.ReviewedBy, k.ReviewedAt = status, reason, &reviewer, &now
		m.players[k.PlayerID].KYCStatus = status
		cp := *k
		return &cp, nil
	}
	return nil, ErrNotFound
}

// redemptions

func (m *memStore) CreateRedemption(_ context.Context, hold ledger.Request, in database.NewRedemption) (*models.Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	today := decimal.Zero
	for _, r := range m.redemptions {
		if r.PlayerID == hold.PlayerID && !r.CreatedAt.Before(in.DayStart) &&
			r.Status != models.RedemptionRejected && r.Status != models.RedemptionCancelled {
			today = today.Add(r.Amount)
		}
	}
	if in.DailyMax.IsPositive() && today.Add(hold.Amount).GreaterThan(in.DailyMax) {
		return nil, ErrDailyLimit
	}
	t, _, err := m.applyLocked(hold)
	if err != nil {
		return nil, err
	}
	r := &models.Redemption{ID: m.id(), PlayerID: hold.PlayerID, Amount: hold.Amount, Method: in.Method, Status: in.Status,
		FraudScore: in.FraudScore, HoldTxnID: t.ID, CreatedAt: time.Now()}
	m.redemptions[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m *memStore) GetRedemption(_ context.Context, id int64) (*models.Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.redemptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListRedemptions(_ context.Context, playerID int64, statuses []string, page models.Page) ([]models.Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Redemption{}
	for _, r := range m.redemptions {
		if playerID != 0 && r.PlayerID != playerID {
			continue
		}
		if len(statuses) > 0 && !contains(statuses, r.Status) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, page), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (m *memStore) CloseRedemption(_ context.Context, id int64, status string, reason *string, reviewer *int64) (*models.Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.redemptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !r.Open() {
		return nil, ErrInvalidState
	}
	if status == models.RedemptionRejected || status == models.RedemptionCancelled {
		if _, _, err := m.applyLocked(ledger.Request{
			IdempotencyKey: fmt.Sprintf("redemption-refund:%d", id), PlayerID: r.PlayerID, Currency: ledger.SweepsCoins,
			Type: ledger.TxnRedemptionRefund, Amount: r.Amount,
		}); err != nil {
			return nil, err
		}
	}
	r.Status, r.Reason, r.ReviewedBy = status, reason, reviewer
	cp := *r
	return &cp, nil
}

// fraud

func (m *memStore) FraudSignals(_ context.Context, playerID int64) (models.FraudSignals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[playerID]; !ok {
		return models.FraudSignals{}, ErrNotFound
	}
	return m.signals, nil
}

func (m *memStore) CreateFlag(_ context.Context, f models.FraudFlag) (*models.FraudFlag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID, f.Status, f.CreatedAt = m.id(), models.FlagOpen, time.Now()
	m.flags = append(m.flags, &f)
	cp := f
	return &cp, nil
}

func (m *memStore) ListFlags(_ context.Context, status string, playerID int64, page models.Page) ([]models.FraudFlag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.FraudFlag{}
	for _, f := range m.flags {
		if (status == "" || f.Status == status) && (playerID == 0 || f.PlayerID == playerID) {
			out = append(out, *f)
		}
	}
	return paginate(out, page), nil
}

func (m *memStore) ResolveFlag(_ context.Context, id int64, note string, adminID int64) (*models.FraudFlag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.flags {
		if f.ID == id {
			if f.Status != models.FlagOpen {
				return nil, ErrInvalidState
			}
			now := time.Now()
			f.Status, f.Note, f.ResolvedBy, f.ResolvedAt = models.FlagResolved, &note, &adminID, &now
			cp := *f
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// sms

func (m *memStore) InsertIntoSMSQueue(_ context.Context, msisdn, message, template string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := models.SMSMessage{ID: m.id(), Msisdn: msisdn, Message: message, Template: template, Status: models.SMSQueued}
	m.sms = append(m.sms, msg)
	return msg.ID, nil
}

func (m *memStore) ClaimSMSBatch(_ context.Context, limit int) ([]models.SMSMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.SMSMessage{}
	now := time.Now()
	for i := range m.sms {
		if m.sms[i].Status == models.SMSQueued && len(out) < limit {
			m.sms[i].Status, m.sms[i].ClaimedAt = models.SMSSending, &now
			out = append(out, m.sms[i])
		}
	}
	return out, nil
}

func (m *memStore) RequeueStaleSMS(_ context.Context, lease time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.sms {
		if m.sms[i].Status == models.SMSSending && m.sms[i].ClaimedAt != nil && time.Since(*m.sms[i].ClaimedAt) > lease {
			m.sms[i].Status, m.sms[i].ClaimedAt = models.SMSQueued, nil
			n++
		}
	}
	return n, nil
}

func (m *memStore) MarkSMS(_ context.Context, id int64, sendErr error, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sms {
		if m.sms[i].ID != id {
			continue
		}
		m.sms[i].Attempts++
		m.sms[i].ClaimedAt = nil
		switch {
		case sendErr == nil:
			m.sms[i].Status = models.SMSSent
		case m.sms[i].Attempts >= maxAttempts:
			m.sms[i].Status = models.SMSFailed
		default:
			m.sms[i].Status = models.SMSQueued
		}
		return nil
	}
	return ErrNotFound
}

// ageClaims backdates every claim so the next drain treats it as stale.
func (m *memStore) ageClaims(by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sms {
		if m.sms[i].ClaimedAt != nil {
			old := m.sms[i].ClaimedAt.Add(-by)
			m.sms[i].ClaimedAt = &old
		}
	}
}

func (m *memStore) queued(template string) []models.SMSMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.SMSMessage{}
	for _, s := range m.sms {
		if template == "" || s.Template == template {
			out = append(out, s)
		}
	}
	return out
}

// fakeSender records sends and fails while failing is set.
type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	failing bool
}

func (f *fakeSender) Send(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return "", fmt.Errorf("provider down")
	}
	f.sent = append(f.sent, to+"|"+body)
	return fmt.Sprintf("SM%d", len(f.sent)), nil
}

func (f *fakeSender) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}
