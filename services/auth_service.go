package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"sweepsapp/config"
	"sweepsapp/models"
	"sweepsapp/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const otpLength = 6

type AuthService struct {
	players  PlayerStore
	otps     OTPStore
	admins   AdminStore
	notifier Notifier
	cfg      config.Auth

	msisdnLimiter *utils.RateLimiter
	ipLimiter     *utils.RateLimiter
	now           func() time.Time
}

func NewAuthService(players PlayerStore, otps OTPStore, admins AdminStore, notifier Notifier, cfg config.Auth) *AuthService {
	return &AuthService{
		players:       players,
		otps:          otps,
		admins:        admins,
		notifier:      notifier,
		cfg:           cfg,
		msisdnLimiter: utils.NewRateLimiter(30*time.Second, 3),
		ipLimiter:     utils.NewRateLimiter(6*time.Second, 10),
		now:           time.Now,
	}
}

type LoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Player    *models.Player    `json:"player,omitempty"`
	Admin     *models.AdminUser `json:"admin,omitempty"`
}

func otpHash(msisdn, code string) string {
	return utils.SHA256Hex(msisdn + ":" + code)
}

// RequestOTP creates the player on first contact and texts a login code.
func (s *AuthService) RequestOTP(ctx context.Context, rawMsisdn, ip string) error {
	msisdn, err := utils.NormalizeMsisdn(rawMsisdn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !s.msisdnLimiter.Allow(msisdn) || (ip != "" && !s.ipLimiter.Allow(ip)) {
		return ErrRateLimited
	}

	p, created, err := s.players.UpsertPlayerByMsisdn(ctx, msisdn)
	if err != nil {
		return err
	}
	if created {
		logrus.WithField("player_id", p.ID).Info("New player registered")
	}
	if p.Status == models.PlayerBanned {
		return ErrPlayerBlocked
	}

	code, err := utils.RandomDigits(otpLength)
	if err != nil {
		return err
	}
	if err := s.otps.InsertOTP(ctx, msisdn, otpHash(msisdn, code), s.now().Add(s.cfg.OTPTTL)); err != nil {
		return err
	}
	return s.notifier.SendNow(ctx, msisdn, "otp", code, int(s.cfg.OTPTTL.Minutes()))
}

// VerifyOTP checks the code and issues a player token.
func (s *AuthService) VerifyOTP(ctx context.Context, rawMsisdn, code, ip string) (*LoginResult, error) {
	msisdn, err := utils.NormalizeMsisdn(rawMsisdn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	code = strings.TrimSpace(code)
	if len(code) != otpLength {
		return nil, ErrInvalidCode
	}

	otp, err := s.otps.LatestOTP(ctx, msisdn)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCode
	}
	if err != nil {
		return nil, err
	}
	if s.now().After(otp.ExpiresAt) {
		return nil, ErrInvalidCode
	}

	// every guess is counted before it is compared; the stored counter is the gate
	attempts, err := s.otps.IncrementOTPAttempts(ctx, otp.ID)
	if err != nil {
		return nil, err
	}
	if attempts > s.cfg.OTPMaxAttempts {
		return nil, ErrTooManyAttempts
	}
	if subtle.ConstantTimeCompare([]byte(otp.CodeHash), []byte(otpHash(msisdn, code))) != 1 {
		if attempts >= s.cfg.OTPMaxAttempts {
			return nil, ErrTooManyAttempts
		}
		return nil, ErrInvalidCode
	}
	if err := s.otps.ConsumeOTP(ctx, otp.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	p, _, err := s.players.UpsertPlayerByMsisdn(ctx, msisdn)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PlayerActive {
		return nil, ErrPlayerBlocked
	}
	if p.SelfExcluded(s.now()) {
		return nil, ErrSelfExcluded
	}
	if ip != "" {
		if err := s.players.RecordLogin(ctx, p.ID, ip); err != nil {
			logrus.WithField("player_id", p.ID).WithError(err).Warn("Failed to record login")
		}
	}

	token, err := utils.SignJWT(p.ID, models.RolePlayer, s.cfg.PlayerTokenTTL)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: s.now().Add(s.cfg.PlayerTokenTTL), Player: p}, nil
}

// AdminLogin checks a bcrypt password and issues a back-office token.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}
	a, err := s.admins.GetAdminByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		logrus.WithField("admin_id", a.ID).Warn("Admin login failed")
		return nil, ErrUnauthorized
	}

	token, err := utils.SignJWT(a.ID, a.Role, s.cfg.AdminTokenTTL)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: s.now().Add(s.cfg.AdminTokenTTL), Admin: a}, nil
}

// CleanupLimiters drops rate limiter state for keys idle longer than idle.
func (s *AuthService) CleanupLimiters(idle time.Duration) int {
	return s.msisdnLimiter.Cleanup(idle) + s.ipLimiter.Cleanup(idle)
}

// CreateAdmin hashes the password and stores a back-office user.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password, role string) (*models.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if role != models.RoleAdmin && role != models.RoleSupport {
		return nil, fmt.Errorf("%w: role must be admin or support", ErrInvalidInput)
	}
	if len(password) < 10 {
		return nil, fmt.Errorf("%w: password must be at least 10 characters", ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.admins.CreateAdmin(ctx, email, string(hash), role)
}
