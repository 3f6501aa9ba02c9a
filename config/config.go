package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Postgres struct {
	Connection struct {
		Host     string `yaml:"host"`
		User     string `yaml:"username"`
		Password string `yaml:"password"`
		DBName   string `yaml:"database"`
		Port     int    `yaml:"port"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"connection"`
	MaxConns int32 `yaml:"max_conns"`
	MinConns int32 `yaml:"min_conns"`
}

type Server struct {
	Port         int    `yaml:"port"`
	SocketPort   int    `yaml:"socket_port"`
	AppName      string `yaml:"app_name"`
	LogLevel     string `yaml:"log_level"`
	AllowOrigins string `yaml:"allow_origins"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Auth struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	PlayerTokenTTL time.Duration `yaml:"player_token_ttl"`
	AdminTokenTTL  time.Duration `yaml:"admin_token_ttl"`
	OTPTTL         time.Duration `yaml:"otp_ttl"`
	OTPMaxAttempts int           `yaml:"otp_max_attempts"`
	ProviderAPIKey string        `yaml:"provider_api_key"`
}

type SMS struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	AccountSID string        `yaml:"account_sid"`
	AuthToken  string        `yaml:"auth_token"`
	From       string        `yaml:"from"`
	Timeout    time.Duration `yaml:"timeout"`
}

type Bonus struct {
	DailyGC   decimal.Decimal `yaml:"daily_gc"`
	DailySC   decimal.Decimal `yaml:"daily_sc"`
	StreakCap int             `yaml:"streak_cap"`
}

type Redemption struct {
	MinSC      decimal.Decimal `yaml:"min_sc"`
	DailyMaxSC decimal.Decimal `yaml:"daily_max_sc"`
}

type KYC struct {
	MinAge           int      `yaml:"min_age"`
	RestrictedStates []string `yaml:"restricted_states"`
}

type Fraud struct {
	ReviewThreshold int `yaml:"review_threshold"`
	FlagThreshold   int `yaml:"flag_threshold"`
}

type Store struct {
	WebhookSecret string        `yaml:"webhook_secret"`
	OrderTTL      time.Duration `yaml:"order_ttl"`
}

type Jobs struct {
	SMSDrain    string `yaml:"sms_drain"`
	OrderExpiry string `yaml:"order_expiry"`
	LobbyWarm   string `yaml:"lobby_warm"`
	FeedPush    string `yaml:"feed_push"`
}

type Config struct {
	Production struct {
		Postgres Postgres `yaml:"postgres"`
	} `yaml:"production"`
	Server     Server     `yaml:"server"`
	Redis      Redis      `yaml:"redis"`
	Auth       Auth       `yaml:"auth"`
	SMS        SMS        `yaml:"sms"`
	Bonus      Bonus      `yaml:"bonus"`
	Redemption Redemption `yaml:"redemption"`
	KYC        KYC        `yaml:"kyc"`
	Fraud      Fraud      `yaml:"fraud"`
	Store      Store      `yaml:"store"`
	Jobs       Jobs       `yaml:"jobs"`
}

// Load reads config.yml, overlays .env / environment secrets and fills defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("could not read .env: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML and applies defaults without touching the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.ProviderAPIKey, "PROVIDER_API_KEY")
	setString(&c.Production.Postgres.Connection.Password, "DB_PASSWORD")
	setString(&c.Production.Postgres.Connection.Host, "DB_HOST")
	setString(&c.SMS.AuthToken, "SMS_AUTH_TOKEN")
	setString(&c.Store.WebhookSecret, "STORE_WEBHOOK_SECRET")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	pg := &c.Production.Postgres
	if pg.Connection.Port == 0 {
		pg.Connection.Port = 5432
	}
	if pg.Connection.SSLMode == "" {
		pg.Connection.SSLMode = "disable"
	}
	if pg.MaxConns == 0 {
		pg.MaxConns = 100
	}
	if pg.MinConns == 0 {
		pg.MinConns = 5
	}

	if c.Server.Port == 0 {
		c.Server.Port = 3007
	}
	if c.Server.SocketPort == 0 {
		c.Server.SocketPort = 3006
	}
	if c.Server.AppName == "" {
		c.Server.AppName = "Sweeps Casino API"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.AllowOrigins == "" {
		c.Server.AllowOrigins = "*"
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Auth.PlayerTokenTTL == 0 {
		c.Auth.PlayerTokenTTL = 48 * time.Hour
	}
	if c.Auth.AdminTokenTTL == 0 {
		c.Auth.AdminTokenTTL = 12 * time.Hour
	}
	if c.Auth.OTPTTL == 0 {
		c.Auth.OTPTTL = 5 * time.Minute
	}
	if c.Auth.OTPMaxAttempts == 0 {
		c.Auth.OTPMaxAttempts = 5
	}

	if c.SMS.Timeout == 0 {
		c.SMS.Timeout = 10 * time.Second
	}
	if c.SMS.BaseURL == "" {
		c.SMS.BaseURL = "https://api.twilio.com/2010-04-01"
	}

	if c.Bonus.DailyGC.IsZero() {
		c.Bonus.DailyGC = decimal.NewFromInt(5000)
	}
	if c.Bonus.DailySC.IsZero() {
		c.Bonus.DailySC = decimal.RequireFromString("0.30")
	}
	if c.Bonus.StreakCap == 0 {
		c.Bonus.StreakCap = 7
	}

	if c.Redemption.MinSC.IsZero() {
		c.Redemption.MinSC = decimal.NewFromInt(100)
	}
	if c.Redemption.DailyMaxSC.IsZero() {
		c.Redemption.DailyMaxSC = decimal.NewFromInt(5000)
	}

	if c.KYC.MinAge == 0 {
		c.KYC.MinAge = 18
	}
	if c.KYC.RestrictedStates == nil {
		c.KYC.RestrictedStates = []string{"WA", "ID", "NV", "MI"}
	}

	if c.Fraud.ReviewThreshold == 0 {
		c.Fraud.ReviewThreshold = 50
	}
	if c.Fraud.FlagThreshold == 0 {
		c.Fraud.FlagThreshold = 40
	}

	if c.Store.OrderTTL == 0 {
		c.Store.OrderTTL = 30 * time.Minute
	}

	if c.Jobs.SMSDrain == "" {
		c.Jobs.SMSDrain = "@every 30s"
	}
	if c.Jobs.OrderExpiry == "" {
		c.Jobs.OrderExpiry = "@every 5m"
	}
	if c.Jobs.LobbyWarm == "" {
		c.Jobs.LobbyWarm = "@every 1m"
	}
	if c.Jobs.FeedPush == "" {
		c.Jobs.FeedPush = "@every 10s"
	}
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret (or JWT_SECRET) is required"))
	}
	if c.Production.Postgres.Connection.Host == "" {
		errs = append(errs, errors.New("production.postgres.connection.host is required"))
	}
	if !c.Redemption.MinSC.IsPositive() {
		errs = append(errs, errors.New("redemption.min_sc must be positive"))
	}
	if c.Redemption.DailyMaxSC.LessThan(c.Redemption.MinSC) {
		errs = append(errs, errors.New("redemption.daily_max_sc must be >= min_sc"))
	}
	if c.Bonus.DailyGC.IsNegative() || c.Bonus.DailySC.IsNegative() {
		errs = append(errs, errors.New("bonus.daily_gc and bonus.daily_sc must not be negative"))
	}
	if c.Bonus.StreakCap < 1 {
		errs = append(errs, errors.New("bonus.streak_cap must be >= 1"))
	}
	if c.KYC.MinAge < 18 {
		errs = append(errs, errors.New("kyc.min_age must be >= 18"))
	}
	if c.Fraud.ReviewThreshold > 100 || c.Fraud.FlagThreshold > 100 {
		errs = append(errs, errors.New("fraud thresholds must be <= 100"))
	}
	if c.SMS.Enabled && (c.SMS.AccountSID == "" || c.SMS.AuthToken == "" || c.SMS.From == "") {
		errs = append(errs, errors.New("sms.account_sid, sms.auth_token and sms.from are required when sms is enabled"))
	}
	return errors.Join(errs...)
}

// DSN builds the pgx connection string.
func (c *Config) DSN() string {
	conn := c.Production.Postgres.Connection
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(conn.User, conn.Password),
		Host:     net.JoinHostPort(conn.Host, strconv.Itoa(conn.Port)),
		Path:     "/" + conn.DBName,
		RawQuery: url.Values{"sslmode": {conn.SSLMode}}.Encode(),
	}
	return u.String()
}

// RestrictedState reports whether sweepstakes play is blocked in a state.
func (c *Config) RestrictedState(state string) bool {
	state = strings.ToUpper(strings.TrimSpace(state))
	for _, s := range c.KYC.RestrictedStates {
		if strings.EqualFold(s, state) {
			return true
		}
	}
	return false
}
