package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Env         string `env:"APP_ENV,default=development"`
	Port        int    `env:"PORT,default=3000"`
	BaseURL     string `env:"BASE_URL,default=http://localhost:3000"`
	FrontendURL string `env:"FRONTEND_URL,default=http://localhost:5173"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	LogFormat   string `env:"LOG_FORMAT"`

	DatabaseURL  string `env:"DATABASE_URL,required"`
	AutoMigrate  bool   `env:"DB_AUTO_MIGRATE,default=true"`
	DBMaxConns   int    `env:"DB_MAX_OPEN_CONNS,default=20"`
	DBIdleConns  int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	JWTSecret    string `env:"JWT_SECRET,required"`
	JWTExpiresIn string `env:"JWT_EXPIRES_IN,default=7d"`

	RedisHost     string `env:"REDIS_HOST"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	ScyllaHosts    string `env:"SCYLLA_HOSTS"`
	ScyllaKeyspace string `env:"SCYLLA_KEYSPACE,default=byteshop_audit"`
	ScyllaUser     string `env:"SCYLLA_USER"`
	ScyllaPassword string `env:"SCYLLA_PASSWORD"`

	ElasticURL      string `env:"ELASTIC_URL"`
	ElasticUser     string `env:"ELASTIC_USERNAME"`
	ElasticPassword string `env:"ELASTIC_PASSWORD"`
	ElasticIndex    string `env:"ELASTIC_INDEX,default=products"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY"`
	MinIOBucket    string `env:"MINIO_BUCKET,default=product-images"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL,default=false"`
	MinIOPublicURL string `env:"MINIO_PUBLIC_URL"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM,default=noreply@byteshop.dev"`
	AdminEmail   string `env:"ADMIN_EMAIL"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PaymentCurrency     string `env:"PAYMENT_CURRENCY,default=brl"`

	SessionSecret      string `env:"SESSION_SECRET"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	CompanyName string `env:"COMPANY_NAME,default=ByteShop"`
	CompanyIBAN string `env:"COMPANY_IBAN"`
	CompanyBIC  string `env:"COMPANY_BIC"`

	LowStockThreshold int    `env:"LOW_STOCK_THRESHOLD,default=10"`
	LowStockCron      string `env:"LOW_STOCK_CRON,default=@every 15m"`
	ReindexCron       string `env:"REINDEX_CRON,default=@daily"`
}

// Load reads .env when present, then decodes the environment. Missing
// required variables are returned as an error.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		logrus.Info("⚠️  no .env file found, using process environment")
	} else {
		logrus.Info("✅ .env file loaded")
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := ParseDuration(cfg.JWTExpiresIn); err != nil {
		return nil, fmt.Errorf("config: JWT_EXPIRES_IN: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) TokenTTL() time.Duration {
	d, _ := ParseDuration(c.JWTExpiresIn)
	return d
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) RedisEnabled() bool   { return c.RedisHost != "" }
func (c *Config) ScyllaEnabled() bool  { return c.ScyllaHosts != "" }
func (c *Config) ElasticEnabled() bool { return c.ElasticURL != "" }
func (c *Config) MinIOEnabled() bool   { return c.MinIOEndpoint != "" }
func (c *Config) SMTPEnabled() bool    { return c.SMTPHost != "" }
func (c *Config) StripeEnabled() bool  { return c.StripeSecretKey != "" }

func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.SessionSecret != ""
}

func (c *Config) ScyllaHostList() []string {
	var hosts []string
	for _, h := range strings.Split(c.ScyllaHosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// ParseDuration accepts time.ParseDuration syntax plus a whole-day suffix ("7d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}
