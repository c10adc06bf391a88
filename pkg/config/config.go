package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	POS           POSConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Square        SquareConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.POS.VAT(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VEVURN_APP_ENV" required:"true"`
	Port         string `envconfig:"VEVURN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VEVURN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VEVURN_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"VEVURN_CORS_ORIGINS" default:"http://localhost:3000"`
	// MetricsAddr, when set, makes the workers serve /metrics on this address.
	MetricsAddr string `envconfig:"VEVURN_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"VEVURN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"VEVURN_DB_DSN"`
	Driver string `envconfig:"VEVURN_DB_DRIVER" default:"postgres"`

	// Host, Port, User, Password, Name and SSLMode assemble a DSN when DSN
	// is empty.
	Host     string `envconfig:"VEVURN_DB_HOST"`
	Port     int    `envconfig:"VEVURN_DB_PORT" default:"5432"`
	User     string `envconfig:"VEVURN_DB_USER"`
	Password string `envconfig:"VEVURN_DB_PASSWORD"`
	Name     string `envconfig:"VEVURN_DB_NAME"`
	SSLMode  string `envconfig:"VEVURN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VEVURN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VEVURN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VEVURN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VEVURN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"VEVURN_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VEVURN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VEVURN_REDIS_ADDR"`
	Password     string        `envconfig:"VEVURN_REDIS_PASSWORD"`
	DB           int           `envconfig:"VEVURN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VEVURN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VEVURN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VEVURN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VEVURN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VEVURN_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"VEVURN_REDIS_KEY_PREFIX" default:"vv"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"VEVURN_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"VEVURN_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"VEVURN_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"VEVURN_REFRESH_TOKEN_TTL_MINUTES" default:"720"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VEVURN_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VEVURN_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VEVURN_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VEVURN_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VEVURN_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"VEVURN_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"VEVURN_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"VEVURN_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VEVURN_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VEVURN_AUTO_MIGRATE" default:"false"`
	CardPayment bool `envconfig:"VEVURN_FEATURE_CARD_PAYMENT" default:"false"`
}

// POSConfig holds the register and pricing settings.
type POSConfig struct {
	VATRate        string        `envconfig:"VEVURN_POS_VAT_RATE" default:"0.18"`
	Currency       string        `envconfig:"VEVURN_POS_CURRENCY" default:"RWF"`
	CurrencyPlaces int32         `envconfig:"VEVURN_POS_CURRENCY_PLACES" default:"0"`
	TransactionTTL time.Duration `envconfig:"VEVURN_POS_TRANSACTION_TTL" default:"12h"`
	ShopName       string        `envconfig:"VEVURN_POS_SHOP_NAME" default:"Vevurn Accessories"`
	ShopTIN        string        `envconfig:"VEVURN_POS_SHOP_TIN"`
	ShopAddress    string        `envconfig:"VEVURN_POS_SHOP_ADDRESS" default:"Kigali, Rwanda"`
	UTCOffset      time.Duration `envconfig:"VEVURN_POS_UTC_OFFSET" default:"2h"`
}

// Location is the shop's wall-clock zone, used for receipt timestamps and
// for deciding which calendar day a sale belongs to. A fixed offset keeps
// the binaries independent of tzdata.
func (p POSConfig) Location() *time.Location {
	name := fmt.Sprintf("UTC%+03d", int(p.UTCOffset.Hours()))
	return time.FixedZone(name, int(p.UTCOffset.Seconds()))
}

// VAT parses the configured VAT rate.
func (p POSConfig) VAT() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(p.VATRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", EnvPOSVATRate, p.VATRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s must be in [0, 1), got %s", EnvPOSVATRate, rate)
	}
	return rate, nil
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"VEVURN_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"VEVURN_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"VEVURN_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"VEVURN_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SalesTopic            string `envconfig:"VEVURN_PUBSUB_SALES_TOPIC" default:"vv-sales-events"`
	SalesSubscription     string `envconfig:"VEVURN_PUBSUB_SALES_SUBSCRIPTION" default:"vv-sales-events-sub"`
	AnalyticsSubscription string `envconfig:"VEVURN_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"vv-sales-analytics-sub"`
}

type BigQueryConfig struct {
	Dataset     string        `envconfig:"VEVURN_BIGQUERY_DATASET" default:"vevurn"`
	SalesTable  string        `envconfig:"VEVURN_BIGQUERY_SALES_TABLE" default:"sales_events"`
	StockTable  string        `envconfig:"VEVURN_BIGQUERY_STOCK_TABLE" default:"stock_events"`
	BatchSize   int           `envconfig:"VEVURN_BIGQUERY_BATCH_SIZE" default:"200"`
	MaxAttempts int           `envconfig:"VEVURN_BIGQUERY_MAX_ATTEMPTS" default:"3"`
	FlushEvery  time.Duration `envconfig:"VEVURN_BIGQUERY_FLUSH_INTERVAL" default:"5s"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"VEVURN_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"VEVURN_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"VEVURN_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"VEVURN_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"VEVURN_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"VEVURN_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"VEVURN_OUTBOX_RETENTION" default:"168h"`
	DLQRetention   time.Duration `envconfig:"VEVURN_OUTBOX_DLQ_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"VEVURN_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"VEVURN_CRON_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	dsn := url.URL{
		Scheme: "postgres",
		User:   url.User(db.User),
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.Password != "" {
		dsn.User = url.UserPassword(db.User, db.Password)
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
