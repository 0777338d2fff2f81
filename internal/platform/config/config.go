package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Audit transports.
const (
	TransportChannel = "channel"
	TransportKafka   = "kafka"
)

// Config is the full process configuration, read from the environment.
type Config struct {
	Server      Server
	Log         Log
	Store       Store
	Postgres    Postgres
	Audit       Audit
	Kafka       Kafka
	Redis       Redis
	Lockout     Lockout
	Auth        Auth
	Claims      Claims
	ObjectStore ObjectStore
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"EZCLAIM_ADDR"             envDefault:":8080"`
	ReadTimeout     time.Duration `env:"EZCLAIM_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"EZCLAIM_WRITE_TIMEOUT"    envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"EZCLAIM_SHUTDOWN_TIMEOUT" envDefault:"20s"`
	AllowedOrigins  []string      `env:"EZCLAIM_ALLOWED_ORIGINS"  envSeparator:","`
	MetricsToken    string        `env:"EZCLAIM_METRICS_TOKEN"`
}

// Log selects level and handler format.
type Log struct {
	Level  string `env:"EZCLAIM_LOG_LEVEL"  envDefault:"info"`
	Format string `env:"EZCLAIM_LOG_FORMAT" envDefault:"json"`
}

// Store selects the entity store backend.
type Store struct {
	Backend string        `env:"EZCLAIM_STORE"         envDefault:"memory"`
	Timeout time.Duration `env:"EZCLAIM_STORE_TIMEOUT" envDefault:"3s"`
}

// Postgres configures the database pool.
type Postgres struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// Audit configures the audit pipeline.
type Audit struct {
	Transport        string        `env:"AUDIT_TRANSPORT"         envDefault:"channel"`
	BufferSize       int           `env:"AUDIT_BUFFER_SIZE"       envDefault:"1024"`
	PersistTimeout   time.Duration `env:"AUDIT_PERSIST_TIMEOUT"   envDefault:"5s"`
	BreakerThreshold int           `env:"AUDIT_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"AUDIT_BREAKER_COOLDOWN"  envDefault:"30s"`
	DrainTimeout     time.Duration `env:"AUDIT_DRAIN_TIMEOUT"     envDefault:"10s"`
}

// Kafka configures the broker transport for audit events.
type Kafka struct {
	Brokers           []string `env:"KAFKA_BROKERS"            envSeparator:","`
	Topic             string   `env:"KAFKA_AUDIT_TOPIC"        envDefault:"ezclaim.audit-events"`
	Group             string   `env:"KAFKA_AUDIT_GROUP"        envDefault:"ezclaim-audit-sink"`
	ClientID          string   `env:"KAFKA_CLIENT_ID"          envDefault:"ezclaim"`
	Partitions        int32    `env:"KAFKA_TOPIC_PARTITIONS"   envDefault:"3"`
	ReplicationFactor int16    `env:"KAFKA_TOPIC_REPLICATION"  envDefault:"1"`
	MaxBufferedEvents int      `env:"KAFKA_MAX_BUFFERED"       envDefault:"10000"`
}

// Redis configures the optional lockout backend.
type Redis struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

// Lockout bounds wrong-password attempts per claim.
type Lockout struct {
	MaxAttempts int           `env:"LOCKOUT_MAX_ATTEMPTS" envDefault:"5"`
	Window      time.Duration `env:"LOCKOUT_WINDOW"       envDefault:"15m"`
	Duration    time.Duration `env:"LOCKOUT_DURATION"     envDefault:"15m"`
}

// Auth configures token issuance.
type Auth struct {
	JWTSigningKey  string        `env:"JWT_SIGNING_KEY"      envDefault:"dev-secret-key-change-in-production"`
	Issuer         string        `env:"JWT_ISSUER"           envDefault:"ezclaim"`
	TokenTTL       time.Duration `env:"JWT_TTL"              envDefault:"1h"`
	AdminPassword  string        `env:"DEMO_ADMIN_PASSWORD"  envDefault:"admin"`
	ReaderPassword string        `env:"DEMO_READER_PASSWORD" envDefault:"reader"`
}

// Claims holds claim defaults.
type Claims struct {
	DefaultCurrency string `env:"CLAIM_DEFAULT_CURRENCY" envDefault:"CHF"`
}

// ObjectStore configures the S3-compatible photo bucket.
type ObjectStore struct {
	Endpoint     string        `env:"S3_ENDPOINT"`
	Region       string        `env:"S3_REGION"         envDefault:"us-east-1"`
	AccessKey    string        `env:"S3_ACCESS_KEY"`
	SecretKey    string        `env:"S3_SECRET_KEY"`
	Bucket       string        `env:"S3_BUCKET"         envDefault:"ezclaim-photos"`
	UsePathStyle bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	PresignTTL   time.Duration `env:"S3_PRESIGN_TTL"    envDefault:"15m"`
}

// FromEnv loads and validates the configuration.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations that cannot start.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Audit.Transport {
	case TransportChannel:
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("KAFKA_BROKERS is required for the kafka audit transport")
		}
	default:
		return fmt.Errorf("unknown audit transport %q", c.Audit.Transport)
	}
	if c.Audit.BufferSize <= 0 {
		return errors.New("AUDIT_BUFFER_SIZE must be positive")
	}
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("LOCKOUT_MAX_ATTEMPTS must be positive")
	}
	return nil
}
