package config

import (
	"errors"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL"`
	HTTP        HTTP
	Storage     Storage
	Postgres    Postgres
	Redis       Redis
	API         API
	Cache       Cache
	Jobs        Jobs
	GoogleDrive GoogleDrive
}

type HTTP struct {
	Port            int           `env:"HTTP_PORT" envDefault:"5000"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type Storage struct {
	// Backend selects the ledger store: "postgres" or "flatfile".
	Backend string `env:"STORAGE_BACKEND" envDefault:"postgres"`
	DataDir string `env:"STORAGE_DATA_DIR" envDefault:"./storage"`
}

// Postgres settings are only required when the postgres backend is
// selected; see Config.validate.
type Postgres struct {
	Host            string `env:"PG_HOST" envDefault:""`
	Port            int    `env:"PG_PORT" envDefault:"0"`
	DbName          string `env:"PG_DB_NAME" envDefault:""`
	Password        string `env:"PG_PASSWORD" envDefault:""`
	User            string `env:"PG_USER" envDefault:""`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:""`
}

type Redis struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"true"`
	Host     string `env:"REDIS_HOST" envDefault:""`
	Port     int    `env:"REDIS_PORT" envDefault:"0"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type API struct {
	Debug    bool          `env:"API_DEBUG"`
	Timeout  time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	ChartApi ChartApi
}

type ChartApi struct {
	Url string `env:"CHART_API_URL"`
}

type Cache struct {
	HistoryExpiration time.Duration `env:"CACHE_HISTORY_EXPIRATION" envDefault:"300s"`
	PricesExpiration  time.Duration `env:"CACHE_PRICES_EXPIRATION" envDefault:"300s"`
}

type Jobs struct {
	WarmPricesInterval time.Duration `env:"WARM_PRICES_JOB_INTERVAL" envDefault:"10m"`
	// crontab with a seconds field; default is nightly at 03:00
	DriveCleanupCrontab string `env:"DRIVE_CLEANUP_JOB_CRONTAB" envDefault:"0 0 3 * * *"`
}

type GoogleDrive struct {
	Enabled         bool          `env:"GOOGLE_DRIVE_ENABLED" envDefault:"false"`
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:""`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"168h"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	if err := cfg.validate(); err != nil {
		log.Fatalf("config validation error: %s", err)
	}

	return cfg
}

// validate checks the settings that depend on the selected backends:
// postgres connection details only matter when the postgres backend is
// in use, redis ones only when redis is enabled.
func (c *Config) validate() error {
	if c.Storage.Backend != "flatfile" {
		if c.Postgres.Host == "" || c.Postgres.Port == 0 || c.Postgres.DbName == "" || c.Postgres.User == "" {
			return errors.New("postgres backend selected: PG_HOST, PG_PORT, PG_DB_NAME and PG_USER must be set")
		}
		if c.Postgres.MigrationDir == "" {
			return errors.New("postgres backend selected: PG_MIGRATION_DIR must be set")
		}
	}

	if c.Redis.Enabled && (c.Redis.Host == "" || c.Redis.Port == 0) {
		return errors.New("redis enabled: REDIS_HOST and REDIS_PORT must be set")
	}

	return nil
}
