package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig        `yaml:"app"`
	Storage     StorageConfig    `yaml:"storage"`
	Redis       RedisConfig      `yaml:"redis"`
	Backup      BackupConfig     `yaml:"backup"`
	Monitoring  MonitoringConfig `yaml:"monitoring"`
	Logging     LoggingConfig    `yaml:"logging"`
	API         APIConfig        `yaml:"api"`
	Ledger      LedgerConfig     `yaml:"ledger"`
	Advisory    AdvisoryConfig   `yaml:"advisory"`
	Notify      NotifyConfig     `yaml:"notify"`
	Google      GoogleConfig     `yaml:"google"`
	Exports     ExportConfig     `yaml:"exports"`
	CatalogPath string           `yaml:"catalog_path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type StorageConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
	MigrationTable string `yaml:"migration_table"`
}

// DSN собирает строку подключения для pgx
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode, p.MaxConnections)
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port         int   `yaml:"port"`
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

type APIAuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LedgerConfig struct {
	RecheckOnApprove bool `yaml:"recheck_on_approve"`
}

type AdvisoryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	Timeout       time.Duration `yaml:"timeout"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	MaxRetries    int           `yaml:"max_retries"`
	Workers       int           `yaml:"workers"`
	UserRateLimit int           `yaml:"user_rate_limit"`
	RateWindow    time.Duration `yaml:"rate_window"`
}

type NotifyConfig struct {
	Log      bool           `yaml:"log"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type AMQPConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
	// Commands включает обработку команд в чате, а не только рассылку
	Commands bool `yaml:"commands"`
	PageSize int  `yaml:"page_size"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	ReservationsSheetID  string `yaml:"reservations_spreadsheet_id"`
	ReservationsSheetTab string `yaml:"reservations_sheet"`
}

// Enabled сообщает, настроена ли синхронизация с Google Sheets
func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.ReservationsSheetID != ""
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env не обязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("sqlite path is required")
		}
	case DriverPostgres:
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.DBName == "" {
			return errors.New("postgres host and dbname are required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.API.Auth.JWTSecret == "" {
		return errors.New("api jwt secret is required")
	}

	if c.Advisory.Enabled && c.Advisory.APIKey == "" {
		return errors.New("advisory api key is required when advisory is enabled")
	}

	if c.Backup.Enabled && c.Storage.Driver != DriverSQLite {
		return errors.New("backup is only supported for sqlite storage")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "campusres"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Storage.Postgres.Port == 0 {
		c.Storage.Postgres.Port = 5432
	}
	if c.Storage.Postgres.SSLMode == "" {
		c.Storage.Postgres.SSLMode = "disable"
	}
	if c.Storage.Postgres.MaxConnections == 0 {
		c.Storage.Postgres.MaxConnections = 10
	}
	if c.Storage.Postgres.MigrationTable == "" {
		c.Storage.Postgres.MigrationTable = "goose_db_version"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.MaxBodyBytes <= 0 {
		c.API.HTTP.MaxBodyBytes = 1 << 20
	}
	if c.API.Auth.TokenTTL == 0 {
		c.API.Auth.TokenTTL = 12 * time.Hour
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}

	// Advisory defaults
	if c.Advisory.Model == "" {
		c.Advisory.Model = "gemini-2.5-flash"
	}
	if c.Advisory.Timeout == 0 {
		c.Advisory.Timeout = 30 * time.Second
	}
	if c.Advisory.CacheTTL == 0 {
		c.Advisory.CacheTTL = 30 * time.Minute
	}
	if c.Advisory.MaxRetries == 0 {
		c.Advisory.MaxRetries = 3
	}
	if c.Advisory.Workers == 0 {
		c.Advisory.Workers = 2
	}
	if c.Advisory.UserRateLimit == 0 {
		c.Advisory.UserRateLimit = 20
	}
	if c.Advisory.RateWindow == 0 {
		c.Advisory.RateWindow = time.Hour
	}

	if c.Notify.AMQP.Queue == "" {
		c.Notify.AMQP.Queue = "campusres.notifications"
	}
	if c.Google.ReservationsSheetTab == "" {
		c.Google.ReservationsSheetTab = "Reservations"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.CatalogPath == "" {
		c.CatalogPath = "configs/catalog.yaml"
	}
}
