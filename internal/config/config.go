package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// PostgresConfig holds connection settings for the target database.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	// AdminDatabase is the maintenance database used to create Database.
	AdminDatabase string `yaml:"admin_database" mapstructure:"admin_database"`
	SSLMode       string `yaml:"sslmode" mapstructure:"sslmode"`
}

// IngestConfig configures the ingestion run.
type IngestConfig struct {
	Manifest        string        `yaml:"manifest" mapstructure:"manifest"`
	Root            string        `yaml:"root" mapstructure:"root"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	UserAgent       string        `yaml:"user_agent" mapstructure:"user_agent"`
	HostRate        float64       `yaml:"host_rate" mapstructure:"host_rate"`
	ContinueOnError bool          `yaml:"continue_on_error" mapstructure:"continue_on_error"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// pgEnv maps config keys to the PG_* variables used by the deployment scripts.
var pgEnv = map[string]string{
	"postgres.host":     "PG_HOST",
	"postgres.port":     "PG_PORT",
	"postgres.user":     "PG_USER",
	"postgres.password": "PG_PASSWORD",
	"postgres.database": "PG_DATABASE",
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range pgEnv {
		if err := v.BindEnv(key, "ERP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", env)
		}
	}

	// Defaults
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "erp_db")
	v.SetDefault("postgres.admin_database", "postgres")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("ingest.manifest", "datasets.yaml")
	v.SetDefault("ingest.root", ".")
	v.SetDefault("ingest.fetch_timeout", 120*time.Second)
	v.SetDefault("ingest.user_agent", "erp-ingest/1.0")
	v.SetDefault("ingest.host_rate", 5.0)
	v.SetDefault("ingest.continue_on_error", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration can drive an ingestion run.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Postgres.Host) == "" {
		problems = append(problems, "postgres.host is required")
	}
	if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
		problems = append(problems, "postgres.port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Postgres.User) == "" {
		problems = append(problems, "postgres.user is required")
	}
	if strings.TrimSpace(c.Postgres.Database) == "" {
		problems = append(problems, "postgres.database is required")
	}
	if strings.TrimSpace(c.Ingest.Manifest) == "" {
		problems = append(problems, "ingest.manifest is required")
	}
	if c.Ingest.FetchTimeout <= 0 {
		problems = append(problems, "ingest.fetch_timeout must be > 0")
	}
	if c.Ingest.HostRate <= 0 {
		problems = append(problems, "ingest.host_rate must be > 0")
	}
	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DSN returns the connection URL for the target database.
func (p PostgresConfig) DSN() string {
	return p.dsnFor(p.Database)
}

// AdminDSN returns the connection URL for the maintenance database.
func (p PostgresConfig) AdminDSN() string {
	return p.dsnFor(p.AdminDatabase)
}

func (p PostgresConfig) dsnFor(database string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + database,
	}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	} else {
		u.User = url.User(p.User)
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

// String describes the target without credentials, for logs.
func (p PostgresConfig) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", p.User, p.Host, p.Port, p.Database)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
