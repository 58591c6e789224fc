// Package config centralizes process configuration. Every tunable is a flag
// whose default is seeded from the environment, so the precedence is:
//
//  1. explicit command-line flags
//  2. process environment
//  3. a .env file (LoadDotEnv; never overrides the environment)
//  4. built-in defaults
//
// The database keys keep the lower-case names used by existing deployments
// (src_path, db_host, db_port, db_user, db_user_password, db_name).
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"--workers=2"})
package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultDriver    = "postgres"
	DefaultBatchSize = 10_000
	// MaxWorkers is the hard cap on concurrently migrating tables.
	MaxWorkers = 4
)

// Metrics backends.
const (
	MetricsNone        = "none"
	MetricsPushgateway = "pushgateway"
	MetricsDatadog     = "datadog"
)

// Config holds all process configuration derived from flags and environment
// variables. All fields are plain values so the struct can be copied and
// shared across goroutines after construction.
type Config struct {
	// SrcPath is the source root holding schemas.json and one directory of
	// part-* files per table.
	SrcPath string

	// DB describes the target database. DSN, when set, wins over the parts.
	DBDriver   string // postgres | mssql | mysql | sqlite | memory
	DSN        string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string // for sqlite, the database file

	// Load tunables.
	BatchSize  int
	Workers    int
	FixupsFile string
	InferTypes bool
	Comma      string
	LazyQuotes bool
	TrimSpace  bool

	// Metrics.
	Job            string
	MetricsBackend string
	PushgatewayURL string
	DDAgentAddr    string
}

// Bind defines every configuration flag on fs, seeding defaults from getenv,
// and returns the Config the flags write into. Values are final once fs has
// been parsed.
func Bind(fs *pflag.FlagSet, getenv func(string) string) *Config {
	cfg := &Config{}

	envOrDefault := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOrDefault := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	boolEnvOrDefault := func(k string, d bool) bool {
		switch strings.ToLower(getenv(k)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}

	fs.StringVar(&cfg.SrcPath, "src-path", getenv("src_path"), "Source root with schemas.json and <table>/part-* files (env src_path)")

	fs.StringVar(&cfg.DBDriver, "db-driver", envOrDefault("DB_DRIVER", DefaultDriver), "Database driver: postgres, mssql, mysql, sqlite or memory")
	fs.StringVar(&cfg.DSN, "dsn", getenv("DB_DSN"), "Full DSN; overrides the db-* parts")
	fs.StringVar(&cfg.DBHost, "db-host", envOrDefault("db_host", "localhost"), "DB host (env db_host)")
	fs.StringVar(&cfg.DBPort, "db-port", getenv("db_port"), "DB port (env db_port; driver default when empty)")
	fs.StringVar(&cfg.DBUser, "db-user", getenv("db_user"), "DB user (env db_user)")
	fs.StringVar(&cfg.DBPassword, "db-password", getenv("db_user_password"), "DB password (env db_user_password)")
	fs.StringVar(&cfg.DBName, "db-name", getenv("db_name"), "DB name, or the database file for sqlite (env db_name)")

	fs.IntVar(&cfg.BatchSize, "batch-size", intEnvOrDefault("BATCH_SIZE", DefaultBatchSize), "Rows per chunk and per append")
	fs.IntVar(&cfg.Workers, "workers", intEnvOrDefault("WORKERS", MaxWorkers), "Tables migrated in parallel (at most 4)")
	fs.StringVar(&cfg.FixupsFile, "fixups", getenv("FIXUPS_FILE"), "YAML file with extra null-filling rules")
	fs.BoolVar(&cfg.InferTypes, "infer-types", boolEnvOrDefault("INFER_TYPES", true), "Infer per-batch column kinds and log columns whose kind changes between batches")
	fs.StringVar(&cfg.Comma, "comma", envOrDefault("CSV_COMMA", ","), "Field delimiter")
	fs.BoolVar(&cfg.LazyQuotes, "lazy-quotes", boolEnvOrDefault("CSV_LAZY_QUOTES", false), "Accept bare quotes in unquoted fields")
	fs.BoolVar(&cfg.TrimSpace, "trim-space", boolEnvOrDefault("CSV_TRIM_SPACE", false), "Trim surrounding whitespace from fields")

	fs.StringVar(&cfg.Job, "job", envOrDefault("JOB", "csvmigrate"), "Job label attached to metrics")
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", envOrDefault("METRICS_BACKEND", MetricsNone), "Metrics backend: none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", getenv("PUSHGATEWAY_URL"), "Prometheus Pushgateway base URL")
	fs.StringVar(&cfg.DDAgentAddr, "dd-agent-addr", getenv("DD_AGENT_ADDR"), "DogStatsD address, e.g. 127.0.0.1:8125")

	return cfg
}

// LoadFromArgs binds flags on fs and parses args.
func LoadFromArgs(fs *pflag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := Bind(fs, getenv)
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. With no
// paths it reads ./.env and ignores its absence.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(paths...)
}

// DefaultPort returns the conventional port for driver, or "".
func DefaultPort(driver string) string {
	switch driver {
	case "postgres":
		return "5432"
	case "mysql":
		return "3306"
	case "mssql":
		return "1433"
	}
	return ""
}

// EffectiveWorkers is the worker cap clamped to [1, MaxWorkers].
func (c *Config) EffectiveWorkers() int {
	return min(max(c.Workers, 1), MaxWorkers)
}

// CommaRune returns the delimiter as a rune; ',' when Comma is empty.
func (c *Config) CommaRune() rune {
	if c.Comma == "" {
		return ','
	}
	return []rune(c.Comma)[0]
}

// ConnString returns the connection string for the configured driver. An explicit
// DSN is returned unchanged; otherwise one is assembled from the parts.
func (c *Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	port := c.DBPort
	if port == "" {
		port = DefaultPort(c.DBDriver)
	}
	hostPort := net.JoinHostPort(c.DBHost, port)

	switch c.DBDriver {
	case "postgres":
		u := url.URL{
			Scheme: "postgresql",
			User:   url.UserPassword(c.DBUser, c.DBPassword),
			Host:   hostPort,
			Path:   "/" + c.DBName,
		}
		return u.String()
	case "mssql":
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.DBUser, c.DBPassword),
			Host:     hostPort,
			RawQuery: url.Values{"database": {c.DBName}}.Encode(),
		}
		return u.String()
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = c.DBUser
		mc.Passwd = c.DBPassword
		mc.Net = "tcp"
		mc.Addr = hostPort
		mc.DBName = c.DBName
		return mc.FormatDSN()
	case "sqlite":
		return c.DBName
	}
	return ""
}
