package config

import (
	"os"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"sqlancer/internal/runinfo"
)

// Config captures all runtime options for the test runner.
type Config struct {
	Dialect               string             `yaml:"dialect"`
	DSN                   string             `yaml:"dsn"`
	Database              string             `yaml:"database"`
	Seed                  int64              `yaml:"seed"`
	Iterations            int                `yaml:"iterations"`
	Workers               int                `yaml:"workers"`
	MaxTables             int                `yaml:"max_tables"`
	MaxColumns            int                `yaml:"max_columns"`
	MaxRowsPerTable       int                `yaml:"max_rows_per_table"`
	MaxJoinTables         int                `yaml:"max_join_tables"`
	StatementTimeoutMs    int                `yaml:"statement_timeout_ms"`
	MaxExpressionDepth    int                `yaml:"max_expression_depth"`
	MaxGenerationAttempts int                `yaml:"max_generation_attempts"`
	OnlyKnownTypes        bool               `yaml:"only_known_types"`
	ValidateSQL           bool               `yaml:"validate_sql"`
	ReportDir             string             `yaml:"report_dir"`
	MaxDataDumpRows       int                `yaml:"max_data_dump_rows"`
	Weights               Weights            `yaml:"weights"`
	Oracles               OracleConfig       `yaml:"oracles"`
	Logging               Logging            `yaml:"logging"`
	Storage               StorageConfig      `yaml:"storage"`
	RunInfo               *runinfo.BasicInfo `yaml:"-"`
}

// Weights holds random selection weights.
type Weights struct {
	Oracles OracleWeights `yaml:"oracles"`
}

// OracleWeights sets how often each oracle runs. Zero disables one.
type OracleWeights struct {
	PQS          int `yaml:"pqs"`
	TLPWhere     int `yaml:"tlp_where"`
	TLPHaving    int `yaml:"tlp_having"`
	TLPDistinct  int `yaml:"tlp_distinct"`
	TLPAggregate int `yaml:"tlp_aggregate"`
}

// ByName returns the weight keyed by oracle name.
func (w OracleWeights) ByName() map[string]int {
	return map[string]int{
		"pqs":           w.PQS,
		"tlp_where":     w.TLPWhere,
		"tlp_having":    w.TLPHaving,
		"tlp_distinct":  w.TLPDistinct,
		"tlp_aggregate": w.TLPAggregate,
	}
}

// OracleConfig tunes oracle behavior.
type OracleConfig struct {
	// AuxWhereProb is the percent chance TLP adds an auxiliary WHERE.
	AuxWhereProb int `yaml:"aux_where_prob"`
	// RoundScale rounds non-integral values before comparison. Zero keeps
	// full precision.
	RoundScale int `yaml:"round_scale"`
	// BoolAsInt compares true/false as 1/0 on top of the dialect default.
	BoolAsInt bool `yaml:"bool_as_int"`
}

// Logging configures log output and periodic stats.
type Logging struct {
	Verbose               bool   `yaml:"verbose"`
	ReportIntervalSeconds int    `yaml:"report_interval_seconds"`
	LogFile               string `yaml:"log_file"`
}

// StorageConfig configures case uploads.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, pkgerrors.Wrap(err, "read config")
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, pkgerrors.Wrapf(err, "parse config %s", path)
	}
	normalizeConfig(&cfg)
	cfg.RunInfo = runinfo.FromEnv()
	return cfg, nil
}

const (
	minColumns            = 2
	maxExpressionDepthCap = 8
)

func normalizeConfig(cfg *Config) {
	cfg.Dialect = strings.ToLower(strings.TrimSpace(cfg.Dialect))
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxTables < 1 {
		cfg.MaxTables = 1
	}
	if cfg.MaxColumns < minColumns {
		cfg.MaxColumns = minColumns
	}
	if cfg.MaxJoinTables < 1 {
		cfg.MaxJoinTables = 1
	}
	if cfg.MaxJoinTables > cfg.MaxTables {
		cfg.MaxJoinTables = cfg.MaxTables
	}
	if cfg.MaxExpressionDepth < 1 {
		cfg.MaxExpressionDepth = 1
	}
	if cfg.MaxExpressionDepth > maxExpressionDepthCap {
		cfg.MaxExpressionDepth = maxExpressionDepthCap
	}
	if cfg.MaxGenerationAttempts < 1 {
		cfg.MaxGenerationAttempts = 1
	}
	cfg.Oracles.AuxWhereProb = min(max(cfg.Oracles.AuxWhereProb, 0), 100)
	if cfg.Oracles.RoundScale < 0 {
		cfg.Oracles.RoundScale = 0
	}
	if cfg.Logging.ReportIntervalSeconds < 0 {
		cfg.Logging.ReportIntervalSeconds = 0
	}
}

// WorkerDatabase names the database a worker owns.
func (c Config) WorkerDatabase(worker int) string {
	if c.Workers <= 1 {
		return c.Database
	}
	return c.Database + "_w" + strconv.Itoa(worker)
}

func defaultConfig() Config {
	return Config{
		Dialect:               "mysql",
		DSN:                   "root:@tcp(127.0.0.1:4000)/",
		Database:              "sqlancer",
		Iterations:            1000,
		Workers:               1,
		MaxTables:             3,
		MaxColumns:            5,
		MaxRowsPerTable:       20,
		MaxJoinTables:         2,
		StatementTimeoutMs:    15000,
		MaxExpressionDepth:    3,
		MaxGenerationAttempts: 100,
		OnlyKnownTypes:        true,
		ValidateSQL:           true,
		ReportDir:             "reports",
		MaxDataDumpRows:       50,
		Weights: Weights{
			Oracles: OracleWeights{PQS: 4, TLPWhere: 3, TLPHaving: 2, TLPDistinct: 2, TLPAggregate: 2},
		},
		Oracles: OracleConfig{
			AuxWhereProb: 30,
			RoundScale:   6,
		},
		Logging: Logging{
			ReportIntervalSeconds: 30,
			LogFile:               "logs/sqlancer.log",
		},
	}
}
