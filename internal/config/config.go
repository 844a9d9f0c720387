package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rpggio/semantix/internal/domain/vote"
)

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("invalid config")

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Transport TransportConfig `yaml:"transport"`
	Voting    vote.Policy     `yaml:"voting"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Training  TrainingConfig  `yaml:"training"`
	Labeling  LabelingConfig  `yaml:"labeling"`
	Fanout    FanoutConfig    `yaml:"fanout"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TransportConfig selects how the MCP surface is served: "http" mounts it
// at /mcp next to the REST API, "stdio" serves it on stdin/stdout.
type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type IngestConfig struct {
	MaxPayloadBytes int `yaml:"max_payload_bytes"`
}

type TrainingConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ArtifactsDir   string        `yaml:"artifacts_dir"`
	CheckpointPath string        `yaml:"checkpoint_path"`
	BatchSize      int           `yaml:"batch_size"`
	LabelFilter    string        `yaml:"label_filter"`
	QualityMin     int           `yaml:"quality_min"`
	MaxRecords     int           `yaml:"max_records"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

type LabelingConfig struct {
	Enabled     bool `yaml:"enabled"`
	Concurrency int  `yaml:"concurrency"`
}

type FanoutConfig struct {
	Buffer int `yaml:"buffer"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "data/semantix.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Voting: vote.DefaultPolicy(),
		Ingest: IngestConfig{
			MaxPayloadBytes: 1_000_000,
		},
		Training: TrainingConfig{
			Enabled:        true,
			ArtifactsDir:   "data/artifacts",
			CheckpointPath: "data/checkpoints.db",
			BatchSize:      100,
			QualityMin:     vote.DefaultQualityMin,
			PollInterval:   5 * time.Second,
		},
		Labeling: LabelingConfig{
			Concurrency: 4,
		},
		Fanout: FanoutConfig{
			Buffer: 256,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("SEMANTIX_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("SEMANTIX_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if err := envInt("SEMANTIX_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if dbPath := os.Getenv("SEMANTIX_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("SEMANTIX_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("SEMANTIX_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if err := envBool("SEMANTIX_AUTH_ENABLED", &cfg.Auth.Enabled); err != nil {
		return err
	}
	if mode := os.Getenv("SEMANTIX_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}

	// The bare names are the documented deployment knobs; the prefixed
	// forms win when both are set.
	for _, name := range []string{"VOTE_THRESHOLD", "SEMANTIX_VOTE_THRESHOLD"} {
		if err := envInt(name, &cfg.Voting.VoteThreshold); err != nil {
			return err
		}
	}
	for _, name := range []string{"QUALITY_MIN", "SEMANTIX_QUALITY_MIN"} {
		if err := envInt(name, &cfg.Voting.QualityMin); err != nil {
			return err
		}
	}
	if policy := os.Getenv("SEMANTIX_QUALITY_POLICY"); policy != "" {
		cfg.Voting.Quality = vote.QualityAggregate(policy)
	}
	if rule := os.Getenv("SEMANTIX_REJECT_RULE"); rule != "" {
		cfg.Voting.Reject = vote.RejectRule(rule)
	}
	if err := envInt("SEMANTIX_REJECT_THRESHOLD", &cfg.Voting.RejectThreshold); err != nil {
		return err
	}

	if err := envInt("SEMANTIX_MAX_PAYLOAD_BYTES", &cfg.Ingest.MaxPayloadBytes); err != nil {
		return err
	}

	if err := envBool("SEMANTIX_TRAINING_ENABLED", &cfg.Training.Enabled); err != nil {
		return err
	}
	if dir := os.Getenv("SEMANTIX_ARTIFACTS_DIR"); dir != "" {
		cfg.Training.ArtifactsDir = dir
	}
	if path := os.Getenv("SEMANTIX_CHECKPOINT_PATH"); path != "" {
		cfg.Training.CheckpointPath = path
	}
	if err := envInt("SEMANTIX_BATCH_SIZE", &cfg.Training.BatchSize); err != nil {
		return err
	}
	if filter, ok := os.LookupEnv("SEMANTIX_LABEL_FILTER"); ok {
		cfg.Training.LabelFilter = filter
	}
	if err := envInt("SEMANTIX_TRAINING_QUALITY_MIN", &cfg.Training.QualityMin); err != nil {
		return err
	}
	if err := envInt("SEMANTIX_MAX_RECORDS", &cfg.Training.MaxRecords); err != nil {
		return err
	}
	if v := os.Getenv("SEMANTIX_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SEMANTIX_POLL_INTERVAL: %w", err)
		}
		cfg.Training.PollInterval = d
	}

	if err := envBool("SEMANTIX_LABELING_ENABLED", &cfg.Labeling.Enabled); err != nil {
		return err
	}
	if err := envInt("SEMANTIX_LABELING_CONCURRENCY", &cfg.Labeling.Concurrency); err != nil {
		return err
	}
	return envInt("SEMANTIX_FANOUT_BUFFER", &cfg.Fanout.Buffer)
}

// Validate rejects settings the services cannot start with. It normalizes
// the voting policy in place.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d", ErrInvalid, c.Server.Port)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("%w: transport mode %q", ErrInvalid, c.Transport.Mode)
	}

	policy, err := c.Voting.Validate()
	if err != nil {
		return fmt.Errorf("%w: voting: %w", ErrInvalid, err)
	}
	c.Voting = policy

	if c.Ingest.MaxPayloadBytes <= 0 {
		return fmt.Errorf("%w: max payload bytes must be positive", ErrInvalid)
	}
	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("%w: training batch size must be positive", ErrInvalid)
	}
	if c.Training.MaxRecords < 0 {
		return fmt.Errorf("%w: training max records must not be negative", ErrInvalid)
	}
	if c.Training.PollInterval <= 0 {
		return fmt.Errorf("%w: training poll interval must be positive", ErrInvalid)
	}
	if c.Training.Enabled && strings.TrimSpace(c.Training.ArtifactsDir) == "" {
		return fmt.Errorf("%w: training artifacts dir is required", ErrInvalid)
	}
	if c.Labeling.Concurrency <= 0 {
		return fmt.Errorf("%w: labeling concurrency must be positive", ErrInvalid)
	}
	if c.Fanout.Buffer <= 0 {
		return fmt.Errorf("%w: fanout buffer must be positive", ErrInvalid)
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = b
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
