// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Terminologies, Annotator, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Redis         RedisConfig         `yaml:"redis"`
	Terminologies []TerminologyConfig `yaml:"terminologies"`
	Annotator     AnnotatorConfig     `yaml:"annotator"`
	Recognizer    RecognizerConfig    `yaml:"recognizer"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Logging       LoggingConfig       `yaml:"logging"`
	Tracing       TracingConfig       `yaml:"tracing"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Documents       string `yaml:"documents"`
	Annotations     string `yaml:"annotations"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// TerminologyConfig describes one termlist source: where it lives, how
// its columns are laid out, and which text processing builds its index.
type TerminologyConfig struct {
	Name       string `yaml:"name"`
	Path       string `yaml:"path"`
	Format     string `yaml:"format"`
	SkipHeader bool   `yaml:"skipHeader"`
	// ExtraFields names the columns beyond the standard five; the
	// names also label the extra columns in TSV export.
	ExtraFields     []string `yaml:"extraFields"`
	Normalize       string   `yaml:"normalize"`
	Stopwords       []string `yaml:"stopwords"`
	StopwordsFile   string   `yaml:"stopwordsFile"`
	TokenPattern    string   `yaml:"tokenPattern"`
	AbbrevDetection bool     `yaml:"abbrevDetection"`
	AbbrevPattern   string   `yaml:"abbrevPattern"`
	CacheDir        string   `yaml:"cacheDir"`
	ForceReload     bool     `yaml:"forceReload"`
	// PoolSize is the number of matcher sessions kept ready for this
	// terminology. Zero means the default.
	PoolSize int `yaml:"poolSize"`
}

// AnnotatorConfig controls the Kafka annotation workers and the internal
// RPC listener.
type AnnotatorConfig struct {
	Workers     int      `yaml:"workers"`
	BatchSize   int      `yaml:"batchSize"`
	RPCAddr     string   `yaml:"rpcAddr"`
	Postfilters []string `yaml:"postfilters"`
}

// RecognizerConfig controls the synchronous annotation API.
type RecognizerConfig struct {
	// DefaultTerminology is used when a request names none. Empty
	// means annotate with every loaded terminology.
	DefaultTerminology string        `yaml:"defaultTerminology"`
	AnnotatorAddr      string        `yaml:"annotatorAddr"`
	MaxTextBytes       int           `yaml:"maxTextBytes"`
	MaxConcurrent      int           `yaml:"maxConcurrent"`
	RequestTimeout     time.Duration `yaml:"requestTimeout"`
}

// AnalyticsConfig controls aggregation snapshots and report sizing.
type AnalyticsConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	TopK             int           `yaml:"topK"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls distributed tracing (sample rate, endpoint).
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// GatewayConfig holds the API gateway port, upstream service URLs and
// CORS policy.
type GatewayConfig struct {
	Port           int      `yaml:"port"`
	IngestionURL   string   `yaml:"ingestionUrl"`
	RecognizerURL  string   `yaml:"recognizerUrl"`
	AnalyticsURL   string   `yaml:"analyticsUrl"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations that no service could start with.
// Termlist formats and normalizer names are checked later, when the
// terminology is actually built.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Terminologies))
	for i, t := range c.Terminologies {
		if t.Name == "" {
			return fmt.Errorf("terminologies[%d]: name is required", i)
		}
		if t.Path == "" {
			return fmt.Errorf("terminology %s: path is required", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("terminology %s: duplicate name", t.Name)
		}
		seen[t.Name] = true
	}
	if d := c.Recognizer.DefaultTerminology; d != "" && len(c.Terminologies) > 0 && !seen[d] {
		return fmt.Errorf("recognizer: default terminology %s is not configured", d)
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "bioannotate",
			User:            "bioannotate",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "bioannotate-group",
			Topics: KafkaTopics{
				Documents:       "documents",
				Annotations:     "annotations",
				CacheInvalidate: "cache-invalidate",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Annotator: AnnotatorConfig{
			Workers:     4,
			BatchSize:   500,
			RPCAddr:     ":7600",
			Postfilters: []string{"submatches"},
		},
		Recognizer: RecognizerConfig{
			AnnotatorAddr:  "localhost:7600",
			MaxTextBytes:   1 << 20,
			MaxConcurrent:  16,
			RequestTimeout: 30 * time.Second,
		},
		Analytics: AnalyticsConfig{
			SnapshotInterval: 1 * time.Minute,
			TopK:             20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Gateway: GatewayConfig{
			Port:           8082,
			IngestionURL:   "http://localhost:8081",
			RecognizerURL:  "http://localhost:8080",
			AnalyticsURL:   "http://localhost:8083",
			AllowedOrigins: []string{"*"},
		},
	}
}

// applyEnvOverrides reads BAP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BAP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BAP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("BAP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("BAP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("BAP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("BAP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("BAP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("BAP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BAP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BAP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BAP_ANNOTATOR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Annotator.Workers = n
		}
	}
	if v := os.Getenv("BAP_ANNOTATOR_RPC_ADDR"); v != "" {
		cfg.Annotator.RPCAddr = v
	}
	if v := os.Getenv("BAP_RECOGNIZER_ANNOTATOR_ADDR"); v != "" {
		cfg.Recognizer.AnnotatorAddr = v
	}
	if v := os.Getenv("BAP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BAP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BAP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if v := os.Getenv("BAP_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("BAP_GATEWAY_INGESTION_URL"); v != "" {
		cfg.Gateway.IngestionURL = v
	}
	if v := os.Getenv("BAP_GATEWAY_RECOGNIZER_URL"); v != "" {
		cfg.Gateway.RecognizerURL = v
	}
	if v := os.Getenv("BAP_GATEWAY_ANALYTICS_URL"); v != "" {
		cfg.Gateway.AnalyticsURL = v
	}
}
