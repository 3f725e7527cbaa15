package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env       string `mapstructure:"ENV" yaml:"env"`
	LogLevel  string `mapstructure:"LOG_LEVEL" yaml:"log_level"`
	LogFormat string `mapstructure:"LOG_FORMAT" yaml:"log_format"`
	LogFile   string `mapstructure:"LOG_FILE" yaml:"log_file"`
	LogFileMB int    `mapstructure:"LOG_FILE_MAX_MB" yaml:"log_file_max_mb"`
	LogFileN  int    `mapstructure:"LOG_FILE_MAX_BACKUPS" yaml:"log_file_max_backups"`

	DBDriver    string `mapstructure:"DB_DRIVER" yaml:"db_driver"`
	DatabaseURL string `mapstructure:"DATABASE_URL" yaml:"database_url"`
	DBSchema    string `mapstructure:"DB_SCHEMA" yaml:"db_schema"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS" yaml:"db_max_conns"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS" yaml:"db_min_conns"`

	HospDir    string `mapstructure:"MIMIC_HOSP_DIR" yaml:"mimic_hosp_dir"`
	ICUDir     string `mapstructure:"MIMIC_ICU_DIR" yaml:"mimic_icu_dir"`
	NoteDir    string `mapstructure:"MIMIC_NOTE_DIR" yaml:"mimic_note_dir"`
	OutputRoot string `mapstructure:"OUTPUT_ROOT" yaml:"output_root"`

	BenchmarkName         string `mapstructure:"BENCHMARK_NAME" yaml:"benchmark_name"`
	BenchmarkVersion      string `mapstructure:"BENCHMARK_VERSION" yaml:"benchmark_version"`
	PacketSchemaVersion   string `mapstructure:"PACKET_SCHEMA_VERSION" yaml:"packet_schema_version"`
	ManifestSchemaVersion string `mapstructure:"MANIFEST_SCHEMA_VERSION" yaml:"manifest_schema_version"`
	MIMICIVVersion        string `mapstructure:"MIMICIV_VERSION" yaml:"mimiciv_version"`
	MIMICIVNoteVersion    string `mapstructure:"MIMICIV_NOTE_VERSION" yaml:"mimiciv_note_version"`

	ProximalLabCapture       bool   `mapstructure:"PROXIMAL_LAB_CAPTURE" yaml:"proximal_lab_capture"`
	ProximalMicroCapture     bool   `mapstructure:"PROXIMAL_MICRO_CAPTURE" yaml:"proximal_micro_capture"`
	ProximalPaddingHours     int    `mapstructure:"PROXIMAL_PADDING_HOURS" yaml:"proximal_padding_hours"`
	IncludeICUStays          bool   `mapstructure:"INCLUDE_ICU_STAYS" yaml:"include_icu_stays"`
	RequireDischargeNote     bool   `mapstructure:"REQUIRE_DISCHARGE_NOTE" yaml:"require_discharge_note"`
	OnlyWithDischarge        bool   `mapstructure:"ONLY_ADMISSIONS_WITH_DISCHARGE" yaml:"only_admissions_with_discharge"`
	IncludeUnlinkedRadiology bool   `mapstructure:"INCLUDE_UNLINKED_RADIOLOGY" yaml:"include_unlinked_radiology"`
	EmarTimeWindowFallback   bool   `mapstructure:"EMAR_TIME_WINDOW_FALLBACK" yaml:"emar_time_window_fallback"`
	StrictValidation         bool   `mapstructure:"STRICT_VALIDATION" yaml:"strict_validation"`
	TruncationRulesetFile    string `mapstructure:"TRUNCATION_RULESET_FILE" yaml:"truncation_ruleset_file"`
	PromptTemplateVersion    string `mapstructure:"PROMPT_TEMPLATE_VERSION" yaml:"prompt_template_version"`

	ModelProvider        string  `mapstructure:"MODEL_PROVIDER" yaml:"model_provider"`
	ModelName            string  `mapstructure:"MODEL_NAME" yaml:"model_name"`
	ModelTemperature     float64 `mapstructure:"MODEL_TEMPERATURE" yaml:"model_temperature"`
	ModelMaxOutputTokens int     `mapstructure:"MODEL_MAX_OUTPUT_TOKENS" yaml:"model_max_output_tokens"`
	ModelReasoningEffort string  `mapstructure:"MODEL_REASONING_EFFORT" yaml:"model_reasoning_effort"`
	ModelSeed            *int64  `mapstructure:"-" yaml:"model_seed"`
	ModelRetryLimit      int     `mapstructure:"MODEL_RETRY_LIMIT" yaml:"model_retry_limit"`
	ModelTimeoutSeconds  int     `mapstructure:"MODEL_TIMEOUT_SECONDS" yaml:"model_timeout_seconds"`
	ModelAPIKeyEnv       string  `mapstructure:"MODEL_API_KEY_ENV" yaml:"model_api_key_env"`
	ModelBaseURL         string  `mapstructure:"MODEL_BASE_URL" yaml:"model_base_url"`

	RedisURL        string   `mapstructure:"REDIS_URL" yaml:"redis_url"`
	CacheTTLHours   int      `mapstructure:"CACHE_TTL_HOURS" yaml:"cache_ttl_hours"`
	KafkaBrokers    []string `mapstructure:"KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaTopic      string   `mapstructure:"KAFKA_TOPIC" yaml:"kafka_topic"`
	MetricsAddr     string   `mapstructure:"METRICS_ADDR" yaml:"metrics_addr"`
	MetricsTextfile string   `mapstructure:"METRICS_TEXTFILE" yaml:"metrics_textfile"`

	Truncation Ruleset `mapstructure:"-" yaml:"truncation"`
}

var keys = []string{
	"ENV", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "LOG_FILE_MAX_MB", "LOG_FILE_MAX_BACKUPS",
	"DB_DRIVER", "DATABASE_URL", "DB_SCHEMA", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MIMIC_HOSP_DIR", "MIMIC_ICU_DIR", "MIMIC_NOTE_DIR", "OUTPUT_ROOT",
	"BENCHMARK_NAME", "BENCHMARK_VERSION", "PACKET_SCHEMA_VERSION", "MANIFEST_SCHEMA_VERSION",
	"MIMICIV_VERSION", "MIMICIV_NOTE_VERSION",
	"PROXIMAL_LAB_CAPTURE", "PROXIMAL_MICRO_CAPTURE", "PROXIMAL_PADDING_HOURS", "INCLUDE_ICU_STAYS",
	"REQUIRE_DISCHARGE_NOTE", "ONLY_ADMISSIONS_WITH_DISCHARGE", "INCLUDE_UNLINKED_RADIOLOGY",
	"EMAR_TIME_WINDOW_FALLBACK", "STRICT_VALIDATION", "TRUNCATION_RULESET_FILE", "PROMPT_TEMPLATE_VERSION",
	"MODEL_PROVIDER", "MODEL_NAME", "MODEL_TEMPERATURE", "MODEL_MAX_OUTPUT_TOKENS", "MODEL_REASONING_EFFORT",
	"MODEL_SEED", "MODEL_RETRY_LIMIT", "MODEL_TIMEOUT_SECONDS", "MODEL_API_KEY_ENV", "MODEL_BASE_URL",
	"REDIS_URL", "CACHE_TTL_HOURS", "KAFKA_BROKERS", "KAFKA_TOPIC", "METRICS_ADDR", "METRICS_TEXTFILE",
}

// Load reads configuration from the process environment, an optional .env
// file in the working directory, and an optional YAML file at path (empty
// path skips it). Environment variables win over the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "")
	v.SetDefault("LOG_FILE_MAX_MB", 100)
	v.SetDefault("LOG_FILE_MAX_BACKUPS", 5)
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 8)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("MIMIC_HOSP_DIR", "data/mimic-iv/hosp")
	v.SetDefault("MIMIC_ICU_DIR", "data/mimic-iv/icu")
	v.SetDefault("MIMIC_NOTE_DIR", "data/mimic-iv-notes")
	v.SetDefault("OUTPUT_ROOT", "output")
	v.SetDefault("BENCHMARK_NAME", "mimic_longctx")
	v.SetDefault("BENCHMARK_VERSION", "0.1.0")
	v.SetDefault("PACKET_SCHEMA_VERSION", "0.1.0")
	v.SetDefault("MANIFEST_SCHEMA_VERSION", "0.1.0")
	v.SetDefault("MIMICIV_VERSION", "3.1")
	v.SetDefault("MIMICIV_NOTE_VERSION", "2.2")
	v.SetDefault("PROXIMAL_LAB_CAPTURE", true)
	v.SetDefault("PROXIMAL_MICRO_CAPTURE", true)
	v.SetDefault("PROXIMAL_PADDING_HOURS", 0)
	v.SetDefault("INCLUDE_ICU_STAYS", true)
	v.SetDefault("REQUIRE_DISCHARGE_NOTE", true)
	v.SetDefault("ONLY_ADMISSIONS_WITH_DISCHARGE", true)
	v.SetDefault("INCLUDE_UNLINKED_RADIOLOGY", true)
	v.SetDefault("EMAR_TIME_WINDOW_FALLBACK", true)
	v.SetDefault("STRICT_VALIDATION", true)
	v.SetDefault("PROMPT_TEMPLATE_VERSION", "prompt.v1.0")
	v.SetDefault("MODEL_PROVIDER", "openai")
	v.SetDefault("MODEL_NAME", "gpt-4.1-mini")
	v.SetDefault("MODEL_TEMPERATURE", 0.0)
	v.SetDefault("MODEL_MAX_OUTPUT_TOKENS", 12000)
	v.SetDefault("MODEL_RETRY_LIMIT", 2)
	v.SetDefault("MODEL_TIMEOUT_SECONDS", 180)
	v.SetDefault("MODEL_API_KEY_ENV", "OPENAI_API_KEY")
	v.SetDefault("CACHE_TTL_HOURS", 24*7)
	v.SetDefault("KAFKA_TOPIC", "medbench.runs")

	for _, k := range keys {
		v.BindEnv(k)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.KafkaBrokers == nil {
		if brokers := v.GetString("KAFKA_BROKERS"); brokers != "" {
			cfg.KafkaBrokers = strings.Split(brokers, ",")
		}
	}
	if v.IsSet("MODEL_SEED") && v.GetString("MODEL_SEED") != "" {
		seed := v.GetInt64("MODEL_SEED")
		cfg.ModelSeed = &seed
	}

	cfg.Truncation = DefaultRuleset()
	if cfg.TruncationRulesetFile != "" {
		rs, err := LoadRuleset(cfg.TruncationRulesetFile)
		if err != nil {
			return nil, err
		}
		cfg.Truncation = rs
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// APIKey returns the model API key from the environment variable named by
// MODEL_API_KEY_ENV.
func (c *Config) APIKey() string {
	return os.Getenv(c.ModelAPIKeyEnv)
}

// SetRowCap overrides the cap of one truncation section.
func (c *Config) SetRowCap(section string, rowCap int) {
	if c.Truncation.Caps == nil {
		c.Truncation.Caps = map[string]*int{}
	}
	n := rowCap
	c.Truncation.Caps[section] = &n
}

// Validate checks that the configuration can drive a run.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER is \"postgres\"")
		}
	case "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must name a sqlite file (or \":memory:\") when DB_DRIVER is \"sqlite\"")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be \"postgres\" or \"sqlite\", got %q", c.DBDriver)
	}

	switch c.ModelProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("MODEL_PROVIDER must be \"openai\" or \"gemini\", got %q", c.ModelProvider)
	}
	if c.ModelProvider == "gemini" && c.ModelSeed != nil &&
		(*c.ModelSeed < math.MinInt32 || *c.ModelSeed > math.MaxInt32) {
		return fmt.Errorf("MODEL_SEED must fit in 32 bits for the gemini provider, got %d", *c.ModelSeed)
	}
	if c.ModelRetryLimit < 0 {
		return fmt.Errorf("MODEL_RETRY_LIMIT must be non-negative, got %d", c.ModelRetryLimit)
	}
	if c.ModelMaxOutputTokens <= 0 {
		return fmt.Errorf("MODEL_MAX_OUTPUT_TOKENS must be positive, got %d", c.ModelMaxOutputTokens)
	}
	if c.ModelTimeoutSeconds <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT_SECONDS must be positive, got %d", c.ModelTimeoutSeconds)
	}
	if c.ProximalPaddingHours < 0 {
		return fmt.Errorf("PROXIMAL_PADDING_HOURS must be non-negative, got %d", c.ProximalPaddingHours)
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("OUTPUT_ROOT is required")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return c.Truncation.Validate()
}
