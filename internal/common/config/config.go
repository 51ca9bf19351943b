// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Matching      MatchingConfig          `mapstructure:"matching"`
	Extractor     ExtractorConfig         `mapstructure:"extractor"`
	Search        SearchConfig            `mapstructure:"search"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Registry      RegistryConfig          `mapstructure:"registry"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPPort    int    `mapstructure:"http_port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	Plaintext      bool   `mapstructure:"plaintext"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	EnsureSchema   bool   `mapstructure:"ensure_schema"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Storage backends for reference templates.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type StorageConfig struct {
	Backend  string      `mapstructure:"backend"`
	AssetDir string      `mapstructure:"asset_dir"`
	Cache    CacheConfig `mapstructure:"cache"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
}

type MatchingConfig struct {
	RelevanceThreshold    float64          `mapstructure:"relevance_threshold"`
	MatchThreshold        float64          `mapstructure:"match_threshold"`
	LowConfidenceCoverage float64          `mapstructure:"low_confidence_coverage"`
	Parallelism           int              `mapstructure:"parallelism"`
	Weights               WeightsConfig    `mapstructure:"weights"`
	ExtraAnchors          []string         `mapstructure:"extra_anchors"`
	PatternVersion        string           `mapstructure:"pattern_version"`
	Assessment            AssessmentConfig `mapstructure:"assessment"`
}

// WeightsConfig overrides field weights; a zero value keeps the default.
type WeightsConfig struct {
	Board       float64 `mapstructure:"board"`
	Program     float64 `mapstructure:"program"`
	StudentName float64 `mapstructure:"student_name"`
	Identifier  float64 `mapstructure:"identifier"`
	ExamYear    float64 `mapstructure:"exam_year"`
	Subjects    float64 `mapstructure:"subjects"`
	RawText     float64 `mapstructure:"raw_text"`
}

type AssessmentConfig struct {
	ProgramKeywords []string `mapstructure:"program_keywords"`
	LenientBoards   []string `mapstructure:"lenient_boards"`
	LenientPrograms []string `mapstructure:"lenient_programs"`
}

type ExtractorConfig struct {
	Enabled      bool              `mapstructure:"enabled"`
	BaseURL      string            `mapstructure:"base_url"`
	Path         string            `mapstructure:"path"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	FieldMapping map[string]string `mapstructure:"field_mapping"`
}

type SearchConfig struct {
	Index   string `mapstructure:"index"`
	Refresh string `mapstructure:"refresh"`
}

type NotificationConfig struct {
	SNS   SNSConfig   `mapstructure:"sns"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type SNSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	TopicARN string `mapstructure:"topic_arn"`
}

type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	SampleRatio float64 `mapstructure:"sample_ratio"`
}
