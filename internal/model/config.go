package model

import "time"

// Config is the application configuration (file, env and flags merged by viper)
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Models    ModelsConfig    `yaml:"models" mapstructure:"models"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Web       WebConfig       `yaml:"web" mapstructure:"web"`
	Authority AuthorityConfig `yaml:"authority" mapstructure:"authority"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP streaming endpoint
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RunTimeout      time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	AllowedOrigin   string        `yaml:"allowed_origin,omitempty" mapstructure:"allowed_origin"`
}

// PipelineConfig holds the per-run analysis parameters
type PipelineConfig struct {
	ClaimVerificationSource string `yaml:"claim_verification_source" mapstructure:"claim_verification_source"` // "llm" or "web"
	SegmentsChunkSize       int    `yaml:"segments_chunk_size" mapstructure:"segments_chunk_size"`
	SegmentsChunkOverlap    int    `yaml:"segments_chunk_overlap" mapstructure:"segments_chunk_overlap"`
	StreamReport            bool   `yaml:"stream_report" mapstructure:"stream_report"`
	StripHTML               bool   `yaml:"strip_html" mapstructure:"strip_html"`
}

// ModelsConfig names the model used by each step
type ModelsConfig struct {
	ExtractClaims string `yaml:"extract_claims" mapstructure:"extract_claims"`
	VerifyClaims  string `yaml:"verify_claims" mapstructure:"verify_claims"`
	BiasDetection string `yaml:"bias_detection" mapstructure:"bias_detection"`
	Aggregation   string `yaml:"aggregation" mapstructure:"aggregation"`
}

// LLMConfig configures the model provider
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	APIKey            string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float32 `yaml:"temperature" mapstructure:"temperature"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// CacheConfig configures the model response cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// WebConfig configures web lookups used by web-sourced claim verification
type WebConfig struct {
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxResults        int           `yaml:"max_results" mapstructure:"max_results"`
	SnippetChars      int           `yaml:"snippet_chars" mapstructure:"snippet_chars"`
	Workers           int           `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	SearchURL         string        `yaml:"search_url" mapstructure:"search_url"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// AuthorityConfig configures source authority classification
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// Verification sources
const (
	VerificationLLM = "llm"
	VerificationWeb = "web"
)

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxBodyBytes:    1 << 20,
			RunTimeout:      5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Pipeline: PipelineConfig{
			ClaimVerificationSource: VerificationLLM,
			SegmentsChunkSize:       1000,
			SegmentsChunkOverlap:    0,
			StreamReport:            true,
			StripHTML:               false,
		},
		Models: ModelsConfig{
			ExtractClaims: "gpt-4o-mini",
			VerifyClaims:  "gpt-4o-mini",
			BiasDetection: "gpt-4o-mini",
			Aggregation:   "gpt-4o-mini",
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Timeout:           60,
			MaxTokens:         2000,
			Temperature:       0,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Web: WebConfig{
			UserAgent:         "Clarifai/0.1 (+https://github.com/ppiankov/clarifai)",
			Timeout:           15 * time.Second,
			MaxBodyBytes:      2_000_000,
			MaxResults:        3,
			SnippetChars:      1500,
			Workers:           4,
			RequestsPerSecond: 1,
			Burst:             2,
			RespectRobots:     true,
			SearchURL:         "https://html.duckduckgo.com/html/",
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"gov", "gov.uk", "europa.eu", "who.int", "un.org",
				"legislation.gov.uk", "legifrance.gouv.fr", "nih.gov",
				"doi.org", "nature.com", "science.org", "arxiv.org",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "britannica.com", "reuters.com", "apnews.com",
				"bbc.co.uk", "bbc.com", "lemonde.fr", "nytimes.com",
				"theguardian.com", "afp.com",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
