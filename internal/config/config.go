// Package config provides environment configuration for the trip planner.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tripcrew/trip-planner/internal/pipeline"
	"github.com/tripcrew/trip-planner/internal/tools"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Database settings
	DatabaseDriver string
	DatabaseURL    string

	// NATS settings; an empty URL disables plan events.
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret     string
	JWTExpiration time.Duration

	// LLM settings
	LLMProvider       string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	AnthropicAPIKey   string
	LLMModel          string
	LLMTemperature    float64
	LLMMaxTokens      int
	LLMRequestTimeout time.Duration

	// Pipeline settings
	PipelineTimeout           time.Duration
	PipelineMaxToolRounds     int
	EnableSearchCitySelection bool
	EnableSearchLocalExpert   bool
	EnableSearchConcierge     bool
	EnableBrowse              bool
	EnableCalculator          bool

	// Tool settings
	SerperAPIKey      string
	SerperMaxCalls    int
	SerperTimeout     time.Duration
	SerperMinInterval time.Duration
	BrowserlessAPIKey string
	BrowseMaxCalls    int
	BrowseTimeout     time.Duration
	BrowseFormat      string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "9000"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 200*time.Second),

		// Database
		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite3"),
		DatabaseURL:    getEnv("DATABASE_URL", "trip_planner.db"),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 720*time.Minute),

		// LLM
		LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		LLMModel:          getEnv("LLM_MODEL", ""),
		LLMTemperature:    getFloatEnv("LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:      getIntEnv("LLM_MAX_TOKENS", 1500),
		LLMRequestTimeout: getDurationEnv("LLM_REQUEST_TIMEOUT", 120*time.Second),

		// Pipeline
		PipelineTimeout:           getDurationEnv("PIPELINE_TIMEOUT", 180*time.Second),
		PipelineMaxToolRounds:     getIntEnv("PIPELINE_MAX_TOOL_ROUNDS", 8),
		EnableSearchCitySelection: getBoolEnv("ENABLE_SEARCH_CITY_SELECTION", true),
		EnableSearchLocalExpert:   getBoolEnv("ENABLE_SEARCH_LOCAL_EXPERT", true),
		EnableSearchConcierge:     getBoolEnv("ENABLE_SEARCH_CONCIERGE", false),
		EnableBrowse:              getBoolEnv("ENABLE_BROWSE", true),
		EnableCalculator:          getBoolEnv("ENABLE_CALCULATOR", true),

		// Tools
		SerperAPIKey:      getEnv("SERPER_API_KEY", ""),
		SerperMaxCalls:    getIntEnv("SERPER_MAX_CALLS", 5),
		SerperTimeout:     getDurationEnv("SERPER_TIMEOUT", 12*time.Second),
		SerperMinInterval: getDurationEnv("SERPER_MIN_INTERVAL", time.Second),
		BrowserlessAPIKey: getEnv("BROWSERLESS_API_KEY", ""),
		BrowseMaxCalls:    getIntEnv("BROWSE_MAX_CALLS", 5),
		BrowseTimeout:     getDurationEnv("BROWSE_TIMEOUT", 30*time.Second),
		BrowseFormat:      getEnv("BROWSE_FORMAT", "text"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// CORS
		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", nil),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// LLMAPIKey returns the API key matching the configured provider.
func (c *Config) LLMAPIKey() string {
	if strings.EqualFold(c.LLMProvider, "anthropic") {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// PipelineConfig derives the orchestrator settings. Web lookups are offered
// to a stage only when its search toggle is on.
func (c *Config) PipelineConfig() pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.Timeout = c.PipelineTimeout
	pc.Model = c.LLMModel
	pc.Temperature = c.LLMTemperature
	pc.MaxTokens = c.LLMMaxTokens
	pc.MaxToolRounds = c.PipelineMaxToolRounds
	pc.RequestTimeout = belowDeadline(c.LLMRequestTimeout, c.PipelineTimeout)
	pc.Capabilities = map[string][]string{
		pipeline.StageSelectCities:         c.capabilities(c.EnableSearchCitySelection),
		pipeline.StageGatherLocalKnowledge: c.capabilities(c.EnableSearchLocalExpert),
		pipeline.StageBuildItinerary:       c.capabilities(c.EnableSearchConcierge),
	}
	return pc
}

func (c *Config) capabilities(search bool) []string {
	var caps []string
	if search {
		caps = append(caps, tools.NameSearch)
		if c.EnableBrowse {
			caps = append(caps, tools.NameBrowse)
		}
	}
	if c.EnableCalculator {
		caps = append(caps, tools.NameCalculator)
	}
	return caps
}

// ToolsConfig derives the toolbox settings. Per-call timeouts are kept
// below the pipeline deadline.
func (c *Config) ToolsConfig() tools.Config {
	budgets := tools.DefaultBudgets()
	budgets[tools.NameSearch] = tools.Budget{
		MaxCalls:    c.SerperMaxCalls,
		MinInterval: c.SerperMinInterval,
		Timeout:     c.SerperTimeout,
	}
	budgets[tools.NameBrowse] = tools.Budget{
		MaxCalls:    c.BrowseMaxCalls,
		MinInterval: budgets[tools.NameBrowse].MinInterval,
		Timeout:     c.BrowseTimeout,
	}
	for name, b := range budgets {
		b.Timeout = belowDeadline(b.Timeout, c.PipelineTimeout)
		budgets[name] = b
	}
	browse := budgets[tools.NameBrowse].Timeout

	return tools.Config{
		Search: tools.SearchConfig{APIKey: c.SerperAPIKey},
		Browser: tools.BrowserConfig{
			BrowserlessToken: c.BrowserlessAPIKey,
			Format:           c.BrowseFormat,
			RemoteTimeout:    browse / 2,
			DirectTimeout:    browse,
		},
		Budgets: budgets,
	}
}

// belowDeadline cuts a per-call timeout that would reach the run deadline to
// 90% of it. Zero means no per-call limit and is kept.
func belowDeadline(d, deadline time.Duration) time.Duration {
	if deadline <= 0 || d < deadline {
		return d
	}
	return deadline * 9 / 10
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getDurationEnv accepts Go durations ("90s") or bare seconds ("90").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultValue
}
