package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tripcrew/trip-planner/internal/pipeline"
	"github.com/tripcrew/trip-planner/internal/tools"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "PIPELINE_TIMEOUT", "SERPER_MAX_CALLS", "ENABLE_SEARCH_CONCIERGE", "LLM_TEMPERATURE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, 180*time.Second, cfg.PipelineTimeout)
	assert.Equal(t, 5, cfg.SerperMaxCalls)
	assert.Equal(t, 12*time.Second, cfg.SerperTimeout)
	assert.Equal(t, time.Second, cfg.SerperMinInterval)
	assert.True(t, cfg.EnableSearchCitySelection)
	assert.True(t, cfg.EnableSearchLocalExpert)
	assert.False(t, cfg.EnableSearchConcierge)
	assert.InDelta(t, 0.3, cfg.LLMTemperature, 1e-9)
}

func TestLoadOverrides(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		value  string
		assert func(t *testing.T, c *Config)
	}{
		{
			name:  "duration string",
			key:   "PIPELINE_TIMEOUT",
			value: "90s",
			assert: func(t *testing.T, c *Config) {
				assert.Equal(t, 90*time.Second, c.PipelineTimeout)
			},
		},
		{
			name:  "duration bare seconds",
			key:   "SERPER_MIN_INTERVAL",
			value: "1.5",
			assert: func(t *testing.T, c *Config) {
				assert.Equal(t, 1500*time.Millisecond, c.SerperMinInterval)
			},
		},
		{
			name:  "bool toggle",
			key:   "ENABLE_SEARCH_CONCIERGE",
			value: "true",
			assert: func(t *testing.T, c *Config) {
				assert.True(t, c.EnableSearchConcierge)
			},
		},
		{
			name:  "malformed int keeps default",
			key:   "SERPER_MAX_CALLS",
			value: "lots",
			assert: func(t *testing.T, c *Config) {
				assert.Equal(t, 5, c.SerperMaxCalls)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			tt.assert(t, Load())
		})
	}
}

func TestLLMAPIKey(t *testing.T) {
	cfg := &Config{LLMProvider: "anthropic", AnthropicAPIKey: "a", OpenAIAPIKey: "o"}
	assert.Equal(t, "a", cfg.LLMAPIKey())

	cfg.LLMProvider = "openai"
	assert.Equal(t, "o", cfg.LLMAPIKey())
}

func TestPipelineConfig(t *testing.T) {
	cfg := &Config{
		PipelineTimeout:           90 * time.Second,
		PipelineMaxToolRounds:     4,
		LLMModel:                  "gpt-4o",
		LLMTemperature:            0.5,
		LLMMaxTokens:              800,
		EnableSearchCitySelection: true,
		EnableSearchLocalExpert:   false,
		EnableSearchConcierge:     false,
		EnableBrowse:              true,
		EnableCalculator:          true,
	}

	pc := cfg.PipelineConfig()

	assert.Equal(t, 90*time.Second, pc.Timeout)
	assert.Equal(t, 4, pc.MaxToolRounds)
	assert.Equal(t, "gpt-4o", pc.Model)
	assert.Equal(t, 800, pc.MaxTokens)
	assert.Equal(t, []string{tools.NameSearch, tools.NameBrowse, tools.NameCalculator}, pc.Capabilities[pipeline.StageSelectCities])
	assert.Equal(t, []string{tools.NameCalculator}, pc.Capabilities[pipeline.StageGatherLocalKnowledge])
	assert.Equal(t, []string{tools.NameCalculator}, pc.Capabilities[pipeline.StageBuildItinerary])

	cfg.EnableBrowse = false
	cfg.EnableCalculator = false
	pc = cfg.PipelineConfig()
	assert.Equal(t, []string{tools.NameSearch}, pc.Capabilities[pipeline.StageSelectCities])
	assert.Empty(t, pc.Capabilities[pipeline.StageBuildItinerary])
}

func TestToolsConfig(t *testing.T) {
	cfg := &Config{
		SerperAPIKey:      "key",
		SerperMaxCalls:    3,
		SerperTimeout:     5 * time.Second,
		SerperMinInterval: 2 * time.Second,
		BrowserlessAPIKey: "token",
		BrowseMaxCalls:    2,
		BrowseTimeout:     10 * time.Second,
		BrowseFormat:      "markdown",
	}

	tc := cfg.ToolsConfig()

	assert.Equal(t, "key", tc.Search.APIKey)
	assert.Equal(t, "token", tc.Browser.BrowserlessToken)
	assert.Equal(t, "markdown", tc.Browser.Format)
	assert.Equal(t, tools.Budget{MaxCalls: 3, MinInterval: 2 * time.Second, Timeout: 5 * time.Second}, tc.Budgets[tools.NameSearch])
	assert.Equal(t, 2, tc.Budgets[tools.NameBrowse].MaxCalls)
	assert.Equal(t, 10*time.Second, tc.Budgets[tools.NameBrowse].Timeout)
	assert.Equal(t, 5*time.Second, tc.Browser.RemoteTimeout)
	assert.Equal(t, 10*time.Second, tc.Browser.DirectTimeout)
	assert.Contains(t, tc.Budgets, tools.NameCalculator)
}

func TestPerCallTimeoutsStayBelowDeadline(t *testing.T) {
	cfg := &Config{
		PipelineTimeout:   60 * time.Second,
		LLMRequestTimeout: 120 * time.Second,
		SerperTimeout:     12 * time.Second,
		BrowseTimeout:     90 * time.Second,
	}

	assert.Equal(t, 54*time.Second, cfg.PipelineConfig().RequestTimeout)

	tc := cfg.ToolsConfig()
	assert.Equal(t, 12*time.Second, tc.Budgets[tools.NameSearch].Timeout)
	assert.Equal(t, 54*time.Second, tc.Budgets[tools.NameBrowse].Timeout)
	assert.Equal(t, 54*time.Second, tc.Browser.DirectTimeout)
	assert.Equal(t, 27*time.Second, tc.Browser.RemoteTimeout)
	for name, b := range tc.Budgets {
		assert.Less(t, b.Timeout, cfg.PipelineTimeout, name)
	}

	cfg.LLMRequestTimeout = 0
	assert.Zero(t, cfg.PipelineConfig().RequestTimeout)
}

func TestCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, Load().CORSAllowedOrigins)
}
