package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds the conversation store configuration. An empty URL
// means the store is not configured; conversation routes then degrade
// per-endpoint instead of failing at startup.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// LLMConfig holds the model provider configuration. Mock selects the
// deterministic fixture stream instead of the real provider call.
type LLMConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
	Mock         bool   `mapstructure:"mock"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Configured reports whether the chat relay can be served at all: either
// fixture mode is on or real provider credentials are present.
func (c LLMConfig) Configured() bool {
	return c.Mock || c.APIKey != ""
}

// Load reads configuration from config.yaml (or the file named by the
// CONFIG_PATH environment variable), with environment-variable overrides
// such as DATABASE_URL or LLM_API_KEY.
func Load() (*Config, error) {
	v := viper.New()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Keys without defaults need an explicit binding for Unmarshal to see
	// their environment values.
	for _, key := range []string{"database.url", "llm.api_key", "llm.base_url", "llm.system_prompt", "llm.mock"} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional when everything comes from the
		// environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
