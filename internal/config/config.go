package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Gateway providers.
const (
	ProviderOpenAI  = "openai"
	ProviderBackend = "backend"
)

// MCP server transport types.
const (
	ClientTypeSSE            = "sse"
	ClientTypeStreamableHTTP = "streamable_http"
	ClientTypeStdio          = "stdio"
)

// Config holds the application configuration
type Config struct {
	LLM        LLMConfig
	Gateway    GatewayConfig
	Store      StoreConfig
	Server     ServerConfig
	Log        LogConfig
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// GatewayConfig selects and tunes the assistant gateway.
type GatewayConfig struct {
	Provider    string        `mapstructure:"provider"`
	BackendURL  string        `mapstructure:"backend_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// StoreConfig locates the local store.
type StoreConfig struct {
	Path          string `mapstructure:"path"`
	MaxValueBytes int    `mapstructure:"max_value_bytes"`
	SessionCap    int    `mapstructure:"session_cap"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MCPServerConfig describes one MCP tool server the assistant may call.
type MCPServerConfig struct {
	Name    string            `mapstructure:"name"`
	Type    string            `mapstructure:"type"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
}

// DefaultStorePath is $HOME/.conner/conner.db, or ./conner.db without a home.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "conner.db"
	}
	return filepath.Join(home, ".conner", "conner.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("gateway.provider", ProviderOpenAI)
	v.SetDefault("gateway.timeout", 60*time.Second)
	v.SetDefault("gateway.max_attempts", 3)
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.max_value_bytes", 5<<20)
	v.SetDefault("store.session_cap", 50)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
}

// Load loads the configuration from CONFIG_PATH, or config.yaml in the
// working directory when unset. A missing config.yaml leaves the defaults
// in place. CONNER_* environment variables override file values.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("conner")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
