package config

import (
	"strings"

	"github.com/kalambet/ragent/internal/agent"
)

// Keychain service and account under which the model API key is stored.
const (
	keychainService = "ragent"
	keychainAccount = "api_key"
)

type Config struct {
	Agent   AgentConfig
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Tools   ToolsConfig
}

type AgentConfig struct {
	Model         string
	BaseURL       string
	APIKey        string
	SystemPrompt  string
	Temperature   float64
	TopP          float64
	MaxIterations int
}

type ServerConfig struct {
	Port int
	// Token, when set, is required as a bearer token on every API request.
	Token string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type ToolsConfig struct {
	// FetchRate is the number of HTTP fetches allowed per minute.
	FetchRate      int
	FetchCacheSize int
}

func defaults() Config {
	return Config{
		Agent: AgentConfig{
			BaseURL:       agent.DefaultBaseURL,
			SystemPrompt:  agent.DefaultSystemPrompt,
			Temperature:   float64(agent.DefaultTemperature),
			TopP:          float64(agent.DefaultTopP),
			MaxIterations: agent.DefaultMaxIterations,
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Tools: ToolsConfig{
			FetchRate:      30,
			FetchCacheSize: 64,
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.ragent.app) and the API
// key falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/ragent/config.json
// and the API key falls back to $XDG_DATA_HOME/ragent/secrets.json.
//
// Environment variables (RAGENT_*) override backend values on all platforms.
// Without a configured API key the local default is used.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Agent.APIKey == "" {
		if key, err := kc.Get(keychainService, keychainAccount); err == nil && key != "" {
			cfg.Agent.APIKey = key
		}
	}
	if cfg.Agent.APIKey == "" {
		cfg.Agent.APIKey = agent.DefaultAPIKey
	}
	if cfg.Server.Token == "" {
		if token, err := kc.Get(keychainService, secretAccount("server.token")); err == nil {
			cfg.Server.Token = token
		}
	}

	return cfg, nil
}

// NewAgentBuilder returns an agent builder configured from cfg.Agent.
func (c Config) NewAgentBuilder() *agent.Builder {
	return agent.NewBuilder().
		Model(c.Agent.Model).
		BaseURL(c.Agent.BaseURL).
		APIKey(c.Agent.APIKey).
		SystemPrompt(c.Agent.SystemPrompt).
		Temperature(float32(c.Agent.Temperature)).
		TopP(float32(c.Agent.TopP)).
		MaxIterations(c.Agent.MaxIterations)
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
