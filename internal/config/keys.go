package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "agent.model", typ: kString, env: "RAGENT_AGENT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Agent.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.Model },
	},
	{
		key: "agent.base_url", typ: kString, env: "RAGENT_AGENT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Agent.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.BaseURL },
	},
	{
		key: "agent.api_key", typ: kString, env: "RAGENT_AGENT_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Agent.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.APIKey },
	},
	{
		key: "agent.system_prompt", typ: kString, env: "RAGENT_AGENT_SYSTEM_PROMPT",
		apply:   func(cfg *Config, v any) { cfg.Agent.SystemPrompt = v.(string) },
		extract: func(cfg Config) any { return cfg.Agent.SystemPrompt },
	},
	{
		key: "agent.temperature", typ: kFloat, env: "RAGENT_AGENT_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Agent.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Agent.Temperature },
	},
	{
		key: "agent.top_p", typ: kFloat, env: "RAGENT_AGENT_TOP_P",
		apply:   func(cfg *Config, v any) { cfg.Agent.TopP = v.(float64) },
		extract: func(cfg Config) any { return cfg.Agent.TopP },
	},
	{
		key: "agent.max_iterations", typ: kInt, env: "RAGENT_AGENT_MAX_ITERATIONS",
		apply:   func(cfg *Config, v any) { cfg.Agent.MaxIterations = v.(int) },
		extract: func(cfg Config) any { return cfg.Agent.MaxIterations },
	},
	{
		key: "server.port", typ: kInt, env: "RAGENT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "RAGENT_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "storage.data_dir", typ: kString, env: "RAGENT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "RAGENT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "tools.fetch_rate", typ: kInt, env: "RAGENT_TOOLS_FETCH_RATE",
		apply:   func(cfg *Config, v any) { cfg.Tools.FetchRate = v.(int) },
		extract: func(cfg Config) any { return cfg.Tools.FetchRate },
	},
	{
		key: "tools.fetch_cache_size", typ: kInt, env: "RAGENT_TOOLS_FETCH_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Tools.FetchCacheSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Tools.FetchCacheSize },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetFloat(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("ignoring env override", "var", s.env, "value", raw, "error", err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				slog.Warn("ignoring env override", "var", s.env, "value", raw, "error", err)
			}
		}
	}
}
