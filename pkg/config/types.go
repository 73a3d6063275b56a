package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent snipstash configuration stored as
// config.toml in the .snipstash/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	MCP       MCPConfig       `toml:"mcp"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Matcher   MatcherConfig   `toml:"matcher"`
	Events    EventsConfig    `toml:"events"`
}

// StorageConfig selects and configures the snippet store backend.
type StorageConfig struct {
	// Provider is one of "memory", "sqlite", "postgres".
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// MCPConfig holds MCP server settings. The MCP server runs on its own
// listener when enabled.
type MCPConfig struct {
	Enabled bool   `toml:"enabled,omitempty"`
	Listen  string `toml:"listen,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is one of "ollama", "openai", "hashed".
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// MatcherConfig selects how search candidates are ranked.
type MatcherConfig struct {
	// Provider is one of "builtin", "sqlitevec", "qdrant".
	Provider         string `toml:"provider,omitempty"`
	SQLitePath       string `toml:"sqlite_path,omitempty"`
	QdrantAddr       string `toml:"qdrant_addr,omitempty"`
	QdrantCollection string `toml:"qdrant_collection,omitempty"`
}

// EventsConfig holds lifecycle event publishing settings.
type EventsConfig struct {
	// Provider is one of "nop", "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"mcp.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.MCP.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for mcp.enabled: %w", err)
			}
			c.MCP.Enabled = b
			return nil
		},
	},
	"mcp.listen": {
		get: func(c *Config) string { return c.MCP.Listen },
		set: func(c *Config, v string) error { c.MCP.Listen = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"matcher.provider": {
		get: func(c *Config) string { return c.Matcher.Provider },
		set: func(c *Config, v string) error { c.Matcher.Provider = v; return nil },
	},
	"matcher.sqlite_path": {
		get: func(c *Config) string { return c.Matcher.SQLitePath },
		set: func(c *Config, v string) error { c.Matcher.SQLitePath = v; return nil },
	},
	"matcher.qdrant_addr": {
		get: func(c *Config) string { return c.Matcher.QdrantAddr },
		set: func(c *Config, v string) error { c.Matcher.QdrantAddr = v; return nil },
	},
	"matcher.qdrant_collection": {
		get: func(c *Config) string { return c.Matcher.QdrantCollection },
		set: func(c *Config, v string) error { c.Matcher.QdrantCollection = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = nil
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.Events.Brokers = append(c.Events.Brokers, b)
				}
			}
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
