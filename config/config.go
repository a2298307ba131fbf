// Package config loads a node's routing configuration from file, with
// environment variable overrides, using viper.
//
// Grounded on firestige-Otus/internal/config.Load: a root-key wrapper
// struct, SetConfigFile + ReadInConfig, an env key replacer mapping dotted
// keys to underscored env vars, defaults applied before Unmarshal, and a
// post-unmarshal Validate pass.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kabili207/overlay-router/core"
)

// NodeConfig is the on-disk/env-sourced configuration for one routing node.
type NodeConfig struct {
	SelfID   uint8  `mapstructure:"self_id"`
	SelfRole string `mapstructure:"self_role"` // "drone" | "client" | "server"

	DrainInterval time.Duration `mapstructure:"drain_interval"`
	FloodOnStart  bool          `mapstructure:"flood_on_start"`

	Log LogConfig `mapstructure:"log"`

	Neighbors []NeighborConfig `mapstructure:"neighbors"`
}

// LogConfig configures the node's structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // text | json
}

// NeighborConfig describes one statically configured neighbor link.
type NeighborConfig struct {
	ID        uint8  `mapstructure:"id"`
	Transport string `mapstructure:"transport"` // "mqtt" | "serial"

	// Transport == "mqtt"
	Broker      string `mapstructure:"broker"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	UseTLS      bool   `mapstructure:"use_tls"`
	TopicPrefix string `mapstructure:"topic_prefix"`

	// Transport == "serial"
	Port     string `mapstructure:"port"`
	BaudRate int    `mapstructure:"baud_rate"`
}

type configRoot struct {
	Node NodeConfig `mapstructure:"node"`
}

// Load reads a NodeConfig from path (YAML, TOML, or JSON, by extension),
// with environment variable overrides named "NODE_" plus the upper-cased
// full key with dots as underscores (e.g. NODE_NODE_SELF_ID for
// node.self_id).
func Load(path string) (*NodeConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	v.SetEnvPrefix("node")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg := root.Node

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.self_role", "drone")
	v.SetDefault("node.drain_interval", "10ms")
	v.SetDefault("node.flood_on_start", false)
	v.SetDefault("node.log.level", "info")
	v.SetDefault("node.log.format", "text")
}

// Validate checks the loaded configuration for internal consistency.
func (c NodeConfig) Validate() error {
	switch c.SelfRole {
	case "drone", "client", "server":
	default:
		return fmt.Errorf("node.self_role must be drone, client, or server, got %q", c.SelfRole)
	}
	seen := make(map[uint8]struct{}, len(c.Neighbors))
	for _, n := range c.Neighbors {
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("duplicate neighbor id %d", n.ID)
		}
		seen[n.ID] = struct{}{}
		switch n.Transport {
		case "mqtt", "serial":
		default:
			return fmt.Errorf("neighbor %d: transport must be mqtt or serial, got %q", n.ID, n.Transport)
		}
	}
	return nil
}

// Role parses SelfRole into a core.NodeRole.
func (c NodeConfig) Role() core.NodeRole {
	switch c.SelfRole {
	case "client":
		return core.RoleClient
	case "server":
		return core.RoleServer
	default:
		return core.RoleDrone
	}
}
