// Package config provides configuration management for cellstore.
//
// The config file declares the server address, the data directory that
// holds one database file per tenant, and the tables each tenant instance
// registers at startup.
//
// Config file locations (priority order):
//  1. $CELLSTORE_CONFIG
//  2. ./cellstore.yaml
//  3. ~/.config/cellstore/config.yaml
//  4. /etc/cellstore/config.yaml
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Version int    `yaml:"version"`
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`

	// Tenants known at startup; instances for other tenants are still
	// created lazily on first request.
	Tenants []string `yaml:"tenants,omitempty"`

	// Tables registered on every tenant instance when it starts.
	Tables []TableSpec `yaml:"tables,omitempty"`
}

// TableSpec declares one table to register at instance startup.
type TableSpec struct {
	Name   string      `yaml:"name"`
	Scope  string      `yaml:"scope"`
	Fields []FieldSpec `yaml:"fields"`
}

// FieldSpec declares one schema field.
type FieldSpec struct {
	Name     string      `yaml:"name"`
	Type     string      `yaml:"type"`
	Required bool        `yaml:"required,omitempty"`
	Default  interface{} `yaml:"default,omitempty"`
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Addr:    ":8080",
		DataDir: "./data",
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	for i := range c.Tables {
		if c.Tables[i].Scope == "" {
			c.Tables[i].Scope = "self"
		}
	}
}

// validate rejects table declarations the storage layer would refuse
func (c *Config) validate() error {
	for _, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("table with empty name in config")
		}
		switch t.Scope {
		case "self", "group", "unscoped":
		default:
			return fmt.Errorf("table %q: unknown scope %q", t.Name, t.Scope)
		}
		for _, f := range t.Fields {
			if f.Name == "" {
				return fmt.Errorf("table %q: field with empty name", t.Name)
			}
			switch f.Type {
			case "string", "number", "boolean", "object", "array", "any":
			default:
				return fmt.Errorf("table %q: field %q has unknown type %q", t.Name, f.Name, f.Type)
			}
		}
	}
	return nil
}
