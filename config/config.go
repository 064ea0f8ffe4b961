// Package config loads the store and alignment configuration with viper.
//
// Sources are merged in precedence order, lowest first:
//
//	/etc/stam/stam.toml      system
//	~/.stam/stam.toml        user
//	stam.toml                project, found by walking up from the working directory
//	STAM_* variables         environment, e.g. STAM_STORE_MILESTONE_INTERVAL=50
package config

import (
	"fmt"

	"github.com/teranos/stam/stam"
)

// Config is the file and environment view of the configuration.
type Config struct {
	Store     stam.Config          `mapstructure:"store" json:"store" yaml:"store" toml:"store"`
	Alignment stam.AlignmentConfig `mapstructure:"alignment" json:"alignment" yaml:"alignment" toml:"alignment"`
	Log       LogConfig            `mapstructure:"log" json:"log" yaml:"log" toml:"log"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	JSON bool `mapstructure:"json" json:"json" yaml:"json" toml:"json"`
	// Verbosity is the default -v count: 0 warn, 1 info, 2 and up debug
	Verbosity int `mapstructure:"verbosity" json:"verbosity" yaml:"verbosity" toml:"verbosity"`
}

// StoreConfig returns the immutable core configuration.
func (c *Config) StoreConfig() stam.Config { return c.Store }

// AlignmentConfig returns the transposition configuration.
func (c *Config) AlignmentConfig() stam.AlignmentConfig { return c.Alignment }

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Store: {MilestoneInterval: %d, Debug: %t}, Alignment: {Prefix: %q, Workers: %d}}",
		c.Store.MilestoneInterval, c.Store.Debug, c.Alignment.AnnotationIDPrefix, c.Alignment.Workers)
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// FileName is the name of system, user and project config files.
const FileName = "stam.toml"
