// cmd/config.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// FileConfig is the structure of ~/.seqcipher/config.yaml.
// Every key is optional.
type FileConfig struct {
	Passphrase     string  `yaml:"passphrase,omitempty"`
	TransformDelay string  `yaml:"transform_delay,omitempty"` // e.g. "750ms"
	StatsDB        string  `yaml:"stats_db,omitempty"`
	NoLedger       bool    `yaml:"no_ledger,omitempty"`
	RedisURL       string  `yaml:"redis_url,omitempty"`
	RedisPassword  string  `yaml:"redis_password,omitempty"`
	RedisChannel   string  `yaml:"redis_channel,omitempty"`
	SyncInterval   string  `yaml:"sync_interval,omitempty"`
	AutoRate       float64 `yaml:"auto_rate,omitempty"`
	StatusPort     int     `yaml:"status_port,omitempty"`
}

func defaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// readConfigFile parses the config file at path. A missing file is only an
// error when the path was given explicitly.
func readConfigFile(path string, explicit bool) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("could not read config %s: %w", path, err)
	}

	var conf FileConfig
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return &conf, nil
}

// applyConfigFile fills settings from the config file. A value set by flag or
// by environment variable wins over the file.
func applyConfigFile(flags *pflag.FlagSet) error {
	path, explicit := cfgFile, cfgFile != ""
	if !explicit {
		path = defaultConfigPath()
	}

	conf, err := readConfigFile(path, explicit)
	if err != nil {
		return err
	}
	return conf.apply(flags)
}

func (c *FileConfig) apply(flags *pflag.FlagSet) error {
	// unset reports whether neither the flag nor its env var was given.
	unset := func(flag, env string) bool {
		if flags.Lookup(flag) == nil {
			return false
		}
		return !flags.Changed(flag) && (env == "" || os.Getenv(env) == "")
	}

	if c.Passphrase != "" && unset("passphrase", "SEQCIPHER_PASSPHRASE") {
		passphrase = c.Passphrase
	}
	if c.TransformDelay != "" && unset("delay", "SEQCIPHER_DELAY") {
		d, err := time.ParseDuration(c.TransformDelay)
		if err != nil {
			return fmt.Errorf("config: invalid transform_delay %q: %w", c.TransformDelay, err)
		}
		transformDelay = d
	}
	if c.StatsDB != "" && unset("stats-db", "SEQCIPHER_STATS_DB") {
		statsDB = c.StatsDB
	}
	if c.NoLedger && unset("no-ledger", "") {
		noLedger = true
	}
	if c.RedisURL != "" && unset("redis-url", "SEQCIPHER_REDIS_URL") {
		redisURL = c.RedisURL
	}
	if c.RedisPassword != "" && unset("redis-password", "SEQCIPHER_REDIS_PASSWORD") {
		redisPassword = c.RedisPassword
	}
	if c.RedisChannel != "" && unset("redis-channel", "SEQCIPHER_REDIS_CHANNEL") {
		redisChannel = c.RedisChannel
	}
	if c.SyncInterval != "" && unset("sync-interval", "SEQCIPHER_SYNC_INTERVAL") {
		d, err := time.ParseDuration(c.SyncInterval)
		if err != nil {
			return fmt.Errorf("config: invalid sync_interval %q: %w", c.SyncInterval, err)
		}
		syncInterval = d
	}
	if c.AutoRate > 0 && unset("auto-rate", "SEQCIPHER_AUTO_RATE") {
		autoRate = c.AutoRate
	}
	if c.StatusPort > 0 && unset("status-port", "") {
		statusPort = c.StatusPort
	}
	return nil
}

// ledgerPath returns the completion ledger path, or "" when the ledger is off.
func ledgerPath() string {
	if noLedger {
		return ""
	}
	if statsDB != "" {
		return statsDB
	}
	return filepath.Join(configDir(), "completions.db")
}
