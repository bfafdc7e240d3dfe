// cmd/root.go
/*
Copyright © 2025 AceTeam <dev@aceteam.ai>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration is getEnvOrDefault for durations. Unparseable values are ignored.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

// getEnvFloat is getEnvOrDefault for floats. Unparseable values are ignored.
func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

var (
	cfgFile        string
	debugMode      bool
	passphrase     string
	transformDelay time.Duration
	statsDB        string
	noLedger       bool
	redisURL       string
	redisPassword  string
	redisChannel   string
	syncInterval   time.Duration
	statusPort     int
)

// debugLogFile is the file handle for debug logging
var debugLogFile *os.File
var debugLogMu sync.Mutex
var debugLogInitOnce sync.Once

// configDir returns ~/.seqcipher, or the working directory when there is no home.
func configDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".seqcipher"
	}
	return filepath.Join(homeDir, ".seqcipher")
}

// initDebugLogFile initializes the debug log file
func initDebugLogFile() {
	logDir := filepath.Join(configDir(), "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return
	}

	logPath := filepath.Join(logDir, "debug.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}

	debugLogFile = f

	// Write session header
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(debugLogFile, "\n=== Debug session started: %s ===\n", timestamp)
}

// Debug writes a message to the debug log if debug mode is enabled.
// It only echoes to the console when the TUI is not running.
func Debug(format string, args ...interface{}) {
	if !debugMode {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)

	if !tuiActive.Load() {
		fmt.Printf("[DEBUG] %s\n", msg)
	}

	debugLogMu.Lock()
	debugLogInitOnce.Do(initDebugLogFile)
	if debugLogFile != nil {
		fmt.Fprintf(debugLogFile, "[%s] %s\n", timestamp, msg)
	}
	debugLogMu.Unlock()
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "seqcipher",
	Short: "Encipher messages one at a time without ever blocking the screen",
	Long: `seqcipher pushes messages into an unbounded queue that a single background
worker drains in order, enciphering each one and reporting how long it took
from push to completion.

Run without a subcommand to open the interactive feed.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyConfigFile(cmd.Flags()); err != nil {
			return err
		}
		if debugMode {
			// Log the full command that was run
			fullCmd := "seqcipher"
			if cmd.Name() != "seqcipher" {
				fullCmd += " " + cmd.Name()
			}
			// Add flags that were set
			cmd.Flags().Visit(func(f *pflag.Flag) {
				if f.Name == "debug" || f.Name == "passphrase" || f.Name == "redis-password" {
					return
				}
				if f.Value.Type() == "bool" {
					fullCmd += " --" + f.Name
				} else {
					fullCmd += " --" + f.Name + "=" + f.Value.String()
				}
			})
			if len(args) > 0 {
				fullCmd += " " + strings.Join(args, " ")
			}
			Debug("command: %s", fullCmd)
		}
		return nil
	},
	RunE: runFeed,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seqcipher/config.yaml)")
	pf.BoolVar(&debugMode, "debug", false, "Enable debug output (also written to ~/.seqcipher/logs/debug.log)")
	pf.StringVar(&passphrase, "passphrase", getEnvOrDefault("SEQCIPHER_PASSPHRASE", ""), "Passphrase the cipher key is derived from")
	pf.DurationVar(&transformDelay, "delay", getEnvDuration("SEQCIPHER_DELAY", 500*time.Millisecond), "Artificial delay added to every transform")
	pf.StringVar(&statsDB, "stats-db", getEnvOrDefault("SEQCIPHER_STATS_DB", ""), "Completion ledger path (default is $HOME/.seqcipher/completions.db)")
	pf.BoolVar(&noLedger, "no-ledger", false, "Do not record completions")
	pf.StringVar(&redisURL, "redis-url", getEnvOrDefault("SEQCIPHER_REDIS_URL", ""), "Mirror completions to this Redis (e.g. redis://localhost:6379)")
	pf.StringVar(&redisPassword, "redis-password", getEnvOrDefault("SEQCIPHER_REDIS_PASSWORD", ""), "Redis password, if not in the URL")
	pf.StringVar(&redisChannel, "redis-channel", getEnvOrDefault("SEQCIPHER_REDIS_CHANNEL", ""), "Pub/Sub channel for mirrored completions")
	pf.DurationVar(&syncInterval, "sync-interval", getEnvDuration("SEQCIPHER_SYNC_INTERVAL", 5*time.Second), "How often the ledger is mirrored to Redis")

	pf.IntVar(&statusPort, "status-port", 0, "Serve pipeline status on localhost:PORT (0 disables)")

	addFeedFlags(rootCmd)
}
