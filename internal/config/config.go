// ABOUTME: Player configuration from command-line flags and environment
// ABOUTME: Resolves each setting as flag, then SOITTOKONE_* variable, then default
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/soittokone/soittokone-go/pkg/audio/output"
)

// Config holds all player settings
type Config struct {
	// Output is the audio backend name
	Output string
	// BufferMs is the device buffer length in milliseconds
	BufferMs int
	// SampleRate resamples decoded audio to a fixed rate, 0 keeps the file's rate
	SampleRate int
	// LogFile receives log output
	LogFile string
	// NoTUI selects the line-based shell instead of the full-screen UI
	NoTUI bool
	// StopAtMarkers halts playback at every marker
	StopAtMarkers bool
	// HistoryDB is the recent-projects database path, empty when disabled
	HistoryDB string
	// Open is an optional project or audio file to open at startup
	Open string
}

// Load parses args (without the program name) into a Config
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("soittokone", flag.ContinueOnError)

	outputName := fs.String("output", "", "Audio backend: "+strings.Join(output.Backends(), ", ")+" (default: malgo)")
	bufferMs := fs.String("buffer-ms", "", "Device buffer size in milliseconds (default: 50)")
	sampleRate := fs.String("sample-rate", "", "Resample audio to this rate in Hz, 0 keeps the file's rate (default: 0)")
	logFile := fs.String("log-file", "", "Log file path (default: soittokone.log)")
	noTUI := fs.String("no-tui", "", "Use the line-based shell instead of the TUI (true/false)")
	stopAtMarkers := fs.String("stop-at-markers", "", "Stop playback at each marker (true/false)")
	historyDB := fs.String("history-db", "", "Recent projects database (default: ~/.soittokone/history.db)")
	noHistory := fs.String("no-history", "", "Disable the recent projects database (true/false)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Output:  strings.ToLower(getConfigValue(*outputName, "SOITTOKONE_OUTPUT", "malgo")),
		LogFile: getConfigValue(*logFile, "SOITTOKONE_LOG_FILE", "soittokone.log"),
		Open:    fs.Arg(0),
	}

	var err error
	if cfg.BufferMs, err = strconv.Atoi(getConfigValue(*bufferMs, "SOITTOKONE_BUFFER_MS", "50")); err != nil {
		return nil, fmt.Errorf("invalid buffer-ms: %w", err)
	}
	if cfg.SampleRate, err = strconv.Atoi(getConfigValue(*sampleRate, "SOITTOKONE_SAMPLE_RATE", "0")); err != nil {
		return nil, fmt.Errorf("invalid sample-rate: %w", err)
	}
	if cfg.NoTUI, err = parseBool("no-tui", getConfigValue(*noTUI, "SOITTOKONE_NO_TUI", "false")); err != nil {
		return nil, err
	}
	if cfg.StopAtMarkers, err = parseBool("stop-at-markers", getConfigValue(*stopAtMarkers, "SOITTOKONE_STOP_AT_MARKERS", "false")); err != nil {
		return nil, err
	}
	disableHistory, err := parseBool("no-history", getConfigValue(*noHistory, "SOITTOKONE_NO_HISTORY", "false"))
	if err != nil {
		return nil, err
	}
	if !disableHistory {
		cfg.HistoryDB = getConfigValue(*historyDB, "SOITTOKONE_HISTORY_DB", defaultHistoryDB())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings for consistency
func (c *Config) Validate() error {
	if !slices.Contains(output.Backends(), c.Output) {
		return fmt.Errorf("unknown output %q (available: %s)", c.Output, strings.Join(output.Backends(), ", "))
	}
	if c.BufferMs <= 0 {
		return fmt.Errorf("buffer-ms must be positive, got %d", c.BufferMs)
	}
	if c.SampleRate < 0 || c.SampleRate > 384000 {
		return fmt.Errorf("sample-rate must be between 0 and 384000, got %d", c.SampleRate)
	}
	if c.LogFile == "" {
		return fmt.Errorf("log-file must not be empty")
	}
	return nil
}

// getConfigValue returns the flag value, else the environment value, else the default
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

func parseBool(name, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return b, nil
}

func defaultHistoryDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".soittokone", "history.db")
	}
	return filepath.Join(home, ".soittokone", "history.db")
}
