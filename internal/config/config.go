// Package config loads the bridge's runtime configuration from environment
// variables, applying sane defaults and returning descriptive errors for
// invalid overrides. Schema-validated YAML/JSON loading is out of scope;
// this struct is the in-scope ambient surface only.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wheellybridge/bridge/internal/bridgeerr"
)

const (
	// DefaultHost is the default vehicle hostname.
	DefaultHost = "127.0.0.1"
	// DefaultPort is the default vehicle TCP port.
	DefaultPort = "22"
	// DefaultConnectionTimeout bounds the TCP dial.
	DefaultConnectionTimeout = 3 * time.Second
	// DefaultRetryConnectionInterval paces reconnect attempts.
	DefaultRetryConnectionInterval = time.Second
	// DefaultReadTimeout bounds a single socket read.
	DefaultReadTimeout = 10 * time.Second
	// DefaultInterval is the internal tick cadence.
	DefaultInterval = 10 * time.Millisecond
	// DefaultReactionInterval is the inference cadence.
	DefaultReactionInterval = 300 * time.Millisecond
	// DefaultCommandInterval is the motion keep-alive cadence.
	DefaultCommandInterval = 600 * time.Millisecond
	// DefaultScanThrottle bounds scan command emission frequency.
	DefaultScanThrottle = 100 * time.Millisecond
	// DefaultNumDirectionValues is the move direction quantisation count.
	DefaultNumDirectionValues = 25
	// DefaultNumSpeedValues is the move speed quantisation count.
	DefaultNumSpeedValues = 9
	// DefaultNumSensorValues is the sensor direction quantisation count.
	DefaultNumSensorValues = 7
	// DefaultNumRadarSectors is the polar map sector count.
	DefaultNumRadarSectors = 25
	// DefaultMinRadarDistance is the minimum polar projection distance, metres.
	DefaultMinRadarDistance = 0.3
	// DefaultMaxRadarDistance is the maximum polar projection distance, metres.
	DefaultMaxRadarDistance = 3.0
	// DefaultGridSize is the scanner/grid map cell size, metres.
	DefaultGridSize = 0.2
	// DefaultMaxPPS is the calibration constant for maximum motor speed.
	DefaultMaxPPS = 60.0
	// DefaultMarkerHold bounds marker retention in the world model.
	DefaultMarkerHold = 30 * time.Second

	// DefaultLogLevel controls verbosity for bridge logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "bridge.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Config captures all runtime tunables for the control bridge.
type Config struct {
	Host                    string
	Port                    string
	ConnectionTimeout       time.Duration
	RetryConnectionInterval time.Duration
	ReadTimeout             time.Duration
	Interval                time.Duration
	ReactionInterval        time.Duration
	CommandInterval         time.Duration
	ScanThrottle            time.Duration

	NumDirectionValues int
	NumSpeedValues     int
	NumSensorValues    int

	NumRadarSectors  int
	MinRadarDistance float64
	MaxRadarDistance float64
	GridSize         float64
	MaxPPS           float64
	MarkerHold       time.Duration
	MarkerLabels     []string

	TelemetryAddr string

	Logging LoggingConfig
}

// Load reads the bridge configuration from environment variables, applying
// sane defaults and returning a single joined error describing every
// invalid override.
func Load() (*Config, error) {
	cfg := &Config{
		Host:                    getString("BRIDGE_HOST", DefaultHost),
		Port:                    getString("BRIDGE_PORT", DefaultPort),
		ConnectionTimeout:       DefaultConnectionTimeout,
		RetryConnectionInterval: DefaultRetryConnectionInterval,
		ReadTimeout:             DefaultReadTimeout,
		Interval:                DefaultInterval,
		ReactionInterval:        DefaultReactionInterval,
		CommandInterval:         DefaultCommandInterval,
		ScanThrottle:            DefaultScanThrottle,
		NumDirectionValues:      DefaultNumDirectionValues,
		NumSpeedValues:          DefaultNumSpeedValues,
		NumSensorValues:         DefaultNumSensorValues,
		NumRadarSectors:         DefaultNumRadarSectors,
		MinRadarDistance:        DefaultMinRadarDistance,
		MaxRadarDistance:        DefaultMaxRadarDistance,
		GridSize:                DefaultGridSize,
		MaxPPS:                  DefaultMaxPPS,
		MarkerHold:              DefaultMarkerHold,
		MarkerLabels:            parseList(os.Getenv("BRIDGE_MARKER_LABELS")),
		TelemetryAddr:           strings.TrimSpace(os.Getenv("BRIDGE_TELEMETRY_ADDR")),
		Logging: LoggingConfig{
			Level:      getString("BRIDGE_LOG_LEVEL", DefaultLogLevel),
			Path:       getString("BRIDGE_LOG_PATH", DefaultLogPath),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	cfg.ConnectionTimeout = durationOverride("BRIDGE_CONNECTION_TIMEOUT", cfg.ConnectionTimeout, &problems)
	cfg.RetryConnectionInterval = durationOverride("BRIDGE_RETRY_INTERVAL", cfg.RetryConnectionInterval, &problems)
	cfg.ReadTimeout = durationOverride("BRIDGE_READ_TIMEOUT", cfg.ReadTimeout, &problems)
	cfg.Interval = durationOverride("BRIDGE_INTERVAL", cfg.Interval, &problems)
	cfg.ReactionInterval = durationOverride("BRIDGE_REACTION_INTERVAL", cfg.ReactionInterval, &problems)
	cfg.CommandInterval = durationOverride("BRIDGE_COMMAND_INTERVAL", cfg.CommandInterval, &problems)
	cfg.ScanThrottle = durationOverride("BRIDGE_SCAN_THROTTLE", cfg.ScanThrottle, &problems)
	cfg.MarkerHold = durationOverride("BRIDGE_MARKER_HOLD", cfg.MarkerHold, &problems)

	cfg.NumDirectionValues = intOverride("BRIDGE_NUM_DIRECTIONS", cfg.NumDirectionValues, &problems)
	cfg.NumSpeedValues = intOverride("BRIDGE_NUM_SPEEDS", cfg.NumSpeedValues, &problems)
	cfg.NumSensorValues = intOverride("BRIDGE_NUM_SENSORS", cfg.NumSensorValues, &problems)
	cfg.NumRadarSectors = intOverride("BRIDGE_NUM_RADAR_SECTORS", cfg.NumRadarSectors, &problems)

	cfg.MinRadarDistance = floatOverride("BRIDGE_MIN_RADAR_DISTANCE", cfg.MinRadarDistance, &problems)
	cfg.MaxRadarDistance = floatOverride("BRIDGE_MAX_RADAR_DISTANCE", cfg.MaxRadarDistance, &problems)
	cfg.GridSize = floatOverride("BRIDGE_GRID_SIZE", cfg.GridSize, &problems)
	cfg.MaxPPS = floatOverride("BRIDGE_MAX_PPS", cfg.MaxPPS, &problems)

	if cfg.NumDirectionValues <= 1 {
		problems = append(problems, "BRIDGE_NUM_DIRECTIONS must be greater than 1")
	}
	if cfg.NumSpeedValues <= 1 {
		problems = append(problems, "BRIDGE_NUM_SPEEDS must be greater than 1")
	}
	if cfg.NumSensorValues <= 1 {
		problems = append(problems, "BRIDGE_NUM_SENSORS must be greater than 1")
	}
	if cfg.NumRadarSectors <= 0 {
		problems = append(problems, "BRIDGE_NUM_RADAR_SECTORS must be positive")
	}
	if cfg.MaxRadarDistance <= cfg.MinRadarDistance {
		problems = append(problems, "BRIDGE_MAX_RADAR_DISTANCE must exceed BRIDGE_MIN_RADAR_DISTANCE")
	}

	if len(problems) > 0 {
		return nil, bridgeerr.New(bridgeerr.KindConfig, "config.Load", errors.New(strings.Join(problems, "; ")))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}

func durationOverride(key string, fallback time.Duration, problems *[]string) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*problems = append(*problems, fmt.Sprintf("%s must be a positive duration, got %q", key, raw))
		return fallback
	}
	return d
}

func intOverride(key string, fallback int, problems *[]string) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s must be an integer, got %q", key, raw))
		return fallback
	}
	return value
}

func floatOverride(key string, fallback float64, problems *[]string) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s must be a number, got %q", key, raw))
		return fallback
	}
	return value
}
