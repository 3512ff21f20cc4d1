package config

import (
	"os"
	"strings"
	"time"
)

const (
	ConnRetryPeriod = 200 * time.Millisecond
)

const (
	LogLevelEnvKey          = `FROST_CONFIG_LOG_LEVEL`
	ShowTimestampEnvKey     = `FROST_CONFIG_SHOW_TIMESTAMP`
	RendezvousTimeoutEnvKey = `FROST_CONFIG_RDZV_TIMEOUT`
	StallPeriodEnvKey       = `FROST_CONFIG_STALL_PERIOD`
)

// ConfigEnvKeys are forwarded by frost-run to every worker.
var ConfigEnvKeys = []string{
	LogLevelEnvKey,
	ShowTimestampEnvKey,
	RendezvousTimeoutEnvKey,
	StallPeriodEnvKey,
}

var (
	LogLevel          = `INFO`
	ShowTimestamp     = false
	RendezvousTimeout = 5 * time.Minute
	// StallPeriod is how long a collective may block before a warning is logged.
	StallPeriod = 30 * time.Second
)

func init() {
	if val := os.Getenv(LogLevelEnvKey); len(val) > 0 {
		LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv(ShowTimestampEnvKey); len(val) > 0 {
		ShowTimestamp = isTrue(val)
	}
	if val := os.Getenv(RendezvousTimeoutEnvKey); len(val) > 0 {
		RendezvousTimeout = parseDuration(val, RendezvousTimeout)
	}
	if val := os.Getenv(StallPeriodEnvKey); len(val) > 0 {
		StallPeriod = parseDuration(val, StallPeriod)
	}
}

func isTrue(val string) bool {
	return val == "true" || val == "1"
}

// parseDuration returns def unless val is a positive duration.
func parseDuration(val string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
