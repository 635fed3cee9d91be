// Package config holds the tunable knobs of the frame-exchange engine.
// Values come from the environment; there is deliberately no flag or file
// front-end.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the engine configuration. Zero values are never used directly:
// Load fills every field with its default before consulting the
// environment.
type Config struct {
	// Multi-user scheduling.
	EnableUlOfdma   bool
	EnableBsrp      bool
	ForceDlMu       bool
	UseCentral26    bool
	MaxDlMuStations int
	MaxCredit       float64 // seconds of airtime credit a station may bank
	MinUlFrameBytes int
	UlMcs           uint8

	// Frame exchange.
	AdaptiveOverride bool
	RtsThreshold     int
	CwMin            int
	CwMax            int
}

// Load populates the configuration from HEMAC_* environment variables.
func Load() *Config {
	return &Config{
		EnableUlOfdma:    getEnvBool("HEMAC_UL_OFDMA", true),
		EnableBsrp:       getEnvBool("HEMAC_BSRP", true),
		ForceDlMu:        getEnvBool("HEMAC_FORCE_DL_MU", false),
		UseCentral26:     getEnvBool("HEMAC_CENTRAL_26", true),
		MaxDlMuStations:  getEnvInt("HEMAC_MAX_DL_MU_STATIONS", 8),
		MaxCredit:        getEnvFloat("HEMAC_MAX_CREDIT_MS", 8000) / 1000,
		MinUlFrameBytes:  getEnvInt("HEMAC_MIN_UL_FRAME_BYTES", 500),
		UlMcs:            uint8(getEnvInt("HEMAC_UL_MCS", 6)),
		AdaptiveOverride: getEnvBool("HEMAC_ADAPTIVE_OVERRIDE", false),
		RtsThreshold:     getEnvInt("HEMAC_RTS_THRESHOLD", 65535),
		CwMin:            getEnvInt("HEMAC_CW_MIN", 15),
		CwMax:            getEnvInt("HEMAC_CW_MAX", 1023),
	}
}

// MaxCreditDuration is the credit cap expressed as airtime.
func (c *Config) MaxCreditDuration() time.Duration {
	return time.Duration(c.MaxCredit * float64(time.Second))
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
