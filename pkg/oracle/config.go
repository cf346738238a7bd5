package oracle

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config contains every tunable that influences the derived features and the
// staking advice. It replaces the loose constants that were spread over the
// feature scripts (K factor, window sizes, default rest etc.)
type Config struct {
	// === STORAGE AND CACHE ===
	DBDriver  string        // "sqlite" or "postgres"
	DBDSN     string        // data source name for DBDriver
	RedisAddr string        // empty disables the snapshot cache
	CacheTTL  time.Duration // lifetime of cached snapshots (0 = no expiry)
	LogLevel  string        // debug, info, warn, error

	// === RATING ENGINE ===
	BaselineRating float64 // rating given to a team on its first appearance (default: 1500)
	KFactor        float64 // update step (default: 20)
	RatingScale    float64 // logistic divisor (default: 400)

	// === REST DAYS ===
	DefaultRestDays float64 // rest assigned to a team's first observed match (default: 7)

	// === ROLLING FORM ===
	FormWindow     int // trailing matches averaged (default: 5)
	MinFormHistory int // fewer prior matches than this leaves the mean undefined (default: 3)

	// Points awarded per result, used for the points form metric
	WinPoints  float64
	DrawPoints float64
	LossPoints float64

	// === SQUAD FEATURES ===
	SquadFeatures    bool       // join previous-season player averages onto every match
	SeasonStartMonth time.Month // first month of a season (default: August)

	// === STAKING ===
	KellyMultiplier    float64 // 1.0 full Kelly, 0.5 half Kelly
	ProbabilityEpsilon float64 // tolerance on probabilities summing to one
}

// DefaultConfig returns the canonical pipeline policy: K=20, window 5,
// minimum history 3, default rest 7 and full Kelly
func DefaultConfig() *Config {
	return &Config{
		DBDriver:  "sqlite",
		DBDSN:     "oracle.db",
		RedisAddr: "",
		CacheTTL:  24 * time.Hour,
		LogLevel:  "info",

		BaselineRating: 1500,
		KFactor:        20,
		RatingScale:    400,

		DefaultRestDays: 7,

		FormWindow:     5,
		MinFormHistory: 3,
		WinPoints:      3,
		DrawPoints:     1,
		LossPoints:     0,

		SquadFeatures:    false,
		SeasonStartMonth: time.August,

		KellyMultiplier:    1.0,
		ProbabilityEpsilon: 1e-6,
	}
}

// LoadConfigFromEnv overlays environment variables onto cfg
func LoadConfigFromEnv(cfg *Config) error {
	if v := os.Getenv("ORACLE_DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("ORACLE_DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("ORACLE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ELO_K_FACTOR"); v != "" {
		k, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: ELO_K_FACTOR %q: %v", ErrInvalidConfig, v, err)
		}
		cfg.KFactor = k
	}
	if v := os.Getenv("ORACLE_SQUAD_FEATURES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: ORACLE_SQUAD_FEATURES %q: %v", ErrInvalidConfig, v, err)
		}
		cfg.SquadFeatures = b
	}
	if v := os.Getenv("ORACLE_KELLY_MULTIPLIER"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: ORACLE_KELLY_MULTIPLIER %q: %v", ErrInvalidConfig, v, err)
		}
		cfg.KellyMultiplier = m
	}
	return nil
}

// ValidateConfig ensures all configuration values are within reasonable ranges
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if cfg.KFactor <= 0 {
		return fmt.Errorf("%w: KFactor must be positive, got: %f", ErrInvalidConfig, cfg.KFactor)
	}
	if cfg.RatingScale <= 0 {
		return fmt.Errorf("%w: RatingScale must be positive, got: %f", ErrInvalidConfig, cfg.RatingScale)
	}
	if cfg.DefaultRestDays < 0 {
		return fmt.Errorf("%w: DefaultRestDays must not be negative, got: %f", ErrInvalidConfig, cfg.DefaultRestDays)
	}
	if cfg.FormWindow < 1 {
		return fmt.Errorf("%w: FormWindow must be at least 1, got: %d", ErrInvalidConfig, cfg.FormWindow)
	}
	if cfg.MinFormHistory < 1 || cfg.MinFormHistory > cfg.FormWindow {
		return fmt.Errorf("%w: MinFormHistory must be between 1 and FormWindow (%d), got: %d", ErrInvalidConfig, cfg.FormWindow, cfg.MinFormHistory)
	}
	if cfg.KellyMultiplier <= 0 || cfg.KellyMultiplier > 1 {
		return fmt.Errorf("%w: KellyMultiplier must be in (0, 1], got: %f", ErrInvalidConfig, cfg.KellyMultiplier)
	}
	if cfg.SeasonStartMonth < time.January || cfg.SeasonStartMonth > time.December {
		return fmt.Errorf("%w: SeasonStartMonth must be a month, got: %d", ErrInvalidConfig, cfg.SeasonStartMonth)
	}
	if cfg.ProbabilityEpsilon <= 0 {
		return fmt.Errorf("%w: ProbabilityEpsilon must be positive, got: %g", ErrInvalidConfig, cfg.ProbabilityEpsilon)
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: DBDriver must be sqlite or postgres, got: %q", ErrInvalidConfig, cfg.DBDriver)
	}
	return nil
}
