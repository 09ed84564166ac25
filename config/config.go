package config

import (
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Alias1177/signalrank/models"
)

// StructuralWeights combine the independent alignment signals into the
// structural reliability score. They must sum to 1.
type StructuralWeights struct {
	Momentum    float64 `yaml:"momentum"`
	Technical   float64 `yaml:"technical"`
	Fundamental float64 `yaml:"fundamental"`
	Consistency float64 `yaml:"consistency"`
}

// TimeframeWeights combine per-timeframe technical bias, daily weighted most.
type TimeframeWeights struct {
	Daily  float64 `yaml:"daily"`
	Hourly float64 `yaml:"hourly"`
	Weekly float64 `yaml:"weekly"`
}

// EntryWeights blend the entry-quality sub-scores. Target-dependent weights
// are renormalized away when the prediction has no move_pct.
type EntryWeights struct {
	PTouch          float64 `yaml:"p_touch"`
	PReachTarget    float64 `yaml:"p_reach_target"`
	EntryPrecision  float64 `yaml:"entry_precision"`
	TargetPrecision float64 `yaml:"target_precision"`
	MoveRealism     float64 `yaml:"move_realism"`
	Liquidity       float64 `yaml:"liquidity"`
}

// Gates are the hard pass/fail preconditions applied before selection.
type Gates struct {
	MinUserConfidence float64  `yaml:"min_user_confidence"`
	MinStructural     float64  `yaml:"min_structural"`
	MinFinalScore     *float64 `yaml:"min_final_score"` // nil disables the gate
	TopPct            float64  `yaml:"top_pct"`
}

// Bootstrap controls the resampling-based reachability estimation.
type Bootstrap struct {
	Paths         int `yaml:"paths"`
	LookbackHours int `yaml:"lookback_hours"`
}

// Config holds all application configuration.
type Config struct {
	MarketAPIKey    string
	MarketAPIURL    string
	FundamentalsURL string
	DatabaseURL     string // optional, empty disables the postgres sink
	PredictionsFile string
	OutputDir       string
	LogLevel        string
	RequestTimeout  time.Duration
	Workers         int
	LookbackDays    int

	Structural StructuralWeights `yaml:"structural"`
	Timeframes TimeframeWeights  `yaml:"timeframes"`
	Entry      EntryWeights      `yaml:"entry"`
	Gates      Gates             `yaml:"gates"`
	Bootstrap  Bootstrap         `yaml:"bootstrap"`
}

// Default returns the fixed production weight set.
func Default() *Config {
	return &Config{
		MarketAPIURL:    "https://api.twelvedata.com",
		PredictionsFile: "predictions.json",
		OutputDir:       "outputs",
		LogLevel:        "info",
		RequestTimeout:  30 * time.Second,
		Workers:         8,
		LookbackDays:    90,
		Structural: StructuralWeights{
			Momentum:    0.45,
			Technical:   0.35,
			Fundamental: 0.15,
			Consistency: 0.05,
		},
		Timeframes: TimeframeWeights{
			Daily:  0.60,
			Hourly: 0.25,
			Weekly: 0.15,
		},
		Entry: EntryWeights{
			PTouch:          0.35,
			PReachTarget:    0.30,
			EntryPrecision:  0.12,
			TargetPrecision: 0.06,
			MoveRealism:     0.12,
			Liquidity:       0.05,
		},
		Gates: Gates{
			MinUserConfidence: 0.70,
			MinStructural:     0.55,
			TopPct:            0.30,
		},
		Bootstrap: Bootstrap{
			Paths:         2000,
			LookbackHours: 240,
		},
	}
}

// Load initializes configuration from environment variables and, when
// WEIGHTS_FILE points at a YAML file, overlays the weight/gate sections.
func Load() (*Config, error) {
	cfg := Default()
	cfg.MarketAPIKey = os.Getenv("MARKET_API_KEY")
	cfg.MarketAPIURL = getEnvWithDefault("MARKET_API_URL", cfg.MarketAPIURL)
	cfg.FundamentalsURL = os.Getenv("FUNDAMENTALS_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.PredictionsFile = getEnvWithDefault("PREDICTIONS_FILE", cfg.PredictionsFile)
	cfg.OutputDir = getEnvWithDefault("OUTPUT_DIR", cfg.OutputDir)
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.RequestTimeout = time.Duration(getEnvIntWithDefault("REQUEST_TIMEOUT", 30)) * time.Second
	cfg.Workers = getEnvIntWithDefault("WORKERS", cfg.Workers)
	cfg.LookbackDays = getEnvIntWithDefault("LOOKBACK_DAYS", cfg.LookbackDays)

	if path := os.Getenv("WEIGHTS_FILE"); path != "" {
		if err := cfg.loadWeightsFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadWeightsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &models.ConfigError{Field: "weights_file", Reason: err.Error()}
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return &models.ConfigError{Field: "weights_file", Reason: err.Error()}
	}
	return nil
}

// Validate rejects weight and threshold configurations that would corrupt
// scoring. Any failure aborts the run before scoring starts.
func (c *Config) Validate() error {
	if err := checkWeightSum("structural", c.Structural.Momentum, c.Structural.Technical,
		c.Structural.Fundamental, c.Structural.Consistency); err != nil {
		return err
	}
	if err := checkWeightSum("timeframes", c.Timeframes.Daily, c.Timeframes.Hourly,
		c.Timeframes.Weekly); err != nil {
		return err
	}
	if err := checkWeightSum("entry", c.Entry.PTouch, c.Entry.PReachTarget,
		c.Entry.EntryPrecision, c.Entry.TargetPrecision, c.Entry.MoveRealism,
		c.Entry.Liquidity); err != nil {
		return err
	}
	if c.Gates.MinUserConfidence < 0 || c.Gates.MinUserConfidence > 1 {
		return &models.ConfigError{Field: "gates.min_user_confidence", Reason: "must be in [0,1]"}
	}
	if c.Gates.MinStructural < 0 || c.Gates.MinStructural > 1 {
		return &models.ConfigError{Field: "gates.min_structural", Reason: "must be in [0,1]"}
	}
	if c.Gates.MinFinalScore != nil && (*c.Gates.MinFinalScore < 0 || *c.Gates.MinFinalScore > 1) {
		return &models.ConfigError{Field: "gates.min_final_score", Reason: "must be in [0,1]"}
	}
	if c.Gates.TopPct <= 0 || c.Gates.TopPct > 1 {
		return &models.ConfigError{Field: "gates.top_pct", Reason: "must be in (0,1]"}
	}
	if c.Bootstrap.Paths < 100 {
		return &models.ConfigError{Field: "bootstrap.paths", Reason: "need at least 100 paths"}
	}
	if c.Bootstrap.LookbackHours < 50 {
		return &models.ConfigError{Field: "bootstrap.lookback_hours", Reason: "need at least 50 hours"}
	}
	if c.Workers < 1 {
		return &models.ConfigError{Field: "workers", Reason: "must be positive"}
	}
	return nil
}

func checkWeightSum(field string, weights ...float64) error {
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return &models.ConfigError{Field: field, Reason: "negative weight"}
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return &models.ConfigError{Field: field, Reason: "weights must sum to 1"}
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
