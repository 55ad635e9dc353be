package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. The engine never reads
// global state: every computation receives its EngineConfig explicitly.
type Config struct {
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// EngineConfig groups the per-invocation parameters of the five core
// components.
type EngineConfig struct {
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Cost      CostConfig      `yaml:"cost" mapstructure:"cost"`
	Savings   SavingsConfig   `yaml:"savings" mapstructure:"savings"`
	ROI       ROIConfig       `yaml:"roi" mapstructure:"roi"`
	Portfolio PortfolioConfig `yaml:"portfolio" mapstructure:"portfolio"`

	// Concurrency bounds parallel member computations in population runs.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ScoringConfig parameterizes the rule-based risk scorer.
type ScoringConfig struct {
	ModelVersion string `yaml:"model_version" mapstructure:"model_version"`

	// Sub-score weights; must sum to 1.
	DemographicWeight float64 `yaml:"demographic_weight" mapstructure:"demographic_weight"`
	ClinicalWeight    float64 `yaml:"clinical_weight" mapstructure:"clinical_weight"`
	BehavioralWeight  float64 `yaml:"behavioral_weight" mapstructure:"behavioral_weight"`
	UtilizationWeight float64 `yaml:"utilization_weight" mapstructure:"utilization_weight"`

	// Ascending category thresholds over (1,100]: value < ModerateAt is low,
	// < HighAt moderate, < CriticalAt high, else critical.
	ModerateAt float64 `yaml:"moderate_at" mapstructure:"moderate_at"`
	HighAt     float64 `yaml:"high_at" mapstructure:"high_at"`
	CriticalAt float64 `yaml:"critical_at" mapstructure:"critical_at"`

	// Point value per active condition tag, scaled by severity.
	ConditionPoints map[string]float64 `yaml:"condition_points" mapstructure:"condition_points"`
	// Severity multipliers keyed by model.Severity values.
	SeverityMultipliers map[string]float64 `yaml:"severity_multipliers" mapstructure:"severity_multipliers"`
	// Optional per-region demographic points.
	RegionPoints map[string]float64 `yaml:"region_points" mapstructure:"region_points"`

	// Annual cost baseline used to normalize historical claims cost.
	ClaimsBaseline float64 `yaml:"claims_baseline" mapstructure:"claims_baseline"`

	TopFactors int `yaml:"top_factors" mapstructure:"top_factors"`
}

// CostConfig parameterizes cost prediction.
type CostConfig struct {
	// BaseCost is the annual cost for a neutral member, in dollars.
	BaseCost float64 `yaml:"base_cost" mapstructure:"base_cost"`
	// Multipliers per risk category; must be ascending in category order.
	Multipliers map[string]float64 `yaml:"multipliers" mapstructure:"multipliers"`
	// Interval width bounds tied to confidence: width shrinks linearly from
	// MaxIntervalWidth at confidence 0 to MinIntervalWidth at confidence 1.
	MinIntervalWidth float64 `yaml:"min_interval_width" mapstructure:"min_interval_width"`
	MaxIntervalWidth float64 `yaml:"max_interval_width" mapstructure:"max_interval_width"`
}

// SavingsConfig parameterizes the savings split and reserve requirement.
type SavingsConfig struct {
	// OperatorRate is the operator's share of realized savings, in (0,1).
	// The member share is always 1 - OperatorRate.
	OperatorRate float64 `yaml:"operator_rate" mapstructure:"operator_rate"`
	// SafetyFactor scales the pool predicted-cost sum into a reserve figure.
	SafetyFactor float64 `yaml:"safety_factor" mapstructure:"safety_factor"`
}

// ROIConfig parameterizes intervention ROI evaluation.
type ROIConfig struct {
	HorizonYears  int     `yaml:"horizon_years" mapstructure:"horizon_years"`
	DiscountRate  float64 `yaml:"discount_rate" mapstructure:"discount_rate"`
	RetentionRate float64 `yaml:"retention_rate" mapstructure:"retention_rate"` // per-year benefit decay
	MinimumROI    float64 `yaml:"minimum_roi" mapstructure:"minimum_roi"`
}

// PortfolioConfig parameterizes portfolio selection.
type PortfolioConfig struct {
	// BudgetUnit is the DP granularity in dollars (costs round up to it).
	BudgetUnit float64 `yaml:"budget_unit" mapstructure:"budget_unit"`
	// MaxDPCells caps candidates x budget-units before greedy fallback.
	MaxDPCells int `yaml:"max_dp_cells" mapstructure:"max_dp_cells"`
	// TimeBudgetSecs bounds the optimizer; expiry returns the greedy result.
	TimeBudgetSecs int `yaml:"time_budget_secs" mapstructure:"time_budget_secs"`
	// ResponseWindowDays before a pending/presented recommendation expires.
	ResponseWindowDays int `yaml:"response_window_days" mapstructure:"response_window_days"`
}

// StoreConfig configures the score/summary sink backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WELLNESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "wellness.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("engine.concurrency", 8)

	v.SetDefault("engine.scoring.model_version", "1.0.0")
	v.SetDefault("engine.scoring.demographic_weight", 0.20)
	v.SetDefault("engine.scoring.clinical_weight", 0.35)
	v.SetDefault("engine.scoring.behavioral_weight", 0.25)
	v.SetDefault("engine.scoring.utilization_weight", 0.20)
	v.SetDefault("engine.scoring.moderate_at", 25.0)
	v.SetDefault("engine.scoring.high_at", 50.0)
	v.SetDefault("engine.scoring.critical_at", 75.0)
	v.SetDefault("engine.scoring.claims_baseline", 5800.0)
	v.SetDefault("engine.scoring.top_factors", 5)

	v.SetDefault("engine.cost.base_cost", 5800.0)
	v.SetDefault("engine.cost.min_interval_width", 0.10)
	v.SetDefault("engine.cost.max_interval_width", 0.50)

	v.SetDefault("engine.savings.operator_rate", 0.70)
	v.SetDefault("engine.savings.safety_factor", 1.35)

	v.SetDefault("engine.roi.horizon_years", 3)
	v.SetDefault("engine.roi.discount_rate", 0.08)
	v.SetDefault("engine.roi.retention_rate", 0.80)
	v.SetDefault("engine.roi.minimum_roi", 1.50)

	v.SetDefault("engine.portfolio.budget_unit", 1.0)
	v.SetDefault("engine.portfolio.max_dp_cells", 5_000_000)
	v.SetDefault("engine.portfolio.time_budget_secs", 30)
	v.SetDefault("engine.portfolio.response_window_days", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
