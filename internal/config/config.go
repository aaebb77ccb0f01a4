package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/strataquant/strata/internal/core"
	"github.com/strataquant/strata/internal/strategy"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Data     DataConfig     `mapstructure:"data"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"` // empty disables auth
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// DataConfig selects and configures the bar provider.
type DataConfig struct {
	Provider       string   `mapstructure:"provider"` // "yahoo"
	BaseURL        string   `mapstructure:"base_url"` // override for tests/proxies
	Universe       []string `mapstructure:"universe"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// BacktestConfig holds the run defaults a request may override.
type BacktestConfig struct {
	InitialCapital float64        `mapstructure:"initial_capital"`
	Strategy       StrategyConfig `mapstructure:"strategy"`
}

// StrategyConfig mirrors strategy.Params in config-file form.
type StrategyConfig struct {
	RSIPeriod           int `mapstructure:"rsi_period"`
	MACDFast            int `mapstructure:"macd_fast"`
	MACDSlow            int `mapstructure:"macd_slow"`
	MACDSignal          int `mapstructure:"macd_signal"`
	ATRPeriod           int `mapstructure:"atr_period"`
	PriceMomentumPeriod int `mapstructure:"price_momentum_period"`

	RSIOversold            float64 `mapstructure:"rsi_oversold"`
	VolumeThreshold        float64 `mapstructure:"volume_threshold"`
	PriceMomentumThreshold float64 `mapstructure:"price_momentum_threshold"`
	ConfidenceThreshold    float64 `mapstructure:"confidence_threshold"`

	StopLoss         float64 `mapstructure:"stop_loss"`
	StopProfit       float64 `mapstructure:"stop_profit"`
	MaxPositionSize  float64 `mapstructure:"max_position_size"`
	MaxTotalExposure float64 `mapstructure:"max_total_exposure"`
	MinHoldingDays   int     `mapstructure:"min_holding_days"`

	EnableTrailingStop  bool `mapstructure:"enable_trailing_stop"`
	EnableATRStop       bool `mapstructure:"enable_atr_stop"`
	EnablePriceMomentum bool `mapstructure:"enable_price_momentum"`
	EnableMA60          bool `mapstructure:"enable_ma60"`
	StrictScoring       bool `mapstructure:"strict_scoring"`
	HierarchicalEntry   bool `mapstructure:"hierarchical_entry"`
	DynamicPositionSize bool `mapstructure:"dynamic_position_size"`

	TrailingStopPercent     float64 `mapstructure:"trailing_stop_percent"`
	TrailingActivatePercent float64 `mapstructure:"trailing_activate_percent"`
}

// Params converts the config form into the engine's parameter set.
func (s StrategyConfig) Params() strategy.Params {
	return strategy.Params{
		RSIPeriod:           s.RSIPeriod,
		MACDFast:            s.MACDFast,
		MACDSlow:            s.MACDSlow,
		MACDSignal:          s.MACDSignal,
		ATRPeriod:           s.ATRPeriod,
		PriceMomentumPeriod: s.PriceMomentumPeriod,

		RSIOversold:            s.RSIOversold,
		VolumeThreshold:        s.VolumeThreshold,
		PriceMomentumThreshold: s.PriceMomentumThreshold,
		ConfidenceThreshold:    s.ConfidenceThreshold,

		StopLoss:         s.StopLoss,
		StopProfit:       s.StopProfit,
		MaxPositionSize:  s.MaxPositionSize,
		MaxTotalExposure: s.MaxTotalExposure,
		MinHoldingDays:   s.MinHoldingDays,

		EnableTrailingStop:  s.EnableTrailingStop,
		EnableATRStop:       s.EnableATRStop,
		EnablePriceMomentum: s.EnablePriceMomentum,
		EnableMA60:          s.EnableMA60,
		StrictScoring:       s.StrictScoring,
		HierarchicalEntry:   s.HierarchicalEntry,
		DynamicPositionSize: s.DynamicPositionSize,

		TrailingStopPercent:     s.TrailingStopPercent,
		TrailingActivatePercent: s.TrailingActivatePercent,
	}
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults. The strategy block
// matches strategy.DefaultParams so a minimal config file runs the
// standard daily-bar setup.
func Defaults() *Config {
	p := strategy.DefaultParams()
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Data: DataConfig{
			Provider:       "yahoo",
			TimeoutSeconds: 10,
		},
		Backtest: BacktestConfig{
			InitialCapital: 1_000_000,
			Strategy: StrategyConfig{
				RSIPeriod:           p.RSIPeriod,
				MACDFast:            p.MACDFast,
				MACDSlow:            p.MACDSlow,
				MACDSignal:          p.MACDSignal,
				ATRPeriod:           p.ATRPeriod,
				PriceMomentumPeriod: p.PriceMomentumPeriod,

				RSIOversold:            p.RSIOversold,
				VolumeThreshold:        p.VolumeThreshold,
				PriceMomentumThreshold: p.PriceMomentumThreshold,
				ConfidenceThreshold:    p.ConfidenceThreshold,

				StopLoss:         p.StopLoss,
				StopProfit:       p.StopProfit,
				MaxPositionSize:  p.MaxPositionSize,
				MaxTotalExposure: p.MaxTotalExposure,
				MinHoldingDays:   p.MinHoldingDays,

				EnableTrailingStop:  p.EnableTrailingStop,
				EnableATRStop:       p.EnableATRStop,
				EnablePriceMomentum: p.EnablePriceMomentum,
				EnableMA60:          p.EnableMA60,
				StrictScoring:       p.StrictScoring,
				HierarchicalEntry:   p.HierarchicalEntry,
				DynamicPositionSize: p.DynamicPositionSize,

				TrailingStopPercent:     p.TrailingStopPercent,
				TrailingActivatePercent: p.TrailingActivatePercent,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Data.Provider {
	case "yahoo", "static":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data provider: %s", c.Data.Provider))
	}

	if c.Backtest.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %f", c.Backtest.InitialCapital))
	}

	s := c.Backtest.Strategy
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", s.ConfidenceThreshold))
	}
	if s.StopLoss <= 0 || s.StopProfit <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stop_loss and stop_profit must be positive"))
	}
	if s.MaxPositionSize <= 0 || s.MaxPositionSize > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_position_size must be in (0, 1], got %f", s.MaxPositionSize))
	}
	if s.MaxTotalExposure <= 0 || s.MaxTotalExposure > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_total_exposure must be in (0, 1], got %f", s.MaxTotalExposure))
	}
	if s.MinHoldingDays < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_holding_days cannot be negative, got %d", s.MinHoldingDays))
	}
	if s.RSIPeriod < 2 || s.MACDFast < 1 || s.MACDSlow <= s.MACDFast || s.MACDSignal < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("invalid indicator periods"))
	}

	return nil
}
