// Package config loads and validates application configuration from YAML
// files and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/evoquant/evotrader/pkg/genetic"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Data      DataConfig              `mapstructure:"data"`
	Backtest  BacktestConfig          `mapstructure:"backtest"`
	Optimizer genetic.OptimizerConfig `mapstructure:"optimizer"`
	Binance   BinanceConfig           `mapstructure:"binance"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DataConfig selects the bar data source and its span.
type DataConfig struct {
	Source    string   `mapstructure:"source"` // "binance" or "synthetic"
	Symbols   []string `mapstructure:"symbols"`
	Start     string   `mapstructure:"start"` // YYYY-MM-DD
	End       string   `mapstructure:"end"`   // YYYY-MM-DD
	Synthetic struct {
		Bars int   `mapstructure:"bars"`
		Seed int64 `mapstructure:"seed"`
	} `mapstructure:"synthetic"`
}

// BacktestConfig contains simulation settings not searched by the optimizer.
type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
}

// BinanceConfig contains exchange client settings.
type BinanceConfig struct {
	APIKey            string `mapstructure:"api_key"`
	SecretKey         string `mapstructure:"secret_key"`
	Testnet           bool   `mapstructure:"testnet"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("EVOTRADER")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "EvoTrader")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	// Data defaults
	v.SetDefault("data.source", "synthetic")
	v.SetDefault("data.symbols", []string{"BTCUSDT", "ETHUSDT"})
	v.SetDefault("data.synthetic.bars", 500)
	v.SetDefault("data.synthetic.seed", 1)

	// Backtest defaults
	v.SetDefault("backtest.initial_capital", 10000.0)

	// Optimizer defaults
	v.SetDefault("optimizer.generations", 30)
	v.SetDefault("optimizer.concurrency", 4)
	v.SetDefault("optimizer.seed", 0)
	v.SetDefault("optimizer.migration_interval", 5)
	v.SetDefault("optimizer.population.size", 50)
	v.SetDefault("optimizer.population.elite_count", 2)
	v.SetDefault("optimizer.population.crossover_rate", 0.7)
	v.SetDefault("optimizer.population.mutation_rate", 0.1)
	v.SetDefault("optimizer.population.islands", 4)
	v.SetDefault("optimizer.population.migration_count", 2)
	v.SetDefault("optimizer.population.selection", "tournament")
	v.SetDefault("optimizer.population.tournament_size", 3)
	v.SetDefault("optimizer.convergence.window", 10)
	v.SetDefault("optimizer.convergence.threshold", 0.001)
	v.SetDefault("optimizer.fitness.sharpe", 0.3)
	v.SetDefault("optimizer.fitness.sortino", 0.15)
	v.SetDefault("optimizer.fitness.calmar", 0.1)
	v.SetDefault("optimizer.fitness.win_rate", 0.15)
	v.SetDefault("optimizer.fitness.return", 0.15)
	v.SetDefault("optimizer.fitness.drawdown", 0.15)

	// Binance defaults
	v.SetDefault("binance.testnet", false)
	v.SetDefault("binance.requests_per_second", 10)
}

// Validate checks cross-field consistency of the loaded configuration.
func (c *Config) Validate() error {
	if len(c.Data.Symbols) == 0 {
		return fmt.Errorf("data.symbols must not be empty")
	}
	if c.Data.Source != "binance" && c.Data.Source != "synthetic" {
		return fmt.Errorf("data.source must be binance or synthetic, got %q", c.Data.Source)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive, got %v", c.Backtest.InitialCapital)
	}

	o := c.Optimizer
	if o.Generations < 1 {
		return fmt.Errorf("optimizer.generations must be at least 1, got %d", o.Generations)
	}
	if o.Population.Size < 2 {
		return fmt.Errorf("optimizer.population.size must be at least 2, got %d", o.Population.Size)
	}
	if o.Population.EliteCount < 0 || o.Population.EliteCount > o.Population.Size {
		return fmt.Errorf("optimizer.population.elite_count must be within [0, size], got %d", o.Population.EliteCount)
	}
	if o.Population.CrossoverRate < 0 || o.Population.CrossoverRate > 1 {
		return fmt.Errorf("optimizer.population.crossover_rate must be within [0, 1], got %v", o.Population.CrossoverRate)
	}
	if o.Population.MutationRate < 0 || o.Population.MutationRate > 1 {
		return fmt.Errorf("optimizer.population.mutation_rate must be within [0, 1], got %v", o.Population.MutationRate)
	}
	if o.Population.Islands < 1 {
		return fmt.Errorf("optimizer.population.islands must be at least 1, got %d", o.Population.Islands)
	}

	w := o.Fitness
	sum := w.Sharpe + w.Sortino + w.Calmar + w.WinRate + w.Return + w.Drawdown
	if sum <= 0 {
		return fmt.Errorf("optimizer.fitness weights must sum to a positive value")
	}

	if _, err := c.DateRange(); err != nil {
		return err
	}

	return nil
}

// DateRange parses the configured start/end dates. Missing dates default to
// a two-year window ending today.
func (c *Config) DateRange() ([2]time.Time, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-2, 0, 0)

	var err error
	if c.Data.Start != "" {
		start, err = time.Parse("2006-01-02", c.Data.Start)
		if err != nil {
			return [2]time.Time{}, fmt.Errorf("invalid data.start %q: %w", c.Data.Start, err)
		}
	}
	if c.Data.End != "" {
		end, err = time.Parse("2006-01-02", c.Data.End)
		if err != nil {
			return [2]time.Time{}, fmt.Errorf("invalid data.end %q: %w", c.Data.End, err)
		}
	}

	if !start.Before(end) {
		return [2]time.Time{}, fmt.Errorf("data.start must be before data.end")
	}
	return [2]time.Time{start, end}, nil
}
