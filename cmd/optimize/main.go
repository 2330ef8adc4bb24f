// Strategy Optimizer CLI
// Evolves trading strategy configurations against historical daily bars.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/evoquant/evotrader/internal/config"
	"github.com/evoquant/evotrader/internal/marketdata"
	"github.com/evoquant/evotrader/pkg/genetic"
	"github.com/evoquant/evotrader/pkg/market"
)

// ============================================================================
// CLI FLAGS
// ============================================================================

var (
	configPath = flag.String("config", "", "Path to config file (optional)")

	// Data source
	symbols   = flag.String("symbols", "", "Comma-separated symbols (overrides config)")
	startDate = flag.String("start", "", "Start date (YYYY-MM-DD, overrides config)")
	endDate   = flag.String("end", "", "End date (YYYY-MM-DD, overrides config)")
	synthetic = flag.Bool("synthetic", false, "Use synthetic bars instead of the configured source")

	// Search parameters
	generations    = flag.Int("generations", 0, "Number of generations (overrides config)")
	seed           = flag.Int64("seed", 0, "Random seed (0 = time-based)")
	initialCapital = flag.Float64("capital", 0, "Initial capital (overrides config)")

	verbose = flag.Bool("verbose", false, "Enable verbose logging")
)

// ============================================================================
// MAIN
// ============================================================================

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyFlagOverrides(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Optimization failed")
	}
}

func applyFlagOverrides(cfg *config.Config) {
	if *symbols != "" {
		cfg.Data.Symbols = parseSymbols(*symbols)
	}
	if *startDate != "" {
		cfg.Data.Start = *startDate
	}
	if *endDate != "" {
		cfg.Data.End = *endDate
	}
	if *synthetic {
		cfg.Data.Source = "synthetic"
	}
	if *generations > 0 {
		cfg.Optimizer.Generations = *generations
	}
	if *seed != 0 {
		cfg.Optimizer.Seed = *seed
	}
	if *initialCapital > 0 {
		cfg.Backtest.InitialCapital = *initialCapital
	}
}

func parseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ============================================================================
// OPTIMIZATION
// ============================================================================

func run(ctx context.Context, cfg *config.Config) error {
	data, err := loadBars(ctx, cfg)
	if err != nil {
		return err
	}

	log.Info().
		Strs("symbols", cfg.Data.Symbols).
		Str("source", cfg.Data.Source).
		Int("generations", cfg.Optimizer.Generations).
		Float64("capital", cfg.Backtest.InitialCapital).
		Msg("Starting optimization")

	optimizer := genetic.NewOptimizer(cfg.Optimizer, genetic.DefaultSpace(), cfg.Backtest.InitialCapital, data)

	result, err := optimizer.Run(ctx)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

// loadBars resolves the configured data source and fetches bars per symbol.
func loadBars(ctx context.Context, cfg *config.Config) (map[string][]market.Bar, error) {
	span, err := cfg.DateRange()
	if err != nil {
		return nil, err
	}
	start, end := span[0], span[1]

	var provider market.BarProvider
	switch cfg.Data.Source {
	case "synthetic":
		provider = syntheticProvider(cfg, start)
	case "binance":
		provider = marketdata.NewClient(marketdata.ClientConfig{
			APIKey:            cfg.Binance.APIKey,
			SecretKey:         cfg.Binance.SecretKey,
			Testnet:           cfg.Binance.Testnet,
			RequestsPerSecond: cfg.Binance.RequestsPerSecond,
		})
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}

	data := make(map[string][]market.Bar, len(cfg.Data.Symbols))
	for _, sym := range cfg.Data.Symbols {
		bars, err := provider.FetchBars(ctx, sym, start, end)
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", sym, err)
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("no bars for %s in [%s, %s)", sym,
				start.Format("2006-01-02"), end.Format("2006-01-02"))
		}
		data[sym] = bars
	}
	return data, nil
}

// syntheticProvider generates a deterministic random-walk series per symbol,
// offsetting the seed so symbols do not move in lockstep.
func syntheticProvider(cfg *config.Config, start time.Time) market.BarProvider {
	series := make(market.StaticProvider, len(cfg.Data.Symbols))
	for i, sym := range cfg.Data.Symbols {
		series[sym] = market.SyntheticSeries(
			sym, start, cfg.Data.Synthetic.Bars,
			cfg.Data.Synthetic.Seed+int64(i),
			market.DefaultSyntheticConfig(),
		)
	}
	return series
}

func printResult(result *genetic.OptimizationResult) {
	best := result.Best

	log.Info().
		Str("genome", best.ID.String()).
		Float64("fitness", best.Fitness).
		Int("generation", best.Generation).
		Int("evaluations", result.TotalEvaluations).
		Dur("elapsed", result.Elapsed).
		Msg("Best configuration found")

	if best.Metrics != nil {
		m := best.Metrics
		log.Info().
			Int("trades", m.TotalTrades).
			Float64("win_rate", m.WinRate).
			Float64("total_return_pct", m.TotalReturnPct).
			Float64("sharpe", m.SharpeRatio).
			Float64("sortino", m.SortinoRatio).
			Float64("max_drawdown_pct", m.MaxDrawdownPct).
			Msg("Best configuration metrics")
	}

	fmt.Println("\nBest genes:")
	printGenes(best.Config)

	if len(result.Patterns) > 0 {
		fmt.Println("\nGene patterns (top vs bottom performers):")
		for _, p := range result.Patterns {
			fmt.Printf("  %-22s top=%.4f bottom=%.4f diff=%.1f%%\n",
				p.Key, p.TopMean, p.BottomMean, p.RelDiff*100)
		}
	}

	fmt.Println("\nGeneration history:")
	for _, s := range result.History {
		fmt.Printf("  gen %3d  best=%.2f avg=%.2f diversity=%.3f rate=%.3f pop=%d\n",
			s.Generation, s.BestFitness, s.AvgFitness, s.Diversity, s.MutationRate, s.Population)
	}
}

func printGenes(genes map[string]float64) {
	keys := make([]string, 0, len(genes))
	for k := range genes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-22s %.4f\n", k, genes[k])
	}
}
