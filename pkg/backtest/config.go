package backtest

import (
	"github.com/evoquant/evotrader/pkg/indicators"
	"github.com/evoquant/evotrader/pkg/signal"
)

// Gene keys understood by FromGenes. The genetic optimizer mutates these; the
// engine only ever sees the resolved Config.
const (
	GeneMaxPositionPct       = "maxPositionPct"
	GeneMaxPortfolioExposure = "maxPortfolioExposure"
	GeneMaxDailyLoss         = "maxDailyLoss"
	GeneStopLossATR          = "stopLossATR"
	GeneTakeProfitATR        = "takeProfitATR"
	GeneBuyThreshold         = "buyThreshold"
	GeneSellThreshold        = "sellThreshold"
	GeneConfidenceMin        = "confidenceMin"
	GeneRSIPeriod            = "rsiPeriod"
	GeneEMAFastPeriod        = "emaFastPeriod"
	GeneEMASlowPeriod        = "emaSlowPeriod"
	GeneATRPeriod            = "atrPeriod"
	GeneTrailingStop         = "trailingStop"
	GeneWeightTechnical      = "weightTechnical"
	GeneWeightMomentum       = "weightMomentum"
	GeneWeightVolatility     = "weightVolatility"
	GeneWeightVolume         = "weightVolume"
	GeneWeightSentiment      = "weightSentiment"
)

// Config is the fully resolved strategy configuration for one simulation run.
type Config struct {
	InitialCapital float64 `json:"initial_capital"`

	MaxPositionPct       float64 `json:"max_position_pct"`
	MaxPortfolioExposure float64 `json:"max_portfolio_exposure"`
	MaxDailyLoss         float64 `json:"max_daily_loss"`

	StopLossATR   float64 `json:"stop_loss_atr"`
	TakeProfitATR float64 `json:"take_profit_atr"`

	BuyThreshold  float64 `json:"buy_threshold"`
	SellThreshold float64 `json:"sell_threshold"`
	ConfidenceMin float64 `json:"confidence_min"`

	TrailingStop bool `json:"trailing_stop"`

	Indicators indicators.Config `json:"indicators"`
	Weights    signal.Weights    `json:"weights"`
}

// DefaultConfig returns a conservative baseline configuration.
func DefaultConfig(initialCapital float64) Config {
	return Config{
		InitialCapital:       initialCapital,
		MaxPositionPct:       0.1,
		MaxPortfolioExposure: 0.8,
		MaxDailyLoss:         0.03,
		StopLossATR:          2.0,
		TakeProfitATR:        3.0,
		BuyThreshold:         0.3,
		SellThreshold:        0.3,
		ConfidenceMin:        0.3,
		TrailingStop:         true,
		Indicators: indicators.Config{
			RSIPeriod:     14,
			EMAFastPeriod: 12,
			EMASlowPeriod: 26,
			ATRPeriod:     14,
		},
		Weights: signal.Weights{
			Technical:  0.3,
			Momentum:   0.25,
			Volatility: 0.15,
			Volume:     0.15,
			Sentiment:  0.15,
		},
	}
}

// FromGenes resolves a gene map into a Config. Unknown keys are ignored;
// missing keys keep the default value.
func FromGenes(initialCapital float64, genes map[string]float64) Config {
	cfg := DefaultConfig(initialCapital)

	get := func(key string, dst *float64) {
		if v, ok := genes[key]; ok {
			*dst = v
		}
	}
	getInt := func(key string, dst *int) {
		if v, ok := genes[key]; ok {
			*dst = int(v)
		}
	}

	get(GeneMaxPositionPct, &cfg.MaxPositionPct)
	get(GeneMaxPortfolioExposure, &cfg.MaxPortfolioExposure)
	get(GeneMaxDailyLoss, &cfg.MaxDailyLoss)
	get(GeneStopLossATR, &cfg.StopLossATR)
	get(GeneTakeProfitATR, &cfg.TakeProfitATR)
	get(GeneBuyThreshold, &cfg.BuyThreshold)
	get(GeneSellThreshold, &cfg.SellThreshold)
	get(GeneConfidenceMin, &cfg.ConfidenceMin)

	getInt(GeneRSIPeriod, &cfg.Indicators.RSIPeriod)
	getInt(GeneEMAFastPeriod, &cfg.Indicators.EMAFastPeriod)
	getInt(GeneEMASlowPeriod, &cfg.Indicators.EMASlowPeriod)
	getInt(GeneATRPeriod, &cfg.Indicators.ATRPeriod)

	if v, ok := genes[GeneTrailingStop]; ok {
		cfg.TrailingStop = v >= 0.5
	}

	get(GeneWeightTechnical, &cfg.Weights.Technical)
	get(GeneWeightMomentum, &cfg.Weights.Momentum)
	get(GeneWeightVolatility, &cfg.Weights.Volatility)
	get(GeneWeightVolume, &cfg.Weights.Volume)
	get(GeneWeightSentiment, &cfg.Weights.Sentiment)

	return cfg
}
