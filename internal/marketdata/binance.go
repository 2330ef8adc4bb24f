// Package marketdata fetches historical daily bars from Binance and adapts
// them to the simulator's bar model.
package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/evoquant/evotrader/pkg/market"
)

const (
	klineInterval = "1d"
	klinePageSize = 1000
)

// ClientConfig contains Binance client settings.
type ClientConfig struct {
	APIKey            string
	SecretKey         string
	Testnet           bool
	RequestsPerSecond int
}

// Client fetches daily klines from Binance. API calls are rate limited and
// wrapped in a circuit breaker so a flapping endpoint fails fast instead of
// hammering the exchange.
type Client struct {
	api     *binance.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewClient creates a Binance market data client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Testnet {
		binance.UseTestnet = true
	}

	rps := cfg.RequestsPerSecond
	if rps < 1 {
		rps = 10
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "binance-klines",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &Client{
		api:     binance.NewClient(cfg.APIKey, cfg.SecretKey),
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		breaker: breaker,
		logger:  log.With().Str("component", "marketdata").Logger(),
	}
}

// FetchBars returns the symbol's daily bars within [start, end), paging
// through the kline endpoint as needed.
func (c *Client) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]market.Bar, error) {
	var bars []market.Bar
	cursor := start

	for cursor.Before(end) {
		klines, err := c.fetchPage(ctx, symbol, cursor, end)
		if err != nil {
			return nil, fmt.Errorf("fetch klines for %s: %w", symbol, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			bar, err := toBar(symbol, k)
			if err != nil {
				return nil, fmt.Errorf("parse kline for %s: %w", symbol, err)
			}
			bars = append(bars, bar)
		}

		last := klines[len(klines)-1]
		cursor = time.UnixMilli(last.CloseTime + 1).UTC()

		if len(klines) < klinePageSize {
			break
		}
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Time("start", start).
		Time("end", end).
		Msg("Fetched daily bars")

	return bars, nil
}

func (c *Client) fetchPage(ctx context.Context, symbol string, start, end time.Time) ([]*binance.Kline, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.api.NewKlinesService().
			Symbol(symbol).
			Interval(klineInterval).
			StartTime(start.UnixMilli()).
			EndTime(end.UnixMilli() - 1).
			Limit(klinePageSize).
			Do(ctx)
	})
	if err != nil {
		return nil, err
	}

	return result.([]*binance.Kline), nil
}

// toBar converts one Binance kline to a bar. VWAP is approximated as quote
// volume over base volume, which for daily bars is the volume-weighted mean
// trade price.
func toBar(symbol string, k *binance.Kline) (market.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return market.Bar{}, err
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return market.Bar{}, err
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return market.Bar{}, err
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return market.Bar{}, err
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return market.Bar{}, err
	}
	quoteVolume, err := strconv.ParseFloat(k.QuoteAssetVolume, 64)
	if err != nil {
		return market.Bar{}, err
	}

	vwap := closePrice
	if volume > 0 {
		vwap = quoteVolume / volume
	}

	return market.Bar{
		Symbol:     symbol,
		Timestamp:  time.UnixMilli(k.OpenTime).UTC(),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      closePrice,
		Volume:     volume,
		TradeCount: k.TradeNum,
		VWAP:       vwap,
	}, nil
}
