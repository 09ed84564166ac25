package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	platformhttp "github.com/Alias1177/signalrank/internal/platform/http"
	"github.com/Alias1177/signalrank/models"
)

// Candle counts requested per interval. Daily and weekly series need enough
// depth for the 60-bar momentum horizon and the ATR warmup.
const (
	dailyOutputSize  = 120
	weeklyOutputSize = 60
)

// Client fetches time-series data from the market data vendor and assembles
// it into snapshots. It implements models.MarketSignalProvider.
type Client struct {
	apiKey  string
	baseURL string
	http    *platformhttp.Client
	logger  zerolog.Logger
}

// ClientOptions holds options for creating a new market data client.
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new market data client.
func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twelvedata.com"
	}

	return &Client{
		apiKey:  opts.APIKey,
		baseURL: baseURL,
		http: platformhttp.NewClient(platformhttp.ClientOptions{
			Timeout:         opts.RequestTimeout,
			RequestsPerSec:  opts.RequestsPerSec,
			MaxRetryTimeout: opts.MaxRetryTimeout,
		}),
		logger: log.With().Str("component", "marketdata_client").Logger(),
	}
}

// Fetch pulls the hourly, daily and weekly series for an asset and builds the
// snapshot as of the given moment. The hourly series is required; daily and
// weekly degrade gracefully when the vendor has no data for them.
func (c *Client) Fetch(ctx context.Context, asset models.Asset, asOf time.Time, lookbackDays int) (*models.MarketSnapshot, error) {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}

	hourly, err := c.getCandles(ctx, asset.VendorSymbol, "1h", lookbackDays*24)
	if err != nil {
		return nil, fmt.Errorf("%w: hourly series for %s: %v", models.ErrUnavailable, asset.Canonical, err)
	}

	daily, err := c.getCandles(ctx, asset.VendorSymbol, "1day", dailyOutputSize)
	if err != nil {
		c.logger.Warn().Err(err).Str("asset", asset.Canonical).Msg("no daily series")
		daily = nil
	}

	weekly, err := c.getCandles(ctx, asset.VendorSymbol, "1week", weeklyOutputSize)
	if err != nil {
		c.logger.Warn().Err(err).Str("asset", asset.Canonical).Msg("no weekly series")
		weekly = nil
	}

	snap, err := BuildSnapshot(asset, asOf, hourly, daily, weekly)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("asset", asset.Canonical).
		Int("hourly", len(snap.Hourly)).
		Int("daily", len(snap.Daily)).
		Float64("spot", snap.Spot).
		Msg("snapshot assembled")
	return snap, nil
}

type timeSeriesResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Values  []seriesValue `json:"values"`
}

type seriesValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

func (c *Client) getCandles(ctx context.Context, symbol, interval string, count int) ([]models.Candle, error) {
	reqURL := fmt.Sprintf(
		"%s/time_series?symbol=%s&interval=%s&outputsize=%d&apikey=%s",
		c.baseURL, url.QueryEscape(symbol), interval, count, c.apiKey,
	)

	var data timeSeriesResponse
	if err := c.http.GetJSON(ctx, reqURL, &data); err != nil {
		return nil, fmt.Errorf("fetching %s %s: %w", symbol, interval, err)
	}
	if data.Status == "error" {
		return nil, fmt.Errorf("vendor error for %s %s: %s", symbol, interval, data.Message)
	}
	if len(data.Values) == 0 {
		return nil, fmt.Errorf("empty %s series for %s", interval, symbol)
	}

	candles := make([]models.Candle, 0, len(data.Values))
	for _, v := range data.Values {
		candle, err := v.toCandle()
		if err != nil {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("skipping malformed candle")
			continue
		}
		candles = append(candles, candle)
	}

	// Oldest first for indicator math.
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})
	return candles, nil
}

var datetimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339}

func (v seriesValue) toCandle() (models.Candle, error) {
	var ts time.Time
	var err error
	for _, layout := range datetimeLayouts {
		ts, err = time.Parse(layout, v.Datetime)
		if err == nil {
			break
		}
	}
	if err != nil {
		return models.Candle{}, fmt.Errorf("parsing datetime %q: %w", v.Datetime, err)
	}

	open, err := strconv.ParseFloat(v.Open, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parsing open: %w", err)
	}
	high, err := strconv.ParseFloat(v.High, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parsing high: %w", err)
	}
	low, err := strconv.ParseFloat(v.Low, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parsing low: %w", err)
	}
	closePx, err := strconv.ParseFloat(v.Close, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parsing close: %w", err)
	}

	// Forex and index series often carry no volume.
	volume, _ := strconv.ParseFloat(v.Volume, 64)

	return models.Candle{
		Time:   ts.UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePx,
		Volume: volume,
	}, nil
}
