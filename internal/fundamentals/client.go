package fundamentals

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	platformhttp "github.com/Alias1177/signalrank/internal/platform/http"
	"github.com/Alias1177/signalrank/models"
)

const defaultFearGreedURL = "https://api.alternative.me/fng/"

// Client scores the fundamental backdrop of an asset. The primary source is
// an external fundamentals service; when none is configured, crypto assets
// fall back to the public Fear & Greed index and everything else reports
// unavailable. It implements models.FundamentalsProvider.
type Client struct {
	serviceURL   string
	fearGreedURL string
	http         *platformhttp.Client
	logger       zerolog.Logger
}

// ClientOptions holds options for creating a fundamentals client.
type ClientOptions struct {
	ServiceURL      string // empty disables the service, keeping only the crypto fallback
	FearGreedURL    string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new fundamentals client.
func NewClient(opts ClientOptions) *Client {
	fearGreedURL := opts.FearGreedURL
	if fearGreedURL == "" {
		fearGreedURL = defaultFearGreedURL
	}

	return &Client{
		serviceURL:   opts.ServiceURL,
		fearGreedURL: fearGreedURL,
		http: platformhttp.NewClient(platformhttp.ClientOptions{
			Timeout:         opts.RequestTimeout,
			RequestsPerSec:  opts.RequestsPerSec,
			MaxRetryTimeout: opts.MaxRetryTimeout,
		}),
		logger: log.With().Str("component", "fundamentals_client").Logger(),
	}
}

type scoreResponse struct {
	FundamentalScore *float64 `json:"fundamental_score"`
}

type fearGreedResponse struct {
	Data []struct {
		Value string `json:"value"`
	} `json:"data"`
}

// Score returns the fundamental score for an asset in [0,1].
func (c *Client) Score(ctx context.Context, asset models.Asset, direction models.Direction, asOf time.Time) (float64, error) {
	if c.serviceURL != "" {
		return c.serviceScore(ctx, asset, direction, asOf)
	}
	if asset.Type == models.AssetCrypto {
		return c.fearGreedScore(ctx)
	}
	return 0, fmt.Errorf("%w: no fundamentals source for %s", models.ErrUnavailable, asset.Canonical)
}

func (c *Client) serviceScore(ctx context.Context, asset models.Asset, direction models.Direction, asOf time.Time) (float64, error) {
	reqURL := fmt.Sprintf(
		"%s/v1/fundamentals?asset=%s&direction=%s&as_of=%s",
		c.serviceURL,
		url.QueryEscape(asset.Canonical),
		direction,
		url.QueryEscape(asOf.UTC().Format(time.RFC3339)),
	)

	var resp scoreResponse
	if err := c.http.GetJSON(ctx, reqURL, &resp); err != nil {
		return 0, fmt.Errorf("%w: fundamentals service for %s: %v", models.ErrUnavailable, asset.Canonical, err)
	}
	if resp.FundamentalScore == nil || math.IsNaN(*resp.FundamentalScore) {
		return 0, fmt.Errorf("%w: fundamentals service returned no score for %s", models.ErrUnavailable, asset.Canonical)
	}

	score := clamp(*resp.FundamentalScore, 0, 1)
	c.logger.Debug().Str("asset", asset.Canonical).Float64("score", score).Msg("fundamental score")
	return score, nil
}

// fearGreedScore maps the 0..100 crypto Fear & Greed index onto [0,1].
func (c *Client) fearGreedScore(ctx context.Context) (float64, error) {
	var resp fearGreedResponse
	if err := c.http.GetJSON(ctx, c.fearGreedURL, &resp); err != nil {
		return 0, fmt.Errorf("%w: fear & greed index: %v", models.ErrUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return 0, fmt.Errorf("%w: empty fear & greed response", models.ErrUnavailable)
	}

	value, err := strconv.ParseFloat(resp.Data[0].Value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad fear & greed value %q", models.ErrUnavailable, resp.Data[0].Value)
	}
	return clamp(value/100.0, 0, 1), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
