package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	platformhttp "github.com/Alias1177/signalrank/internal/platform/http"
	"github.com/Alias1177/signalrank/models"
)

const defaultBookBaseURL = "https://api.binance.com"

// BookClient fetches exchange order-book depth for crypto book symbols. It
// implements models.OrderBookProvider.
type BookClient struct {
	baseURL string
	http    *platformhttp.Client
	logger  zerolog.Logger
}

// BookClientOptions holds options for creating a depth client.
type BookClientOptions struct {
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewBookClient creates a new order-book depth client.
func NewBookClient(opts BookClientOptions) *BookClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBookBaseURL
	}

	return &BookClient{
		baseURL: baseURL,
		http: platformhttp.NewClient(platformhttp.ClientOptions{
			Timeout:         opts.RequestTimeout,
			RequestsPerSec:  opts.RequestsPerSec,
			MaxRetryTimeout: opts.MaxRetryTimeout,
		}),
		logger: log.With().Str("component", "orderbook_client").Logger(),
	}
}

// depthResponse carries [price, qty] string pairs per level.
type depthResponse struct {
	Bids [][2]string `json:"bids"`
	Asks [][2]string `json:"asks"`
}

// Depth returns the order book for a symbol, deepest `limit` levels per side.
func (c *BookClient) Depth(ctx context.Context, symbol string, limit int) (*models.OrderBook, error) {
	if limit <= 0 {
		limit = 100
	}
	reqURL := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d", c.baseURL, symbol, limit)

	var resp depthResponse
	if err := c.http.GetJSON(ctx, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("%w: depth for %s: %v", models.ErrUnavailable, symbol, err)
	}
	if len(resp.Bids) == 0 && len(resp.Asks) == 0 {
		return nil, fmt.Errorf("%w: empty book for %s", models.ErrUnavailable, symbol)
	}

	book := &models.OrderBook{
		Bids: parseLevels(resp.Bids),
		Asks: parseLevels(resp.Asks),
	}
	c.logger.Debug().Str("symbol", symbol).Int("bids", len(book.Bids)).Int("asks", len(book.Asks)).Msg("depth fetched")
	return book, nil
}

func parseLevels(raw [][2]string) []models.BookLevel {
	levels := make([]models.BookLevel, 0, len(raw))
	for _, pair := range raw {
		price, err1 := strconv.ParseFloat(pair[0], 64)
		qty, err2 := strconv.ParseFloat(pair[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		levels = append(levels, models.BookLevel{Price: price, Qty: qty})
	}
	return levels
}
