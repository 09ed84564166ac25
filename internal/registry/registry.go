package registry

import (
	"strings"

	"github.com/Alias1177/signalrank/models"
)

// entry is one registry row: canonical key plus vendor symbols.
type entry struct {
	typ    models.AssetType
	vendor string // time-series API symbol
}

var assets = map[string]entry{
	// Crypto
	"BTC": {models.AssetCrypto, "BTC/USD"},
	"ETH": {models.AssetCrypto, "ETH/USD"},
	"SOL": {models.AssetCrypto, "SOL/USD"},

	// Forex
	"EURUSD": {models.AssetForex, "EUR/USD"},
	"GBPUSD": {models.AssetForex, "GBP/USD"},
	"USDJPY": {models.AssetForex, "USD/JPY"},

	// Metals
	"XAUUSD": {models.AssetMetal, "XAU/USD"},
	"XAGUSD": {models.AssetMetal, "XAG/USD"},

	// Indices
	"SP500":  {models.AssetIndex, "SPX"},
	"NASDAQ": {models.AssetIndex, "IXIC"},
	"DAX":    {models.AssetIndex, "GDAXI"},
	"NIKKEI": {models.AssetIndex, "N225"},

	// Stocks
	"AAPL": {models.AssetStock, "AAPL"},
	"NVDA": {models.AssetStock, "NVDA"},
	"TSLA": {models.AssetStock, "TSLA"},
	"MSFT": {models.AssetStock, "MSFT"},
	"AMZN": {models.AssetStock, "AMZN"},
}

var aliases = map[string]string{
	"BTCUSDT": "BTC",
	"ETHUSDT": "ETH",
	"SOLUSDT": "SOL",
	"BTC-USD": "BTC",
	"ETH-USD": "ETH",
	"SOL-USD": "SOL",

	"EURUSD=X": "EURUSD",
	"GBPUSD=X": "GBPUSD",
	"USDJPY=X": "USDJPY",

	"^GSPC":  "SP500",
	"^SPX":   "SP500",
	"^IXIC":  "NASDAQ",
	"^GDAXI": "DAX",
	"^N225":  "NIKKEI",

	"GC=F":    "XAUUSD",
	"XAU/USD": "XAUUSD",
	"XAU-USD": "XAUUSD",
	"SI=F":    "XAGUSD",
	"XAG/USD": "XAGUSD",
	"XAG-USD": "XAGUSD",
}

// Resolver maps raw submitted symbols to canonical assets.
type Resolver struct{}

// New creates a resolver over the built-in registry.
func New() *Resolver {
	return &Resolver{}
}

// Resolve accepts symbol variants like BTCUSDT, BTC-USD, EURUSD=X, ^GSPC,
// GC=F or plain tickers and returns the canonical asset. Unknown 1-5 letter
// alpha symbols resolve as stocks so new tickers work without registry edits.
func (r *Resolver) Resolve(raw string) (models.Asset, error) {
	rawUp := strings.ToUpper(strings.TrimSpace(raw))
	if rawUp == "" {
		return models.Asset{}, models.ErrNotFound
	}

	compact := strings.NewReplacer(" ", "", "/", "", "-", "").Replace(rawUp)

	key := compact
	if canonical, ok := aliases[rawUp]; ok {
		key = canonical
	} else if canonical, ok := aliases[compact]; ok {
		key = canonical
	}

	// BTCUSDT-style crypto pairs resolve to their base without alias entries.
	if strings.HasSuffix(key, "USDT") {
		base := strings.TrimSuffix(key, "USDT")
		if e, ok := assets[base]; ok && e.typ == models.AssetCrypto {
			key = base
		}
	}

	if e, ok := assets[key]; ok {
		return r.build(key, e), nil
	}

	if isAlpha(key) && len(key) >= 1 && len(key) <= 5 {
		return r.build(key, entry{models.AssetStock, key}), nil
	}

	return models.Asset{}, models.ErrNotFound
}

func (r *Resolver) build(canonical string, e entry) models.Asset {
	a := models.Asset{
		Canonical:    canonical,
		Type:         e.typ,
		VendorSymbol: e.vendor,
	}
	if e.typ == models.AssetCrypto {
		a.BookSymbol = canonical + "USDT"
	}
	return a
}

func isAlpha(s string) bool {
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return len(s) > 0
}
