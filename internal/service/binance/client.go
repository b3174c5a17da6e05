package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	pkgcache "SigPulse/pkg/cache"
	xhttp "SigPulse/pkg/http"
	applogger "SigPulse/pkg/logger"
)

// Client implements a CandleFeed backed by the Binance klines REST API.
// Responses are cached briefly so parallel scans do not hammer the API.
type Client struct {
	baseURL  string
	interval drepo.Interval
	http     *xhttp.Client
	cache    pkgcache.Service
	logger   *applogger.Logger

	retries    int
	retryDelay time.Duration
	cacheTTL   time.Duration
}

// New creates a new Binance CandleFeed.
func New(baseURL string, interval drepo.Interval, httpClient *xhttp.Client, cache pkgcache.Service, logger *applogger.Logger) *Client {
	if httpClient == nil {
		httpClient = xhttp.NewClient(xhttp.WithTimeout(15 * time.Second))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		interval:   interval,
		http:       httpClient,
		cache:      cache,
		logger:     logger,
		retries:    3,
		retryDelay: 2 * time.Second,
		cacheTTL:   time.Minute,
	}
}

// RecentCandles fetches the most recent bars for a symbol, oldest first.
func (c *Client) RecentCandles(ctx context.Context, symbol string, limit int) ([]models.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000 // API maximum per request
	}
	symbol = strings.ToUpper(symbol)

	cacheKey := fmt.Sprintf("klines:%s:%s:%d", symbol, c.interval, limit)
	if c.cache != nil {
		var cached []models.Candle
		if err := c.cache.Get(ctx, cacheKey, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := c.retryDelay << uint(attempt-1) // 2s, 4s, 8s
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			if c.logger != nil {
				c.logger.Warn("retrying kline fetch",
					applogger.String("symbol", symbol),
					applogger.Int("attempt", attempt),
				)
			}
		}

		candles, err := c.fetch(ctx, symbol, limit)
		if err != nil {
			lastErr = err
			continue
		}
		if c.cache != nil {
			_ = c.cache.Set(ctx, cacheKey, candles, c.cacheTTL)
		}
		return candles, nil
	}
	return nil, fmt.Errorf("fetch klines %s: %w", symbol, lastErr)
}

func (c *Client) fetch(ctx context.Context, symbol string, limit int) ([]models.Candle, error) {
	var rows [][]interface{}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {string(c.interval)},
			"limit":    {strconv.Itoa(limit)},
		},
	}, &rows)
	if err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candle, ok := parseKlineRow(symbol, row)
		if !ok {
			continue
		}
		candles = append(candles, candle)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("empty kline response for %s", symbol)
	}
	return candles, nil
}

// parseKlineRow converts one API row. The API ships rows as mixed arrays:
// [openTime, "open", "high", "low", "close", "volume", closeTime, ...].
func parseKlineRow(symbol string, row []interface{}) (models.Candle, bool) {
	if len(row) < 6 {
		return models.Candle{}, false
	}
	openMs, ok := asFloat(row[0])
	if !ok || openMs <= 0 {
		return models.Candle{}, false
	}
	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, ok := asFloat(row[i+1])
		if !ok {
			return models.Candle{}, false
		}
		fields[i] = v
	}
	return models.Candle{
		OpenTime: time.UnixMilli(int64(openMs)).UTC(),
		Symbol:   symbol,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, true
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

var _ drepo.CandleFeed = (*Client)(nil)
