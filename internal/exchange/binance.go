// Package exchange is a thin read-only client for the Binance spot REST API.
// Only the public market-data endpoints are used; no keys, no order placement.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"macdbot/types"
)

var ErrIntervalNotSupported = errors.New("timeframe not supported")

var intervalToBinance = map[types.Interval]string{
	types.OneMinute:      "1m",
	types.ThreeMinutes:   "3m",
	types.FiveMinutes:    "5m",
	types.FifteenMinutes: "15m",
	types.ThirtyMinutes:  "30m",
	types.Hour:           "1h",
	types.TwoHours:       "2h",
	types.FourHours:      "4h",
	types.Day:            "1d",
	types.Week:           "1w",
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) buildURL(endpoint string, params map[string]string) string {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		panic(fmt.Sprintf("invalid base URL or endpoint: %v", err))
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetchJSON(ctx context.Context, fullURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http GET failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(target)
}

// Klines fetches up to limit candles for one symbol and interval, oldest
// first. Pass zero times to let the exchange pick the most recent window.
func (c *Client) Klines(ctx context.Context, symbol string, interval types.Interval, start, end time.Time, limit int) ([]types.Candle, error) {
	iv, ok := intervalToBinance[interval]
	if !ok {
		return nil, fmt.Errorf("%s: %w", interval, ErrIntervalNotSupported)
	}
	if limit <= 0 {
		limit = 500
	}

	params := map[string]string{
		"symbol":   symbol,
		"interval": iv,
		"limit":    strconv.Itoa(limit),
	}
	if !start.IsZero() {
		params["startTime"] = strconv.FormatInt(start.UnixMilli(), 10)
	}
	if !end.IsZero() {
		params["endTime"] = strconv.FormatInt(end.UnixMilli(), 10)
	}

	// Binance returns [][]mixed; decoding with UseNumber keeps the price
	// strings intact so they convert to decimals without float rounding.
	var raw [][]json.Number
	if err := c.fetchJSON(ctx, c.buildURL("/api/v3/klines", params), &raw); err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0, len(raw))
	for _, row := range raw {
		// [0] openTime, [1] O, [2] H, [3] L, [4] C, [5] volume, ...
		if len(row) < 6 {
			continue
		}
		candle, err := parseKline(row, interval)
		if err != nil {
			return nil, fmt.Errorf("parse kline: %w", err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKline(row []json.Number, interval types.Interval) (types.Candle, error) {
	ms, err := row[0].Int64()
	if err != nil {
		return types.Candle{}, err
	}

	fields := [5]decimal.Decimal{}
	for i := 0; i < 5; i++ {
		d, err := decimal.NewFromString(row[i+1].String())
		if err != nil {
			return types.Candle{}, err
		}
		fields[i] = d
	}

	return types.Candle{
		Timestamp: time.UnixMilli(ms).UTC(),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
		Interval:  interval,
	}, nil
}

// TickerPrice fetches the latest trade price for one symbol.
func (c *Client) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var pt struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	u := c.buildURL("/api/v3/ticker/price", map[string]string{"symbol": symbol})
	if err := c.fetchJSON(ctx, u, &pt); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(pt.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse ticker price %q: %w", pt.Price, err)
	}
	return price, nil
}
