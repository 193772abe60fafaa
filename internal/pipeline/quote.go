package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// QuoteFunc fetches the latest close for a market symbol. It is a func type
// so tests and alternative data sources can swap the implementation.
type QuoteFunc func(ctx context.Context, symbol string) (float64, error)

const quoteBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

var quoteClient = &http.Client{Timeout: 15 * time.Second}

// YahooQuote pulls the regular market price from the public chart endpoint.
func YahooQuote(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/%s?range=1d&interval=1d", quoteBaseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; folio/1.0)")

	resp, err := quoteClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("quote request for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("quote for %s returned %d", symbol, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Chart struct {
			Result []struct {
				Meta struct {
					RegularMarketPrice float64 `json:"regularMarketPrice"`
				} `json:"meta"`
			} `json:"result"`
			Error *struct {
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("decode quote for %s: %w", symbol, err)
	}
	if parsed.Chart.Error != nil {
		return 0, fmt.Errorf("quote for %s: %s", symbol, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 {
		return 0, fmt.Errorf("quote for %s: empty result", symbol)
	}

	price := parsed.Chart.Result[0].Meta.RegularMarketPrice
	if price <= 0 {
		return 0, fmt.Errorf("quote for %s: non-positive price %v", symbol, price)
	}
	return price, nil
}
