package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"

	"folio/internal/observability"
)

const (
	fetchTimeout  = 30 * time.Second
	maxFetchTries = 3
)

// retryInterval is a var so tests can avoid real sleeps.
var retryInterval = 1 * time.Second

// Fetcher pulls per-symbol sentiment context files from the asset backend.
// A circuit breaker keeps a flapping backend from stalling every request,
// and failed fetches degrade to neutral defaults rather than erroring out.
type Fetcher struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *observability.Logger
}

func NewFetcher(baseURL string) *Fetcher {
	return &Fetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: fetchTimeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "asset-backend",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		log: observability.Component("market.fetcher"),
	}
}

// FetchAll returns a context for every symbol. It never fails outright:
// symbols whose fetch errors get a degraded default context.
func (f *Fetcher) FetchAll(ctx context.Context, jobID string) map[string]Context {
	out := make(map[string]Context, len(Symbols))
	for _, symbol := range Symbols {
		mc, err := f.fetchOne(ctx, jobID, symbol)
		if err != nil {
			f.log.Warn(ctx, "context fetch failed, using neutral default", "symbol", symbol, "error", err)
			out[symbol] = DefaultContext()
			continue
		}
		f.log.Debug(ctx, "context fetched", "symbol", symbol,
			"sentiment", mc.OverallSentiment, "confidence", mc.ConfidenceLevel)
		out[symbol] = mc
	}
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, jobID, symbol string) (Context, error) {
	url := fmt.Sprintf("%s/jobs/%s/context/%s", f.baseURL, jobID, symbol)

	operation := func() ([]byte, error) {
		res, err := f.breaker.Execute(func() (any, error) {
			return f.get(ctx, url)
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		if err != nil {
			return nil, err
		}
		return res.([]byte), nil
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(retryInterval)),
		backoff.WithMaxTries(maxFetchTries))
	if err != nil {
		return Context{}, err
	}
	return parseContext(symbol, body)
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

type rawComponent struct {
	Sentiment   float64  `json:"sentiment"`
	Confidence  *float64 `json:"confidence"`
	Description string   `json:"description"`
}

type rawContext struct {
	SentimentAnalysis struct {
		OverallSentiment float64  `json:"overall_sentiment"`
		ConfidenceLevel  *float64 `json:"confidence_level"`
	} `json:"sentiment_analysis"`
	ComponentBreakdown map[string]rawComponent `json:"component_breakdown"`
}

// parseContext unwraps the optional context_data envelope and projects the
// component breakdown onto the symbol's indicator set.
func parseContext(symbol string, body []byte) (Context, error) {
	var envelope struct {
		ContextData json.RawMessage `json:"context_data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Context{}, fmt.Errorf("decode context response: %w", err)
	}
	payload := body
	if len(envelope.ContextData) > 0 {
		payload = envelope.ContextData
	}

	var raw rawContext
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Context{}, fmt.Errorf("decode context payload: %w", err)
	}

	mc := Context{
		OverallSentiment: raw.SentimentAnalysis.OverallSentiment,
		ConfidenceLevel:  0.5,
		Indicators:       make(map[string]Indicator),
	}
	if raw.SentimentAnalysis.ConfidenceLevel != nil {
		mc.ConfidenceLevel = *raw.SentimentAnalysis.ConfidenceLevel
	}

	for _, m := range componentMaps[symbol] {
		mc.Indicators[m.indicator] = componentInsight(raw.ComponentBreakdown, m.component)
	}
	return mc, nil
}

func componentInsight(breakdown map[string]rawComponent, name string) Indicator {
	comp, ok := breakdown[name]
	if !ok {
		return Indicator{
			Sentiment:   0.0,
			Confidence:  0.5,
			Description: fmt.Sprintf("No %s data available", name),
		}
	}
	ind := Indicator{Sentiment: comp.Sentiment, Confidence: 0.5, Description: comp.Description}
	if comp.Confidence != nil {
		ind.Confidence = *comp.Confidence
	}
	if ind.Description == "" {
		ind.Description = name + " analysis"
	}
	return ind
}
