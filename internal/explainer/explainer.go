package explainer

import (
	"context"
	"encoding/json"
	"fmt"

	"folio/internal/config"
	"folio/internal/history"
	"folio/internal/market"
	"folio/internal/observability"
)

const maxCompletionTokens = 8000

// Explainer turns a portfolio rebalance plus market context into a
// structured advisory document via Azure OpenAI.
type Explainer struct {
	client *azureClient
	log    *observability.Logger
}

func New(cfg *config.Config) *Explainer {
	return &Explainer{
		client: newAzureClient(cfg.AzureOpenAIEndpoint, cfg.AzureOpenAIDeployment,
			cfg.AzureOpenAIVersion, cfg.AzureOpenAIKey),
		log: observability.Component("explainer"),
	}
}

// Generate produces the advisory JSON document. Historical metrics are merged
// into each asset block after the model responds so the model never sees or
// rewrites computed numbers.
func (e *Explainer) Generate(ctx context.Context, current, optimized Portfolio,
	metrics map[string]history.Metrics, contexts map[string]market.Context, riskProfile string) (map[string]any, error) {

	prompt := buildPrompt(current, optimized, contexts, riskProfile)
	e.log.Debug(ctx, "advisory prompt built", "chars", len(prompt), "risk_profile", riskProfile)

	raw, err := e.client.complete(ctx, systemPrompt, prompt, maxCompletionTokens, true)
	if err != nil {
		return nil, fmt.Errorf("generate explanation: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON response from LLM: %w", err)
	}

	mergeMetrics(doc, metrics)
	return doc, nil
}

// Ping verifies Azure OpenAI connectivity with a minimal completion.
func (e *Explainer) Ping(ctx context.Context) error {
	return e.client.ping(ctx)
}

// mergeMetrics attaches historical returns, risk metrics, and current stats
// to each asset block the model produced. Unknown assets are left untouched.
func mergeMetrics(doc map[string]any, metrics map[string]history.Metrics) {
	analysis, ok := doc["portfolio_analysis"].(map[string]any)
	if !ok {
		return
	}
	assets, ok := analysis["assets"].(map[string]any)
	if !ok {
		return
	}
	for name, block := range assets {
		m, ok := metrics[name]
		if !ok {
			continue
		}
		assetBlock, ok := block.(map[string]any)
		if !ok {
			continue
		}
		assetBlock["historical_returns"] = m.Returns
		assetBlock["risk_metrics"] = m.Risk
		assetBlock["current_stats"] = m.Stats
	}
}
