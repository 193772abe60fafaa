package market

// Indicator is one component insight extracted from a sentiment context file.
type Indicator struct {
	Sentiment   float64 `json:"sentiment"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// Context is the distilled market view for one backend symbol.
type Context struct {
	OverallSentiment float64              `json:"overall_sentiment"`
	ConfidenceLevel  float64              `json:"confidence_level"`
	Indicators       map[string]Indicator `json:"key_indicators"`

	// Degraded marks contexts built from neutral defaults after a failed
	// fetch. Consumers should soften any claims derived from them.
	Degraded bool `json:"degraded,omitempty"`
}

// Symbols lists the backend symbols with context files, in fetch order.
var Symbols = []string{"NIFTY50", "GOLD", "BITCOIN", "REIT"}

type componentMapping struct {
	indicator string
	component string
}

// componentMaps names which breakdown components feed which indicator per
// symbol. Some indicators intentionally share a source component.
var componentMaps = map[string][]componentMapping{
	"NIFTY50": {
		{"fii_dii_flows", "fii_dii_flows"},
		{"technical_analysis", "technical_analysis"},
		{"market_sentiment", "market_sentiment_vix"},
		{"rbi_policy", "rbi_interest_rates"},
		{"global_factors", "global_factors"},
	},
	"GOLD": {
		{"price_momentum", "technical_analysis"},
		{"usd_inr_impact", "real_interest_rates"},
		{"interest_rate_impact", "real_interest_rates"},
		{"inflation_indicators", "currency_debasement"},
		{"global_sentiment", "central_bank_sentiment"},
	},
	"BITCOIN": {
		{"micro_momentum", "micro_momentum"},
		{"funding_rates", "funding_basis"},
		{"liquidity_analysis", "liquidity"},
		{"order_flow", "orderflow"},
	},
	"REIT": {
		{"technical_momentum", "technical_momentum"},
		{"yield_spread", "yield_spread"},
		{"accumulation_flow", "accumulation_flow"},
		{"liquidity_risk", "liquidity_risk"},
	},
}

// DefaultContext is the neutral stand-in used when a context file cannot be
// fetched: zero sentiment, low confidence, no indicators.
func DefaultContext() Context {
	return Context{
		OverallSentiment: 0.0,
		ConfidenceLevel:  0.3,
		Indicators:       map[string]Indicator{},
		Degraded:         true,
	}
}
