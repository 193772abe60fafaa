package explainer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"folio/internal/market"
)

// Portfolio maps asset names to allocation percentages.
type Portfolio map[string]float64

const systemPrompt = "You are a senior portfolio manager at a prestigious investment firm. " +
	"Provide professional investment recommendations using relevant market data, economic indicators, " +
	"and key metrics to support your decisions. Include specific numbers when they strengthen your " +
	"investment rationale. Speak with authority and expertise, but avoid overwhelming technical jargon " +
	"or confidence scores."

// assetOrder fixes the order assets appear in prompts and change summaries.
var assetOrder = []string{"Equities", "Gold", "Bitcoin", "REITs"}

type sectionRow struct {
	label     string
	indicator string
}

type marketSection struct {
	symbol        string
	title         string
	directionLine string
	rows          []sectionRow
}

var marketSections = []marketSection{
	{
		symbol:        "NIFTY50",
		title:         "INDIAN EQUITY MARKET DATA:",
		directionLine: "Market Direction: %s based on comprehensive analysis",
		rows: []sectionRow{
			{"Institutional Activity", "fii_dii_flows"},
			{"Technical Analysis", "technical_analysis"},
			{"Market Sentiment", "market_sentiment"},
			{"RBI Policy Impact", "rbi_policy"},
			{"Global Factors", "global_factors"},
		},
	},
	{
		symbol:        "GOLD",
		title:         "GOLD MARKET DATA:",
		directionLine: "Price Direction: %s based on multiple factors",
		rows: []sectionRow{
			{"Technical Momentum", "price_momentum"},
			{"Currency Impact", "usd_inr_impact"},
			{"Interest Rate Environment", "interest_rate_impact"},
			{"Inflation Indicators", "inflation_indicators"},
			{"Central Bank Activity", "global_sentiment"},
		},
	},
	{
		symbol:        "BITCOIN",
		title:         "BITCOIN MARKET DATA:",
		directionLine: "Market Momentum: %s across key metrics",
		rows: []sectionRow{
			{"Price Momentum", "micro_momentum"},
			{"Funding Conditions", "funding_rates"},
			{"Liquidity Analysis", "liquidity_analysis"},
			{"Order Flow", "order_flow"},
		},
	},
	{
		symbol:        "REIT",
		title:         "REIT MARKET DATA:",
		directionLine: "Sector Outlook: %s based on fundamental analysis",
		rows: []sectionRow{
			{"Technical Momentum", "technical_momentum"},
			{"Yield Environment", "yield_spread"},
			{"Investment Flows", "accumulation_flow"},
			{"Liquidity Conditions", "liquidity_risk"},
		},
	},
}

func buildPrompt(current, optimized Portfolio, contexts map[string]market.Context, riskProfile string) string {
	currentJSON, _ := json.Marshal(current)
	optimizedJSON, _ := json.Marshal(optimized)

	var b strings.Builder
	b.WriteString("You are providing investment advice to a client based on comprehensive market analysis. ")
	b.WriteString("Use specific market data and key metrics to justify your recommendations.\n\n")

	fmt.Fprintf(&b, "CLIENT PORTFOLIO REBALANCING:\n")
	fmt.Fprintf(&b, "Current Allocation: %s%%\n", currentJSON)
	fmt.Fprintf(&b, "Recommended Allocation: %s%%\n", optimizedJSON)
	fmt.Fprintf(&b, "Risk Profile: %s\n", riskProfile)
	fmt.Fprintf(&b, "Key Changes: %s\n\n", changesSummary(current, optimized))

	b.WriteString("CURRENT MARKET DATA & ANALYSIS:\n")
	b.WriteString(marketDataSections(contexts))
	b.WriteString("\n")

	b.WriteString(`ADVISORY GUIDELINES:
- Use specific market metrics, levels, and data points to support recommendations
- Reference key economic indicators, market levels, and important financial metrics
- Explain the reasoning behind each allocation using concrete market data
- Include relevant percentages, market levels, and key performance indicators
- Avoid confidence scores, sentiment numbers
- Make explanations sound authoritative and data-driven
- Each asset explanation should be 5-6 sentences with supporting market data

`)

	b.WriteString("PROFESSIONAL ADVISORY OUTPUT (Strict JSON):\n")
	b.WriteString(outputTemplate(current, optimized, riskProfile))
	b.WriteString("\nUse specific numbers, market levels, rates, and key metrics throughout to support professional investment decisions.\n")

	return b.String()
}

func marketDataSections(contexts map[string]market.Context) string {
	var sections []string
	for _, sec := range marketSections {
		mc, ok := contexts[sec.symbol]
		if !ok {
			continue
		}
		var b strings.Builder
		b.WriteString(sec.title + "\n")
		fmt.Fprintf(&b, sec.directionLine+"\n", sentimentDirection(mc.OverallSentiment))
		for _, row := range sec.rows {
			fmt.Fprintf(&b, "%s: %s\n", row.label, marketInsight(mc.Indicators[row.indicator]))
		}
		sections = append(sections, b.String())
	}
	return strings.Join(sections, "\n")
}

// marketInsight renders one indicator as prose, flagging strong momentum
// either way without exposing raw sentiment numbers.
func marketInsight(ind market.Indicator) string {
	description := ind.Description
	if description == "" {
		description = "Market conditions remain stable"
	}
	if ind.Sentiment > 0.2 {
		description += " (showing positive momentum)"
	} else if ind.Sentiment < -0.2 {
		description += " (showing defensive characteristics)"
	}
	return description
}

func sentimentDirection(sentiment float64) string {
	switch {
	case sentiment > 0.3:
		return "Strong bullish trend"
	case sentiment > 0.1:
		return "Constructive upward bias"
	case sentiment > -0.1:
		return "Neutral with mixed signals"
	case sentiment > -0.3:
		return "Cautious downward bias"
	default:
		return "Defensive positioning warranted"
	}
}

func changesSummary(current, optimized Portfolio) string {
	parts := make([]string, 0, len(assetOrder))
	for _, asset := range assetOrder {
		target, ok := optimized[asset]
		if !ok {
			continue
		}
		from := current[asset]
		change := target - from
		if change != 0 {
			parts = append(parts, fmt.Sprintf("%s: %v%% → %v%% (%+.1f%%)", asset, from, target, change))
		} else {
			parts = append(parts, fmt.Sprintf("%s: maintained at %v%%", asset, target))
		}
	}
	return strings.Join(parts, "; ")
}

// preciseChange describes a single asset's reallocation in words.
func preciseChange(asset string, current, optimized Portfolio) string {
	from := current[asset]
	target := optimized[asset]
	change := target - from
	switch {
	case change > 0:
		return fmt.Sprintf("increased by %.1f%% (from %v%% to %v%%)", change, from, target)
	case change < 0:
		return fmt.Sprintf("reduced by %.1f%% (from %v%% to %v%%)", math.Abs(change), from, target)
	default:
		return fmt.Sprintf("maintained at %v%%", target)
	}
}

func outputTemplate(current, optimized Portfolio, riskProfile string) string {
	assetSpecs := map[string]struct {
		explanation string
		marketData  string
	}{
		"Equities": {
			explanation: "5-6 sentences explaining the equity allocation using specific market data such as FII/DII flow numbers, index levels, VIX readings, repo rates, and global market performances. Reference actual market metrics and economic indicators.",
			marketData: `{
          "institutional_flows": "Specific FII/DII flow data and institutional activity metrics",
          "market_levels": "Current index levels, support/resistance, and technical indicators",
          "policy_metrics": "RBI repo rate, policy stance, and monetary policy impact",
          "sentiment_indicators": "VIX levels, fear/greed index, and market sentiment metrics",
          "global_context": "US market performance, DXY levels, and international influences"
        }`,
		},
		"Gold": {
			explanation: "5-6 sentences explaining gold allocation using specific data like gold prices, USD/INR levels, real interest rates, inflation metrics, and central bank gold purchases. Include relevant economic data and market metrics.",
			marketData: `{
          "price_levels": "Current gold prices, key support/resistance levels, and price momentum data",
          "currency_data": "USD/INR exchange rates, currency volatility, and impact analysis",
          "interest_rates": "Real interest rate levels, yield curves, and rate environment impact",
          "inflation_metrics": "CPI data, inflation expectations, and debasement indicators",
          "cb_activity": "Central bank gold purchases, reserve changes, and policy impacts"
        }`,
		},
		"Bitcoin": {
			explanation: "5-6 sentences explaining bitcoin allocation using specific metrics like price levels, funding rates, RSI readings, trading volumes, and institutional adoption data. Reference concrete crypto market indicators.",
			marketData: `{
          "price_momentum": "Current bitcoin price levels, RSI readings, and momentum indicators",
          "funding_metrics": "Perpetual funding rates, basis spreads, and derivative market data",
          "liquidity_data": "Trading volumes, order book depth, and market liquidity metrics",
          "flow_analysis": "Institutional flows, exchange inflows/outflows, and adoption metrics"
        }`,
		},
		"REITs": {
			explanation: "5-6 sentences explaining REIT allocation using specific data like dividend yields, price-to-book ratios, occupancy rates, interest rate spreads, and real estate market metrics. Include relevant property market indicators.",
			marketData: `{
          "valuation_metrics": "Current REIT P/B ratios, dividend yields, and valuation indicators",
          "yield_analysis": "REIT yields vs 10-year G-Sec spreads and income comparison metrics",
          "market_activity": "REIT trading volumes, institutional ownership, and market participation",
          "property_fundamentals": "Occupancy rates, rental growth, and underlying real estate metrics"
        }`,
		},
	}

	var assets strings.Builder
	for i, asset := range assetOrder {
		spec := assetSpecs[asset]
		fmt.Fprintf(&assets, `      "%s": {
        "allocation_pct": %v,
        "change_from_current": "%s",
        "explanation": "%s",
        "key_market_data": %s
      }`, asset, optimized[asset], preciseChange(asset, current, optimized), spec.explanation, spec.marketData)
		if i < len(assetOrder)-1 {
			assets.WriteString(",\n")
		} else {
			assets.WriteString("\n")
		}
	}

	return fmt.Sprintf(`{
  "portfolio_analysis": {
    "overall_explanation": "5-6 sentences explaining the overall investment strategy using market data, economic indicators, and key metrics that support the %s allocation approach",
    "allocation_rationale": "4-5 sentences explaining the specific allocation percentages using current market conditions, valuations, and key performance metrics",

    "assets": {
%s    },

    "portfolio_level": {
      "risk_profile": "%s",
      "market_environment": "Current market conditions using specific economic data, policy rates, inflation numbers, and key market indicators that influence portfolio positioning",
      "diversification_metrics": "How the allocation spreads risk using correlation data, volatility measures, and diversification benefits with specific percentages",
      "timing_analysis": "Why current market levels, valuations, and economic indicators make this an opportune time for rebalancing",
      "performance_outlook": "Expected portfolio characteristics using historical data, current valuations, and market cycle positioning"
    }
  }
}
`, riskProfile, assets.String(), riskProfile)
}
