package history

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	tradingDaysPerYear = 252
	riskFreeRate       = 0.06
)

type Returns struct {
	OneMonth     string `json:"1_month"`
	ThreeMonths  string `json:"3_months"`
	SixMonths    string `json:"6_months"`
	OneYear      string `json:"1_year"`
	FiveYearsAvg string `json:"5_years_avg"`
	TenYearsAvg  string `json:"10_years_avg"`
}

type Risk struct {
	Volatility  string `json:"volatility"`
	MaxDrawdown string `json:"max_drawdown"`
	SharpeRatio string `json:"sharpe_ratio"`
	VaR95       string `json:"var_95"`
}

type Stats struct {
	CurrentPrice    float64 `json:"current_price"`
	SMA50           float64 `json:"sma_50"`
	SMA200          float64 `json:"sma_200"`
	AvgAnnualReturn string  `json:"avg_annual_return"`
}

type Quality struct {
	DataPoints   int     `json:"data_points"`
	Completeness float64 `json:"completeness"`
	YearsOfData  float64 `json:"years_of_data"`
}

// Metrics is the full per-asset analysis block. Every field is always
// populated: when the series is too short, per-asset defaults fill in.
type Metrics struct {
	AssetName    string  `json:"asset_name"`
	CurrentPrice float64 `json:"current_price"`
	LastUpdate   string  `json:"last_update"`
	DataSource   string  `json:"data_source"`
	Returns      Returns `json:"historical_returns"`
	Risk         Risk    `json:"risk_metrics"`
	Stats        Stats   `json:"current_stats"`
	Quality      Quality `json:"data_quality"`
}

type assetDefaults struct {
	price   float64
	returns Returns
	risk    Risk
}

var fallbackDefaults = map[string]assetDefaults{
	"Equities": {
		price:   25000,
		returns: Returns{"2.1%", "5.2%", "8.5%", "15.0%", "12.0%", "11.0%"},
		risk:    Risk{"18.0%", "-22.0%", "0.95", "-2.1%"},
	},
	"Gold": {
		price:   65000,
		returns: Returns{"1.5%", "4.2%", "12.5%", "8.0%", "10.0%", "8.5%"},
		risk:    Risk{"15.0%", "-18.0%", "1.05", "-1.8%"},
	},
	"Bitcoin": {
		price:   4500000,
		returns: Returns{"-5.2%", "15.8%", "45.2%", "45.0%", "80.0%", "120.0%"},
		risk:    Risk{"65.0%", "-75.0%", "0.85", "-4.8%"},
	},
	"REITs": {
		price:   180,
		returns: Returns{"1.8%", "4.5%", "8.2%", "12.0%", "15.0%", "13.5%"},
		risk:    Risk{"22.0%", "-28.0%", "0.88", "-2.8%"},
	},
}

// ComputeMetrics calculates the complete metric block for one chronological
// close-price series.
func ComputeMetrics(asset string, closes []float64, source string) Metrics {
	if len(closes) < 5 {
		return FallbackMetrics(asset)
	}

	current := closes[len(closes)-1]
	def := defaultsFor(asset)

	returns := Returns{
		OneMonth:     safeReturn(closes, 21, def.returns.OneMonth),
		ThreeMonths:  safeReturn(closes, 63, def.returns.ThreeMonths),
		SixMonths:    safeReturn(closes, 126, def.returns.SixMonths),
		OneYear:      safeReturn(closes, tradingDaysPerYear, def.returns.OneYear),
		FiveYearsAvg: safeReturn(closes, tradingDaysPerYear*5, def.returns.FiveYearsAvg),
		TenYearsAvg:  safeReturn(closes, tradingDaysPerYear*10, def.returns.TenYearsAvg),
	}

	risk := Risk{
		Volatility:  safeVolatility(closes, def.risk.Volatility),
		MaxDrawdown: safeDrawdown(closes, def.risk.MaxDrawdown),
		SharpeRatio: safeSharpe(closes, def.risk.SharpeRatio),
		VaR95:       safeVaR(closes, def.risk.VaR95),
	}

	avgAnnual := returns.FiveYearsAvg
	if avgAnnual == "" {
		avgAnnual = returns.OneYear
	}

	n := len(closes)
	return Metrics{
		AssetName:    asset,
		CurrentPrice: current,
		LastUpdate:   time.Now().UTC().Format(time.RFC3339),
		DataSource:   source,
		Returns:      returns,
		Risk:         risk,
		Stats: Stats{
			CurrentPrice:    current,
			SMA50:           sma(closes, 50),
			SMA200:          sma(closes, 200),
			AvgAnnualReturn: avgAnnual,
		},
		Quality: Quality{
			DataPoints:   n,
			Completeness: math.Min(float64(n)/float64(tradingDaysPerYear*5), 1.0),
			YearsOfData:  float64(n) / tradingDaysPerYear,
		},
	}
}

// FallbackMetrics returns the complete per-asset default block, used when no
// usable series exists.
func FallbackMetrics(asset string) Metrics {
	def := defaultsFor(asset)
	return Metrics{
		AssetName:    asset,
		CurrentPrice: def.price,
		LastUpdate:   time.Now().UTC().Format(time.RFC3339),
		DataSource:   "complete_fallback",
		Returns:      def.returns,
		Risk:         def.risk,
		Stats: Stats{
			CurrentPrice:    def.price,
			SMA50:           def.price * 0.98,
			SMA200:          def.price * 0.95,
			AvgAnnualReturn: def.returns.FiveYearsAvg,
		},
	}
}

func defaultsFor(asset string) assetDefaults {
	if def, ok := fallbackDefaults[asset]; ok {
		return def
	}
	return fallbackDefaults["Equities"]
}

// safeReturn computes the trailing return over the given number of trading
// days. Periods over a year are annualized. When the series is shorter than
// the period, the available span is annualized and projected; very short
// series fall back to the default.
func safeReturn(closes []float64, days int, fallback string) string {
	n := len(closes)
	if n < days+1 {
		if n < 30 {
			return fallback
		}
		spanYears := float64(n-1) / tradingDaysPerYear
		total := closes[n-1]/closes[0] - 1
		if spanYears <= 0 || total <= -1 {
			return fallback
		}
		annualized := math.Pow(1+total, 1/spanYears) - 1
		targetYears := float64(days) / tradingDaysPerYear
		adjusted := math.Pow(1+annualized, targetYears) - 1
		return formatPct(adjusted * 100)
	}

	start := closes[n-days-1]
	end := closes[n-1]
	if start <= 0 {
		return fallback
	}
	total := end/start - 1
	years := float64(days) / tradingDaysPerYear
	if years <= 1 {
		return formatPct(total * 100)
	}
	annualized := math.Pow(1+total, 1/years) - 1
	return formatPct(annualized * 100)
}

func safeVolatility(closes []float64, fallback string) string {
	rets := dailyReturns(closes)
	if len(rets) < 20 {
		return fallback
	}
	vol := stddev(rets) * math.Sqrt(tradingDaysPerYear) * 100
	return formatPct(vol)
}

func safeDrawdown(closes []float64, fallback string) string {
	if len(closes) < 30 {
		return fallback
	}
	peak := closes[0]
	worst := 0.0
	for _, p := range closes {
		if p > peak {
			peak = p
		}
		dd := (p - peak) / peak
		if dd < worst {
			worst = dd
		}
	}
	return formatPct(worst * 100)
}

func safeSharpe(closes []float64, fallback string) string {
	rets := dailyReturns(closes)
	if len(rets) < 100 {
		return fallback
	}
	vol := stddev(rets) * math.Sqrt(tradingDaysPerYear)
	if vol == 0 {
		return fallback
	}
	excess := mean(rets)*tradingDaysPerYear - riskFreeRate
	return fmt.Sprintf("%.2f", excess/vol)
}

func safeVaR(closes []float64, fallback string) string {
	rets := dailyReturns(closes)
	if len(rets) < 20 {
		return fallback
	}
	sorted := append([]float64(nil), rets...)
	sort.Float64s(sorted)
	idx := int(0.05 * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return formatPct(sorted[idx] * 100)
}

func sma(closes []float64, period int) float64 {
	n := len(closes)
	if n == 0 {
		return 0
	}
	if n < period {
		return closes[n-1]
	}
	sum := 0.0
	for _, p := range closes[n-period:] {
		sum += p
	}
	return sum / float64(period)
}

func dailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
