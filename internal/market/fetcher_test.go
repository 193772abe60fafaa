package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const niftyPayload = `{
	"sentiment_analysis": {"overall_sentiment": 0.42, "confidence_level": 0.8},
	"component_breakdown": {
		"fii_dii_flows": {"sentiment": 0.6, "confidence": 0.9, "description": "strong FII buying"},
		"technical_analysis": {"sentiment": 0.3, "confidence": 0.7, "description": "above key averages"},
		"market_sentiment_vix": {"sentiment": -0.1, "confidence": 0.6, "description": "vix elevated"}
	}
}`

func TestFetchAllDirectResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/jobs/job-1/context/NIFTY50" {
			w.Write([]byte(niftyPayload))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	contexts := NewFetcher(srv.URL).FetchAll(context.Background(), "job-1")
	if len(contexts) != len(Symbols) {
		t.Fatalf("contexts = %d, want %d", len(contexts), len(Symbols))
	}

	nifty := contexts["NIFTY50"]
	if nifty.Degraded {
		t.Fatal("successful fetch marked degraded")
	}
	if nifty.OverallSentiment != 0.42 || nifty.ConfidenceLevel != 0.8 {
		t.Fatalf("sentiment = %v confidence = %v", nifty.OverallSentiment, nifty.ConfidenceLevel)
	}
	if got := nifty.Indicators["fii_dii_flows"].Description; got != "strong FII buying" {
		t.Fatalf("fii_dii_flows description = %q", got)
	}
	// rbi_policy component absent from the breakdown, default fills in
	rbi := nifty.Indicators["rbi_policy"]
	if rbi.Sentiment != 0 || rbi.Confidence != 0.5 {
		t.Fatalf("missing component defaults wrong: %+v", rbi)
	}
}

func TestFetchAllContextDataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/jobs/job-2/context/GOLD" {
			w.Write([]byte(`{"context_data": {
				"sentiment_analysis": {"overall_sentiment": -0.2},
				"component_breakdown": {"technical_analysis": {"sentiment": -0.4, "description": "below trend"}}
			}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	gold := NewFetcher(srv.URL).FetchAll(context.Background(), "job-2")["GOLD"]
	if gold.OverallSentiment != -0.2 {
		t.Fatalf("sentiment = %v", gold.OverallSentiment)
	}
	if gold.ConfidenceLevel != 0.5 {
		t.Fatalf("missing confidence_level should default to 0.5, got %v", gold.ConfidenceLevel)
	}
	// price_momentum maps onto the technical_analysis component
	if got := gold.Indicators["price_momentum"].Sentiment; got != -0.4 {
		t.Fatalf("price_momentum sentiment = %v", got)
	}
	if gold.Indicators["price_momentum"].Confidence != 0.5 {
		t.Fatal("component without confidence should default to 0.5")
	}
}

func TestFetchAllDegradesOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	old := retryInterval
	retryInterval = time.Millisecond
	defer func() { retryInterval = old }()

	contexts := NewFetcher(srv.URL).FetchAll(context.Background(), "job-3")
	for _, symbol := range Symbols {
		mc := contexts[symbol]
		if !mc.Degraded {
			t.Fatalf("%s: expected degraded context", symbol)
		}
		if mc.OverallSentiment != 0 || mc.ConfidenceLevel != 0.3 {
			t.Fatalf("%s: neutral defaults wrong: %+v", symbol, mc)
		}
	}
}

func TestComponentMapOrderStable(t *testing.T) {
	mappings := componentMaps["BITCOIN"]
	want := []string{"micro_momentum", "funding_rates", "liquidity_analysis", "order_flow"}
	if len(mappings) != len(want) {
		t.Fatalf("mappings = %v", mappings)
	}
	for i := range want {
		if mappings[i].indicator != want[i] {
			t.Fatalf("mappings[%d] = %q, want %q", i, mappings[i].indicator, want[i])
		}
	}
}
