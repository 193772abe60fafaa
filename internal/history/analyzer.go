package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"folio/internal/config"
	"folio/internal/observability"
)

// Analyzer produces per-asset metric blocks from whatever price history is
// available: parquet bars written by the pipeline, the bootstrap CSV, or a
// deterministic sample series when neither exists.
type Analyzer struct {
	store   *Store
	csvPath string
	log     *observability.Logger
}

func NewAnalyzer(dataDir string) (*Analyzer, error) {
	store, err := NewStore(filepath.Join(dataDir, "prices"))
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		store:   store,
		csvPath: filepath.Join(dataDir, "historical_data.csv"),
		log:     observability.Component("history.analyzer"),
	}, nil
}

// Store exposes the underlying bar store so the pipeline can append to it.
func (a *Analyzer) Store() *Store {
	return a.store
}

// CalculateMetrics computes the full metric block for every asset in the
// portfolio universe. It never returns a partial result: assets without
// usable history get sample-series metrics.
func (a *Analyzer) CalculateMetrics(ctx context.Context) (map[string]Metrics, error) {
	series, source, err := a.loadSeries(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]Metrics, len(config.Assets))
	for _, asset := range config.Assets {
		closes := series[asset]
		assetSource := source
		if len(closes) < 5 {
			a.log.Warn(ctx, "no usable history, using sample series", "asset", asset, "points", len(closes))
			closes = SampleSeries(asset)
			assetSource = "sample_data"
		}
		results[asset] = ComputeMetrics(asset, closes, assetSource)
		a.log.Debug(ctx, "metrics calculated", "asset", asset, "points", len(closes), "source", assetSource)
	}
	return results, nil
}

// loadSeries merges the bootstrap CSV with pipeline bars. Bars dated after
// the CSV window extend the series; with no CSV the bars stand alone.
func (a *Analyzer) loadSeries(ctx context.Context) (map[string][]float64, string, error) {
	series := map[string][]float64{}
	source := "live_pipeline"

	if _, err := os.Stat(a.csvPath); err == nil {
		csvSeries, err := LoadCSV(a.csvPath)
		if err != nil {
			return nil, "", err
		}
		series = csvSeries
		source = "historical_csv"
		a.log.Debug(ctx, "csv history loaded", "path", a.csvPath, "assets", len(csvSeries))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, "", err
	}

	bars, err := a.store.ReadAll()
	if err != nil {
		return nil, "", err
	}
	for asset, assetBars := range bars {
		for _, b := range assetBars {
			series[asset] = append(series[asset], b.Close)
		}
	}

	return series, source, nil
}
