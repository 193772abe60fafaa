package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"folio/internal/cache"
	"folio/internal/config"
	"folio/internal/history"
	"folio/internal/observability"
)

// MetricsCacheKey is where the updater stores the serialized metrics map.
const MetricsCacheKey = "all"

// UpdateInfo records the outcome of one pipeline run. It is persisted so
// the backup task can tell whether the morning run succeeded.
type UpdateInfo struct {
	Timestamp     time.Time `json:"timestamp"`
	Trigger       string    `json:"trigger"`
	Success       bool      `json:"success"`
	AssetsUpdated []string  `json:"assets_updated"`
	Errors        []string  `json:"errors,omitempty"`
}

// Updater is the live data pipeline: fetch quotes, append bars, recompute
// metrics, refresh the cache.
type Updater struct {
	analyzer *history.Analyzer
	cache    cache.Store
	cacheTTL time.Duration
	quote    QuoteFunc
	infoPath string
	log      *observability.Logger

	mu sync.Mutex
}

func NewUpdater(analyzer *history.Analyzer, store cache.Store, cfg *config.Config) *Updater {
	return &Updater{
		analyzer: analyzer,
		cache:    store,
		cacheTTL: cfg.CacheTTL,
		quote:    YahooQuote,
		infoPath: filepath.Join(cfg.DataDir, "last_update.json"),
		log:      observability.Component("pipeline"),
	}
}

// SetQuoteFunc swaps the market data source. Intended for tests.
func (u *Updater) SetQuoteFunc(fn QuoteFunc) {
	u.quote = fn
}

// UpdateAll runs one full pipeline pass. A failed quote for one asset does
// not abort the run; the error is recorded and the remaining assets proceed.
func (u *Updater) UpdateAll(ctx context.Context, trigger string) (*UpdateInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "pipeline.update_all",
		attribute.String("trigger", trigger))
	defer span.End()

	u.log.Info(ctx, "pipeline run starting", "trigger", trigger)

	info := &UpdateInfo{Timestamp: time.Now().UTC(), Trigger: trigger}
	day := history.Day(time.Now())

	var bars []history.Bar
	for _, asset := range config.Assets {
		symbol := config.QuoteSymbols[asset]
		price, err := u.quote(ctx, symbol)
		if err != nil {
			u.log.Warn(ctx, "quote fetch failed", "asset", asset, "symbol", symbol, "error", err)
			info.Errors = append(info.Errors, fmt.Sprintf("%s: %v", asset, err))
			continue
		}
		bars = append(bars, history.Bar{Asset: asset, Date: day, Close: price})
		info.AssetsUpdated = append(info.AssetsUpdated, asset)
	}

	if len(bars) > 0 {
		if err := u.analyzer.Store().Append(bars); err != nil {
			return nil, fmt.Errorf("append bars: %w", err)
		}
	}

	if err := u.refreshCache(ctx); err != nil {
		info.Errors = append(info.Errors, err.Error())
	}

	info.Success = len(info.Errors) == 0
	if err := u.saveInfo(info); err != nil {
		u.log.Warn(ctx, "persist update info failed", "error", err)
	}

	u.log.Info(ctx, "pipeline run finished",
		"trigger", trigger, "updated", len(info.AssetsUpdated), "errors", len(info.Errors))
	return info, nil
}

// FullRefresh clears the metrics cache, compacts the bar store, and runs a
// complete update. Used by the weekly maintenance task.
func (u *Updater) FullRefresh(ctx context.Context) (*UpdateInfo, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.full_refresh")
	defer span.End()

	if err := u.cache.Delete(ctx, MetricsCacheKey); err != nil {
		u.log.Warn(ctx, "cache clear failed", "error", err)
	}
	if err := u.analyzer.Store().Compact(); err != nil {
		return nil, fmt.Errorf("compact bar store: %w", err)
	}
	return u.UpdateAll(ctx, "weekly_refresh")
}

// CachedMetrics returns the metrics map, recomputing and caching it on miss.
func (u *Updater) CachedMetrics(ctx context.Context) (map[string]history.Metrics, error) {
	raw, err := u.cache.Get(ctx, MetricsCacheKey)
	if err == nil {
		var metrics map[string]history.Metrics
		if err := json.Unmarshal(raw, &metrics); err == nil {
			return metrics, nil
		}
		u.log.Warn(ctx, "cached metrics unreadable, recomputing")
	} else if !errors.Is(err, cache.ErrMiss) {
		u.log.Warn(ctx, "cache read failed, recomputing", "error", err)
	}

	metrics, err := u.analyzer.CalculateMetrics(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(metrics); err == nil {
		if err := u.cache.Set(ctx, MetricsCacheKey, raw, u.cacheTTL); err != nil {
			u.log.Warn(ctx, "cache write failed", "error", err)
		}
	}
	return metrics, nil
}

func (u *Updater) refreshCache(ctx context.Context) error {
	metrics, err := u.analyzer.CalculateMetrics(ctx)
	if err != nil {
		return fmt.Errorf("calculate metrics: %w", err)
	}
	raw, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if err := u.cache.Set(ctx, MetricsCacheKey, raw, u.cacheTTL); err != nil {
		return fmt.Errorf("cache metrics: %w", err)
	}
	return nil
}

// LastUpdate reads the persisted outcome of the most recent run. Returns
// nil with no error when no run has happened yet.
func (u *Updater) LastUpdate() (*UpdateInfo, error) {
	data, err := os.ReadFile(u.infoPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info UpdateInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode update info: %w", err)
	}
	return &info, nil
}

func (u *Updater) saveInfo(info *UpdateInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	tmp := u.infoPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, u.infoPath)
}
