package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"stratscan/internal/config"
	"stratscan/internal/logging"
	"stratscan/internal/provider"
	"stratscan/internal/strat"
	"stratscan/pkg/model"
)

// labelcheck is a provider/classifier smoke test: fetch a few series,
// print the latest labels per timeframe, and show the continuity read
// each symbol currently carries.

var checkSymbols = []string{"SPY", "QQQ", "AAPL"}

var checkTimeframes = []model.Timeframe{
	model.TF1Hour, model.TF4Hour, model.TFDaily, model.TFWeekly, model.TFMonthly,
}

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Polygon.APIKey == "" {
		log.Fatal("No Polygon API key configured (set POLYGON_API_KEY)")
	}

	logger := logging.New("warn", "console")
	source := provider.NewPolygonSource(cfg.Polygon.APIKey, cfg.Polygon.RateLimit, logger)
	cache := provider.NewCacheManager(source, cfg.Cache.Dir, cfg.Cache.TTL(), cfg.Scan.HistoryMonths, logger)
	ctx := context.Background()

	fmt.Println("=== Polygon / Classifier Check ===")

	for _, sym := range checkSymbols {
		fmt.Printf("\n[%s]\n", sym)
		for _, tf := range checkTimeframes {
			start := time.Now()
			candles, err := cache.GetBars(ctx, sym, tf)
			elapsed := time.Since(start)
			if err != nil {
				fmt.Printf("    %-8s ERROR: %v\n", tf, err)
				continue
			}

			series, err := strat.NewSeries(sym, tf, candles)
			if err != nil {
				fmt.Printf("    %-8s CLASSIFY ERROR: %v\n", tf, err)
				continue
			}

			n := series.Len()
			tail := series.Labels
			if n > 5 {
				tail = tail[n-5:]
			}
			last := series.Candles[n-1]
			fmt.Printf("    %-8s %4d bars, last %s C=%.2f, labels %v (%.1fs)\n",
				tf, n, last.Time.Format("2006-01-02 15:04"), last.Close, tail, elapsed.Seconds())
		}

		printContinuity(sym, cache, ctx)
	}

	stats, err := cache.Stats()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("\nCache: %d files (%d fresh, %d stale), %.1f KB\n",
		stats.Files, stats.Fresh, stats.Stale, float64(stats.TotalBytes)/1024)

	fmt.Println("\n=== Check Complete ===")
}

// printContinuity shows how many of the checked timeframes currently
// agree on a direction, the raw material of a confluence count
func printContinuity(sym string, cache *provider.CacheManager, ctx context.Context) {
	counts := map[model.Label]int{}
	for _, tf := range checkTimeframes {
		candles, err := cache.GetBars(ctx, sym, tf)
		if err != nil {
			continue
		}
		series, err := strat.NewSeries(sym, tf, candles)
		if err != nil || series.Len() == 0 {
			continue
		}
		label := series.Labels[series.Len()-1]
		if label.Directional() {
			counts[label]++
		}
	}
	fmt.Printf("    continuity: %d up, %d down of %d timeframes\n",
		counts[model.LabelTwoUp], counts[model.LabelTwoDown], len(checkTimeframes))
}
