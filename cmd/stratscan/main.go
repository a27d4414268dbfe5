package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"stratscan/internal/alert"
	"stratscan/internal/config"
	"stratscan/internal/export"
	"stratscan/internal/logging"
	"stratscan/internal/provider"
	"stratscan/internal/scanner"
	"stratscan/internal/schedule"
	"stratscan/internal/symbols"
	"stratscan/pkg/model"
)

var version = "0.3.0"

var (
	cfgFile       string
	symbolList    string
	symbolFile    string
	universe      string
	timeframeList []string
	workers       int
	minConfluence int
	minSamples    int
	lookbackWeeks int
	horizons      []int
	side          string
	precision     string
	topN          int
	format        string
	emitJSON      string
	emitCSV       string
	verbose       bool
	dryRun        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stratscan",
		Short: "FTFC reversal scanner with trade-outcome statistics",
		Long: `Stratscan detects Strat reversal patterns (3-1-2u, 2d-2u, ...) whose
direction is confirmed across higher timeframes (full timeframe
continuity), replays each detection under a scale-out risk model, and
ranks setups by historical expectancy.

Examples:
  stratscan --symbols SPY,QQQ --timeframes 4hour,daily
  stratscan --universe extended --min-confluence 4 --format json
  stratscan cache stats
  stratscan schedule --dry-run`,
		RunE: runScan,
	}

	flags := rootCmd.Flags()
	flags.StringVar(&symbolList, "symbols", "", "comma-separated symbols to scan (default: configured universe)")
	flags.StringVar(&symbolFile, "symbol-file", "", "file with one symbol per line")
	flags.StringVar(&universe, "universe", "", "symbol universe: default, extended, test")
	flags.StringSliceVar(&timeframeList, "timeframes", nil, "trigger timeframes, e.g. 1hour,4hour,daily")
	flags.IntVar(&workers, "workers", 0, "number of parallel workers")
	flags.IntVar(&minConfluence, "min-confluence", 0, "higher timeframes that must agree with the reversal")
	flags.IntVar(&minSamples, "min-samples", 0, "minimum samples before a setup is reported")
	flags.IntVar(&lookbackWeeks, "lookback-weeks", 0, "window for frequency-per-week")
	flags.IntSliceVar(&horizons, "horizons", nil, "forward-move horizons in bars, e.g. 1,3,5,10")
	flags.StringVar(&side, "side", "", "trade direction: long, short, auto")
	flags.StringVar(&precision, "precision", "", "touch detection: ohlc, close")
	flags.IntVar(&topN, "top-n", 0, "setups to show in the summary table")
	flags.StringVar(&format, "format", "table", "output format: table, json")
	flags.StringVar(&emitJSON, "emit-json", "", "write the insights JSON document to this path")
	flags.StringVar(&emitCSV, "emit-csv", "", "write detailed and summary CSVs to this path")
	flags.BoolVar(&verbose, "verbose", false, "debug logging")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	rootCmd.AddCommand(newCacheCmd(), newScheduleCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the YAML config and layers the CLI flags that were
// actually set on top of it
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if symbolList != "" {
		cfg.Scan.Symbols = symbols.ParseList(symbolList)
	}
	if universe != "" {
		cfg.Scan.Universe = universe
	}
	if len(timeframeList) > 0 {
		tfs := make([]model.Timeframe, 0, len(timeframeList))
		for _, s := range timeframeList {
			tf, err := model.ParseTimeframe(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			tfs = append(tfs, tf)
		}
		cfg.Scan.Timeframes = tfs
	}
	if workers > 0 {
		cfg.Scan.Workers = workers
	}
	if cmd.Flags().Changed("min-confluence") {
		cfg.Scan.MinConfluence = minConfluence
	}
	if cmd.Flags().Changed("min-samples") {
		cfg.Analysis.MinSamples = minSamples
	}
	if cmd.Flags().Changed("lookback-weeks") {
		cfg.Analysis.LookbackWeeks = lookbackWeeks
	}
	if len(horizons) > 0 {
		cfg.Analysis.Horizons = horizons
	}
	if side != "" {
		cfg.Analysis.Side = side
	}
	if precision != "" {
		cfg.Analysis.Precision = precision
	}
	if cmd.Flags().Changed("top-n") {
		cfg.Analysis.TopN = topN
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping...")
		cancel()
	}()
	return ctx, cancel
}

// buildPipeline wires provider -> cache -> runner from the config
func buildPipeline(cfg *config.Config, logger zerolog.Logger) (*scanner.Runner, *provider.CacheManager) {
	source := provider.NewPolygonSource(cfg.Polygon.APIKey, cfg.Polygon.RateLimit, logger)
	cache := provider.NewCacheManager(source, cfg.Cache.Dir, cfg.Cache.TTL(), cfg.Scan.HistoryMonths, logger)

	runner := scanner.NewRunner(cache, scanner.Config{
		Workers:       cfg.Scan.Workers,
		MinHigherTFs:  cfg.Scan.MinConfluence,
		LookaheadBars: cfg.Scan.LookaheadBars,
		Side:          cfg.Side(),
		Risk:          cfg.Risk,
		Sim:           cfg.SimOptions(),
		Stats:         cfg.StatsOptions(),
	}, logger)
	return runner, cache
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	syms, err := symbols.Resolve(strings.Join(cfg.Scan.Symbols, ","), symbolFile, symbols.Universe(cfg.Scan.Universe))
	if err != nil {
		return err
	}
	if len(syms) == 0 {
		return fmt.Errorf("no symbols to scan")
	}

	ctx, cancel := signalContext()
	defer cancel()

	runner, _ := buildPipeline(cfg, logger)

	showProgress := format == "table"
	if showProgress {
		fmt.Printf("Scanning %d symbols across %d trigger timeframes...\n\n", len(syms), len(cfg.Scan.Timeframes))

		var fetchBar *progressbar.ProgressBar
		runner.SetFetchProgressCallback(func(done, total int) {
			if fetchBar == nil {
				fetchBar = newProgressBar(total, "Fetching")
			}
			fetchBar.Set(done)
		})
		var scanBar *progressbar.ProgressBar
		runner.SetProgressCallback(func(done, total int) {
			if scanBar == nil {
				fmt.Println()
				scanBar = newProgressBar(total, "Detecting")
			}
			scanBar.Set(done)
		})
	}

	result, err := runner.Run(ctx, syms, cfg.Scan.Timeframes)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	if showProgress {
		fmt.Println()
	}

	doc := export.BuildInsights(result.RunID, cfg.Side(), cfg.SimOptions().Precision, cfg.Risk, result.Summaries)

	if emitJSON != "" {
		if err := writeInsightsFile(emitJSON, doc); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Insights written to %s\n", emitJSON)
	}
	if emitCSV != "" {
		if err := writeCSVFiles(emitCSV, result, cfg); err != nil {
			return err
		}
	}

	if format == "json" {
		return export.WriteInsightsJSON(os.Stdout, doc)
	}
	outputSummaryTable(result, cfg)
	outputRecentEvents(result, cfg)
	fmt.Printf("\nScanned %d series, %d reversals, %d ranked setups in %s\n",
		result.SeriesCount, len(result.Events), len(result.Summaries), result.ScanTime.Round(time.Second))
	return nil
}

func outputSummaryTable(result *model.ScanResult, cfg *config.Config) {
	if len(result.Summaries) == 0 {
		fmt.Println("No setups cleared the minimum sample count.")
		return
	}

	summaries := result.Summaries
	if cfg.Analysis.TopN > 0 && len(summaries) > cfg.Analysis.TopN {
		summaries = summaries[:cfg.Analysis.TopN]
	}

	fmt.Printf("Top setups by expectancy (min %d samples):\n\n", cfg.Analysis.MinSamples)

	header := append([]string{}, cfg.Analysis.GroupBy...)
	header = append(header, "Samples", "Freq/Wk", "Win", "Exp R")
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader(header))
	for _, s := range summaries {
		row := make([]string, 0, len(header))
		for _, field := range cfg.Analysis.GroupBy {
			row = append(row, s.Setup[field])
		}
		row = append(row,
			fmt.Sprintf("%d", s.SampleCount),
			fmt.Sprintf("%.2f", s.FrequencyPerWeek),
			fmt.Sprintf("%.0f%%", s.WinRate*100),
			fmt.Sprintf("%+.2f", s.ExpectancyR),
		)
		table.Append(row)
	}
	table.Render()
}

// outputRecentEvents prints the freshest detections with their price
// levels, the rows a trader would act on
func outputRecentEvents(result *model.ScanResult, cfg *config.Config) {
	const maxRows = 15

	recent := make([]int, 0, maxRows)
	for i := len(result.Events) - 1; i >= 0 && len(recent) < maxRows; i-- {
		if result.Events[i].BarsAgo <= 5 {
			recent = append(recent, i)
		}
	}
	if len(recent) == 0 {
		return
	}

	fmt.Println("\nRecent reversals (within 5 bars):")
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "TF", "Pattern", "Time", "Entry", "Stop", "T1", "T2", "FTFC", "Mean R"}),
	)
	for _, i := range recent {
		ev := result.Events[i]
		levels := cfg.Risk.LevelsFor(ev.EntryPrice, cfg.Side().Sign(ev.HigherTFTrend))

		meanR := "-"
		if i < len(result.Results) && result.Results[i].Defined() {
			meanR = fmt.Sprintf("%+.2f", result.Results[i].MeanR)
		}
		table.Append([]string{
			ev.Symbol,
			string(ev.Timeframe),
			ev.Pattern,
			ev.ReversalTime.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.2f", ev.EntryPrice),
			fmt.Sprintf("%.2f", levels.Stop),
			fmt.Sprintf("%.2f", levels.Target1),
			fmt.Sprintf("%.2f", levels.Target2),
			fmt.Sprintf("%d", ev.ConfluenceCount),
			meanR,
		})
	}
	table.Render()
}

func writeInsightsFile(path string, doc export.InsightsDocument) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	return export.WriteInsightsJSON(f, doc)
}

// writeCSVFiles writes the detailed events CSV at path and the summary
// CSV next to it with a _summary suffix
func writeCSVFiles(path string, result *model.ScanResult, cfg *config.Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := export.WriteDetailedCSV(f, result.Events, result.Results, cfg.Risk, cfg.Side()); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	ext := filepath.Ext(path)
	summaryPath := strings.TrimSuffix(path, ext) + "_summary" + ext
	sf, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", summaryPath, err)
	}
	defer sf.Close()
	if err := export.WriteSummaryCSV(sf, result.Summaries, cfg.Analysis.GroupBy); err != nil {
		return fmt.Errorf("writing %s: %w", summaryPath, err)
	}

	fmt.Fprintf(os.Stderr, "CSVs written to %s and %s\n", path, summaryPath)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the stratscan version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stratscan %s\n", version)
		},
	}
}

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the on-disk bar cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache freshness and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format)
			_, cache := buildPipeline(cfg, logger)

			stats, err := cache.Stats()
			if err != nil {
				return fmt.Errorf("reading cache: %w", err)
			}

			table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"Metric", "Value"}))
			table.Append([]string{"Directory", cfg.Cache.Dir})
			table.Append([]string{"Files", fmt.Sprintf("%d", stats.Files)})
			table.Append([]string{"Fresh", fmt.Sprintf("%d", stats.Fresh)})
			table.Append([]string{"Stale", fmt.Sprintf("%d", stats.Stale)})
			table.Append([]string{"Size", fmt.Sprintf("%.1f KB", float64(stats.TotalBytes)/1024)})
			if !stats.OldestFetch.IsZero() {
				table.Append([]string{"Oldest fetch", stats.OldestFetch.Format(time.RFC3339)})
				table.Append([]string{"Newest fetch", stats.NewestFetch.Format(time.RFC3339)})
			}
			table.Render()
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached series",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format)
			_, cache := buildPipeline(cfg, logger)

			removed, err := cache.Clear()
			if err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			fmt.Printf("Removed %d cached series\n", removed)
			return nil
		},
	})

	preloadCmd := &cobra.Command{
		Use:   "preload",
		Short: "Fetch every configured series into the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format)

			syms, err := symbols.Resolve(strings.Join(cfg.Scan.Symbols, ","), symbolFile, symbols.Universe(cfg.Scan.Universe))
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			_, cache := buildPipeline(cfg, logger)

			// Preload the full context set, not just the triggers.
			minRank := len(model.TimeframeOrder) - 1
			for _, tf := range cfg.Scan.Timeframes {
				if tf.Rank() < minRank {
					minRank = tf.Rank()
				}
			}
			fetchTFs := model.TimeframeOrder[minRank:]

			bar := newProgressBar(len(syms)*len(fetchTFs), "Preloading")
			err = cache.Preload(ctx, syms, fetchTFs, func(done, total int) {
				bar.Set(done)
			})
			bar.Finish()
			fmt.Println()
			return err
		},
	}
	preloadCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated symbols")
	preloadCmd.Flags().StringVar(&universe, "universe", "", "symbol universe: default, extended, test")
	cacheCmd.AddCommand(preloadCmd)

	return cacheCmd
}

func newScheduleCmd() *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run scheduled scans on the market calendar",
		Long: `Runs the cron calendar from the config: higher timeframes before the
open, intraday timeframes at each hour's 45-minute mark while the
market is open. Alerts for qualifying setups go to the configured
notifier.`,
		RunE: runSchedule,
	}
	scheduleCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print upcoming scan times and exit")
	scheduleCmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")
	return scheduleCmd
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	syms, err := symbols.Resolve(strings.Join(cfg.Scan.Symbols, ","), symbolFile, symbols.Universe(cfg.Scan.Universe))
	if err != nil {
		return err
	}

	runner, _ := buildPipeline(cfg, logger)

	var notifier alert.Notifier
	if cfg.Alerts.Telegram.BotToken != "" && cfg.Alerts.Telegram.ChatID != "" {
		notifier = alert.NewTelegramNotifier(cfg.Alerts.Telegram.BotToken, cfg.Alerts.Telegram.ChatID, logger)
	} else {
		notifier = alert.NewLogNotifier(logger)
	}

	scan := func(ctx context.Context, timeframes []model.Timeframe) {
		result, err := runner.Run(ctx, syms, timeframes)
		if err != nil {
			logger.Error().Err(err).Msg("Scheduled scan failed")
			return
		}
		if !cfg.Alerts.Enabled {
			return
		}
		alerts := alert.Filter(result.Events, result.Summaries, cfg.Risk, cfg.Side(), cfg.Alerts.Thresholds)
		label := timeframeLabel(timeframes)
		alert.Dispatch(ctx, notifier, label, alerts, logger)
	}

	sched, err := schedule.NewScheduler(cfg.Schedule.Entries, scan, logger)
	if err != nil {
		return fmt.Errorf("building scheduler: %w", err)
	}

	if dryRun {
		status := schedule.GetMarketStatus(schedule.DefaultMarketSchedule())
		fmt.Printf("Market: %s\n\nUpcoming scans:\n", status.Reason)

		table := tablewriter.NewTable(os.Stdout, tablewriter.WithHeader([]string{"Time (ET)", "Spec", "Timeframes"}))
		for _, run := range sched.NextRuns(10) {
			table.Append([]string{
				run.At.Format("Mon 2006-01-02 15:04"),
				run.Spec,
				timeframeLabel(run.Timeframes),
			})
		}
		table.Render()
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func timeframeLabel(timeframes []model.Timeframe) string {
	parts := make([]string, len(timeframes))
	for i, tf := range timeframes {
		parts[i] = string(tf)
	}
	return strings.Join(parts, ", ")
}
