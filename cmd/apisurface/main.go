package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apierrors "github.com/PentesterFlow/apisurface/internal/errors"
	"github.com/PentesterFlow/apisurface/internal/logger"
	"github.com/PentesterFlow/apisurface/internal/metrics"
	"github.com/PentesterFlow/apisurface/internal/output"
	"github.com/PentesterFlow/apisurface/internal/shutdown"
	"github.com/PentesterFlow/apisurface/internal/state"
	"github.com/PentesterFlow/apisurface/pkg/surface"
)

var (
	version = "1.0.0"

	// Global flags
	configFile  string
	verbose     bool
	debug       bool
	logFile     string
	outputFile  string
	format      string
	historyFile string

	// Scan flags
	concurrency     int
	rateLimit       float64
	probeTimeout    time.Duration
	rootTimeout     time.Duration
	headers         []string
	excludePatterns []string
	includePatterns []string
	stream          bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if apierrors.IsInvalidURL(err) {
			fmt.Fprintln(os.Stderr, err.Error())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "apisurface",
		Short: "apisurface - API surface discovery",
		Long: `apisurface guesses which paths on a host make up its REST or GraphQL API.

It scrapes the root page, reads well-known API descriptors, expands the paths it
finds and probes them, then ranks the endpoints that answered.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	scanCmd := &cobra.Command{
		Use:   "scan [url]",
		Short: "Discover the API behind a URL",
		Long:  "Discover the API endpoints behind a URL and print them ranked, best guess first.",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}

	historyCmd := &cobra.Command{
		Use:   "history [origin]",
		Short: "List recorded scans",
		Long:  "List scans recorded in a history file, optionally for one origin only.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to a rotating file")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&format, "format", output.FormatText, "Output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&historyFile, "history", "", "Scan history file (.db, .json or .json.gz)")

	// Scan flags
	scanCmd.Flags().IntVar(&concurrency, "concurrency", 16, "Maximum in-flight probes (0 = unbounded)")
	scanCmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "Requests per second (0 = unlimited)")
	scanCmd.Flags().DurationVar(&probeTimeout, "probe-timeout", 3*time.Second, "Timeout for each probe")
	scanCmd.Flags().DurationVar(&rootTimeout, "root-timeout", 8*time.Second, "Timeout for the root page")
	scanCmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra request header as key:value (repeatable)")
	scanCmd.Flags().StringArrayVar(&excludePatterns, "exclude", nil, "Path patterns never probed (regex, repeatable)")
	scanCmd.Flags().StringArrayVar(&includePatterns, "include", nil, "Only probe paths matching a pattern (regex, repeatable)")
	scanCmd.Flags().BoolVar(&stream, "stream", false, "Emit one JSON line per endpoint (json format only)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(historyCmd)

	return rootCmd
}

func buildConfig(cmd *cobra.Command) (*surface.Config, error) {
	config := surface.DefaultConfig()

	// Load config file if provided
	if configFile != "" {
		fileConfig, err := surface.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	// Command-line flags take precedence over the file
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		config.Concurrency = concurrency
	}
	if flags.Changed("rate-limit") {
		config.RequestsPerSecond = rateLimit
		if config.Burst < 1 {
			config.Burst = 1
		}
	}
	if flags.Changed("probe-timeout") {
		config.ProbeTimeout = probeTimeout
	}
	if flags.Changed("root-timeout") {
		config.RootTimeout = rootTimeout
	}
	if historyFile != "" {
		config.HistoryPath = historyFile
	}
	if logFile != "" {
		config.Log.FilePath = logFile
	}

	switch {
	case debug:
		config.Log.Level = "debug"
	case verbose:
		config.Log.Level = "info"
	}

	extra, err := parseHeaders(headers)
	if err != nil {
		return nil, err
	}
	if len(extra) > 0 && config.Headers == nil {
		config.Headers = make(map[string]string, len(extra))
	}
	for k, v := range extra {
		config.Headers[k] = v
	}
	config.ExcludePatterns = append(config.ExcludePatterns, excludePatterns...)
	config.IncludePatterns = append(config.IncludePatterns, includePatterns...)

	return config, nil
}

// parseHeaders parses "Key: value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, want key:value", h)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

func openOutput(h *shutdown.Handler) (output.Writer, error) {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		w = f
	}

	writer, err := output.NewWriter(w, output.Config{Format: format, Pretty: true, Stream: stream})
	if err != nil {
		return nil, err
	}
	if outputFile != "" {
		h.RegisterCloser("output", writer)
	}
	return writer, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	config, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	lcfg, err := config.LoggerConfig()
	if err != nil {
		return err
	}
	log := logger.New(lcfg)

	collector := metrics.New()
	s, err := surface.New(
		surface.WithConfig(config),
		surface.WithLogger(log),
		surface.WithMetrics(collector),
	)
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	h := shutdown.New(shutdown.Config{
		OnInterrupt: func(os.Signal) {
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, stopping...")
		},
		OnDone: func(elapsed time.Duration, errs []error) {
			for _, e := range errs {
				log.WithError(e).Warn("Cleanup failed")
			}
		},
	})
	h.RegisterCloser("scanner", s)
	h.Listen()
	defer h.Shutdown()

	writer, err := openOutput(h)
	if err != nil {
		return err
	}

	result, err := s.Scan(h.Context(), args[0])
	if err != nil {
		if h.Interrupted() {
			return fmt.Errorf("scan interrupted")
		}
		return err
	}

	log.StatsEvent(collector.Snapshot().Summary())

	if err := writer.WriteResult(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return writer.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyFile == "" {
		if configFile == "" {
			return fmt.Errorf("--history is required")
		}
		config, err := surface.LoadFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
		if config.HistoryPath == "" {
			return fmt.Errorf("--history is required")
		}
		historyFile = config.HistoryPath
	}

	store, err := state.Open(historyFile)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	h := shutdown.New(shutdown.DefaultConfig())
	h.RegisterCloser("history", store)
	defer h.Shutdown()

	records, err := loadHistory(store, args)
	if err != nil {
		return err
	}

	writer, err := openOutput(h)
	if err != nil {
		return err
	}
	if err := writer.WriteHistory(records); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return writer.Flush()
}

func loadHistory(store state.Store, args []string) ([]*state.ScanRecord, error) {
	if len(args) == 1 {
		return store.List(strings.TrimRight(args[0], "/"))
	}

	origins, err := store.Origins()
	if err != nil {
		return nil, fmt.Errorf("failed to list origins: %w", err)
	}

	var records []*state.ScanRecord
	for _, origin := range origins {
		list, err := store.List(origin)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", origin, err)
		}
		records = append(records, list...)
	}
	return records, nil
}
