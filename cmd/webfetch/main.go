package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/always-cache/webfetch"
	"github.com/always-cache/webfetch/cache"
	"github.com/always-cache/webfetch/history"
	"github.com/always-cache/webfetch/pkg/message"
	"github.com/always-cache/webfetch/pkg/textview"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// CLI flags
	configFilenameFlag  string
	userAgentFlag       string
	capacityFlag        int
	maxRedirectsFlag    int
	historyFilenameFlag string
	verbosityDebugFlag  bool
	verbosityTraceFlag  bool
	logFilenameFlag     string
	portFlag            int
	recentFlag          int

	// this is set by goreleaser
	version string
)

func main() {
	if version == "" {
		version = "DEV"
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "webfetch",
		Short:         "Fetch web and file resources with a freshness cache",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&configFilenameFlag, "config", "", "YAML config file")
	flags.StringVar(&userAgentFlag, "user-agent", message.DefaultUserAgent, "User-Agent header value")
	flags.IntVar(&capacityFlag, "capacity", cache.DefaultCapacity, "Number of responses kept in the cache")
	flags.IntVar(&maxRedirectsFlag, "max-redirects", 10, "Maximum number of redirects followed")
	flags.StringVar(&historyFilenameFlag, "history", "", "History DB file name (in-memory if empty)")
	flags.BoolVarP(&verbosityDebugFlag, "verbose", "v", false, "Verbosity: debug logging")
	flags.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flags.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stderr)")

	root.AddCommand(getCmd(), textCmd(), serveCmd(), historyCmd())
	return root
}

func setupLogger() error {
	logLevel := zerolog.InfoLevel
	if verbosityDebugFlag {
		logLevel = zerolog.DebugLevel
	}
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// stdout carries fetched content, so logs go to stderr
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stderr})
	if logFilenameFlag != "" {
		logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return fmt.Errorf("cannot open log file: %w", err)
		}
		logOutputs = append(logOutputs, logFileOutput)
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()
	return nil
}

// loadConfig reads the config file, if any, and applies the flags given on
// the command line over it.
func loadConfig(cmd *cobra.Command) (webfetch.FileConfig, error) {
	var fileConfig webfetch.FileConfig
	if configFilenameFlag != "" {
		var err error
		if fileConfig, err = webfetch.LoadConfig(configFilenameFlag); err != nil {
			return fileConfig, fmt.Errorf("loading config: %w", err)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("user-agent") || fileConfig.UserAgent == "" {
		fileConfig.UserAgent = userAgentFlag
	}
	if flags.Changed("capacity") || fileConfig.CacheCapacity == 0 {
		fileConfig.CacheCapacity = capacityFlag
	}
	if flags.Changed("max-redirects") || fileConfig.MaxRedirects == 0 {
		fileConfig.MaxRedirects = maxRedirectsFlag
	}
	if flags.Changed("history") {
		fileConfig.History = historyFilenameFlag
	}
	return fileConfig, nil
}

func newFetcher(cmd *cobra.Command) (*webfetch.Fetcher, error) {
	fileConfig, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	historyLog, err := history.Open(fileConfig.History)
	if err != nil {
		return nil, err
	}
	logger := log.Logger
	return webfetch.New(webfetch.Config{
		Cache:        cache.New(fileConfig.CacheCapacity, cache.WithLogger(logger)),
		UserAgent:    fileConfig.UserAgent,
		MaxRedirects: fileConfig.MaxRedirects,
		Transport:    fileConfig.Transport,
		Rules:        fileConfig.Rules,
		History:      historyLog,
		Logger:       &logger,
	}), nil
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get URL...",
		Short: "Print the responses for the given locators",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := newFetcher(cmd)
			if err != nil {
				return err
			}
			defer f.History().Close()
			return fetchEach(cmd, f, args, func(w io.Writer, res *message.Response) {
				if !res.Local {
					fmt.Fprintln(w, res.StatusLine())
					names := make([]string, 0, len(res.Header))
					for name := range res.Header {
						names = append(names, name)
					}
					sort.Strings(names)
					for _, name := range names {
						fmt.Fprintf(w, "%s: %s\n", name, res.Header[name])
					}
					fmt.Fprintln(w)
				}
				fmt.Fprintln(w, res.Text())
			})
		},
	}
}

func textCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text URL...",
		Short: "Print the bodies of the given locators without tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := newFetcher(cmd)
			if err != nil {
				return err
			}
			defer f.History().Close()
			return fetchEach(cmd, f, args, func(w io.Writer, res *message.Response) {
				fmt.Fprintln(w, textview.Strip(res.Text()))
			})
		},
	}
}

// fetchEach fetches the locators in order through one fetcher, so repeated
// locators can be served from the cache.
func fetchEach(cmd *cobra.Command, f *webfetch.Fetcher, locators []string, print func(io.Writer, *message.Response)) error {
	for _, raw := range locators {
		result, status, err := f.FetchResult(cmd.Context(), raw)
		if err != nil {
			log.Error().Err(err).Str("url", raw).Msg("Fetch failed")
			return err
		}
		log.Info().Str("url", raw).Str("cache-status", status.String()).Msg("Fetched")
		print(cmd.OutOrStdout(), result.Response)
	}
	stats := f.Stats()
	log.Info().
		Int("accesses", stats.Accesses).
		Int("hits", stats.Hits).
		Int("entries", stats.Len).
		Msg("Cache stats")
	return nil
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent fetches from the history DB",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fileConfig, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			historyLog, err := history.Open(fileConfig.History)
			if err != nil {
				return err
			}
			defer historyLog.Close()
			records, err := historyLog.Recent(recentFlag)
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\t%s\n",
					rec.FetchedAt.Format("2006-01-02 15:04:05"), rec.StatusCode, rec.URL, rec.CacheStatus)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&recentFlag, "number", "n", 20, "Number of records to list")
	return cmd
}
