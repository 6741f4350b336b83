// Package cli provides the command-line interface for manualdesk.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/manualdesk/internal/appstate"
	"github.com/raphaelgruber/manualdesk/internal/client"
	"github.com/raphaelgruber/manualdesk/internal/config"
	"github.com/raphaelgruber/manualdesk/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	apiURLFlag string
	localeFlag string
	themeFlag  string
	showStats  bool

	// Shared state, initialized in PersistentPreRunE
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func() error
	apiClient *client.Client
	collector *metrics.Collector
	store     *appstate.Store
	out       *console
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "manualdesk",
	Short: "Product manual lookup and assistant client",
	Long: `Manualdesk is a terminal client for the manual service.

Browse manuals by product category, upload and manage manual documents,
and chat with the assistant about a specific product.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if apiURLFlag != "" {
			cfg.APIURL = apiURLFlag
		}
		if localeFlag != "" {
			cfg.Locale = localeFlag
		}
		if themeFlag != "" {
			cfg.Theme = themeFlag
		}
		theme, err := appstate.ParseTheme(cfg.Theme)
		if err != nil {
			return err
		}

		logger, closeLog = config.SetupLogger(cfg, verbose)
		slog.SetDefault(logger)

		collector = metrics.NewCollector()
		apiClient = client.New(cfg.APIURL, client.Options{
			Timeouts: client.Timeouts{
				Chat:     cfg.ChatTimeout,
				Upload:   cfg.UploadTimeout,
				List:     cfg.ListTimeout,
				Delete:   cfg.DeleteTimeout,
				Download: cfg.DownloadTimeout,
				Summary:  cfg.SummaryTimeout,
			},
			Metrics: collector,
			Logger:  logger,
		})

		store = appstate.New(appstate.State{Locale: cfg.Locale, Theme: theme})
		out = newConsole(os.Stdout, themeFor(theme))
		store.Subscribe(func(s appstate.State) {
			out.setTheme(themeFor(s.Theme))
		})

		logger.Debug("manualdesk started", "api_url", apiClient.BaseURL(), "locale", cfg.Locale, "theme", theme)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if showStats && collector != nil {
			printStats(collector.Snapshot())
		}
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "manual service base URL (overrides MANUALDESK_API_URL)")
	rootCmd.PersistentFlags().StringVar(&localeFlag, "locale", "", "interface and answer language, e.g. en or es")
	rootCmd.PersistentFlags().StringVar(&themeFlag, "theme", "", "color theme: dark or light")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print request statistics on exit")

	// Add subcommands
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(brandsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(statsCmd)
}
