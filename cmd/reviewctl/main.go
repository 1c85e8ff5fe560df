// Command reviewctl runs review gallery operations from a shell: a sync for
// one shop, a look at its pending queue, or a one-off rating of a CSV.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/reviewgallery/internal/config"
	"github.com/JonMunkholm/reviewgallery/internal/core"
	"github.com/JonMunkholm/reviewgallery/internal/csvfeed"
	"github.com/JonMunkholm/reviewgallery/internal/logging"
	"github.com/JonMunkholm/reviewgallery/internal/sheetscript"
	"github.com/JonMunkholm/reviewgallery/internal/shopify"
	"github.com/JonMunkholm/reviewgallery/internal/store"
)

var (
	// Global flags
	logLevel string
	timeout  time.Duration
	shop     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reviewctl",
	Short: "Review gallery maintenance commands",
	Long: `reviewctl talks to the same database and Google Sheets as the admin
server. Configuration comes from the environment and an optional .env file.

Log output goes to stderr; command output goes to stdout.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Overload()
		logging.SetupWriter(os.Stderr, logLevel, "text")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	syncCmd.Flags().StringVar(&shop, "shop", "", "Shop domain, e.g. demo.myshopify.com (required)")
	_ = syncCmd.MarkFlagRequired("shop")
	pendingCmd.Flags().StringVar(&shop, "shop", "", "Shop domain, e.g. demo.myshopify.com (required)")
	_ = pendingCmd.MarkFlagRequired("shop")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(ratingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		os.Exit(1)
	}
}

// openService builds the service from the environment. The caller closes
// the returned store.
func openService(ctx context.Context) (*core.Service, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, cfg.Database, store.PolicyFromConfig(cfg.Retry))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	var mirror core.Mirror
	if cfg.Shopify.MirrorEnabled() {
		mirror = shopify.NewMirror(shopify.New(cfg.Shopify), cfg.Shopify.Namespace)
	}
	svc := core.NewService(st, csvfeed.NewFetcher(cfg.Fetch, nil), mirror, sheetscript.New(cfg.Script, nil))
	return svc, st, nil
}
