package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/reviewgallery/internal/config"
	"github.com/JonMunkholm/reviewgallery/internal/core"
	"github.com/JonMunkholm/reviewgallery/internal/csvfeed"
	"github.com/JonMunkholm/reviewgallery/internal/web/middleware"
)

var (
	jsonOutput bool
	maxBytes   int64
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Queue unverified reviews from every product CSV of a shop",
	Long: `Downloads each product CSV of the shop in turn and queues every row
whose verified column is not TRUE, 1, YES or Y. Already queued rows are left
as they are, so running sync twice queues nothing new.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List the reviews waiting for triage",
	Args:  cobra.NoArgs,
	RunE:  runPending,
}

var ratingCmd = &cobra.Command{
	Use:   "rating <csv-url>",
	Short: "Print the average rating and review count of a published CSV",
	Long: `Downloads the CSV and aggregates its rating column the way an
automatic rating is computed on save. No database is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRating,
}

func init() {
	syncCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	pendingCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the queue as JSON")
	ratingCmd.Flags().Int64Var(&maxBytes, "max-bytes", 10<<20, "Largest CSV accepted")
}

func shopFlag() (string, error) {
	s := middleware.NormalizeShop(shop)
	if s == "" {
		return "", fmt.Errorf("%w: %q is not a myshopify.com domain", core.ErrMissingShop, shop)
	}
	return s, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	s, err := shopFlag()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, st, err := openService(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := svc.SyncPending(ctx, s)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	printSync(cmd.OutOrStdout(), res)
	return nil
}

func printSync(w io.Writer, res core.SyncResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tFOUND\tNEW\tRATING\tERROR")
	for _, src := range res.Sources {
		name := src.ProductTitle
		if name == "" {
			name = src.ProductID
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s (%d)\t%s\n", name, src.Found, src.Created, src.Rating.Average, src.Rating.Count, src.Error)
	}
	tw.Flush()
	fmt.Fprintln(w, res.Toast())
	if res.Failed > 0 {
		fmt.Fprintf(w, "%d source(s) failed.\n", res.Failed)
	}
}

func runPending(cmd *cobra.Command, args []string) error {
	s, err := shopFlag()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, st, err := openService(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	page, err := svc.PendingPage(ctx, s)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), page.Reviews)
	}
	printPending(cmd.OutOrStdout(), page.Reviews)
	return nil
}

func printPending(w io.Writer, items []core.PendingItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No pending reviews.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROW\tSTARS\tAUTHOR\tPRODUCT\tTRIAGE")
	for _, it := range items {
		triage := "no endpoint"
		if it.CanTriage {
			triage = "ok"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			it.ID, it.RowIndex, strings.Repeat("*", it.Rating), it.Author, it.ProductTitle, triage)
	}
	tw.Flush()
}

func runRating(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	f := csvfeed.NewFetcher(config.FetchConfig{
		Timeout:   timeout,
		MaxBytes:  maxBytes,
		UserAgent: "ReviewGallery/1.0",
	}, nil)
	text, err := f.Fetch(ctx, args[0])
	if err != nil {
		return err
	}

	r := csvfeed.AggregateText(text)
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d reviews)\n", r.Average, r.Count)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
