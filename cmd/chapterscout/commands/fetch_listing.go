package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chapterscout/chapterscout/internal/logger"
)

var fetchListingCmd = &cobra.Command{
	Use:   "fetch-listing",
	Short: "Resolve a table-of-contents page to an ordered chapter URL list",
	RunE:  runFetchListing,
}

func init() {
	rootCmd.AddCommand(fetchListingCmd)

	flags := fetchListingCmd.Flags()
	flags.StringP("url", "u", "", "table-of-contents URL (required)")
	flags.Int("min", 0, "minimum expected chapter number (0 = no hint)")
	flags.Int("max", 0, "maximum expected chapter number (0 = no hint)")
	flags.String("output", "", "output file (default: stdout)")

	_ = fetchListingCmd.MarkFlagRequired("url")
}

func runFetchListing(cmd *cobra.Command, args []string) error {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	tocURL, _ := cmd.Flags().GetString("url")
	minChapter, _ := cmd.Flags().GetInt("min")
	maxChapter, _ := cmd.Flags().GetInt("max")

	var minPtr, maxPtr *int
	if minChapter > 0 {
		minPtr = &minChapter
	}
	if maxChapter > 0 {
		maxPtr = &maxChapter
	}

	sess := buildSession(cfg)
	browserDriver, err := buildBrowser(cfg)
	if err != nil {
		logger.Error("failed to start browser", "error", err)
		return err
	}
	if browserDriver != nil {
		defer browserDriver.Close()
	}

	orch := buildOrchestrator(sess, browserDriver)

	logger.Info("resolving listing", "url", tocURL)
	result := orch.FetchListing(ctx, tocURL, minPtr, maxPtr, func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	})

	if result.Error != nil {
		logger.Error("fetch-listing failed", "error", *result.Error)
		return fmt.Errorf("fetch-listing failed: %s", *result.Error)
	}

	logger.Info("listing resolved", "urls_found", result.Metadata.URLsFound)

	return writeJSON(cmd, result)
}

func writeJSON(cmd *cobra.Command, v any) error {
	outPath, _ := cmd.Flags().GetString("output")
	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
