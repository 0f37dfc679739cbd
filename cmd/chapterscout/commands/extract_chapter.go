package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chapterscout/chapterscout/internal/logger"
	"github.com/chapterscout/chapterscout/pkg/chapterextractor"
)

var extractChapterCmd = &cobra.Command{
	Use:   "extract-chapter",
	Short: "Extract clean prose and a title from a single chapter URL",
	RunE:  runExtractChapter,
}

func init() {
	rootCmd.AddCommand(extractChapterCmd)

	flags := extractChapterCmd.Flags()
	flags.StringP("url", "u", "", "chapter URL (required)")
	flags.String("output", "", "output file (default: stdout)")

	_ = extractChapterCmd.MarkFlagRequired("url")
}

func runExtractChapter(cmd *cobra.Command, args []string) error {
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

	chapterURL, _ := cmd.Flags().GetString("url")

	sess := buildSession(cfg)
	browserDriver, err := buildBrowser(cfg)
	if err != nil {
		logger.Error("failed to start browser", "error", err)
		return err
	}
	if browserDriver != nil {
		defer browserDriver.Close()
	}

	extractor := chapterextractor.New(sess, browserDriver, chapterextractor.DefaultConfig())

	logger.Info("extracting chapter", "url", chapterURL)
	result := extractor.ExtractChapter(ctx, chapterURL, func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	})

	if result.Error != nil {
		logger.Error("extract-chapter failed", "error", *result.Error)
		return fmt.Errorf("extract-chapter failed: %s", *result.Error)
	}

	return writeJSON(cmd, result)
}
