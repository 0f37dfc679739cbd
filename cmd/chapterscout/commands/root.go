// Package commands implements the chapterscout CLI commands.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "chapterscout",
	Short: "Webnovel chapter listing and content extraction",
	Long: `chapterscout resolves a webnovel table-of-contents page into an
ordered list of chapter URLs, and extracts clean, TTS-ready prose from a
single chapter URL.

Examples:
  # Resolve a listing page to chapter URLs
  chapterscout fetch-listing -u "https://example.com/novel/toc" --min 1 --max 200

  # Extract one chapter's content
  chapterscout extract-chapter -u "https://example.com/novel/chapter-12"`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.chapterscout.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().Bool("headless-browser", true, "browser.headless setting; the browser driver launches headless Chrome regardless of this value")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("browser.headless", rootCmd.PersistentFlags().Lookup("headless-browser"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".chapterscout")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CHAPTERSCOUT")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
