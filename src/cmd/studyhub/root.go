package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studyhub/studyhub/src/internal/config"
	"github.com/studyhub/studyhub/src/internal/logging"
)

var (
	configFile string

	cfg    *viper.Viper
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "studyhub",
	Short: "StudyHub course material search",
	Long: `StudyHub serves full-text search over course materials.
Titles, descriptions, file names and extracted PDF text are matched,
ranked and returned with highlighted snippets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		v, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := config.ValidateConfig(v); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = v
		logger = logging.NewLogger(logging.Options{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		})
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
