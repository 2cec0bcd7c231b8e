package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/edc-mapper/internal/cli"
	"github.com/Veraticus/edc-mapper/internal/common"
	"github.com/Veraticus/edc-mapper/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	version   = "dev"
	appConfig *config.Config
	logCloser io.Closer
	rootCmd   = newRootCmd()
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edcmap",
		Short: "🧭 EDC field-mapping workflow client",
		Long: `edcmap drives a remote mapping model that translates EDC study metadata
(ODM exports) into IMPACT visit identifiers.

Select a sponsor, train its model from a reference ODM and a view mapping,
predict mappings for a new ODM, resolve what the model could not map, and
export the updated document. The working session is kept between runs.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/edcmap/config.yaml)")
	cmd.PersistentFlags().String("base-url", config.DefaultBaseURL, "mapping service base URL")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	cmd.PersistentFlags().String("log-file", "", "write logs to a rotating file instead of stderr")

	// Bind flags to viper
	_ = viper.BindPFlag("api.base_url", cmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("logging.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", cmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.file", cmd.PersistentFlags().Lookup("log-file"))

	// Add commands
	cmd.AddCommand(sponsorCmd())
	cmd.AddCommand(sponsorsCmd())
	cmd.AddCommand(statusCmd())
	cmd.AddCommand(trainCmd())
	cmd.AddCommand(predictCmd())
	cmd.AddCommand(mappingsCmd())
	cmd.AddCommand(mappingCmd())
	cmd.AddCommand(groupsCmd())
	cmd.AddCommand(saveCmd())
	cmd.AddCommand(validateCmd())
	cmd.AddCommand(exportCmd())
	cmd.AddCommand(statsCmd())
	cmd.AddCommand(activityCmd())
	cmd.AddCommand(watchCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func main() {
	interrupts := cli.NewInterruptHandler(os.Stderr)
	ctx := interrupts.HandleInterrupts(context.Background(), "Your session has been saved. Run 'edcmap status' to pick up where you left off.")

	err := rootCmd.ExecuteContext(ctx)
	if logCloser != nil {
		_ = logCloser.Close()
	}

	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			slog.Debug("command failed", "error", err)
			fmt.Fprintln(os.Stderr, cli.FormatError(userErr.UserMessage))
		} else {
			fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		}
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	// Set up config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.ConfigDir()
		if err != nil {
			return fmt.Errorf("failed to get config directory: %w", err)
		}

		// Search for config in standard locations
		viper.AddConfigPath(dir)
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("EDCMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	appConfig = loaded

	// Set up logging
	closer, err := common.SetupLogger(loaded.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	logCloser = closer

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "edcmap %s\n", version)
		},
	}
}
