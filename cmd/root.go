package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartographer/internal/config"
	"github.com/xkilldash9x/cartographer/internal/observability"
)

// Version is stamped by the release build.
var Version = "0.1.0-dev"

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "cartographer",
	Short:   "Cartographer maps an interactive application's screen space.",
	Long: `Cartographer explores a running application the way a crawler explores a
site: it captures the current screen, detects its interactive elements,
activates them one at a time, and builds a persistent graph of every screen
and transition it observes. Interrupted runs resume from the saved document.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1. Initialize configuration loading (Viper).
		if err := initializeConfig(); err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		// 2. Unmarshal the configuration singleton.
		if err := config.Load(viper.GetViper()); err != nil {
			return err
		}
		cfg := config.Get()

		// 3. Bind flag-scoped settings before validating.
		bindExploreFlags(cmd, cfg)

		// 4. Validate the configuration.
		if err := cfg.Validate(); err != nil {
			observability.InitializeLogger(cfg.Logger)
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// 5. Initialize the logger.
		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting cartographer", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command with a context passed from main for
// graceful shutdown.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			// context.Canceled during shutdown is expected, not a failure.
			if ctx.Err() == nil {
				logger.Error("Command execution failed", zap.Error(err))
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(reportCmd)
}

// initializeConfig reads in the config file and environment variables.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CARTOGRAPHER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The database URL usually arrives through the environment.
	_ = viper.BindEnv("postgres.url", "CARTOGRAPHER_POSTGRES_URL")

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env carry the run.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// bindExploreFlags copies per-run command flags into the configuration so
// downstream components see a single source of truth.
func bindExploreFlags(cmd *cobra.Command, cfg *config.Config) {
	if f := cmd.Flags().Lookup("app"); f != nil {
		cfg.Explore.AppName = f.Value.String()
	}
	if f := cmd.Flags().Lookup("target"); f != nil {
		cfg.Explore.Target = f.Value.String()
	}
	if f := cmd.Flags().Lookup("policy"); f != nil {
		cfg.Explore.Policy = f.Value.String()
	}
}
