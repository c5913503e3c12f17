package cmd

import (
	"fmt"

	"github.com/Iron-Ham/plancast/internal/cmd/analysis"
	configcmd "github.com/Iron-Ham/plancast/internal/cmd/config"
	"github.com/Iron-Ham/plancast/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "plancast",
	Short: "Project scheduling and schedule-risk forecasting",
	Long: `Plancast schedules a project file on a working calendar, finds its
critical path, reports resource workload and forecasts the completion
date with a Monte Carlo simulation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Errors that have already been reported
// to the user are returned but not printed again.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !analysis.IsReported(err) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

// Root returns the root command, for tests and documentation generators.
func Root() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.config/plancast/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	rootCmd.PersistentFlags().Bool("log", false, "write a JSON debug log to the configured log directory")
	_ = viper.BindPFlag("logging.enabled", rootCmd.PersistentFlags().Lookup("log"))

	analysis.Register(rootCmd)
	configcmd.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
