/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/ytflow/internal/config"
	"github.com/josephgoksu/ytflow/internal/logger"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// version is the application version.
	version = "0.1.0"

	closeLog = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ytflow",
	Short: "ytflow - YouTrack workflow script generator",
	Long: `ytflow turns a plain-language request into a YouTrack workflow script.

It analyses the request, asks clarifying questions, plans the rule, looks up
the scripting API and example scripts, generates the code and tests it,
regenerating once when the test fails. Every run is saved as a session.

Examples:
  ytflow generate --prompt "Notify the assignee when a critical issue is reopened"
  ytflow generate --interactive
  ytflow validate rule.js --watch
  ytflow sessions list`,
	SilenceUsage:      true,
	PersistentPreRunE: setupRun,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = closeLog()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetVersion returns the application version.
func GetVersion() string {
	return version
}

func init() {
	cobra.OnInitialize(InitConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.ytflow/config.yaml or ~/.ytflow/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().Bool("json", false, "print machine-readable JSON")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "only print results")
	rootCmd.PersistentFlags().Bool("log-file", false, "also write JSON logs under the data directory")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// setupRun installs the logger and the crash context for every command.
func setupRun(cmd *cobra.Command, args []string) error {
	_, closer, err := logger.Setup(logger.Options{
		Verbose:  isVerbose(),
		Writer:   cmd.ErrOrStderr(),
		FilePath: config.GetLogPath(),
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	closeLog = closer

	logger.SetVersion(version)
	logger.SetCommand(cmd.CommandPath())
	logger.SetBasePath(config.GetDataDir())
	return nil
}
