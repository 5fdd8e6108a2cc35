// Package cmd is the entrypoint for the STSS command line interface.
package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var verbose bool

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "stss",
	Short: "Find self-targeting spacers in CRISPR-containing genomes",
	Long: `STSS searches genomes for CRISPR arrays whose spacers match the
genome outside the array itself. Each self-targeting spacer is
reported with its Cas locus subtype, locus completeness, array
orientation, target annotation, PAM flanks, and prophage island
context.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// initConfig loads settings.yaml from the working directory when one
// exists; flags override file values.
func initConfig() {
	viper.SetConfigName("settings")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("stss")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.Debug("loaded settings", "file", viper.ConfigFileUsed())
	}
}
