package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	configFile string
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "wolweb",
	Short: "A web frontend for Wake-on-LAN via a proxy API",
	Long: `wolweb manages per-user Wake-on-LAN host records and forwards
wake requests to an external proxy service that transmits the actual
magic packets. Users register and maintain their own hosts; admins
manage accounts and the proxy connection.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (optional, env vars take precedence)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resetAdminCmd)
}

func setupLogging() {
	if jsonOutput {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
