// file: cmd/root.go
// version: 2.0.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jdfalk/mediashare/internal/config"
	"github.com/jdfalk/mediashare/internal/logging"
)

// EnvPrefix namespaces environment overrides, e.g. MEDIASHARE_PORT.
const EnvPrefix = "MEDIASHARE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediashare",
	Short: "Share a local media folder over the network",
	Long: `MediaShare turns a folder of movies and shows into a browsable,
streamable library for every device on your network.

It fetches posters and descriptions, zips folders on demand, and relays
play/pause/seek between viewers for watch parties.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mediashare.yaml or $HOME/.mediashare.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: json or console (default picks by terminal)")
	rootCmd.PersistentFlags().String("settings", config.DefaultSettingsFile, "file that remembers the last library folder")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("settings_file", rootCmd.PersistentFlags().Lookup("settings"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(zipCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(diagnosticsCmd)
}

func initConfig() {
	// A .env next to the binary is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Msg("failed to load .env file")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mediashare")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configErr := viper.ReadInConfig()

	config.InitConfig()
	logging.Init(logging.Config{Level: config.AppConfig.LogLevel, Format: config.AppConfig.LogFormat})

	var notFound viper.ConfigFileNotFoundError
	switch {
	case configErr == nil:
		logging.Debug().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	case errors.As(configErr, &notFound):
	default:
		logging.Warn().Err(configErr).Msg("failed to read config file")
	}
}
