package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wabiz/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "wabiz",
	Short: "WhatsApp Business webhook core",
	Long: `Receives WhatsApp Cloud API webhooks for many tenants, keeps one conversation
per contact and answers through the scripted dialogue, the keyword rules or the
default reply.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "JSON config file (optional, WABIZ_* env vars override it)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env, the config file and the environment, then sets up logging.
func loadConfig() (config.Configuration, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not read .env")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Configuration{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Configuration{}, fmt.Errorf("invalid config: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg config.Configuration) {
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
