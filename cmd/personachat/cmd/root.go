// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     cmd
// Description: Command line interface of personachat
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/msto63/personachat/pkg/core/config"
	"github.com/msto63/personachat/pkg/core/logging"
)

var (
	cfgFile string
	verbose bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "personachat",
	Short: "PersonaChat - Sprachchat mit einer KI-Persona",
	Long: `PersonaChat ist ein Chatbot, der als historische Persönlichkeit antwortet.
Eingabe per Text oder Sprache, Antworten optional als Audio.

Befehle:
  serve    - Web-Oberfläche starten (HTTP :8501)
  chat     - Terminal-Chat starten
  models   - Verfügbare Modelle anzeigen
  devices  - Mikrofone anzeigen
  history  - Archivierte Gespräche anzeigen`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config-Datei (default: ./configs/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose Output")
}

// loadConfig reads .env, the config file and sets up logging
func loadConfig(cmd *cobra.Command, args []string) error {
	// .env ist optional
	_ = godotenv.Load()

	var err error
	if cfgFile != "" {
		appConfig, err = config.Load(cfgFile)
	} else {
		appConfig, err = config.LoadFromEnv()
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level := appConfig.General.LogLevel
	if verbose {
		level = "debug"
	}
	logging.SetDefault(logging.LoggerConfig{
		Level:  level,
		Format: appConfig.General.LogFormat,
	})
	return nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Fehler: %s: %v\n", msg, err)
}

// silenceLogs discards log output while a full-screen UI is running
func silenceLogs() {
	logging.SetDefault(logging.LoggerConfig{Output: io.Discard})
}
