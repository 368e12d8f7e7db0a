package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/msto63/personachat/internal/session"
	"github.com/msto63/personachat/internal/tui"
	"github.com/msto63/personachat/internal/voice/device"
)

var (
	chatNoTTS bool
	chatModel string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Startet den Terminal-Chat",
	Long: `Startet den interaktiven Terminal-Chat mit der Persona.

Tastenkürzel:
  Enter   Nachricht senden
  Ctrl+R  Sprachaufnahme
  Ctrl+P  Letzte Antwort abspielen
  Ctrl+O  Modell wählen
  Ctrl+T  Autoplay an/aus
  Ctrl+V  Sprachmodus an/aus
  Ctrl+L  Verlauf löschen
  Ctrl+C  Beenden`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&chatNoTTS, "no-tts", false, "Sprachausgabe deaktivieren")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Modell")
}

func runChat(cmd *cobra.Command, args []string) error {
	// Logs würden die Oberfläche zerstören
	if !verbose {
		silenceLogs()
	}

	a, err := buildApp(context.Background(), appConfig, appOptions{NoTTS: chatNoTTS, Model: chatModel})
	if err != nil {
		return err
	}
	defer a.close()

	sess := session.New(uuid.NewString(), a.defaultSettings())
	cfg := tui.Config{
		Orchestrator: a.orchestrator,
		Session:      sess,
		Catalog:      a.catalog,
		Player:       device.NewPlayer(),
	}
	if a.archive != nil {
		cfg.Archive = a.archive
	}

	err = tui.Run(cfg)

	// Verlauf beim Beenden archivieren
	if a.archive != nil && sess.Store.Len() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if _, aerr := a.archive.SaveSession(ctx, sess, a.persona.ID); aerr != nil {
			printError("Archiv", aerr)
		}
	}
	return err
}
