package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/personachat/internal/llm"
)

var modelsRemote bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Verfügbare Modelle anzeigen",
	Long: `Zeigt die auswählbaren LLM-Modelle an.

Beispiele:
  personachat models            # Modellkatalog
  personachat models --remote   # Direkt von Groq abfragen`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsRemote, "remote", false, "Direkt von Groq abfragen")
}

func runModels(cmd *cobra.Command, args []string) error {
	if modelsRemote {
		return runModelsRemote()
	}

	a, err := buildApp(context.Background(), appConfig, appOptions{NoTTS: true})
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println("Verfügbare Modelle")
	fmt.Println("==================")
	fmt.Println()
	for _, m := range a.catalog.Models() {
		marker := " "
		if m.ID == a.catalog.Default() {
			marker = "*"
		}
		fmt.Printf("  %s %-40s %s\n", marker, m.ID, m.Provider)
	}
	fmt.Println()
	fmt.Println("* = Standard")
	return nil
}

func runModelsRemote() error {
	if appConfig.LLM.Groq.APIKey == "" {
		return fmt.Errorf("GROQ_API_KEY ist nicht gesetzt")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	groq := llm.NewGroq(llm.GroqConfig{
		BaseURL: appConfig.LLM.Groq.BaseURL,
		APIKey:  appConfig.LLM.Groq.APIKey,
	})
	models, err := groq.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("Fehler beim Laden der Modelle: %w", err)
	}

	fmt.Println("Modelle bei Groq")
	fmt.Println("================")
	fmt.Println()
	if len(models) == 0 {
		fmt.Println("Keine Modelle gefunden.")
		return nil
	}
	for _, m := range models {
		fmt.Printf("  %-40s %s\n", m.ID, m.OwnedBy)
	}
	return nil
}
