package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msto63/personachat/internal/archive"
	"github.com/msto63/personachat/internal/session"
)

var (
	historyLimit  int
	historyOffset int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Archivierte Gespräche anzeigen",
	Long: `Zeigt Gespräche aus dem Archiv an. Ein Gespräch wird archiviert,
wenn der Verlauf gelöscht wird oder die Sitzung abläuft.

Beispiele:
  personachat history               # Letzte 20 Gespräche
  personachat history show <id>     # Gespräch anzeigen
  personachat history delete <id>   # Gespräch löschen
  personachat history stats         # Statistik`,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Gespräch anzeigen",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Gespräch löschen",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Archiv-Statistik",
	RunE:  runHistoryStats,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd, historyDeleteCmd, historyStatsCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Anzahl")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "Überspringen")
}

func withArchive(fn func(ctx context.Context, store *archive.Store) error) error {
	store, err := openArchive(appConfig)
	if err != nil {
		return fmt.Errorf("Archiv nicht lesbar: %w", err)
	}
	defer store.Close()
	return fn(context.Background(), store)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	return withArchive(func(ctx context.Context, store *archive.Store) error {
		convs, err := store.List(ctx, historyLimit, historyOffset)
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("Keine archivierten Gespräche.")
			return nil
		}
		fmt.Printf("%-36s  %-16s  %5s  %s\n", "ID", "ARCHIVIERT", "TURNS", "TITEL")
		for _, c := range convs {
			fmt.Printf("%-36s  %-16s  %5d  %s\n",
				c.ID, c.ArchivedAt.Local().Format("2006-01-02 15:04"), c.TurnCount, c.Title)
		}
		return nil
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	return withArchive(func(ctx context.Context, store *archive.Store) error {
		conv, err := store.Get(ctx, args[0])
		if errors.Is(err, archive.ErrNotFound) {
			return fmt.Errorf("Gespräch nicht gefunden: %s", args[0])
		}
		if err != nil {
			return err
		}

		fmt.Println(conv.Title)
		fmt.Println(strings.Repeat("=", len([]rune(conv.Title))))
		fmt.Printf("Persona: %s  Modell: %s  Archiviert: %s\n\n",
			conv.Persona, conv.Model, conv.ArchivedAt.Local().Format("2006-01-02 15:04"))

		for _, t := range conv.Turns {
			label := "Du"
			if t.Role == session.RoleAssistant {
				label = conv.Persona
			}
			fmt.Printf("[%s] %s:\n%s\n\n", t.CreatedAt.Local().Format("15:04"), label, t.Content)
		}
		return nil
	})
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	return withArchive(func(ctx context.Context, store *archive.Store) error {
		if err := store.Delete(ctx, args[0]); err != nil {
			if errors.Is(err, archive.ErrNotFound) {
				return fmt.Errorf("Gespräch nicht gefunden: %s", args[0])
			}
			return err
		}
		fmt.Printf("Gelöscht: %s\n", args[0])
		return nil
	})
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	return withArchive(func(ctx context.Context, store *archive.Store) error {
		stats, err := store.Statistics(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Gespräche: %v\n", stats["total_conversations"])
		fmt.Printf("Turns:     %v\n", stats["total_turns"])
		fmt.Printf("Datei:     %s\n", appConfig.Archive.Path)
		return nil
	})
}
