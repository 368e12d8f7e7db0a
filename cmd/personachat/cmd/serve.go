package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msto63/personachat/internal/session"
	"github.com/msto63/personachat/internal/web"
)

var (
	serveHost  string
	servePort  int
	serveNoTTS bool
	serveModel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Startet die Web-Oberfläche",
	Long: `Startet die Web-Oberfläche von PersonaChat.

Beispiele:
  personachat serve                      # http://127.0.0.1:8501
  personachat serve --host 0.0.0.0       # im LAN erreichbar
  personachat serve --no-tts             # ohne Sprachausgabe
  personachat serve --model gemini-2.0-flash`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen-Adresse (default aus Config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port (default aus Config)")
	serveCmd.Flags().BoolVar(&serveNoTTS, "no-tts", false, "Sprachausgabe deaktivieren")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "Standard-Modell")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if serveHost != "" {
		appConfig.Server.Host = serveHost
	}
	if servePort != 0 {
		appConfig.Server.Port = servePort
	}

	a, err := buildApp(ctx, appConfig, appOptions{NoTTS: serveNoTTS, Model: serveModel})
	if err != nil {
		return err
	}
	defer a.close()

	deps := web.Deps{
		Orchestrator: a.orchestrator,
		Catalog:      a.catalog,
		Registry:     session.NewRegistry(a.defaultSettings()),
		HealthChecks: a.checks,
	}
	if a.archive != nil {
		deps.Archive = a.archive
	}

	srv, err := web.New(web.Config{
		Host:             appConfig.Server.Host,
		Port:             appConfig.Server.Port,
		ReadTimeout:      appConfig.Server.ReadTimeout.Duration,
		WriteTimeout:     appConfig.Server.WriteTimeout.Duration,
		SessionIdleLimit: appConfig.Server.SessionIdleLimit.Duration,
		EvictionInterval: appConfig.Server.EvictionInterval.Duration,
		SecureCookie:     appConfig.Server.SecureCookies,
	}, deps)
	if err != nil {
		return fmt.Errorf("web server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Printf("%s\n", a.persona.Title)
	fmt.Printf("  Web UI:  http://%s\n", srv.Address())
	fmt.Printf("  Modell:  %s\n", a.catalog.Default())
	fmt.Printf("  Stimme:  %s\n", onOff(a.orchestrator.CanSpeak()))
	fmt.Printf("  Mikro:   %s\n", onOff(a.orchestrator.CanListen()))
	fmt.Println()
	fmt.Println("Beenden mit Ctrl+C")

	select {
	case <-sigCh:
		fmt.Println("\nFahre herunter...")
	case err := <-errCh:
		if err != nil {
			printError("Web-Server", err)
			return err
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func onOff(b bool) string {
	if b {
		return "an"
	}
	return "aus"
}
