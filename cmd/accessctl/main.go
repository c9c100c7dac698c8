// accessctl es el cliente de línea de comandos del servicio: pedir, aprobar y
// revocar accesos, mandar shares y mirar el inbox en vivo.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-access/internal/client"
	"media-access/internal/platform/logger"

	"github.com/spf13/cobra"
)

type cli struct {
	baseURL string
	token   string
	userID  string
	timeout time.Duration
	verbose bool
}

func main() {
	c := &cli{}

	root := &cobra.Command{
		Use:           "accessctl",
		Short:         "Command line client for the media access API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.baseURL, "url", envOr("MEDIA_ACCESS_URL", "http://localhost:8080"), "API base url")
	flags.StringVar(&c.token, "token", os.Getenv("MEDIA_ACCESS_TOKEN"), "bearer token")
	flags.StringVar(&c.userID, "user", os.Getenv("MEDIA_ACCESS_USER"), "user id for dev mode (X-Debug-User-ID)")
	flags.DurationVar(&c.timeout, "timeout", 10*time.Second, "per-call timeout")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newResolveCommand(c),
		newRequestCommand(c),
		newDecideCommand(c, "approve"),
		newDecideCommand(c, "deny"),
		newDecideCommand(c, "cancel"),
		newGrantCommand(c),
		newRevokeCommand(c),
		newGrantsCommand(c),
		newRequestsCommand(c),
		newShareCommand(c),
		newSharesCommand(c),
		newInboxCommand(c),
		newWatchCommand(c),
		newCountdownCommand(c),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *cli) client() (*client.Client, error) {
	level := logger.Warn
	if c.verbose {
		level = logger.Debug
	}
	return client.New(client.Config{
		BaseURL:     c.baseURL,
		Token:       c.token,
		DebugUserID: c.userID,
		Timeout:     c.timeout,
		Logger:      logger.NewWriter(os.Stderr, logger.Options{Level: level, App: "accessctl"}),
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
