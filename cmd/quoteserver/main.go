// Command quoteserver serves a small JSONPlaceholder-style posts API. It is a
// local stand-in for the remote the sync engine fetches from.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/transport/quoteserver"
	"github.com/c0deZ3R0/quotesync/transport/remote"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		listen     string
		seedPath   string
		logLevel   string
		noCompress bool
	)
	cmd := &cobra.Command{
		Use:          "quoteserver",
		Short:        "Serve an in-memory posts API for quotesync",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg := logging.GetConfigFromEnv()
			if logLevel != "" {
				logCfg.Level = logLevel
			}
			logging.Init(logCfg)
			logger := logging.WithComponent(logging.Component("quoteserver"))

			opts := []quoteserver.Option{
				quoteserver.WithLogger(logger.Logger),
				quoteserver.WithCompression(!noCompress),
			}
			if seedPath != "" {
				posts, err := loadSeed(seedPath)
				if err != nil {
					return err
				}
				opts = append(opts, quoteserver.WithSeed(posts))
			}

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), ln, quoteserver.New(opts...).Router(), logger)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:3000", "address to listen on")
	cmd.Flags().StringVar(&seedPath, "seed", "", "JSON file with the initial posts")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.Flags().BoolVar(&noCompress, "no-compress", false, "disable gzip responses")
	return cmd
}

func loadSeed(path string) ([]remote.Post, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var posts []remote.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return posts, nil
}

func serve(ctx context.Context, ln net.Listener, h http.Handler, logger *logging.Logger) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("Quote server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("Quote server stopped")
	return nil
}
