package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"prismakit/internal/messaging"
)

// runCmd starts the long-running agent
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Attach to the host tab, show reminders and serve actions",
	Long: `Attaches to the host app tab (launching Chrome if no debugger_url is set),
then until interrupted:
  - polls the page URL and re-evaluates reminders on a fixed interval
  - serves POST /message and GET /healthz on server.listen`,
	RunE: runAgent,
}

const shutdownGrace = 5 * time.Second

func runAgent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, timeout)
	a, err := startAgent(startCtx)
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.coord.Run(gctx)
	})

	if cfg.Server.Enabled {
		srv := &http.Server{
			Addr:              cfg.Server.Listen,
			Handler:           messaging.NewHTTPHandler(a.coord.Bus()),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Message endpoint listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	cmd.Printf("prismakit attached to %s. Press Ctrl+C to stop.\n", cfg.HostURL)
	err = g.Wait()
	logger.Info("Agent stopped")
	return err
}
