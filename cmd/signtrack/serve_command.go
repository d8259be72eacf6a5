package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roadsight/signtrack/stream"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		flags sourceFlags
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Detect signs and stream the results over HTTP",
		Long: "Detect signs and serve the annotated video at /stream, the current\n" +
			"results at /results, finalized sign history at /history and a live\n" +
			"results feed at /ws.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, closeLog, err := ctx.logger()
			if err != nil {
				return err
			}
			defer closeLog()

			if v := strings.TrimSpace(addr); v != "" {
				cfg.Server.HTTPAddr = v
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, logger, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := stream.Options{
				Session: a.session,
				Trail:   a.trail,
				Budget:  a.budget(),
				Logger:  a.log,
			}
			if a.journal != nil {
				opts.History = a.journal
			}

			srv := stream.NewServer(opts)
			defer srv.Close()

			serveCtx, cancel := context.WithCancel(runCtx)
			defer cancel()

			serveErr := make(chan error, 1)
			go func() {
				err := srv.ListenAndServe(serveCtx, cfg.Server.HTTPAddr)
				if err != nil {
					// stop the frame loop when the listener fails
					cancel()
				}
				serveErr <- err
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Open browser and view video at http://%s/\n", cfg.Server.HTTPAddr)

			sum, err := a.coord.Run(serveCtx, a.capture, a.policy, srv)
			if err != nil && !errors.Is(err, context.Canceled) {
				cancel()
				<-serveErr
				return err
			}

			if err == nil {
				// source finished, results stay available until interrupted
				a.log.Info("source exhausted, serving results until interrupted",
					"processed", sum.FramesProcessed, "results", len(sum.Results))
			}

			select {
			case err = <-serveErr:
			case <-serveCtx.Done():
				err = <-serveErr
			}

			printSummary(cmd.OutOrStdout(), sum)

			return err
		},
	}

	addSourceFlags(&flags, cmd.Flags())
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, format host:port (default from config)")

	return cmd
}
