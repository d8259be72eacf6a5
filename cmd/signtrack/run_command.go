package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roadsight/signtrack/config"
	"github.com/roadsight/signtrack/pipeline"
	"github.com/roadsight/signtrack/render"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		flags    sourceFlags
		headless bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Detect signs and show the dashboard",
		Long: "Detect signs from a camera, video file or network stream and show the\n" +
			"dashboard window.  Use W/S or the arrow keys to select a class, SPACE to\n" +
			"toggle it and Q to quit.  M opens the settings overlay, where W/S select\n" +
			"a setting and A/D change the model, processing rate, confidence threshold\n" +
			"or target class.  With --headless results are written to the log.",
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

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, logger, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var sinks []pipeline.Sink

			if headless {
				sinks = append(sinks, a.headlessSink())
			} else {
				dash, err := render.NewDashboard(render.DashboardOptions{
					Live:    a.live,
					Classes: dashboardClasses(a),
					Region:  a.region,
					Trail:   a.trail,
					Budget:  a.budget(),
					Models:  a,
					OnSettingsClose: func(det config.Detection) {
						saved, err := ctx.saveDetection(det)
						switch {
						case err != nil:
							a.log.Warn("saving settings failed", "path", ctx.configPath, "error", err)
						case saved:
							a.log.Info("settings saved", "path", ctx.configPath)
						}
					},
				})
				if err != nil {
					return fmt.Errorf("create dashboard: %w", err)
				}
				defer dash.Close()

				window := render.NewWindow("signtrack", dash)
				defer window.Close()

				sinks = append(sinks, window)
			}

			sum, err := a.coord.Run(runCtx, a.capture, a.policy, sinks...)

			printSummary(cmd.OutOrStdout(), sum)

			if errors.Is(err, context.Canceled) {
				// interrupted by the user
				return nil
			}
			return err
		},
	}

	addSourceFlags(&flags, cmd.Flags())
	cmd.Flags().BoolVar(&headless, "headless", false, "Run without the dashboard window")

	return cmd
}

// dashboardClasses lists the detector labels so every class can be toggled,
// falling back to the configured target classes
func dashboardClasses(a *app) []string {
	if labels := a.detector.Labels(); len(labels) > 0 {
		return labels
	}
	return a.live.Detection().TargetClasses
}

func printSummary(out io.Writer, sum pipeline.Summary) {
	fmt.Fprintf(out, "Frames read: %d, processed: %d\n", sum.FramesRead, sum.FramesProcessed)
	fmt.Fprintf(out, "Average processing time: %s\n", sum.Stats.String())

	if len(sum.Results) == 0 {
		fmt.Fprintln(out, "No signs finalized")
		return
	}

	rows := make([][]string, 0, len(sum.Results))
	for i, res := range sum.Results {
		rows = append(rows, []string{strconv.Itoa(i + 1), res})
	}
	fmt.Fprintln(out, renderTable([]string{"#", "Sign"}, rows, []columnAlignment{alignRight, alignLeft}))
}
