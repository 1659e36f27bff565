package cmd

import (
	"log/slog"
	"net/http"
	"os"
	"path"

	"github.com/encodeous/tint"
	"github.com/prometheus/client_golang/prometheus"
	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"github.com/rayonsim/rayon/sim"
	"github.com/rayonsim/rayon/state"
)

var (
	metricsAddr  string
	logPath      string
	seedOverride uint64
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario to completion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := state.LoadSimCfg(args[0])
		if err != nil {
			panic(err)
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = seedOverride
		}
		err = state.ValidateSimCfg(cfg)
		if err != nil {
			panic(err)
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}

		handlers := make([]slog.Handler, 0)
		handlers = append(handlers,
			tint.NewHandler(os.Stderr, &tint.Options{
				Level:        level,
				AddSource:    false,
				CustomPrefix: "rayon",
				ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
					if attr.Key == "time" {
						return slog.Attr{}
					}
					return attr
				},
			}))
		if logPath != "" {
			err := os.MkdirAll(path.Dir(logPath), 0700)
			if err != nil {
				panic(err)
			}
			f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
			if err != nil {
				panic(err)
			}
			handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
		}
		logger := slog.New(slogmulti.Fanout(handlers...))

		reg := prometheus.NewRegistry()
		metrics, err := state.NewMetrics(reg)
		if err != nil {
			panic(err)
		}
		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			go func() {
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					logger.Warn("metrics server stopped", "err", err)
				}
			}()
			logger.Info("serving metrics", "addr", metricsAddr)
		}

		runner := sim.NewRunner(cfg, logger, metrics)
		res := runner.Run()
		logger.Info("run complete",
			"finished", res.Finished,
			"collected", res.Collected,
			"goal", cfg.CollectGoal,
			"elapsed", res.Elapsed,
		)
		if !res.Finished {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringVarP(&metricsAddr, "metrics", "m", "", "Serve Prometheus metrics on this address while running")
	runCmd.Flags().StringVarP(&logPath, "log", "l", "", "Also append logs to this file")
	runCmd.Flags().Uint64Var(&seedOverride, "seed", 0, "Override the scenario's random seed")
}
