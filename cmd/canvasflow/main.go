package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/warriorguo/canvasflow"
	"github.com/warriorguo/canvasflow/graph/mem"
	"github.com/warriorguo/canvasflow/server"
	"github.com/warriorguo/canvasflow/simulator"
	"github.com/warriorguo/canvasflow/types"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "canvasflow",
		Short:         "Turn creative requests into generation pipelines on a node canvas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./canvasflow.yaml)")

	load := func() (*Config, error) {
		config, err := LoadConfig(configFile)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return config, errors.Trace(config.setupLogging())
	}

	root.AddCommand(newRunCmd(load), newServeCmd(load), newVersionCmd())
	return root
}

// app wires an in-memory canvas, the simulated backend and an orchestrator.
type app struct {
	graph        *mem.Graph
	sim          *simulator.Simulator
	orchestrator types.Orchestrator
}

func newApp(ctx context.Context, config *Config) (*app, error) {
	opts, err := config.options()
	if err != nil {
		return nil, errors.Trace(err)
	}
	opts = append(opts, types.WithContext(ctx))

	graph := mem.NewGraph()
	orch, err := canvasflow.NewOrchestrator(graph, config.completer(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	simOpts := append(config.simulatorOptions(), simulator.WithContext(ctx))
	return &app{
		graph:        graph,
		sim:          simulator.New(graph, simulator.NewOptions(simOpts...)),
		orchestrator: orch,
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.sim.Close(ctx); err != nil {
		log.Warnf("close simulator failed: %v", err)
	}
}

func newRunCmd(load func() (*Config, error)) *cobra.Command {
	var (
		x, y    float64
		dotFile string
	)
	cmd := &cobra.Command{
		Use:   "run <text>",
		Short: "Analyze the text and execute the resulting workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, config)
			if err != nil {
				return err
			}
			defer a.close()

			plan, result, runErr := a.orchestrator.Run(ctx, args[0], types.Position{X: x, Y: y})

			out := cmd.OutOrStdout()
			b, err := json.MarshalIndent(map[string]interface{}{
				"plan":     plan,
				"result":   result,
				"progress": a.orchestrator.Progress(),
			}, "", "  ")
			if err != nil {
				return errors.Trace(err)
			}
			fmt.Fprintln(out, string(b))

			if dotFile != "" && result != nil {
				dot, err := a.orchestrator.RenderResult(ctx, result)
				if err != nil {
					return errors.Trace(err)
				}
				if err := os.WriteFile(dotFile, []byte(dot), 0o644); err != nil {
					return errors.Annotatef(err, "write %s", dotFile)
				}
			}
			return errors.Trace(runErr)
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "x of the first created node")
	cmd.Flags().Float64Var(&y, "y", 0, "y of the first created node")
	cmd.Flags().StringVar(&dotFile, "dot", "", "write the created nodes as a graphviz file")
	return cmd
}

func newServeCmd(load func() (*Config, error)) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the orchestrator over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				config.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, config)
			if err != nil {
				return err
			}
			defer a.close()

			srv := server.NewServer(a.orchestrator, a.graph)
			serverErrors := make(chan error, 1)
			go func() {
				serverErrors <- srv.Start(config.HTTP.Addr)
			}()

			select {
			case err := <-serverErrors:
				return errors.Trace(err)
			case <-ctx.Done():
				log.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			a.orchestrator.Reset()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errors.Trace(err)
			}
			log.Info("server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides http.addr")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
