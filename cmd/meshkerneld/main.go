// Command meshkerneld runs the mesh kernel host process: it loads the
// plugin modules found in a modules directory, drives the matchmaker
// and the per-instance bridges, and optionally exposes Prometheus
// metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/machinefabric/meshkernel-go/internal/config"
	meshkernel "github.com/machinefabric/meshkernel-go"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "meshkerneld [modules-dir]",
	Short:         "meshkerneld -- intra-process plugin messaging fabric",
	Long:          "meshkerneld rendezvouses plugin listeners and connectors and drives their cooperative task pools forward.",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a TOML configuration file")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Host.ModulesDir = args[0]
	}

	rt := meshkernel.New(cfg)
	rt.Metrics.SetBuildInfo(version, runtime.Version())

	if _, err := rt.Bootstrap(); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.Metrics.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				rt.Log.Error("metrics server exited", "error", err)
			}
		}()
		rt.Log.Info("serving metrics", "listen", cfg.Metrics.Listen)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		rt.Log.Info("received shutdown signal")
		cancel()
	}()

	rt.Log.Info("meshkerneld starting", "modules_dir", cfg.Host.ModulesDir)
	rt.Run(ctx)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
