package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	enginepkg "github.com/jarthod/faye-redis/pkg/engine"
	logpkg "github.com/jarthod/faye-redis/pkg/log"
)

func main() {
	var configPath string
	var url, namespace string
	var timeoutMs int64

	rootCmd := &cobra.Command{
		Use:   "faye-redis",
		Short: "Ops CLI for the faye-redis coordination backend",
		Long:  "Inspect and maintain the shared client registry, subscriptions, and queues of a faye-redis deployment.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("FAYE_REDIS_CONFIG"), "Path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&url, "url", "", "Store URL (redis://...)")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "", "Key namespace prefix")
	rootCmd.PersistentFlags().Int64Var(&timeoutMs, "timeout-ms", 0, "Liveness timeout in ms (needed by sweep)")

	loadConfig := func() (enginepkg.Config, error) {
		cfg, err := enginepkg.Load(configPath)
		if err != nil {
			return enginepkg.Config{}, err
		}
		enginepkg.FromEnv(&cfg)
		if url != "" {
			cfg.URL = url
		}
		if namespace != "" {
			cfg.Namespace = namespace
		}
		if timeoutMs > 0 {
			cfg.TimeoutMs = timeoutMs
		}
		// The CLI runs one-shot commands; no background sweeper or watchdog.
		cfg.GCPeriodMs = 0
		cfg.WatchdogIntervalMs = 0
		return cfg, nil
	}

	openEngine := func() (*enginepkg.Engine, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		level := logpkg.WarnLevel
		if parsed, perr := logpkg.ParseLevel(cfg.LogLevel); perr == nil && cfg.LogLevel != "" {
			level = parsed
		}
		return enginepkg.New(cfg, nil, enginepkg.WithLogger(logpkg.NewLogger(logpkg.WithLevel(level))))
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check store connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Disconnect()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := eng.PingStore(ctx); err != nil {
				return err
			}
			fmt.Println("store: ok")
			return nil
		},
	}
	rootCmd.AddCommand(checkCmd)

	clientsCmd := &cobra.Command{Use: "clients", Short: "Client registry operations"}
	clientsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered clients with last-seen timestamps",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Disconnect()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			entries, err := eng.ListClients(ctx)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				lastSeen := "tombstone"
				if entry.LastSeenMs > 0 {
					lastSeen = time.UnixMilli(entry.LastSeenMs).UTC().Format(time.RFC3339)
				}
				fmt.Printf("%s\t%s\n", entry.ID, lastSeen)
			}
			fmt.Printf("%d client(s)\n", len(entries))
			return nil
		},
	}
	clientsDestroyCmd := &cobra.Command{
		Use:   "destroy <client-id>",
		Short: "Destroy a client across the cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Disconnect()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := eng.DestroyClient(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("destroyed:", args[0])
			return nil
		},
	}
	clientsCmd.AddCommand(clientsListCmd, clientsDestroyCmd)
	rootCmd.AddCommand(clientsCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one garbage-collection pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Disconnect()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := eng.Sweep(ctx); err != nil {
				return err
			}
			fmt.Println("sweep: done")
			return nil
		},
	}
	rootCmd.AddCommand(sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
