package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/agent-core/pkg/health"
	"github.com/cuemby/agent-core/pkg/kvstore"
	"github.com/cuemby/agent-core/pkg/log"
	"github.com/cuemby/agent-core/pkg/metrics"
	"github.com/cuemby/agent-core/pkg/nodepoll"
	"github.com/cuemby/agent-core/pkg/reconciler"
	"github.com/cuemby/agent-core/pkg/registry"
	"github.com/cuemby/agent-core/pkg/rpc"
	"github.com/cuemby/agent-core/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agent-core",
	Short: "Core agent for a distributed block-storage control plane",
	Long: `agent-core owns one node's view of the cluster's storage
resources (pools, replicas, nexuses, volumes): it persists desired
state, drives per-node data-plane gRPC calls to realize it, and
reconciles any operation left dirty by a crash.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"agent-core version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reconcileStatusCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// bootstrapFile is the optional on-disk seed node list agent-core reads at
// startup, in place of a runtime join protocol (out of scope).
type bootstrapFile struct {
	Nodes []struct {
		ID       string            `yaml:"id"`
		Endpoint string            `yaml:"endpoint"`
		Labels   map[string]string `yaml:"labels,omitempty"`
	} `yaml:"nodes"`
}

func loadBootstrap(path string) (*bootstrapFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bootstrap file: %w", err)
	}
	var bf bootstrapFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse bootstrap file: %w", err)
	}
	return &bf, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the core agent service",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		httpAddr, _ := cmd.Flags().GetString("http-addr")
		bootstrap, _ := cmd.Flags().GetString("bootstrap")
		connectTimeout, _ := cmd.Flags().GetDuration("connect-timeout")
		requestTimeout, _ := cmd.Flags().GetDuration("request-timeout")
		reconcilePeriod, _ := cmd.Flags().GetDuration("reconcile-period")
		reconcileIdlePeriod, _ := cmd.Flags().GetDuration("reconcile-idle-period")

		return runAgent(cmd.Context(), runConfig{
			dataDir:             dataDir,
			httpAddr:            httpAddr,
			bootstrapPath:       bootstrap,
			connectTimeout:      connectTimeout,
			requestTimeout:      requestTimeout,
			reconcilePeriod:     reconcilePeriod,
			reconcileIdlePeriod: reconcileIdlePeriod,
		})
	},
}

func init() {
	runCmd.Flags().String("data-dir", "./data", "Directory holding the bbolt store")
	runCmd.Flags().String("http-addr", ":9090", "Address for the /health, /ready and /metrics endpoints")
	runCmd.Flags().String("bootstrap", "", "Optional YAML file listing nodes to register at startup")
	runCmd.Flags().Duration("connect-timeout", 5*time.Second, "Per-node gRPC dial timeout")
	runCmd.Flags().Duration("request-timeout", 30*time.Second, "Per-node gRPC request timeout")
	runCmd.Flags().Duration("reconcile-period", 2*time.Second, "Reconciler poll interval after a busy pass")
	runCmd.Flags().Duration("reconcile-idle-period", 15*time.Second, "Reconciler poll interval after an idle pass")
}

type runConfig struct {
	dataDir             string
	httpAddr            string
	bootstrapPath       string
	connectTimeout      time.Duration
	requestTimeout      time.Duration
	reconcilePeriod     time.Duration
	reconcileIdlePeriod time.Duration
}

func runAgent(ctx context.Context, cfg runConfig) error {
	logger := log.WithComponent("main")

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	storePath := cfg.dataDir + "/agent-core.db"
	store, err := kvstore.Open(storePath, 5*time.Second)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	reg := registry.New(store, registry.Timing{
		ReconcilePeriod:     cfg.reconcilePeriod,
		ReconcileIdlePeriod: cfg.reconcileIdlePeriod,
	}, rpc.Timeouts{Connect: cfg.connectTimeout, Request: cfg.requestTimeout})

	if err := reg.Init(ctx); err != nil {
		return fmt.Errorf("registry init: %w", err)
	}
	metrics.RegisterComponent("store", true, "")

	if cfg.bootstrapPath != "" {
		bf, err := loadBootstrap(cfg.bootstrapPath)
		if err != nil {
			return err
		}
		for _, n := range bf.Nodes {
			spec := &types.NodeSpec{
				ID:       types.NodeID(n.ID),
				Endpoint: n.Endpoint,
				Labels:   n.Labels,
				Admin:    types.NodeAdminStateOnline,
			}
			if err := reg.RegisterNode(ctx, spec); err != nil {
				logger.Error().Err(err).Str("node", n.ID).Msg("failed to register bootstrap node")
			}
		}
	}

	rec := reconciler.NewReconciler(reg)
	rec.Start()
	defer rec.Stop()

	poller := nodepoll.New(reg, health.DefaultConfig())
	poller.Start()
	defer poller.Stop()

	collector := metrics.NewCollector(reg)
	collector.Start()
	defer collector.Stop()

	metrics.RegisterComponent("api", true, "")
	mux := http.NewServeMux()
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/metrics", metrics.Handler())
	httpServer := &http.Server{
		Addr:         cfg.httpAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Str("data_dir", cfg.dataDir).Str("http_addr", cfg.httpAddr).Msg("agent-core started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	reg.Stop()
	return nil
}

var reconcileStatusCmd = &cobra.Command{
	Use:   "reconcile-status",
	Short: "Report any specs left dirty by a prior crash, without starting the service",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		storePath := dataDir + "/agent-core.db"

		store, err := kvstore.Open(storePath, 5*time.Second)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		reg := registry.New(store, registry.Timing{}, rpc.Timeouts{Connect: time.Second, Request: time.Second})
		if err := reg.Init(cmd.Context()); err != nil {
			return fmt.Errorf("registry init: %w", err)
		}

		dirty := 0
		for _, r := range reg.Replicas.Resources().ToSlice() {
			if r.Operation != nil && r.Operation.Dirty() {
				dirty++
				fmt.Printf("Replica %s: dirty op %s\n", r.ID, r.Operation.Op.Kind)
			}
		}
		for _, n := range reg.Nexuses.Resources().ToSlice() {
			if n.Operation != nil && n.Operation.Dirty() {
				dirty++
				fmt.Printf("Nexus %s: dirty op %s\n", n.ID, n.Operation.Op.Kind)
			}
		}
		for _, p := range reg.Pools.Resources().ToSlice() {
			if p.Operation != nil && p.Operation.Dirty() {
				dirty++
				fmt.Printf("Pool %s: dirty op %s\n", p.ID, p.Operation.Op)
			}
		}
		if dirty == 0 {
			fmt.Println("no dirty specs")
		}
		return nil
	},
}

func init() {
	reconcileStatusCmd.Flags().String("data-dir", "./data", "Directory holding the bbolt store")
}
