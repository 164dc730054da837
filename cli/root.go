// Package cli provides the command-line entry point for the ontoforge
// lifecycle engine: an HTTP API server backed by the C1-C10 pipeline stages,
// with its async worker pool embedded in the same process. The bootstrap
// shape — cobra root command, viper-bound flags, graceful shutdown on
// SIGINT/SIGTERM — follows the teacher's own cli/root.go; every service it
// wires up is new.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ontoforge.dev/api"
	"ontoforge.dev/async"
	"ontoforge.dev/bundlestore"
	"ontoforge.dev/common"
	"ontoforge.dev/config"
	"ontoforge.dev/metrics"
	"ontoforge.dev/store"
	"ontoforge.dev/warehouse"
)

// cfgFile holds the path to an optional YAML config file, searched the same
// way the teacher's flow-service looks for .flow-service.yaml.
var cfgFile string

// RootCmd is the ontoforge server's entry point.
var RootCmd = &cobra.Command{
	Use:   "ontoforge",
	Short: "the ontology lifecycle engine: validate, diff, evaluate, compile, deploy, drift-check and regress semantic models",
	Long: `ontoforge

A server for managing the lifecycle of semantic-model ontologies against a
cloud analytics warehouse:
- version control with content-addressed, monotonically numbered versions
- structural diffing and breaking-change classification
- gate-based evaluation against threshold profiles
- compilation to a warehouse-native semantic view plus deploy/rollback scripts
- export/verify/deploy orchestration against the live warehouse
- drift detection between declared ontology and live schema
- end-to-end regression testing of a deployed view's question-answering

Configuration is read from environment variables (ONTOFORGE_* for most
settings, ONTOFORGE_<BACKEND>_* for per-backend settings), optionally
layered under a YAML config file.`,
	Run: runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ontoforge.yaml)")
	RootCmd.PersistentFlags().Int("port", 0, "HTTP server port")
	RootCmd.PersistentFlags().String("api-key", "", "API key required on every request via X-API-Key (empty disables auth)")
	RootCmd.PersistentFlags().String("rabbitmq-url", "", "RabbitMQ connection URL for task lifecycle events (empty disables event publishing)")
	RootCmd.PersistentFlags().String("queue-name", "ontoforge.task_events", "RabbitMQ queue name for task lifecycle events")

	viper.BindPFlag("port", RootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("api_key", RootCmd.PersistentFlags().Lookup("api-key"))
	viper.BindPFlag("rabbitmq.url", RootCmd.PersistentFlags().Lookup("rabbitmq-url"))
	viper.BindPFlag("rabbitmq.queue_name", RootCmd.PersistentFlags().Lookup("queue-name"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ontoforge")
	}

	viper.SetEnvPrefix("ONTOFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func runServer(cmd *cobra.Command, args []string) {
	loader := config.NewConfigLoader("ONTOFORGE")
	cfg, err := loader.LoadAll()
	if err != nil {
		common.Logger.WithError(err).Fatal("invalid configuration")
	}
	if port := viper.GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}

	logger := common.ServiceLogger(cfg.Service.Name, cfg.Service.Version)
	logger.Info("starting ontoforge")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to open store")
	}
	defer st.Close()
	if st.Cache == nil {
		logger.Fatal("redis is required: the async task queue and drift-event dedup index have no in-memory fallback")
	}

	bundles, err := bundlestore.NewStore(ctx, cfg.Bundles.Bucket)
	if err != nil {
		logger.WithError(err).Fatal("failed to open bundle store")
	}

	adapter := warehouse.NewHTTPAdapter(cfg.Warehouse.BaseURL)
	m := metrics.New(cfg.Service.Name)

	runner := buildRunner(cfg, st, adapter, bundles, m)

	if url := viper.GetString("rabbitmq.url"); url != "" {
		publisher, err := async.NewEventPublisher(url, viper.GetString("rabbitmq.queue_name"))
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		defer publisher.Close()
		runner.SetEventPublisher(publisher)
	}

	runner.Start(ctx)
	defer runner.Stop()

	srv := api.NewServer(cfg.Server, viper.GetString("api_key"), st, runner, m)
	logger.WithField("port", cfg.Server.Port).Info("listening")
	if err := srv.Start(ctx); err != nil {
		logger.WithError(err).Fatal("server exited with error")
	}
	logger.Info("shutdown complete")
}

// buildRunner wires every pipeline-stage processor into a Runner, sized from
// the configured per-queue worker counts; eval has no configured count and
// always gets 4 workers.
func buildRunner(cfg *config.AllConfig, st *store.Store, adapter warehouse.Adapter, bundles *bundlestore.Store, m *metrics.Metrics) *async.Runner {
	queue := async.NewQueue(st.Cache)
	state := async.NewStateStore(st.Postgres())

	workers := map[async.Kind]int{
		async.KindCompile:    cfg.Async.QueueWorkers["compile"],
		async.KindEval:       4,
		async.KindDeploy:     cfg.Async.QueueWorkers["deploy"],
		async.KindDrift:      cfg.Async.QueueWorkers["drift"],
		async.KindRegression: cfg.Async.QueueWorkers["regression"],
	}
	runnerCfg := async.Config{
		QueueWorkers:   workers,
		TaskTimeout:    cfg.Async.TaskTimeout,
		DequeueTimeout: async.DefaultConfig().DequeueTimeout,
	}

	runner := async.NewRunner(queue, state, runnerCfg)
	runner.RegisterProcessor(async.KindCompile, &api.CompileProcessor{Store: st, Bundles: bundles, Metrics: m})
	runner.RegisterProcessor(async.KindEval, &api.EvalProcessor{Store: st, Metrics: m})
	runner.RegisterProcessor(async.KindDeploy, &api.DeployProcessor{Store: st, Warehouse: adapter, Metrics: m})
	runner.RegisterProcessor(async.KindDrift, &api.DriftProcessor{Store: st, Warehouse: adapter, Metrics: m})
	runner.RegisterProcessor(async.KindRegression, &api.RegressionProcessor{Store: st, Warehouse: adapter, Bundles: bundles, Metrics: m})
	return runner
}
