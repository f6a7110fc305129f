// Command sercha-flow runs lazy document pipelines declared in TOML or YAML.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/sercha-flow/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-flow/internal/adapters/driven/index"
	"github.com/custodia-labs/sercha-flow/internal/adapters/driven/similarity/tfidf"
	"github.com/custodia-labs/sercha-flow/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-flow/internal/core/domain"
	"github.com/custodia-labs/sercha-flow/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-flow/internal/core/services"
	"github.com/custodia-labs/sercha-flow/internal/session"
	"github.com/custodia-labs/sercha-flow/internal/sinks"
	"github.com/custodia-labs/sercha-flow/internal/transforms"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	store, err := file.NewConfigStore(os.Getenv(file.EnvKey("config_dir")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		return err
	}

	base := session.Init(session.WithClusterCaps(domain.ClusterCaps{
		MaxCPUs:        store.GetFloat("cluster.max_cpus"),
		MaxGPUs:        store.GetFloat("cluster.max_gpus"),
		MaxMemoryMB:    store.GetInt("cluster.max_memory_mb"),
		MaxConcurrency: store.GetInt("cluster.max_concurrency"),
	}))

	var scorerOpts []tfidf.Option
	if words := store.GetStringSlice("similarity.stopwords"); len(words) > 0 {
		scorerOpts = append(scorerOpts, tfidf.WithStopwords(words...))
	}
	registry := transforms.NewRegistry()
	transforms.RegisterDefaults(registry, tfidf.NewScorer(scorerOpts...))

	indexKind := store.GetString("index.kind")
	if indexKind == "" {
		indexKind = domain.IndexSQLite
	}
	indexPath := store.GetString("index.path")
	if indexPath == "" {
		indexPath = filepath.Join(filepath.Dir(store.Path()), "index.db")
	}
	indexes := index.NewFactory(indexKind, indexPath)

	svc := services.NewPipelineService(base, registry, indexes, sinkDefaults(store)...)
	cli.Configure(cli.Dependencies{
		Runner:           svc,
		Config:           store,
		LoadPipeline:     file.LoadPipeline,
		LoadParams:       session.LoadParams,
		ConfiguredParams: store.ParamSets,
		DefaultRunner:    func() *domain.RunnerSpec { return defaultRunner(store) },
	})
	return cli.Execute(ctx)
}

// sinkDefaults reads sink options shared by every pipeline.
func sinkDefaults(store driven.ConfigStore) []sinks.Option {
	var opts []sinks.Option
	if n := store.GetInt("sink.dispatch_workers"); n > 0 {
		opts = append(opts, sinks.WithDispatchWorkers(n))
	}
	if rps := store.GetFloat("sink.requests_per_second"); rps > 0 {
		opts = append(opts, sinks.WithRequestsPerSecond(rps))
	}
	if path := store.GetString("sink.failure_log"); path != "" {
		opts = append(opts, sinks.WithFailureLog(path))
	}
	return opts
}

// defaultRunner reads the runner section. It is evaluated per command so
// variables from the dotenv file apply.
func defaultRunner(store driven.ConfigStore) *domain.RunnerSpec {
	r := domain.RunnerSpec{
		Kind:     store.GetString("runner.kind"),
		Workers:  store.GetInt("runner.workers"),
		FailFast: store.GetBool("runner.fail_fast"),
	}
	if r == (domain.RunnerSpec{}) {
		return nil
	}
	return &r
}
