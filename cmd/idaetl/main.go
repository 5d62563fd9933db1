package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"idaetl/internal/catalog"
	"idaetl/internal/config"
	"idaetl/internal/datasource/httpds"
	"idaetl/internal/metrics"
	"idaetl/internal/metrics/datadog"
	"idaetl/internal/metrics/prompush"
	"idaetl/internal/pipeline"
	"idaetl/internal/retry"
	"idaetl/internal/storage"

	// register all backends with the storage factory.
	_ "idaetl/internal/storage/all"
)

// main is the entry point for the ingestion binary. It loads configuration
// from the environment, optionally initializes a metrics backend, runs the
// pipeline once, and exits non-zero when the run fails or any resource does.
func main() {
	var (
		metricsBackendFlg string
		pushGatewayURLFlg string
		bootstrap         bool
		validate          bool
	)

	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env IDA_PUSHGATEWAY_URL)")
	flag.BoolVar(&bootstrap, "bootstrap", false, "apply the schema DDL before running")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalf("%v", err)
	}
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	setupMetrics(cfg, metricsBackendFlg, pushGatewayURLFlg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	// SIGINT/SIGTERM cancel the run; in-flight batches abort and the summary
	// still prints.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	repo, err := storage.New(ctx, storage.Config{
		Kind:   cfg.StorageKind,
		DSN:    cfg.DatabaseURL,
		Schema: cfg.Schema,
	})
	if err != nil {
		fatalf("open storage: %v", err)
	}
	defer repo.Close()

	if bootstrap {
		if err := repo.Bootstrap(ctx); err != nil {
			fatalf("bootstrap schema: %v", err)
		}
		log.Printf("schema bootstrap applied")
	}

	hc := httpds.NewClient(httpds.Config{
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.MaxRetries,
	})
	cat := catalog.NewClient(hc, catalog.Config{
		BaseURL:   cfg.CatalogBaseURL,
		DatasetID: cfg.DatasetID,
		APIKey:    cfg.APIKey,
	})

	p := pipeline.New(cat, repo, pipeline.Options{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		Retry: retry.Policy{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
		},
		Services: cfg.Services,
		YearFrom: cfg.YearFrom,
		YearTo:   cfg.YearTo,
	})

	stats, err := p.Run(ctx)
	if err != nil {
		log.Fatalf("run aborted: %v", err)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if failed := stats.Failed(); failed > 0 {
		log.Printf("run finished with %d failed resource(s)", failed)
		os.Exit(1)
	}
}

// setupMetrics installs the requested metrics backend. Flag wins over env;
// a backend that fails to initialize degrades to nop with a log line rather
// than aborting the run.
func setupMetrics(cfg config.Config, backendFlg, gwURLFlg string, verbose bool) {
	backendName := backendFlg
	if backendName == "" {
		if cfg.PushgatewayURL != "" {
			backendName = "pushgateway"
		} else if cfg.DogstatsdAddr != "" {
			backendName = "datadog"
		}
	}

	switch backendName {
	case "pushgateway":
		gwURL := gwURLFlg
		if gwURL == "" {
			gwURL = cfg.PushgatewayURL
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend("idaetl", gwURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=pushgateway url=%s", gwURL)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:      cfg.DogstatsdAddr,
			Namespace: "idaetl.",
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=datadog addr=%s", cfg.DogstatsdAddr)
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled")
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
