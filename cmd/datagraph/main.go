// Command datagraph opens an entity store environment and exposes
// simple inspection operations plus a metrics listener.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datagraph/internal/blob"
	"datagraph/internal/config"
	"datagraph/internal/engine"
	"datagraph/internal/search"
	"datagraph/internal/storage"
	"datagraph/internal/storage/persist"
	"datagraph/pkg/domain"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "datagraph:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("datagraph", flag.ContinueOnError)
	configPath := global.String("config", "datagraph.yaml", "configuration file path")
	if err := global.Parse(args); err != nil {
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: datagraph [-config path] <types|get|serve-metrics> [flags]")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	svc, manager, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = manager.CloseAll() }()

	ctx := context.Background()
	switch rest[0] {
	case "types":
		return runTypes(ctx, svc, cfg, rest[1:])
	case "get":
		return runGet(ctx, svc, cfg, rest[1:])
	case "serve-metrics":
		return runServeMetrics(cfg, rest[1:])
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func buildService(cfg config.Config, logger *slog.Logger) (*engine.Service, *storage.Manager, error) {
	opener, err := persist.Opener(cfg.Storage.Driver, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	manager := storage.NewManager(storage.Options{
		BlobDriver: blob.Driver(cfg.Blob.Driver),
		S3: blob.S3Config{
			Region:    cfg.Blob.S3Region,
			Bucket:    cfg.Blob.S3Bucket,
			Endpoint:  cfg.Blob.S3Endpoint,
			PathStyle: cfg.Blob.S3PathStyle,
		},
		OpenPersister: opener,
		Logger:        logger,
	})

	var metrics engine.MetricsRecorder
	switch cfg.Metrics.Recorder {
	case "prometheus":
		rec, err := engine.NewPrometheusMetricsRecorder(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, nil, err
		}
		metrics = rec
	case "expvar":
		metrics = engine.NewExpvarMetricsRecorder("datagraph_metrics")
	default:
		metrics = engine.NoopMetricsRecorder{}
	}

	return engine.New(manager, search.NewGeoIndex(), metrics, logger), manager, nil
}

func environmentDir(cfg config.Config, env string) string {
	if filepath.IsAbs(env) {
		return env
	}
	return filepath.Join(cfg.EnvironmentsRoot, env)
}

func runTypes(ctx context.Context, svc *engine.Service, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("types", flag.ContinueOnError)
	env := fs.String("env", "", "environment directory")
	entityType := fs.String("type", "", "entity type to count")
	count := fs.Bool("count", false, "count entities of -type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *env == "" {
		return fmt.Errorf("types: -env is required")
	}
	result, err := svc.GetEntityTypes(ctx, domain.EntityTypeQuery{
		Environment: environmentDir(cfg, *env),
		EntityType:  *entityType,
		Count:       *count,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runGet(ctx context.Context, svc *engine.Service, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	env := fs.String("env", "", "environment directory")
	entityType := fs.String("type", "", "entity type")
	entityID := fs.String("id", "", "entity id")
	namespace := fs.String("ns", "", "namespace")
	offset := fs.Int("offset", 0, "pagination offset")
	max := fs.Int("max", 0, "pagination size (0 = default)")
	sortProp := fs.String("sort", "", "sort property")
	desc := fs.Bool("desc", false, "sort descending")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *env == "" {
		return fmt.Errorf("get: -env is required")
	}
	q := domain.Query{
		Environment:    environmentDir(cfg, *env),
		Namespace:      *namespace,
		EntityType:     *entityType,
		EntityID:       *entityID,
		Offset:         *offset,
		Max:            *max,
		Sort:           *sortProp,
		SortDescending: *desc,
	}
	if *entityID != "" {
		entity, err := svc.GetEntity(ctx, q)
		if err != nil {
			return err
		}
		if entity == nil {
			return fmt.Errorf("get: entity %s not found", *entityID)
		}
		return printJSON(transportView(*entity))
	}
	page, err := svc.GetEntities(ctx, q)
	if err != nil {
		return err
	}
	views := make([]entityView, 0, len(page.Entities))
	for _, e := range page.Entities {
		views = append(views, transportView(e))
	}
	return printJSON(struct {
		Entities []entityView `json:"entities"`
		Offset   int          `json:"offset"`
		Max      int          `json:"max"`
		Count    int64        `json:"count"`
	}{views, page.Offset, page.Max, page.Count})
}

func runServeMetrics(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("serve-metrics", flag.ContinueOnError)
	listen := fs.String("listen", cfg.Metrics.Listen, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *listen == "" {
		return fmt.Errorf("serve-metrics: no listen address configured")
	}
	mux := http.NewServeMux()
	// expvar registers itself on the default mux; re-expose it here next
	// to the prometheus handler.
	mux.Handle("/debug/vars", http.DefaultServeMux)
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(*listen, mux)
}

// entityView is the JSON shape printed by the CLI; blob streams and
// executable conditions have no JSON form.
type entityView struct {
	Environment string         `json:"environment"`
	Namespace   string         `json:"namespace,omitempty"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	Properties  map[string]any `json:"properties,omitempty"`
	LinkNames   []string       `json:"link_names,omitempty"`
	BlobNames   []string       `json:"blob_names,omitempty"`
}

func transportView(e domain.Entity) entityView {
	view := entityView{
		Environment: e.Environment,
		Namespace:   e.Namespace,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		LinkNames:   e.LinkNames,
		BlobNames:   e.BlobNames,
	}
	if len(e.Properties) > 0 {
		view.Properties = make(map[string]any, len(e.Properties))
		for _, p := range e.Properties {
			view.Properties[p.Name] = p.Value
		}
	}
	return view
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
