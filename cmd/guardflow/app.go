package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/BaSui01/guardflow/config"
	"github.com/BaSui01/guardflow/guard"
	"github.com/BaSui01/guardflow/history"
	"github.com/BaSui01/guardflow/internal/metrics"
	"github.com/BaSui01/guardflow/internal/telemetry"
	"github.com/BaSui01/guardflow/llm"
	"github.com/BaSui01/guardflow/schema"
	"github.com/BaSui01/guardflow/validator"
)

// app holds everything a command needs, built from the loaded config.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers
	collector *metrics.Collector
	store     history.Store

	// backend replaces the configured provider when set.
	backend llm.Backend
}

func newApp(opts *rootOptions) (*app, error) {
	cfg, err := config.NewLoader().WithConfigPath(opts.configPath).Load()
	if err != nil {
		return nil, err
	}
	logger := opts.logger
	if logger == nil {
		logger = initLogger(cfg.Log)
	}

	a := &app{cfg: cfg, logger: logger, backend: opts.backend}
	a.telemetry, err = telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	if cfg.Metrics.Enabled {
		a.collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}
	a.store, err = history.NewStore(cfg.Store.HistoryConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return a, nil
}

// close flushes metrics and traces and releases the store.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.collector != nil && a.cfg.Metrics.PushGateway != "" {
		err := push.New(a.cfg.Metrics.PushGateway, "guardflow").
			Gatherer(prometheus.DefaultGatherer).
			PushContext(ctx)
		if err != nil {
			a.logger.Warn("failed to push metrics", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close history store", zap.Error(err))
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to shut down telemetry", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// newGuard loads the schema document and builds a Guard. Reasks and calls go
// to the configured provider only when withBackend is set.
func (a *app) newGuard(schemaPath string, withBackend bool, numReasks int) (*guard.Guard, error) {
	doc, err := schema.LoadDocumentFile(schemaPath, validator.Default())
	if err != nil {
		return nil, err
	}
	opts := []guard.Option{
		guard.WithLogger(a.logger),
		guard.WithStore(a.store),
		guard.WithLLMConfig(a.cfg.LLM.RequestConfig()),
		guard.WithConcurrency(a.cfg.Runner.Concurrency),
	}
	if doc.NumReasks == nil {
		opts = append(opts, guard.WithNumReasks(a.cfg.Runner.NumReasks))
	}
	if numReasks >= 0 {
		opts = append(opts, guard.WithNumReasks(numReasks))
	}
	if a.collector != nil {
		opts = append(opts, guard.WithMetrics(a.collector))
	}
	switch {
	case !withBackend:
	case a.backend != nil:
		opts = append(opts, guard.WithBackend(a.backend))
	default:
		opts = append(opts, guard.WithProvider(a.cfg.LLM.Provider, a.cfg.LLM.ProviderConfig(), a.cfg.LLM.FactoryOptions()))
	}
	return guard.FromDocument(doc, opts...)
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// readMetadata decodes a JSON object file. An empty path means no metadata.
func readMetadata(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", path, err)
	}
	return m, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
