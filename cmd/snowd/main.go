// Package main is the entrypoint for the snow alert engine CLI.
//
// snowd reads a normalized weather snapshot (and optionally the latest MARWIS
// surface station reading) from JSON files, evaluates the alert rule catalog
// against them, and prints the resulting batch. With -send the batch is
// delivered to the SAP Integration Suite iFlow endpoint; with
// -trigger-workflow a BTP workflow instance is started for operator review.
//
// This file handles dependency wiring only; the decision logic lives in
// internal/engine and the delivery pipeline in internal/isuite.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"snowalert/internal/config"
	"snowalert/internal/engine"
	"snowalert/internal/isuite"
	"snowalert/internal/store"
	"snowalert/internal/types"
)

func main() {
	snapshotPath := flag.String("snapshot", "", "path to the weather snapshot JSON file (\"-\" for stdin)")
	marwisPath := flag.String("marwis", "", "path to the latest MARWIS reading JSON file (optional)")
	send := flag.Bool("send", false, "deliver the evaluated batch to the integration endpoint")
	triggerWorkflow := flag.Bool("trigger-workflow", false, "start a review workflow instance for the batch")
	checkConfig := flag.Bool("check-config", false, "print configuration and token diagnostics, then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	clock := types.RealClock{}
	httpClient := &http.Client{Timeout: cfg.ISuite.Timeout}
	tokens := isuite.NewTokenProvider(cfg.ISuite, httpClient, clock, logger)

	if *checkConfig {
		printDiagnostics(cfg, tokens)
		return
	}

	if *snapshotPath == "" {
		fmt.Fprintln(os.Stderr, "snowd: -snapshot is required (see -h)")
		os.Exit(2)
	}

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	snapshot, err := readSnapshot(*snapshotPath)
	if err != nil {
		logger.Error("failed to read snapshot", "path", *snapshotPath, "error", err)
		os.Exit(1)
	}
	marwis, err := readMarwis(*marwisPath)
	if err != nil {
		logger.Error("failed to read MARWIS reading", "path", *marwisPath, "error", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open history store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	builder := engine.NewBatchBuilder(engine.NewEvaluator(clock, logger), clock, logger)
	batch := builder.Build(snapshot, marwis)

	if err := db.SaveBatch(batch); err != nil {
		logger.Error("failed to persist batch", "batch_id", batch.ID, "error", err)
	}

	out := output{Batch: batch}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *send {
		delivery := isuite.NewDeliveryClient(cfg.ISuite, tokens, httpClient, clock, logger)
		out.Delivery = delivery.Send(ctx, batch)
		if err := db.SaveDeliveryResult(batch.ID, out.Delivery); err != nil {
			logger.Error("failed to persist delivery result", "batch_id", batch.ID, "error", err)
		}
	}

	if *triggerWorkflow && !batch.Empty() {
		workflow := isuite.NewWorkflowClient(cfg.Workflow, cfg.ISuite, tokens, httpClient, clock, logger)
		out.Workflow = workflow.Trigger(ctx, analysisText(batch))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("failed to encode output", "error", err)
		os.Exit(1)
	}

	if out.Delivery != nil && !out.Delivery.Success {
		os.Exit(1)
	}
}

// output is the JSON document printed to stdout.
type output struct {
	Batch    *types.AlertBatch     `json:"batch"`
	Delivery *types.DeliveryResult `json:"delivery,omitempty"`
	Workflow *types.WorkflowResult `json:"workflow,omitempty"`
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func readSnapshot(path string) (types.WeatherSnapshot, error) {
	var snap types.WeatherSnapshot
	data, err := readInput(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func readMarwis(path string) (*types.MarwisReading, error) {
	if path == "" {
		return nil, nil
	}
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var reading types.MarwisReading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil, fmt.Errorf("decode MARWIS reading: %w", err)
	}
	return &reading, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// serveMetrics exposes Prometheus metrics for scraping. Failures are logged
// and non-fatal; metrics are an observability aid, not a dependency.
func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener stopped", "error", err)
	}
}

// printDiagnostics reports what the engine can and cannot do with the current
// environment, without making any network calls.
func printDiagnostics(cfg *config.Config, tokens *isuite.TokenProvider) {
	diag := struct {
		Environment        string             `json:"environment"`
		DeliveryConfigured bool               `json:"delivery_configured"`
		MissingSettings    []string           `json:"missing_settings,omitempty"`
		WorkflowConfigured bool               `json:"workflow_configured"`
		StorePath          string             `json:"store_path"`
		MetricsAddr        string             `json:"metrics_addr,omitempty"`
		Token              isuite.TokenStatus `json:"token"`
	}{
		Environment:        cfg.Environment,
		MissingSettings:    cfg.ISuite.MissingSettings(),
		WorkflowConfigured: cfg.Workflow.URL != "" && cfg.Workflow.DefinitionID != "",
		StorePath:          cfg.Store.Path,
		MetricsAddr:        cfg.Metrics.Addr,
		Token:              tokens.Status(),
	}
	diag.DeliveryConfigured = len(diag.MissingSettings) == 0

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(diag)
}

// analysisText summarizes a batch for the workflow approver.
func analysisText(batch *types.AlertBatch) string {
	text := fmt.Sprintf("Generated %d weather alert(s) at %s:",
		len(batch.Alerts), batch.EvaluatedAt.Format(time.RFC3339))
	for _, a := range batch.Alerts {
		text += fmt.Sprintf("\n- [%s] %s (priority %d)", a.Code, a.Rule.Name, a.Priority)
	}
	return text
}
