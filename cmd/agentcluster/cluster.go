package main

import (
	"context"
	"path/filepath"
	"time"

	"agentcluster/internal/campaign"
	"agentcluster/internal/config"
	"agentcluster/internal/journal"
	"agentcluster/internal/retry"
	"agentcluster/internal/telemetry"

	"go.uber.org/zap"
)

// orchestratorConfig maps the YAML config onto the orchestrator's.
func orchestratorConfig(c *config.Config) campaign.OrchestratorConfig {
	d := c.GetDurations()
	oc := campaign.DefaultConfig()
	oc.Timings = campaign.Timings{
		Initialize:     d.Initialize,
		Architecture:   d.Architecture,
		Scan:           d.Scan,
		GapAnalysis:    d.GapAnalysis,
		Fragment:       d.Fragment,
		ToolActivation: d.ToolActivation,
		Assimilate:     d.Assimilate,
		Line:           d.Line,
		Correction:     d.Correction,
		Package:        d.Package,
		Intent:         d.Intent,
	}
	oc.Retry = retry.Policy{
		MaxRetries: c.Retry.MaxRetries,
		Base:       c.GetBackoffBase(),
		Max:        c.GetBackoffMax(),
	}
	if c.Server.StreamBuffer > 0 {
		oc.SubscriberBuffer = c.Server.StreamBuffer
	}
	return oc
}

// journalPath resolves the journal location against the workspace.
func journalPath(c *config.Config) string {
	if filepath.IsAbs(c.Journal.Path) {
		return c.Journal.Path
	}
	return filepath.Join(workspace, c.Journal.Path)
}

// newCluster builds an orchestrator from the loaded config and attaches the
// run journal when enabled. The returned func releases both.
func newCluster() (*campaign.Orchestrator, func(), error) {
	o := campaign.NewOrchestrator(orchestratorConfig(cfg))

	var store *journal.Store
	if cfg.Journal.Enabled {
		var err error
		store, err = journal.NewStore(journalPath(cfg))
		if err != nil {
			o.Close()
			return nil, nil, err
		}
		o.SetRecorder(store)
		logger.Debug("run journal attached", zap.String("path", store.Path()))
	}

	return o, func() {
		o.Close()
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close journal", zap.Error(err))
			}
		}
	}, nil
}

// initTelemetry starts OTLP export when configured. The returned func
// flushes and never fails the command.
func initTelemetry(ctx context.Context) func() {
	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		MetricInterval: cfg.GetMetricInterval(),
	})
	if err != nil {
		logger.Warn("telemetry disabled", zap.Error(err))
		return func() {}
	}
	return func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry flush failed", zap.Error(err))
		}
	}
}
