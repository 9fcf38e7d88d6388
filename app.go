package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	alertapp "smart-maintenance/internal/alerts/application"
	alerts "smart-maintenance/internal/alerts/domain"
	"smart-maintenance/internal/alerts/notify"
	"smart-maintenance/internal/config"
	evidenceapp "smart-maintenance/internal/evidence/application"
	evidence "smart-maintenance/internal/evidence/domain"
	"smart-maintenance/internal/evidence/infrastructure/search"
	"smart-maintenance/internal/evidence/infrastructure/static"
	maintenanceapp "smart-maintenance/internal/maintenance/application"
	maintenance "smart-maintenance/internal/maintenance/domain"
	reportmemory "smart-maintenance/internal/maintenance/infrastructure/memory"
	reportpostgres "smart-maintenance/internal/maintenance/infrastructure/postgres"
	reports3 "smart-maintenance/internal/maintenance/infrastructure/s3"
	"smart-maintenance/internal/observability/metrics"
	planapp "smart-maintenance/internal/plan/application"
	riskapp "smart-maintenance/internal/risk/application"
	telemetry "smart-maintenance/internal/telemetry/domain"
	historymemory "smart-maintenance/internal/telemetry/infrastructure/memory"
	historypostgres "smart-maintenance/internal/telemetry/infrastructure/postgres"
)

// app holds the assembled pipeline and its stores.
type app struct {
	cfg          config.Config
	catalog      config.Catalog
	logger       zerolog.Logger
	db           *sql.DB
	history      telemetry.HistoryStore
	reports      maintenance.ReportRepository
	orchestrator *maintenanceapp.Orchestrator
}

// buildApp wires the pipeline. Postgres backs history and reports when a DSN is
// configured; otherwise both live in memory for the life of the process.
func buildApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, catalog: catalog, logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		a.db = db
		a.history = historypostgres.NewHistoryRepository(db)
		a.reports = reportpostgres.NewReportRepository(db)
	} else {
		logger.Warn().Msg("PG_DSN not set; history and reports are kept in memory")
		a.history = historymemory.NewHistoryStore()
		a.reports = reportmemory.NewReportStore()
	}
	metrics.Init(a.db, logger)

	scorer, err := riskapp.NewScorer(a.history, catalog.Risk, riskapp.WithLogger(logger))
	if err != nil {
		return nil, a.closeWith(err)
	}
	searcher, err := buildSearcher(cfg)
	if err != nil {
		return nil, a.closeWith(err)
	}
	retriever, err := evidenceapp.NewRetriever(searcher, catalog.Retrieval, evidenceapp.WithLogger(logger))
	if err != nil {
		return nil, a.closeWith(err)
	}
	generator, err := planapp.NewGenerator(catalog.Plan)
	if err != nil {
		return nil, a.closeWith(err)
	}
	transport, err := buildTransport(ctx, cfg, logger)
	if err != nil {
		return nil, a.closeWith(err)
	}
	dispatcherOpts := []alertapp.Option{alertapp.WithLogger(logger), alertapp.WithRequestTimeout(cfg.AlertTimeout)}
	if cfg.AlertTemplate != "" {
		tpl, err := notify.NewTemplate(cfg.AlertTemplate)
		if err != nil {
			return nil, a.closeWith(err)
		}
		dispatcherOpts = append(dispatcherOpts, alertapp.WithTemplate(tpl))
	}
	dispatcher, err := alertapp.NewDispatcher(transport, dispatcherOpts...)
	if err != nil {
		return nil, a.closeWith(err)
	}

	var archives []maintenance.ReportSink
	if cfg.S3Bucket != "" {
		archive, err := reports3.NewArchiveFromRegion(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, a.closeWith(err)
		}
		archives = append(archives, archive)
	}

	a.orchestrator, err = maintenanceapp.NewOrchestrator(scorer, retriever, generator, dispatcher,
		maintenanceapp.WithReportStore(a.reports),
		maintenanceapp.WithSinks(archives...),
		maintenanceapp.WithAlertThreshold(catalog.AlertThreshold),
		maintenanceapp.WithBatchConcurrency(cfg.BatchConcurrency),
		maintenanceapp.WithLogger(logger),
	)
	if err != nil {
		return nil, a.closeWith(err)
	}
	return a, nil
}

func buildSearcher(cfg config.Config) (evidence.Searcher, error) {
	switch {
	case cfg.SearchEndpoint != "":
		var opts []search.Option
		if cfg.SearchAPIVersion != "" {
			opts = append(opts, search.WithAPIVersion(cfg.SearchAPIVersion))
		}
		return search.NewClient(cfg.SearchEndpoint, cfg.SearchIndex, cfg.SearchAPIKey, opts...)
	case cfg.CorpusPath != "":
		return static.LoadCorpus(cfg.CorpusPath)
	default:
		return static.NewCorpus(nil), nil
	}
}

func buildTransport(ctx context.Context, cfg config.Config, logger zerolog.Logger) (alerts.Transport, error) {
	transports := []alerts.Transport{notify.NewLogTransport(logger)}
	if cfg.AlertWebhookURL != "" {
		webhook, err := notify.NewWebhookTransport(cfg.AlertWebhookURL)
		if err != nil {
			return nil, err
		}
		transports = append(transports, webhook)
	}
	if cfg.SNSTopicARN != "" {
		sns, err := notify.NewSNSTransportFromRegion(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
		if err != nil {
			return nil, err
		}
		transports = append(transports, sns)
	}
	if len(transports) == 1 {
		return transports[0], nil
	}
	return notify.NewMultiTransport(transports...), nil
}

func (a *app) closeWith(err error) error {
	return errors.Join(err, a.Close())
}

// Close releases the database handle.
func (a *app) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
