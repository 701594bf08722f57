// Package scheduler runs background jobs over asynq. Its single job here
// is the periodic pipeline health sweep: validate every tenant's stage
// catalog and cache the reports so the HTTP layer can serve them warm.
package scheduler

import (
	"context"
	"fmt"

	stagestransport "crmcore_backend/internal/stages/transport"
	"crmcore_backend/platform/cache"
	"crmcore_backend/platform/config"
	"crmcore_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

// Per-sweep cap on concurrent tenant validations.
const sweepParallelism = 8

// PipelineChecker is the slice of the stage registry the sweep needs.
type PipelineChecker interface {
	ListTenants(ctx context.Context) ([]uuid.UUID, error)
	Validate(ctx context.Context, tenantID uuid.UUID) (stagestransport.PipelineReport, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	checker PipelineChecker
	reports *cache.Cache
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, checker PipelineChecker, reports *cache.Cache, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		checker: checker,
		reports: reports,
		log:     log,
	}

	mux.HandleFunc(TaskPipelineHealthCheck, w.handlePipelineHealthCheck)

	return w, nil
}

// ReportCacheKey is where a tenant's latest pipeline report lives in Redis.
func ReportCacheKey(tenantID uuid.UUID) string {
	return "pipeline:report:" + tenantID.String()
}

func (w *Worker) handlePipelineHealthCheck(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePipelineHealthCheckPayload(task)
	if err != nil {
		return err
	}

	if payload.TenantID != "" {
		tenantID, err := uuid.Parse(payload.TenantID)
		if err != nil {
			return err
		}
		return w.sweepTenant(ctx, tenantID)
	}

	tenants, err := w.checker.ListTenants(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepParallelism)
	for _, tenantID := range tenants {
		tenantID := tenantID
		g.Go(func() error {
			return w.sweepTenant(ctx, tenantID)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.log.Info("pipeline health sweep completed", "tenants", len(tenants))
	return nil
}

func (w *Worker) sweepTenant(ctx context.Context, tenantID uuid.UUID) error {
	report, err := w.checker.Validate(ctx, tenantID)
	if err != nil {
		return err
	}

	if report.Status != "ok" {
		w.log.Warn("pipeline health degraded",
			"tenant_id", tenantID.String(),
			"status", report.Status,
			"errors", len(report.Errors),
			"warnings", len(report.Warnings),
		)
	}

	if w.reports == nil {
		return nil
	}
	return w.reports.Set(ctx, ReportCacheKey(tenantID), report)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
