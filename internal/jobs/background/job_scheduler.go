package background

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"crmsaas/internal/repositories"
	"crmsaas/internal/services"
	"crmsaas/internal/tenancy"
)

const tokenLifetime = 24 * time.Hour

// JobScheduler runs periodic maintenance: a provisioning sweep that heals
// tenant schemas and a prune of expired auth tokens in every store.
type JobScheduler struct {
	scheduler  gocron.Scheduler
	tenantSvc  services.TenantService
	tenantRepo repositories.TenantRepository
	tokenRepo  repositories.TokenRepository
	log        *zap.Logger

	mu   sync.RWMutex
	jobs map[string]gocron.Job
}

func NewJobScheduler(tenantSvc services.TenantService, tenantRepo repositories.TenantRepository, tokenRepo repositories.TokenRepository, log *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler:  scheduler,
		tenantSvc:  tenantSvc,
		tenantRepo: tenantRepo,
		tokenRepo:  tokenRepo,
		log:        log,
		jobs:       make(map[string]gocron.Job),
	}
	if err := js.registerJobs(); err != nil {
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	js.log.Info("starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.log.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs() error {
	sweepJob, err := js.scheduler.NewJob(
		gocron.CronJob("0 3 * * *", false),
		gocron.NewTask(js.provisioningSweep),
		gocron.WithName("tenant-provisioning-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	pruneJob, err := js.scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(js.pruneExpiredTokens),
		gocron.WithName("auth-token-prune"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	js.mu.Lock()
	js.jobs["provisioning-sweep"] = sweepJob
	js.jobs["token-prune"] = pruneJob
	js.mu.Unlock()
	return nil
}

// provisioningSweep re-runs schema provisioning against every active tenant
// so drift (new catalog tables, late columns) heals without operator action.
func (js *JobScheduler) provisioningSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	results, err := js.tenantSvc.ProvisionAll(ctx)
	if err != nil {
		js.log.Error("provisioning sweep failed", zap.Error(err))
		return
	}

	healthy := 0
	for _, result := range results {
		if result.Success {
			healthy++
		}
	}
	js.log.Info("provisioning sweep finished",
		zap.Int("tenants", len(results)),
		zap.Int("healthy", healthy))
}

// pruneExpiredTokens removes stale auth tokens from the control store and
// every active tenant store.
func (js *JobScheduler) pruneExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var pruned int64
	if n, err := js.tokenRepo.DeleteOlderThan(tenancy.WithoutTenant(ctx), tokenLifetime); err != nil {
		js.log.Warn("token prune failed for control store", zap.Error(err))
	} else {
		pruned += n
	}

	tenants, err := js.tenantRepo.ListActive(ctx)
	if err != nil {
		js.log.Warn("token prune could not list tenants", zap.Error(err))
		return
	}
	for _, tenant := range tenants {
		n, err := js.tokenRepo.DeleteOlderThan(tenancy.WithTenant(ctx, tenant), tokenLifetime)
		if err != nil {
			js.log.Warn("token prune failed for tenant",
				zap.String("tenant", tenant.Name),
				zap.Error(err))
			continue
		}
		pruned += n
	}

	js.log.Info("auth token prune finished", zap.Int64("pruned", pruned))
}
