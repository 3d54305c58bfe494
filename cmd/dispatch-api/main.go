// Command dispatch-api serves the job dispatch HTTP API.
//
// @title                       Job Dispatch API
// @version                     1.0
// @description                 Dispatches service jobs between customers, technicians and schedulers.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the token.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldops/job-dispatch/internal/api"
	"github.com/fieldops/job-dispatch/internal/api/handler"
	"github.com/fieldops/job-dispatch/internal/api/metrics"
	"github.com/fieldops/job-dispatch/internal/core/domain"
	"github.com/fieldops/job-dispatch/internal/core/ports"
	"github.com/fieldops/job-dispatch/internal/core/service"
	"github.com/fieldops/job-dispatch/internal/infrastructure/credential"
	"github.com/fieldops/job-dispatch/internal/infrastructure/db/memory"
	mongostore "github.com/fieldops/job-dispatch/internal/infrastructure/db/mongo"
	pgstore "github.com/fieldops/job-dispatch/internal/infrastructure/db/postgres"
	redisstore "github.com/fieldops/job-dispatch/internal/infrastructure/db/redis"
	"github.com/fieldops/job-dispatch/internal/infrastructure/queue"
	"github.com/fieldops/job-dispatch/internal/pkg/config"
	"github.com/fieldops/job-dispatch/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "dispatch-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("dispatch-api stopped")
	}
}

// backend bundles the stores selected by STORE_BACKEND.
type backend struct {
	identities ports.IdentityRepository
	jobs       ports.JobRepository
	audit      ports.AuditRepository
	idem       ports.IdempotencyStore
	health     map[string]handler.Pinger
	closers    []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	b := &backend{health: map[string]handler.Pinger{}}

	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Disconnect(context.Background()) })
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			b.close()
			return nil, err
		}
		b.identities = mongostore.NewIdentityRepository(db)
		b.jobs = mongostore.NewJobRepository(db)
		b.audit = mongostore.NewAuditRepository(db)
		b.health["mongodb"] = mongostore.NewPinger(db)

	case config.BackendPostgres:
		pool, err := pgstore.Connect(ctx, pgstore.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		if err := pgstore.Migrate(ctx, pool); err != nil {
			b.close()
			return nil, err
		}
		b.identities = pgstore.NewIdentityRepository(pool)
		b.jobs = pgstore.NewJobRepository(pool)
		b.audit = pgstore.NewAuditRepository(pool)
		b.health["postgres"] = pgstore.NewPinger(pool)

	default:
		store := memory.New()
		b.identities = store
		b.jobs = memory.NewJobStore()
		b.audit = memory.NewAuditStore()
		b.health["store"] = store
	}

	if cfg.Redis.Addr == "" {
		b.idem = memory.NewIdempotencyStore()
	} else {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.idem = redisstore.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
		b.health["redis"] = redisstore.NewPinger(rdb)
	}

	log.Info().
		Str("backend", cfg.StoreBackend).
		Bool("redis", cfg.Redis.Addr != "").
		Msg("stores ready")
	return b, nil
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer b.close()

	// Audit workers outlive the request context so queued events drain on shutdown.
	recorder := queue.NewDispatcher(cfg.Audit.Workers, b.audit, log)
	recorder.OnDrop(func(*domain.AuditEvent) { metrics.AuditEventsDroppedTotal.Inc() })
	recorder.Start(context.Background())
	defer recorder.Close()

	tokens := service.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	directory := service.NewDirectoryService(b.identities, credential.NewBcryptVerifier(bcrypt.DefaultCost), tokens, log)
	jobs := service.NewJobService(b.jobs, b.identities, b.idem, recorder, b.audit, log)

	e := api.NewRouter(api.Dependencies{
		Directory:  directory,
		Jobs:       jobs,
		Tokens:     tokens,
		Health:     b.health,
		Log:        log,
		LoginRate:  cfg.Login.Rate,
		LoginBurst: cfg.Login.Burst,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
