// Command server wires the PledgeIt backend: identity gateway, event
// lifecycle manager and registration engine behind one chi router.
// Business logic lives in the internal services; main only assembles.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pledgeit/internal/audit"
	auditstore "pledgeit/internal/audit/store"
	eventhandler "pledgeit/internal/event/handler"
	eventmetrics "pledgeit/internal/event/metrics"
	eventservice "pledgeit/internal/event/service"
	eventstore "pledgeit/internal/event/store"
	"pledgeit/internal/geo"
	"pledgeit/internal/identity"
	identityhandler "pledgeit/internal/identity/handler"
	identitystore "pledgeit/internal/identity/store"
	"pledgeit/internal/media"
	"pledgeit/internal/notify"
	"pledgeit/internal/platform/config"
	"pledgeit/internal/platform/httpserver"
	"pledgeit/internal/platform/logger"
	"pledgeit/internal/platform/metrics"
	"pledgeit/internal/platform/middleware"
	platformredis "pledgeit/internal/platform/redis"
	registrationhandler "pledgeit/internal/registration/handler"
	registrationmetrics "pledgeit/internal/registration/metrics"
	registrationservice "pledgeit/internal/registration/service"
	"pledgeit/internal/scantoken"
)

const expirySweepInterval = time.Hour

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	// Storage: postgres when configured, in-memory otherwise.
	var (
		events            eventStorage
		volunteerStore    volunteerStorage
		organizationStore organizationStorage
		auditSink         audit.Store

		db *sql.DB
	)
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pgEvents := eventstore.NewPostgres(db)
		if err := pgEvents.EnsureSchema(context.Background()); err != nil {
			log.Error("failed to ensure event schema", "error", err)
			os.Exit(1)
		}
		if err := identitystore.EnsureSchema(context.Background(), db); err != nil {
			log.Error("failed to ensure identity schema", "error", err)
			os.Exit(1)
		}
		if _, err := db.ExecContext(context.Background(), auditstore.Schema); err != nil {
			log.Error("failed to ensure audit schema", "error", err)
			os.Exit(1)
		}
		events = pgEvents
		volunteerStore = identitystore.NewVolunteerPostgres(db)
		organizationStore = identitystore.NewOrganizationPostgres(db)
		auditSink = auditstore.NewPostgres(db)
	} else {
		log.Warn("POSTGRES_URL not set, using in-memory stores")
		events = eventstore.NewInMemory()
		volunteerStore = identitystore.NewVolunteerInMemory()
		organizationStore = identitystore.NewOrganizationInMemory()
		auditSink = auditstore.NewInMemory()
	}

	// Scan tokens: redis when configured, in-memory otherwise.
	var tokens scantokenStore
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		tokens = scantoken.NewRedis(redisClient.Client)
	} else {
		tokens = scantoken.NewInMemory()
	}

	// Notifications: SMTP relay when configured, structured log otherwise.
	var dispatcher notify.Dispatcher
	if cfg.SMTP.Host != "" {
		dispatcher = notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		dispatcher = notify.NewLog(log)
	}

	uploader, err := media.NewFilesystem(cfg.UploadDir, cfg.PublicBaseURL+"/uploads")
	if err != nil {
		log.Error("failed to prepare upload directory", "error", err)
		os.Exit(1)
	}

	// Audit trail: channel-fed background worker.
	auditPublisher := audit.NewPublisher(256, log)
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		if err := audit.NewWorker(auditSink, auditPublisher.Inbox(), log).Run(rootCtx); err != nil && rootCtx.Err() == nil {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	// Services.
	jwtService := identity.NewJWTService(cfg.JWTSigningKey)
	identityService := identity.NewService(volunteerStore, organizationStore, jwtService)

	eventSvc := eventservice.New(
		events,
		organizationStore,
		volunteerStore,
		geo.NewNominatim(cfg.NominatimURL, cfg.GeocodeTimeout),
		uploader,
		eventservice.WithLogger(log),
		eventservice.WithMetrics(eventmetrics.New()),
		eventservice.WithAuditPublisher(auditPublisher),
		eventservice.WithNotifier(dispatcher),
		eventservice.WithScanTokens(tokens),
		eventservice.WithNotifyTimeout(cfg.NotifyTimeout),
	)

	registrationSvc := registrationservice.New(
		events,
		volunteerStore,
		registrationservice.WithLogger(log),
		registrationservice.WithMetrics(registrationmetrics.New()),
		registrationservice.WithAuditPublisher(auditPublisher),
		registrationservice.WithNotifier(dispatcher),
		registrationservice.WithScanTokens(tokens),
		registrationservice.WithNotifyTimeout(cfg.NotifyTimeout),
	)

	// Periodic purge of events past their TTL.
	go func() {
		ticker := time.NewTicker(expirySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				if _, err := eventSvc.SweepExpired(rootCtx); err != nil {
					log.Error("expiry sweep failed", "error", err)
				}
			}
		}
	}()

	// Router.
	httpMetrics := metrics.New()
	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.Latency(httpMetrics))

	identityhandler.New(identityService, log).Register(router)
	eventhandler.New(eventSvc, jwtService, log).Register(router)
	registrationhandler.New(registrationSvc, jwtService, log).Register(router)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	// Serve uploaded images from the local media directory.
	router.Handle("/uploads/*", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(cfg.UploadDir))))

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting pledgeit server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// scantokenStore is the union of the producer and consumer sides of the
// scan token store, satisfied by both backends.
type scantokenStore interface {
	Put(ctx context.Context, token string, eventID int64, ttl time.Duration) error
	Resolve(ctx context.Context, token string) (int64, error)
}

// The storage interfaces below union the per-service views so one concrete
// store (memory or postgres) backs every consumer.
type eventStorage interface {
	eventservice.EventStore
	registrationservice.EventMembershipStore
}

type volunteerStorage interface {
	identity.VolunteerStore
	registrationservice.VolunteerDirectory
}

type organizationStorage interface {
	identity.OrganizationStore
	eventservice.OrganizationDirectory
}
