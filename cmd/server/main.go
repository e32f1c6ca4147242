package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credhub/internal/credential/events"
	credMetrics "credhub/internal/credential/metrics"
	"credhub/internal/credential/models"
	"credhub/internal/credential/resolver"
	"credhub/internal/credential/revocation"
	"credhub/internal/credential/store"
	"credhub/internal/credential/tracer"
	"credhub/internal/credential/watchdog"
	"credhub/internal/keypair"
	"credhub/internal/participant"
	"credhub/internal/platform/config"
	"credhub/internal/platform/database"
	"credhub/internal/platform/httpserver"
	"credhub/internal/platform/kafka/producer"
	"credhub/internal/platform/logger"
	platformRedis "credhub/internal/platform/redis"
	"credhub/internal/presentation"
	"credhub/internal/presentation/generators/jwtgen"
	"credhub/internal/presentation/generators/ldpgen"
	presMetrics "credhub/internal/presentation/metrics"
	httptransport "credhub/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing credhub",
		"addr", cfg.Addr,
		"watchdog_period", cfg.WatchdogPeriod.String(),
	)

	// Storage. Falls back to the in-memory store when no database is
	// configured.
	var credStore store.Store = store.NewInMemoryStore()
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		credStore = store.NewPostgres(pool.DB())
	}

	credentialMetrics := credMetrics.New()

	// Revocation oracle, cached in redis when available.
	var checker revocation.Checker = revocation.NoopChecker{}
	if cfg.RevocationURL != "" {
		checker = revocation.NewHTTPChecker(cfg.RevocationURL)
	}
	redisClient, err := platformRedis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		checker = revocation.NewCached(checker, redisClient.Client, cfg.RevocationCacheTTL,
			revocation.WithCacheLogger(log),
			revocation.WithCacheMetrics(credentialMetrics),
		)
	}

	// Lifecycle events go to kafka when brokers are configured.
	var sink events.Sink = events.NoopSink{}
	if cfg.KafkaBrokers != "" {
		producerCfg := producer.DefaultConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		kafkaProducer, err := producer.New(producerCfg, log)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		sink = events.NewKafkaSink(kafkaProducer, cfg.LifecycleTopic)
	}

	keys := keypair.NewMemoryDirectory()
	keys.Subscribe(events.KeyObserver(sink, log))
	vault := keypair.NewMemoryVault()
	participants := participant.NewMemoryDirectory()

	queryResolver, err := resolver.New(credStore, checker,
		resolver.WithLogger(log),
		resolver.WithMetrics(credentialMetrics),
		resolver.WithTracer(tracer.NewOTel()),
	)
	if err != nil {
		log.Error("resolver init failed", "error", err)
		os.Exit(1)
	}

	registry, err := presentation.NewRegistry(keys, participants,
		presentation.WithRegistryLogger(log),
	)
	if err != nil {
		log.Error("presentation registry init failed", "error", err)
		os.Exit(1)
	}

	tokenGen, err := jwtgen.New(vault)
	if err != nil {
		log.Error("jwt generator init failed", "error", err)
		os.Exit(1)
	}
	registry.Register(models.FormatJWT, tokenGen)
	registry.Register(models.FormatJOSE, tokenGen)

	proofSigner, err := ldpgen.NewEd25519Signer(vault)
	if err != nil {
		log.Error("presentation signer init failed", "error", err)
		os.Exit(1)
	}
	ldGen, err := ldpgen.New(proofSigner)
	if err != nil {
		log.Error("json-ld generator init failed", "error", err)
		os.Exit(1)
	}
	registry.Register(models.FormatJSONLD, ldGen)

	assemblerOpts := []presentation.AssemblerOption{
		presentation.WithAssemblerLogger(log),
		presentation.WithAssemblerMetrics(presMetrics.New()),
	}
	if cfg.DefaultPresentationFormat != "" {
		assemblerOpts = append(assemblerOpts,
			presentation.WithDefaultFormat(models.CredentialFormat(cfg.DefaultPresentationFormat)))
	}
	assembler, err := presentation.NewAssembler(registry, assemblerOpts...)
	if err != nil {
		log.Error("assembler init failed", "error", err)
		os.Exit(1)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WatchdogPeriod > 0 {
		guard, err := watchdog.New(credStore, revocation.NewStatusAdapter(checker), events.NewRenewalPublisher(sink),
			watchdog.WithPeriod(cfg.WatchdogPeriod),
			watchdog.WithInitialDelay(cfg.WatchdogDelay),
			watchdog.WithGracePeriod(cfg.RenewalGracePeriod),
			watchdog.WithLogger(log),
			watchdog.WithMetrics(credentialMetrics),
			watchdog.WithSink(sink),
		)
		if err != nil {
			log.Error("watchdog init failed", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := guard.Start(rootCtx); err != nil && err != context.Canceled {
				log.Error("watchdog stopped", "error", err)
			}
		}()
	}

	handler := httptransport.NewHandler(queryResolver, assembler, log)
	router := httptransport.NewRouter(handler, cfg.TokenSecret, log, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if pool != nil {
			if err := pool.Health(ctx); err != nil {
				return err
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				return err
			}
		}
		return nil
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-rootCtx.Done()

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
