package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"tenantcrm.dev/internal/audit"
	"tenantcrm.dev/internal/auth"
	"tenantcrm.dev/internal/config"
	"tenantcrm.dev/internal/crm"
	"tenantcrm.dev/internal/httpapi"
	"tenantcrm.dev/internal/obs"
	"tenantcrm.dev/internal/onboarding"
	"tenantcrm.dev/internal/store/memory"
	"tenantcrm.dev/internal/store/pg"
)

var commit = "unknown"

// backend is what both storage implementations provide.
type backend interface {
	auth.Store
	crm.RecordStore
	audit.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("load config")
	}
	obs.Configure(os.Stdout, cfg.LogLevel)
	obs.Init()
	obs.InitBuildInfo(cfg.Version, commit)
	log := obs.Logger()

	if cfg.UsesDevSecret() {
		log.Warn().Msg("using the development JWT secret; set CRM_JWT_SECRET")
	}

	ready := httpapi.ReadyProbe{}
	var (
		store  backend
		closer func() error
	)
	if cfg.PostgresDSN != "" {
		pgStore, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open postgres")
		}
		store, closer = pgStore, pgStore.Close
		ready["postgres"] = pgStore
	} else {
		log.Warn().Msg("CRM_PG_DSN not set; records are kept in memory")
		store, closer = memory.New(), func() error { return nil }
	}

	var denylist auth.Denylist
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		denylist = auth.NewRedisDenylist(client)
		ready["redis"] = httpapi.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	} else {
		denylist = auth.NewMemoryDenylist()
	}

	recorder, err := audit.NewRecorder(store, audit.WithQueueSize(cfg.AuditQueue))
	if err != nil {
		log.Fatal().Err(err).Msg("audit recorder")
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret,
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithTokenTTL(cfg.TokenTTL),
		auth.WithDenylist(denylist))
	if err != nil {
		log.Fatal().Err(err).Msg("token service")
	}
	roles := auth.NewRoleCache(store, cfg.RoleCacheSize, cfg.RoleCacheTTL)
	authn, err := auth.NewAuthenticator(tokens, store, roles, recorder)
	if err != nil {
		log.Fatal().Err(err).Msg("authenticator")
	}
	rbac, err := auth.NewRBACService(store, roles, recorder)
	if err != nil {
		log.Fatal().Err(err).Msg("rbac service")
	}
	records, err := crm.Services(store, store, recorder)
	if err != nil {
		log.Fatal().Err(err).Msg("record services")
	}

	if cfg.PostgresDSN == "" {
		seedDemo(store, recorder)
	}

	api, err := httpapi.New(httpapi.Deps{
		Auth:           authn,
		RBAC:           rbac,
		Records:        records,
		Ready:          ready,
		Version:        cfg.Version,
		LoginRate:      cfg.LoginRate,
		LoginBurst:     cfg.LoginBurst,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("http api")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("version", cfg.Version).Str("addr", srv.Addr).Str("env", cfg.Env).Msg("starting tenantcrm-api")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("grpc listen")
		}
		grpcSrv = grpc.NewServer()
		httpapi.NewGRPCServer(ready).Register(grpcSrv)
		log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc health listening")
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Error().Err(err).Msg("grpc serve")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := recorder.Close(ctx); err != nil {
		log.Error().Err(err).Msg("audit flush")
	}
	if err := closer(); err != nil {
		log.Error().Err(err).Msg("close store")
	}
	log.Info().Msg("stopped")
}

// seedDemo gives the in-memory backend a tenant to log into.
func seedDemo(store auth.Store, sink audit.Sink) {
	log := obs.Logger()
	password := config.GetEnv("CRM_DEMO_PASSWORD", "")
	if password == "" {
		log.Info().Msg("CRM_DEMO_PASSWORD not set; skipping demo tenant")
		return
	}
	svc, err := onboarding.New(store, sink)
	if err != nil {
		log.Fatal().Err(err).Msg("onboarding")
	}
	tenant, created, err := svc.SeedDemo(context.Background(), password)
	if err != nil {
		log.Fatal().Err(err).Msg("seed demo tenant")
	}
	log.Info().Str("tenant_id", tenant.ID).Bool("created", created).Str("admin", onboarding.DemoAdminEmail).Msg("demo tenant ready")
}
