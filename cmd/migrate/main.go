package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"tenantcrm.dev/internal/audit"
	"tenantcrm.dev/internal/config"
	"tenantcrm.dev/internal/migrate"
	"tenantcrm.dev/internal/obs"
	"tenantcrm.dev/internal/onboarding"
	"tenantcrm.dev/internal/store/pg"
)

func main() {
	var (
		dsn      = flag.String("dsn", config.GetEnv("CRM_PG_DSN", ""), "PostgreSQL DSN")
		password = flag.String("demo-password", config.GetEnv("CRM_DEMO_PASSWORD", ""), "Password for the demo administrator (seed)")
		level    = flag.String("log-level", config.GetEnv("CRM_LOG_LEVEL", "info"), "Log level")
	)
	flag.Parse()
	obs.Configure(os.Stderr, *level)
	log := obs.Logger()

	if *dsn == "" {
		log.Fatal().Msg("missing DSN: provide via -dsn or CRM_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal().Msg("usage: migrate [up|down|status|pending|seed]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), nil)

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		for _, name := range applied {
			log.Info().Str("migration", name).Msg("applied")
		}
		if err == nil && len(applied) == 0 {
			log.Info().Msg("schema is up to date")
		}
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if errors.Is(err, migrate.ErrNothingApplied) {
			log.Info().Msg("nothing to roll back")
			return
		}
		if err == nil {
			log.Info().Str("migration", name).Msg("rolled back")
		}
	case "status", "pending":
		var names []string
		if cmd == "status" {
			names, err = mgr.Status(ctx)
		} else {
			names, err = mgr.Pending(ctx)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	case "seed":
		err = seed(ctx, store, *password)
	default:
		log.Fatal().Str("command", cmd).Msg("unknown command")
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("migrate failed")
	}
}

func seed(ctx context.Context, store *pg.Store, password string) error {
	if password == "" {
		return errors.New("demo password required: provide via -demo-password or CRM_DEMO_PASSWORD")
	}
	recorder, err := audit.NewRecorder(store)
	if err != nil {
		return err
	}
	// Close drains the queue so the onboarding entry lands before exit.
	defer func() {
		if err := recorder.Close(ctx); err != nil {
			obs.Logger().Warn().Err(err).Msg("audit flush")
		}
	}()
	svc, err := onboarding.New(store, recorder)
	if err != nil {
		return err
	}
	tenant, created, err := svc.SeedDemo(ctx, password)
	if err != nil {
		return err
	}
	obs.Logger().Info().
		Str("tenant_id", tenant.ID).
		Str("admin", onboarding.DemoAdminEmail).
		Bool("created", created).
		Msg("demo tenant seeded")
	return nil
}
