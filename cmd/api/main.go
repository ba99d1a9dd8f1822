package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tribuna.org/internal/actor"
	"tribuna.org/internal/audit"
	"tribuna.org/internal/auth"
	"tribuna.org/internal/config"
	"tribuna.org/internal/httpapi"
	"tribuna.org/internal/kv"
	"tribuna.org/internal/mail"
	"tribuna.org/internal/obs"
	"tribuna.org/internal/session"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx := context.Background()

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	store, err := kv.Open(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatalf("open redis: %v", err)
	}

	actors := actor.NewPGRepository(db)
	cache, err := actor.NewCache(store, actors, cfg.IdentityCacheTTL)
	if err != nil {
		log.Fatalf("identity cache: %v", err)
	}

	issuer, err := auth.NewIssuer(store, cfg.AccessSecret, cfg.RefreshSecret,
		auth.WithTokenTTLs(cfg.AccessTTL, cfg.RefreshTTL),
		auth.WithIssuerName(cfg.Issuer))
	if err != nil {
		log.Fatalf("issuer: %v", err)
	}

	// Rotation reads the repository directly: a disabled actor must not be
	// able to rotate through a stale cache entry.
	rotator, err := auth.NewRotator(issuer, store, actors)
	if err != nil {
		log.Fatalf("rotator: %v", err)
	}

	gateway, err := auth.NewGateway(actors, issuer, rotator, store, audit.Sink{},
		auth.WithSessions(session.NewPGStore(db)),
		auth.WithMailer(mail.LogMailer{}))
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	grants := auth.NewPGGrantStore(db)
	evaluator, err := auth.NewEvaluator(grants, cfg.SuperRole)
	if err != nil {
		log.Fatalf("evaluator: %v", err)
	}

	strategies := []auth.IdentityStrategy{
		auth.NewUserStrategy(cache),
		auth.NewOrganizationStrategy(cache),
		auth.NewAdministratorStrategy(cache),
	}

	api := httpapi.New(gateway, issuer, strategies, evaluator, grants,
		httpapi.ReadyProbe{DB: db, KV: store}, version)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting tribuna-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = store.Close()
	_ = db.Close()
	log.Println("Stopped")
}
