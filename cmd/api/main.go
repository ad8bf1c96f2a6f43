package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Farhad2590/traveltrade-backend/internal/api"
	"github.com/Farhad2590/traveltrade-backend/internal/auth"
	"github.com/Farhad2590/traveltrade-backend/internal/config"
	"github.com/Farhad2590/traveltrade-backend/internal/db"
	"github.com/Farhad2590/traveltrade-backend/internal/gateway"
	"github.com/Farhad2590/traveltrade-backend/internal/logger"
	"github.com/Farhad2590/traveltrade-backend/internal/metrics"
	"github.com/Farhad2590/traveltrade-backend/internal/repository/postgres"
	"github.com/Farhad2590/traveltrade-backend/internal/services"
	"github.com/Farhad2590/traveltrade-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	metrics.Init()

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	gw := gateway.NewHTTPGateway(cfg.GatewayURL, cfg.GatewayAPIKey)
	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, 15*time.Minute, 7*24*time.Hour)

	payoutSvc := services.NewPayoutService(repos.Bids, repos.AuditLogs, wp)
	bidSvc := services.NewBidService(repos.Bids, repos.AuditLogs, payoutSvc, wp)
	withdrawalSvc := services.NewWithdrawalService(repos.Withdrawals, repos.Balances, repos.AuditLogs, gw, cfg.GatewayTimeout, wp)
	balanceSvc := services.NewBalanceService(repos.Balances)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	// Recovery sweep: re-captures escrow for bids whose payment credit
	// failed mid-flight and re-settles bids that reached received without
	// a processed payout. Both operations are idempotent, so overlap with
	// live traffic is harmless.
	go func() {
		t := time.NewTicker(cfg.RecoveryInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n, err := payoutSvc.RecoverUncapturedEscrow(ctx); err != nil {
					log.Error("escrow recovery sweep", "err", err)
				} else if n > 0 {
					log.Info("escrow recovery sweep", "captured", n)
				}
				if n, err := payoutSvc.RecoverUnsettled(ctx); err != nil {
					log.Error("payout recovery sweep", "err", err)
				} else if n > 0 {
					log.Info("payout recovery sweep", "settled", n)
				}
			}
		}
	}()

	r := api.NewRouter(api.Deps{
		Cfg:         cfg,
		TM:          tm,
		Bids:        bidSvc,
		Payouts:     payoutSvc,
		Withdrawals: withdrawalSvc,
		Balances:    balanceSvc,
		Redis:       rdb,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
