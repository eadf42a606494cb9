// taskpay escrow-service
//
// Contract settlement engine for the marketplace. Exposes a REST API
// used by the Gateway to implement:
//   - contract lifecycle (draft → pending → accepted → in_progress →
//     waiting_approval → completed, plus cancel/dispute branches)
//   - escrow payments via PayPal Orders v2 (hold, release, refund)
//   - commission quoting against membership tiers and referral rewards
//
// Background cron sweeps auto-release stale escrow after the approval
// grace window, send a single pre-release reminder, flag overdue
// contracts, and purge old audit entries.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskpay/escrow-service/internal/audit"
	"taskpay/escrow-service/internal/config"
	"taskpay/escrow-service/internal/contract"
	"taskpay/escrow-service/internal/db"
	"taskpay/escrow-service/internal/escrow"
	"taskpay/escrow-service/internal/gateway"
	"taskpay/escrow-service/internal/httpapi"
	"taskpay/escrow-service/internal/lock"
	"taskpay/escrow-service/internal/membership"
	"taskpay/escrow-service/internal/notify"
	"taskpay/escrow-service/internal/payment"
	"taskpay/escrow-service/internal/referral"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[escrow-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[escrow-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[escrow-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[escrow-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[escrow-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[escrow-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[escrow-service] Redis connected ✓")

	// ── Shared infrastructure ────────────────────────────────────────────────
	locker := lock.NewRedisLocker(rdb, "escrow")
	notifier := notify.NewRedisNotifier(rdb)
	trail := audit.NewTrail(audit.NewPGStore(pool), []byte(cfg.AuditSigningKey))
	members := membership.NewPGService(pool)

	// ── Services ─────────────────────────────────────────────────────────────
	contracts := contract.NewService(contract.NewPGStore(pool), members, locker, notifier, trail)
	referrals := referral.NewService(referral.NewPGStore(pool), members, locker, notifier, trail)

	gw := gateway.NewPayPalClient(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalSecret,
		cfg.PayPalReturnURL, cfg.PayPalCancelURL)
	payments := payment.NewService(payment.NewPGStore(pool), gw, gateway.DefaultRetryPolicy,
		contracts, referrals, notifier, trail)

	// ── Scheduler ────────────────────────────────────────────────────────────
	sweeper := escrow.NewSweeper(escrow.NewPGStore(pool), payments, locker, notifier)
	sched := escrow.NewScheduler(sweeper, trail, cfg.ReleaseSweepHours, cfg.RemindSweepHours)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[escrow-service] Scheduler: %v", err)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	h := httpapi.NewHandler(contracts, payments, referrals, []byte(cfg.WebhookSecret))
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("[escrow-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[escrow-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[escrow-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[escrow-service] Shutdown error: %v", err)
	}
	log.Println("[escrow-service] Stopped.")
}
