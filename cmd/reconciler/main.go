package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fulfillment-service/internal/app"
	"fulfillment-service/internal/config"
)

// The reconciler runs one pass and exits unless -every is set, so it can be
// scheduled by cron or run as a long-lived worker.
func main() {
	every := flag.Duration("every", 0, "repeat interval; 0 runs a single pass")
	flag.Parse()

	a, err := app.New(config.Load())
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run(ctx, a)
	if *every <= 0 {
		return
	}

	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("reconciler stopping")
			return
		case <-ticker.C:
			run(ctx, a)
		}
	}
}

func run(ctx context.Context, a *app.App) {
	refunds, err := a.Reconciler.ReconcileRefunds(ctx)
	if err != nil {
		log.Printf("reconcile refunds: %v", err)
	} else {
		log.Printf("reconcile refunds: checked=%d resolved=%d released=%d failed=%d",
			refunds.Checked, refunds.Resolved, refunds.Released, refunds.Failed)
	}

	payments, err := a.Reconciler.ReconcilePayments(ctx)
	if err != nil {
		log.Printf("reconcile payments: %v", err)
		return
	}
	log.Printf("reconcile payments: checked=%d resolved=%d failed=%d",
		payments.Checked, payments.Resolved, payments.Failed)
}
