// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job cadences. The two settlement cadences overlap on purpose — the
// claim path re-validates inside its transaction, so duplicate runs are
// safe and the shorter interval just tightens payout latency.
const (
	SettlementInterval      = 6 * time.Hour
	DailySettlementInterval = 24 * time.Hour
	MigrationInterval       = 2 * time.Minute
)

// newSettlementTask binds one settlement run to the process lifecycle
// context, so a shutdown cancels an in-flight run instead of leaving a
// group mid-flight.
func newSettlementTask(ctx context.Context, batch *BatchService, label string) func() {
	return func() {
		if _, err := batch.RunSettlement(ctx); err != nil {
			log.Printf("[Scheduler] %s run failed: %v", label, err)
		}
	}
}

func newMigrationTask(ctx context.Context, migration *MigrationService) func() {
	return func() {
		result, err := migration.Run(ctx)
		if err != nil {
			log.Printf("[Scheduler] Migration run failed: %v", err)
			return
		}
		if result.Completed {
			log.Println("✅ [Scheduler] Stake record migration finished")
		}
	}
}

// StartJobScheduler wires the recurring jobs: cadence A (short-interval
// settlement), cadence B (daily settlement) and cadence C (migration).
// ctx is the process lifecycle context; cancelling it aborts whatever
// run is in flight. Returns the scheduler so main can shut it down
// cleanly.
func StartJobScheduler(ctx context.Context, batch *BatchService, migration *MigrationService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(SettlementInterval),
		gocron.NewTask(newSettlementTask(ctx, batch, "Settlement")),
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(DailySettlementInterval),
		gocron.NewTask(newSettlementTask(ctx, batch, "Daily settlement")),
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(MigrationInterval),
		gocron.NewTask(newMigrationTask(ctx, migration)),
	); err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
