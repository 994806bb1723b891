// workers/stake_watch_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"nft-rewards-system/models"
)

// StakeSource is the read side the watcher polls.
type StakeSource interface {
	ListAll(ctx context.Context) ([]models.StakeRecord, error)
	ListUpdatedSince(ctx context.Context, since time.Time) ([]models.StakeRecord, error)
}

// StakeWriteHandler receives before/after snapshots of a stake record.
// before is nil when the watcher has never observed the record.
type StakeWriteHandler func(ctx context.Context, before, after *models.StakeRecord) error

// StakeWatchWorker turns row updates into reactive trigger deliveries.
// Delivery is at-least-once: the poll window overlaps, and a failed
// dispatch is parked and retried every tick until it succeeds, so the
// handler is the idempotency point, not the watcher.
type StakeWatchWorker struct {
	source   StakeSource
	handler  StakeWriteHandler
	interval time.Duration

	// last observed status per stake key; this is what makes the
	// "before" snapshot possible over a polling source.
	lastSeen map[string]models.StakeStatus

	// snapshots whose dispatch failed, keyed like lastSeen. A parked
	// transition outlives the sliding ListUpdatedSince window, so a
	// long settlement-network outage cannot strand a record until the
	// next restart.
	pending map[string]models.StakeRecord
}

func NewStakeWatchWorker(source StakeSource, handler StakeWriteHandler, interval time.Duration) *StakeWatchWorker {
	return &StakeWatchWorker{
		source:   source,
		handler:  handler,
		interval: interval,
		lastSeen: make(map[string]models.StakeStatus),
		pending:  make(map[string]models.StakeRecord),
	}
}

func stakeKey(r *models.StakeRecord) string {
	return r.OwnerWallet + "/" + r.StakeID
}

// Start seeds the snapshot map, sweeps any stake already stuck in
// "unstaking", then polls for updates until the context is cancelled.
func (w *StakeWatchWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Stake Watch Worker (stake_records → unstake settlement)…")

	lastPoll := time.Now()
	if err := w.seed(ctx); err != nil {
		log.Printf("⚠️ [STAKE_WATCH] Initial seed failed, will retry on next tick: %v", err)
		lastPoll = time.Time{} // re-observe everything
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Stake Watch Worker stopped")
			return
		case <-ticker.C:
			// Overlap the window slightly so a write racing the
			// previous poll is never missed; duplicates are the
			// handler's problem by contract.
			since := lastPoll.Add(-w.interval)
			pollStart := time.Now()
			if err := w.poll(ctx, since); err != nil {
				log.Printf("❌ [STAKE_WATCH] Poll failed: %v", err)
				continue
			}
			lastPoll = pollStart
		}
	}
}

// seed records the current status of every stake and dispatches a
// compensating delivery (before=nil) for records already mid-unstake,
// so a crash between transfer submission and completion cannot strand
// them forever.
func (w *StakeWatchWorker) seed(ctx context.Context) error {
	stakes, err := w.source.ListAll(ctx)
	if err != nil {
		return err
	}
	for i := range stakes {
		record := stakes[i]
		if record.Status == models.StakeStatusUnstaking {
			if err := w.handler(ctx, nil, &record); err != nil {
				log.Printf("❌ [STAKE_WATCH] Startup sweep failed for stake %s: %v", record.StakeID, err)
				w.pending[stakeKey(&record)] = record // retried on the next tick
				continue
			}
		}
		w.lastSeen[stakeKey(&record)] = record.Status
	}
	log.Printf("📥 [STAKE_WATCH] Seeded %d stake record(s)", len(stakes))
	return nil
}

func (w *StakeWatchWorker) poll(ctx context.Context, since time.Time) error {
	w.retryPending(ctx)

	changed, err := w.source.ListUpdatedSince(ctx, since)
	if err != nil {
		return err
	}

	for i := range changed {
		after := changed[i]
		if err := w.dispatch(ctx, &after); err != nil {
			log.Printf("❌ [STAKE_WATCH] Dispatch failed for stake %s: %v", after.StakeID, err)
		}
	}
	return nil
}

// dispatch delivers one snapshot pair. On failure the snapshot is
// parked and lastSeen stays untouched, so the same transition is
// retried next tick even after the row leaves the poll window.
func (w *StakeWatchWorker) dispatch(ctx context.Context, after *models.StakeRecord) error {
	key := stakeKey(after)

	var before *models.StakeRecord
	if prev, ok := w.lastSeen[key]; ok {
		snapshot := *after
		snapshot.Status = prev
		before = &snapshot
	}

	if err := w.handler(ctx, before, after); err != nil {
		w.pending[key] = *after
		return err
	}
	delete(w.pending, key)
	w.lastSeen[key] = after.Status
	return nil
}

func (w *StakeWatchWorker) retryPending(ctx context.Context) {
	for _, record := range w.pending {
		if err := w.dispatch(ctx, &record); err != nil {
			log.Printf("❌ [STAKE_WATCH] Retry dispatch failed for stake %s: %v", record.StakeID, err)
		}
	}
}
