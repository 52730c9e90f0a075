package governance

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// defaultSweepInterval controls how often the runner scans pending entries.
const defaultSweepInterval = 1 * time.Second

// Runner sweeps pending entries in the background. In auto-approve mode it
// commits entries past the grace period; in manual mode it expires entries
// older than the configured TTL.
type Runner struct {
	queue    *Queue
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner constructs a runner over the queue.
func NewRunner(queue *Queue) *Runner {
	return &Runner{queue: queue, interval: defaultSweepInterval}
}

// Start launches the sweep goroutine.
func (r *Runner) Start(ctx context.Context) {
	if r == nil || r.queue == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(runCtx)
	}()

	log.Infof("governance runner started (sweep_interval=%s)", r.interval)
}

// Stop cancels the sweep goroutine and waits for it to exit.
func (r *Runner) Stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep applies the configured mode to the pending queue once.
func (r *Runner) Sweep(ctx context.Context) {
	cfg := LoadSettingsConfig()
	if cfg.AutoApprove {
		applied, errApprove := r.queue.ApprovePastGrace(ctx, cfg.GracePeriod)
		if errApprove != nil {
			log.WithError(errApprove).Warn("governance auto-approval sweep failed")
		} else if applied > 0 {
			log.Infof("governance auto-approved %d entries", applied)
		}
		return
	}
	if cfg.EntryTTL > 0 {
		expired, errExpire := r.queue.ExpireStale(ctx, cfg.EntryTTL)
		if errExpire != nil {
			log.WithError(errExpire).Warn("governance expiry sweep failed")
		} else if expired > 0 {
			log.Infof("governance expired %d entries", expired)
		}
	}
}
