// Package watcher polls the settings table and refreshes the in-memory
// snapshot when rows change, so runtime knobs take effect without a restart.
package watcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/limitwarden/limitwarden/internal/models"
	internalsettings "github.com/limitwarden/limitwarden/internal/settings"
)

// Default timings for the watcher loop.
const (
	// defaultPollInterval controls how often the settings table is checked.
	defaultPollInterval = 2 * time.Second
	// defaultQueryTimeout bounds DB query duration.
	defaultQueryTimeout = 10 * time.Second
)

// Watcher polls DB settings and reloads the snapshot on change.
type Watcher struct {
	db           *gorm.DB
	pollInterval time.Duration

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	latestAt  time.Time
	latestKey string
	hasLatest bool
}

// New constructs a settings watcher over db.
func New(db *gorm.DB) *Watcher {
	return &Watcher{db: db, pollInterval: defaultPollInterval}
}

// Start launches the polling goroutine.
func (w *Watcher) Start(ctx context.Context) {
	if w == nil || w.db == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(runCtx)
	}()

	log.Infof("settings watcher started (poll_interval=%s)", w.pollInterval)
}

// Stop cancels the polling goroutine and waits for it to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// run executes the periodic polling loop until the context is canceled.
func (w *Watcher) run(ctx context.Context) {
	w.pollSettings(ctx, true)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollSettings(ctx, false)
		}
	}
}

// pollSettings refreshes the settings snapshot when the table changed.
func (w *Watcher) pollSettings(ctx context.Context, force bool) {
	qctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	// latestRow captures the newest setting timestamp for change detection.
	type latestRow struct {
		Key       string     `gorm:"column:key"`        // Latest settings key.
		UpdatedAt *time.Time `gorm:"column:updated_at"` // Latest settings update time.
	}
	var latest latestRow
	hasLatest := false
	errLatest := w.db.WithContext(qctx).
		Model(&models.Setting{}).
		Select("key", "updated_at").
		Order("updated_at DESC, key DESC").
		Limit(1).
		Take(&latest).Error
	if errLatest != nil {
		if errors.Is(errLatest, context.Canceled) {
			return
		}
		if !errors.Is(errLatest, gorm.ErrRecordNotFound) {
			log.WithError(errLatest).Warn("settings watcher: query latest row failed")
			return
		}
	} else {
		hasLatest = true
	}

	latestKey := strings.TrimSpace(latest.Key)
	latestAt := time.Time{}
	if hasLatest && latest.UpdatedAt != nil {
		latestAt = latest.UpdatedAt.UTC()
	}

	if !force {
		if !hasLatest || latest.UpdatedAt == nil {
			if !w.hasLatest {
				return
			}
		} else if w.hasLatest && latestAt.Equal(w.latestAt) && latestKey == w.latestKey {
			return
		}
	}

	if errRefresh := internalsettings.Refresh(); errRefresh != nil {
		log.WithError(errRefresh).Warn("settings watcher: refresh snapshot failed")
		return
	}

	if !hasLatest || latest.UpdatedAt == nil || latestKey == "" {
		w.latestAt = time.Time{}
		w.latestKey = ""
		w.hasLatest = false
		return
	}
	w.latestAt = latestAt
	w.latestKey = latestKey
	w.hasLatest = true
}
