package backend

import (
	"context"
	"time"

	"github.com/proenglish/go_proenglish/internal/logger"
	"github.com/proenglish/go_proenglish/internal/repository"
)

// PersistableStore is what the persistence scheduler needs from a backend.
type PersistableStore interface {
	IsDirty() bool
	Snapshot() (repository.DataDocument, error)
	ClearDirty()
	SetLastUpdate(ts int64)
}

// StartPersistenceScheduler periodically writes dirty data to disk. On
// ctx.Done it performs a final flush. The returned channel is closed once the
// scheduler has stopped.
func StartPersistenceScheduler(
	ctx context.Context,
	store PersistableStore,
	repo repository.Saver,
	interval time.Duration,
) <-chan struct{} {
	done := make(chan struct{})
	log := logger.WithComponent("persist")
	log.Debugf("starting persistence scheduler with interval: %v", interval)
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// final flush must complete even though ctx is gone
				Flush(context.Background(), store, repo)
				log.Info("persistence scheduler stopped after final flush")
				return
			case <-ticker.C:
				Flush(ctx, store, repo)
			}
		}
	}()
	return done
}

// Flush saves the data if dirty and reports whether it wrote.
func Flush(ctx context.Context, store PersistableStore, repo repository.Saver) bool {
	log := logger.WithComponent("persist")
	if !store.IsDirty() {
		log.Tracef("data is clean, skipping flush")
		return false
	}
	if err := ctx.Err(); err != nil {
		log.Debugf("flush cancelled: %v", err)
		return false
	}

	snapshot, err := store.Snapshot()
	if err != nil {
		log.Errorf("persist error: failed to get snapshot: %v", err)
		return false
	}
	snapshot.Metadata.LastUpdate = time.Now().UnixMilli()

	if err := repo.Save(ctx, &snapshot); err != nil {
		log.Errorf("persist error: failed to save: %v", err)
		return false
	}

	store.ClearDirty()
	store.SetLastUpdate(snapshot.Metadata.LastUpdate)
	log.Info("backend data persisted to disk")
	return true
}
