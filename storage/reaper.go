package storage

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Reaper periodically collects garbage the happy path is allowed to leave
// behind: uploads that died before their header was marked complete, and
// completed videos no lesson references anymore (cleanup deletes are best
// effort, so an edit may leak one).
type Reaper struct {
	db        *gorm.DB
	store     *BlobStore
	logger    *log.Logger
	retention time.Duration

	// inUse reports every video id still referenced by a live lesson.
	// Injected by the course layer so storage stays ignorant of lessons.
	inUse func() (map[string]bool, error)
}

func NewReaper(db *gorm.DB, store *BlobStore, logger *log.Logger, retention time.Duration, inUse func() (map[string]bool, error)) *Reaper {
	return &Reaper{db: db, store: store, logger: logger, retention: retention, inUse: inUse}
}

// Start registers the sweep on the given cron schedule and starts the cron.
func (r *Reaper) Start(schedule string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(schedule, r.Sweep); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// Sweep runs one collection pass.
func (r *Reaper) Sweep() {
	r.sweepStale()
	r.sweepOrphans()
}

// sweepStale removes incomplete uploads older than the retention window.
// Anything younger might still be an in-flight Put.
func (r *Reaper) sweepStale() {
	cutoff := time.Now().Add(-r.retention)

	var stale []VideoFile
	if err := r.db.Where("complete = ? AND created_at < ?", false, cutoff).Find(&stale).Error; err != nil {
		r.logger.Printf("reaper: listing stale uploads: %v", err)
		return
	}
	for _, f := range stale {
		if err := r.db.Delete(&VideoChunk{}, "file_id = ?", f.ID).Error; err != nil {
			r.logger.Printf("reaper: dropping chunks of %s: %v", f.ID, err)
			continue
		}
		if err := r.db.Delete(&VideoFile{}, "id = ?", f.ID).Error; err != nil {
			r.logger.Printf("reaper: dropping header of %s: %v", f.ID, err)
			continue
		}
		r.logger.Printf("reaper: removed stale upload %s (%s)", f.ID, f.Filename)
	}
}

func (r *Reaper) sweepOrphans() {
	referenced, err := r.inUse()
	if err != nil {
		r.logger.Printf("reaper: resolving referenced videos: %v", err)
		return
	}

	// The age filter keeps the sweep from racing an edit whose uploads have
	// finished but whose tree write has not landed yet.
	cutoff := time.Now().Add(-r.retention)
	var ids []string
	if err := r.db.Model(&VideoFile{}).Where("complete = ? AND created_at < ?", true, cutoff).Pluck("id", &ids).Error; err != nil {
		r.logger.Printf("reaper: listing videos: %v", err)
		return
	}
	for _, id := range ids {
		if referenced[id] {
			continue
		}
		if err := r.store.Delete(id); err != nil && err != ErrNotFound {
			r.logger.Printf("reaper: deleting orphan %s: %v", id, err)
			continue
		}
		r.logger.Printf("reaper: removed orphaned video %s", id)
	}
}
