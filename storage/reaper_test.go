package storage

import (
	"bytes"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepCollectsStaleUploadsAndOrphans(t *testing.T) {
	db := newTestDB(t)
	store := NewBlobStore(db, 0)

	kept, err := store.Put("kept.mp4", "video/mp4", bytes.NewReader(pattern(100)))
	require.NoError(t, err)
	orphan, err := store.Put("orphan.mp4", "video/mp4", bytes.NewReader(pattern(100)))
	require.NoError(t, err)

	// An upload that never finished.
	stale := VideoFile{ID: "stale-upload", Filename: "dead.mp4", ContentType: "video/mp4"}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Create(&VideoChunk{FileID: stale.ID, Seq: 0, Data: pattern(10)}).Error)

	// Age everything past the retention window.
	require.NoError(t, db.Model(&VideoFile{}).Where("1 = 1").
		Update("created_at", time.Now().Add(-2*time.Hour)).Error)

	inUse := func() (map[string]bool, error) {
		return map[string]bool{kept: true}, nil
	}
	reaper := NewReaper(db, store, log.New(io.Discard, "", 0), time.Hour, inUse)
	reaper.Sweep()

	assert.True(t, store.Exists(kept))
	assert.False(t, store.Exists(orphan))

	var headers int64
	db.Model(&VideoFile{}).Where("id = ?", stale.ID).Count(&headers)
	assert.Equal(t, int64(0), headers)
	var chunks int64
	db.Model(&VideoChunk{}).Where("file_id = ?", stale.ID).Count(&chunks)
	assert.Equal(t, int64(0), chunks)
}

func TestSweepLeavesFreshUploadsAlone(t *testing.T) {
	db := newTestDB(t)
	store := NewBlobStore(db, 0)

	// Fresh and complete but not referenced yet: could be an edit in flight.
	id, err := store.Put("pending.mp4", "video/mp4", bytes.NewReader(pattern(100)))
	require.NoError(t, err)

	// Fresh and incomplete: an upload in progress.
	inflight := VideoFile{ID: "in-flight", Filename: "now.mp4", ContentType: "video/mp4"}
	require.NoError(t, db.Create(&inflight).Error)

	reaper := NewReaper(db, store, log.New(io.Discard, "", 0), time.Hour,
		func() (map[string]bool, error) { return map[string]bool{}, nil })
	reaper.Sweep()

	assert.True(t, store.Exists(id))
	var headers int64
	db.Model(&VideoFile{}).Where("id = ?", inflight.ID).Count(&headers)
	assert.Equal(t, int64(1), headers)
}
