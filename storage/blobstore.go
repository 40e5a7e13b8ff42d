package storage

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultChunkSize follows the GridFS default: small enough to keep a single
// row out of TOAST trouble, large enough to keep the chunk count sane for a
// 500MB video.
const DefaultChunkSize = 255 * 1024

var (
	ErrNotFound         = errors.New("video not found")
	ErrTooLarge         = errors.New("video exceeds maximum allowed size")
	ErrUnsupportedMedia = errors.New("not a video file")
)

// VideoFile is the header row for a stored video. A file is readable only
// once Complete is set; readers never see a half-written upload.
type VideoFile struct {
	ID          string `gorm:"primaryKey;size:36"`
	Filename    string
	ContentType string
	Length      int64
	ChunkSize   int
	Complete    bool `gorm:"index"`
	CreatedAt   time.Time
}

type VideoChunk struct {
	ID     uint   `gorm:"primaryKey"`
	FileID string `gorm:"size:36;uniqueIndex:idx_video_chunks_file_seq"`
	Seq    int    `gorm:"uniqueIndex:idx_video_chunks_file_seq"`
	Data   []byte
}

// FileInfo is what the presentation layer gets to see about a stored video.
type FileInfo struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Length      int64  `json:"length"`
}

// Upload is one file extracted from a multipart request by the HTTP layer.
// The store never parses multipart itself.
type Upload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

// BlobStore keeps large video files as an ordered sequence of fixed-size
// chunk rows plus a header row. Initialized once at startup and shared by
// every request.
type BlobStore struct {
	db        *gorm.DB
	chunkSize int
	maxBytes  int64
}

func NewBlobStore(db *gorm.DB, maxBytes int64) *BlobStore {
	return &BlobStore{db: db, chunkSize: DefaultChunkSize, maxBytes: maxBytes}
}

// Put streams r into chunk rows under a fresh id and returns the id once the
// last chunk is written and the header is marked complete. On any failure the
// header and all chunks written so far are removed, so a half-written file is
// never observable.
func (s *BlobStore) Put(filename, contentType string, r io.Reader) (string, error) {
	id := uuid.NewString()

	header := VideoFile{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		ChunkSize:   s.chunkSize,
	}
	if err := s.db.Create(&header).Error; err != nil {
		return "", fmt.Errorf("create video header: %w", err)
	}

	var total int64
	buf := make([]byte, s.chunkSize)
	for seq := 0; ; seq++ {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			total += int64(n)
			if s.maxBytes > 0 && total > s.maxBytes {
				s.discard(id)
				return "", ErrTooLarge
			}
			chunk := VideoChunk{
				FileID: id,
				Seq:    seq,
				Data:   append([]byte(nil), buf[:n]...),
			}
			if cerr := s.db.Create(&chunk).Error; cerr != nil {
				s.discard(id)
				return "", fmt.Errorf("write chunk %d: %w", seq, cerr)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			s.discard(id)
			return "", fmt.Errorf("read upload %q: %w", filename, err)
		}
	}

	err := s.db.Model(&VideoFile{}).Where("id = ?", id).
		Updates(map[string]interface{}{"length": total, "complete": true}).Error
	if err != nil {
		s.discard(id)
		return "", fmt.Errorf("finish video %s: %w", id, err)
	}
	return id, nil
}

// OpenReadStream returns a single-pass reader over the file's chunks. Chunks
// are fetched one at a time as the consumer drains them, so a 500MB video
// never sits in memory whole.
func (s *BlobStore) OpenReadStream(id string) (io.ReadCloser, error) {
	var header VideoFile
	err := s.db.Where("id = ? AND complete = ?", id, true).First(&header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chunkReader{db: s.db, fileID: id}, nil
}

// Delete removes the header and every chunk in one transaction. A missing id
// is reported as ErrNotFound; callers that want idempotent deletes treat that
// as non-fatal.
func (s *BlobStore) Delete(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&VideoFile{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Delete(&VideoChunk{}, "file_id = ?", id).Error
	})
}

func (s *BlobStore) Exists(id string) bool {
	var count int64
	s.db.Model(&VideoFile{}).Where("id = ? AND complete = ?", id, true).Count(&count)
	return count > 0
}

// Stat resolves a stored id to its display metadata without touching chunks.
func (s *BlobStore) Stat(id string) (FileInfo, error) {
	var header VideoFile
	err := s.db.Where("id = ? AND complete = ?", id, true).First(&header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, err
	}
	return FileInfo{
		ID:          header.ID,
		Filename:    header.Filename,
		ContentType: header.ContentType,
		Length:      header.Length,
	}, nil
}

// discard throws away an unfinished upload. Best effort: anything left
// behind is an incomplete header the reaper will collect.
func (s *BlobStore) discard(id string) {
	s.db.Delete(&VideoChunk{}, "file_id = ?", id)
	s.db.Delete(&VideoFile{}, "id = ?", id)
}

type chunkReader struct {
	db     *gorm.DB
	fileID string
	seq    int
	buf    []byte
	closed bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, errors.New("read on closed video stream")
	}
	if len(r.buf) == 0 {
		var chunk VideoChunk
		err := r.db.Where("file_id = ? AND seq = ?", r.fileID, r.seq).First(&chunk).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		r.seq++
		r.buf = chunk.Data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed = true
	r.buf = nil
	return nil
}
