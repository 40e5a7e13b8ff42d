package storage

import (
	"io"
	"strings"
)

// StreamGateway hands a single stored video to a consumer as a plain byte
// stream. Only video content goes out this way; anything else is refused
// before a single byte is written.
type StreamGateway struct {
	store *BlobStore
}

func NewStreamGateway(store *BlobStore) *StreamGateway {
	return &StreamGateway{store: store}
}

// Open gates the file by content type and returns its metadata together with
// a lazy chunk reader. The caller owns the reader.
func (g *StreamGateway) Open(id string) (FileInfo, io.ReadCloser, error) {
	info, err := g.store.Stat(id)
	if err != nil {
		return FileInfo{}, nil, err
	}
	if !strings.HasPrefix(info.ContentType, "video/") {
		return FileInfo{}, nil, ErrUnsupportedMedia
	}
	rc, err := g.store.OpenReadStream(id)
	if err != nil {
		return FileInfo{}, nil, err
	}
	return info, rc, nil
}

// Stream pipes the video into w. The copy pulls chunks at the pace w accepts
// them, so a slow consumer throttles the read side instead of ballooning
// memory.
func (g *StreamGateway) Stream(id string, w io.Writer) (FileInfo, error) {
	info, rc, err := g.Open(id)
	if err != nil {
		return FileInfo{}, err
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		return info, err
	}
	return info, nil
}
