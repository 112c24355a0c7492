// Package storage is the binary-object collaborator: upload with progress
// reporting and presigned download locators. The sync engine depends only
// on the Uploader interface; the S3 implementation lives alongside it.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProgressFunc receives fractional upload progress in [0, 1].
type ProgressFunc func(fraction float64)

// Uploader transfers attachment bytes to object storage and resolves
// download locators for stored objects.
type Uploader interface {
	// Upload streams size bytes from r to the given key and returns the
	// stable storage reference. progress may be nil.
	Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, progress ProgressFunc) (string, error)
	// DownloadURL returns a time-limited locator for a stored object.
	DownloadURL(ctx context.Context, key string) (string, error)
}

// UploadError is a typed attachment-transfer failure. It always occurs
// before the create-message mutation, so the composer stays intact.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// GenerateFileKey builds a unique object key for a user's upload:
// uploads/<userID>/<timestamp>_<uuid>.<ext>.
func GenerateFileKey(userID, fileName string) string {
	ext := strings.TrimPrefix(path.Ext(fileName), ".")
	key := fmt.Sprintf("uploads/%s/%d_%s", userID, time.Now().UnixMilli(), uuid.NewString())
	if ext != "" {
		key += "." + ext
	}
	return key
}

// progressReader counts bytes as they are consumed and reports the
// fraction of total read so far.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func newProgressReader(r io.Reader, total int64, progress ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.progress != nil && p.total > 0 {
			fraction := float64(p.read) / float64(p.total)
			if fraction > 1 {
				fraction = 1
			}
			p.progress(fraction)
		}
	}
	return n, err
}
