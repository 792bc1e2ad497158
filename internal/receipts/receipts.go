// Package receipts stores receipt attachments. Objects are keyed
// receipts/{userID}/{unixMillis}_{filename} and referenced from
// transactions by the URL returned from URLFor.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// URLPrefix is prepended to object keys to form the receipt URL stored on
// a transaction. The HTTP API serves receipts under this path.
const URLPrefix = "/api/"

var (
	ErrNotFound = errors.New("receipt not found")
	ErrTooLarge = errors.New("receipt too large")
)

// Upload is a receipt file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Store persists receipt objects.
type Store interface {
	Put(ctx context.Context, key string, u Upload) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Key builds the object key for a receipt uploaded by userID at now.
func Key(userID string, now time.Time, filename string) string {
	return fmt.Sprintf("receipts/%s/%d_%s", userID, now.UnixMilli(), sanitizeFilename(filename))
}

// URLFor returns the URL recorded on a transaction for key.
func URLFor(key string) string {
	return URLPrefix + key
}

// KeyFromURL reverses URLFor. ok is false for URLs that do not point at a
// stored receipt.
func KeyFromURL(url string) (key string, ok bool) {
	if !strings.HasPrefix(url, URLPrefix+"receipts/") {
		return "", false
	}
	return strings.TrimPrefix(url, URLPrefix), true
}

// OwnedBy reports whether key lives under userID's prefix.
func OwnedBy(key, userID string) bool {
	if userID == "" || strings.Contains(key, "..") {
		return false
	}
	return strings.HasPrefix(key, "receipts/"+userID+"/")
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		}
		return '_'
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return "receipt"
	}
	return name
}

// LimitReader wraps r so that reading more than max bytes fails with
// ErrTooLarge. A non-positive max disables the limit.
func LimitReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return &limitedReader{r: r, remaining: max}
}

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
