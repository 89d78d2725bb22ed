// Package cache holds decoded artifacts on disk so repeat requests
// skip the archive download and decode entirely.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Store is the cache the extraction handlers depend on. Keys are
// jobID plus an artifact key ("png", "laz", "points.bin", ...), which
// disambiguates the variants of the same job.
type Store interface {
	// Get returns the on-disk path of a valid cached entry, or
	// ok=false when the entry is absent or expired.
	Get(jobID, key string) (path string, ok bool)
	// Put writes the entry and returns its on-disk path.
	Put(jobID, key string, data []byte) (path string, err error)
}

// Disk is the filesystem Store. Entries live under
// <base>/<family>-cache/<jobID>.<key>; validity is judged purely by
// file modification time against the TTL. Expired files stay on disk
// and are overwritten by the next Put.
type Disk struct {
	base   string
	family string
	ttl    time.Duration
	now    func() time.Time
}

// NewDisk builds a Disk store for one artifact family. An empty base
// falls back to os.TempDir().
func NewDisk(base, family string, ttl time.Duration) *Disk {
	if base == "" {
		base = os.TempDir()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Disk{
		base:   filepath.Join(base, family+"-cache"),
		family: family,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Dir returns the store's cache directory.
func (d *Disk) Dir() string { return d.base }

func (d *Disk) entryPath(jobID, key string) string {
	return filepath.Join(d.base, fmt.Sprintf("%s.%s", jobID, key))
}

func (d *Disk) Get(jobID, key string) (string, bool) {
	p := d.entryPath(jobID, key)
	fi, err := os.Stat(p)
	if err != nil {
		return "", false
	}
	if d.now().Sub(fi.ModTime()) >= d.ttl {
		// Stale entries are superseded, not deleted.
		log.Debug().Str("path", p).Msg("cache entry expired")
		return "", false
	}
	return p, true
}

func (d *Disk) Put(jobID, key string, data []byte) (string, error) {
	if err := os.MkdirAll(d.base, 0o755); err != nil {
		return "", fmt.Errorf("cache put: %w", err)
	}
	p := d.entryPath(jobID, key)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("cache put: %w", err)
	}
	log.Debug().Str("path", p).Int("bytes", len(data)).Msg("cache entry written")
	return p, nil
}
