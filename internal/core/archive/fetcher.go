// Package archive turns a remote job's result bundle into a locally
// indexed, random-access set of entries.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
)

// Downloader is the slice of the processing-server client the fetcher
// needs: one full archive download per job.
type Downloader interface {
	DownloadArchive(ctx context.Context, jobID string) ([]byte, error)
}

// Entry is a single file inside a fetched archive.
type Entry struct {
	Path string
	Size uint64
	file *zip.File
}

// Open returns a reader over the entry's decompressed content.
func (e Entry) Open() (io.ReadCloser, error) {
	return e.file.Open()
}

// Bytes decompresses the whole entry into memory.
func (e Entry) Bytes() ([]byte, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.Path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Path, err)
	}
	return data, nil
}

// Archive is a fetched, indexed result bundle.
type Archive struct {
	entries []Entry
}

// Entries lists all files in the archive. Directories are omitted.
func (a *Archive) Entries() []Entry { return a.entries }

// Fetcher downloads job archives and indexes them without expanding
// them on disk.
type Fetcher struct {
	dl Downloader
}

func NewFetcher(dl Downloader) *Fetcher {
	return &Fetcher{dl: dl}
}

// Fetch performs exactly one full archive download for the job and
// builds the entry index over the buffered bytes.
func (f *Fetcher) Fetch(ctx context.Context, jobID string) (*Archive, error) {
	if jobID == "" {
		return nil, fmt.Errorf("fetch archive: empty job id")
	}

	data, err := f.dl.DownloadArchive(ctx, jobID)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("fetch archive: index zip: %w", err)
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, Entry{
			Path: zf.Name,
			Size: zf.UncompressedSize64,
			file: zf,
		})
	}
	return &Archive{entries: entries}, nil
}
