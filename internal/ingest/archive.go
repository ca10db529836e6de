package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"cropsight/internal/types"
)

// Archive persists raw ingestion payloads as zstd-compressed JSON documents
// under a local directory, one subdirectory per signal kind. Archived payloads
// are the audit trail for replaying or debugging a poll cycle; they are never
// read on the serving path.
//
// A nil or empty-dir Archive is disabled: Write becomes a no-op.
type Archive struct {
	dir string

	// encoderPool provides reusable zstd encoders to avoid repeated allocations.
	encoderPool sync.Pool
}

// NewArchive creates an Archive rooted at dir. An empty dir disables archival.
func NewArchive(dir string) *Archive {
	return &Archive{
		dir: dir,
		encoderPool: sync.Pool{
			New: func() any {
				e, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
				if err != nil {
					// This should never fail with nil output and default options.
					panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
				}
				return e
			},
		},
	}
}

// Enabled reports whether archival is configured.
func (a *Archive) Enabled() bool {
	return a != nil && a.dir != ""
}

// Write serializes payload as JSON, compresses it with zstd and stores it at
// {dir}/{kind}/{timestamp}-{suffix}.json.zst. Returns the file path, or an
// empty path when archival is disabled.
func (a *Archive) Write(kind string, at time.Time, payload any) (string, error) {
	if !a.Enabled() {
		return "", nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalSerialization,
			"failed to serialize archive payload",
			err,
		)
	}

	encoder := a.encoderPool.Get().(*zstd.Encoder)
	compressed := encoder.EncodeAll(raw, nil)
	a.encoderPool.Put(encoder)

	subdir := filepath.Join(a.dir, kind)
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create archive directory",
			err,
		)
	}

	// uuid suffix keeps concurrent writes within the same second distinct.
	name := fmt.Sprintf("%s-%s.json.zst",
		at.UTC().Format("20060102T150405Z"),
		uuid.NewString()[:8],
	)
	path := filepath.Join(subdir, name)

	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to write archive file",
			err,
		)
	}

	return path, nil
}

// archiveTimeLayout is the timestamp prefix of every archive file name.
const archiveTimeLayout = "20060102T150405Z"

// Prune deletes archived payloads written before the cutoff and returns how
// many files were removed. The write timestamp is taken from the file name,
// not the filesystem, so restored backups prune correctly. Files that do not
// match the archive naming scheme are left alone.
func (a *Archive) Prune(cutoff time.Time) (int, error) {
	if !a.Enabled() {
		return 0, nil
	}

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to read archive directory",
			err,
		)
	}

	removed := 0
	for _, kind := range entries {
		if !kind.IsDir() {
			continue
		}
		subdir := filepath.Join(a.dir, kind.Name())
		files, err := os.ReadDir(subdir)
		if err != nil {
			return removed, types.NewAppError(
				types.ErrCodeInternalUnexpected,
				"failed to read archive subdirectory",
				err,
			)
		}

		for _, file := range files {
			writtenAt, ok := archiveFileTime(file.Name())
			if !ok || !writtenAt.Before(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(subdir, file.Name())); err != nil {
				return removed, types.NewAppError(
					types.ErrCodeInternalUnexpected,
					"failed to remove expired archive file",
					err,
				)
			}
			removed++
		}
	}
	return removed, nil
}

// archiveFileTime parses the write timestamp out of an archive file name.
func archiveFileTime(name string) (time.Time, bool) {
	if !strings.HasSuffix(name, ".json.zst") || len(name) < len(archiveTimeLayout) {
		return time.Time{}, false
	}
	ts, err := time.Parse(archiveTimeLayout, name[:len(archiveTimeLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
