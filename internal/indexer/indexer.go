package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CHW0n9/OpenCode-Token-Meter/internal/store"
)

// ScanMode selects how much of the message tree a scan considers.
type ScanMode string

const (
	// ScanFull re-reads every message file regardless of watermarks.
	ScanFull ScanMode = "full"
	// ScanIncremental skips files whose mtime has not advanced past the
	// recorded watermark.
	ScanIncremental ScanMode = "incremental"
	// ScanQuickStart is an incremental scan restricted to sessions and
	// files modified within the last seven days. Used on agent startup
	// when the index is already populated.
	ScanQuickStart ScanMode = "quick_start"
)

const quickStartWindow = 7 * 24 * time.Hour

// Indexer walks the OpenCode storage tree and upserts message records
// into the store. Scans are serialized; concurrent callers block.
type Indexer struct {
	store *store.Store
	root  string

	mu       sync.Mutex
	lastScan atomic.Int64
	indexed  atomic.Int64
}

func New(st *store.Store, messageRoot string) *Indexer {
	return &Indexer{store: st, root: messageRoot}
}

// LastScanTime returns the Unix time the last scan finished, or zero if
// no scan has completed yet.
func (ix *Indexer) LastScanTime() int64 {
	return ix.lastScan.Load()
}

// IndexedCount returns the total message count recorded at the end of
// the last scan. It reads no state off disk, so status queries stay
// cheap during a scan.
func (ix *Indexer) IndexedCount() int64 {
	return ix.indexed.Load()
}

// Scan walks the message root and indexes new or changed files,
// returning the number of files upserted. A missing root is not an
// error; the tool may start before OpenCode has ever run.
func (ix *Indexer) Scan(ctx context.Context, mode ScanMode) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-quickStartWindow)

	sessions, err := os.ReadDir(ix.root)
	if err != nil {
		if os.IsNotExist(err) {
			ix.lastScan.Store(now.Unix())
			return 0, nil
		}
		return 0, fmt.Errorf("reading message root %s: %w", ix.root, err)
	}

	var indexed int
	for _, entry := range sessions {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "ses_") {
			continue
		}
		if mode == ScanQuickStart {
			info, err := entry.Info()
			if err != nil || info.ModTime().Before(cutoff) {
				continue
			}
		}
		n, err := ix.scanSession(ctx, filepath.Join(ix.root, entry.Name()), entry.Name(), mode, cutoff, now)
		if err != nil {
			return indexed, err
		}
		indexed += n
	}

	if total, err := ix.store.MessageCount(ctx); err == nil {
		ix.indexed.Store(total)
	}
	ix.lastScan.Store(time.Now().Unix())
	return indexed, nil
}

func (ix *Indexer) scanSession(ctx context.Context, dir, sessionID string, mode ScanMode, cutoff, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// Session directories can vanish between listing and reading.
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading session %s: %w", sessionID, err)
	}

	var indexed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "msg_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mode == ScanQuickStart && info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, name)
		mtime := info.ModTime().UnixNano()

		if mode != ScanFull {
			if seen, ok, err := ix.store.Watermark(ctx, path); err != nil {
				return indexed, err
			} else if ok && mtime <= seen {
				continue
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rec, ok := parseMessage(data, path, sessionID, now)
		if !ok {
			// Malformed JSON. Record the watermark anyway so a broken
			// file is not re-read every cycle.
			if err := ix.store.SetWatermark(ctx, path, mtime); err != nil {
				return indexed, err
			}
			continue
		}

		if err := ix.store.UpsertMessage(ctx, rec); err != nil {
			return indexed, fmt.Errorf("indexing %s: %w", path, err)
		}
		if err := ix.store.SetWatermark(ctx, path, mtime); err != nil {
			return indexed, err
		}
		indexed++
	}
	return indexed, nil
}
