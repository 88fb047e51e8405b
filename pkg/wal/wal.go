package wal

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"quiverdb/pkg/dberrors"
	"quiverdb/pkg/logging"
)

// Manager is the write-ahead log: an ordered sequence of numbered
// segment files under dir, with a monotonically increasing LSN spanning
// all of them.
type Manager struct {
	mu               sync.Mutex
	dir              string
	segmentSizeBytes int64
	fsyncOnCommit    bool
	segmentIDs       []uint64 // ascending, oldest first
	current          *segment
	nextLSN          uint64
	flushedLSN       uint64
	log              *logging.Logger
}

// Options configures a Manager.
type Options struct {
	SegmentSizeBytes int64
	FsyncOnCommit    bool
}

// Open opens (or creates) the WAL directory at dir, resuming from
// whatever segments already exist there.
func Open(dir string, opts Options, log *logging.Logger) (*Manager, error) {
	if log == nil {
		log = logging.Noop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, dberrors.Wrap(dberrors.KindIO, "failed to create WAL directory", err)
	}

	ids, err := existingSegmentIDs(dir)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		dir:              dir,
		segmentSizeBytes: opts.SegmentSizeBytes,
		fsyncOnCommit:    opts.FsyncOnCommit,
		segmentIDs:       ids,
		log:              log.With("component", "wal"),
	}

	var lastID uint64
	if len(ids) > 0 {
		lastID = ids[len(ids)-1]
	}
	cur, err := openSegment(dir, lastID)
	if err != nil {
		return nil, err
	}
	m.current = cur
	if len(ids) == 0 {
		m.segmentIDs = []uint64{lastID}
	}

	maxLSN, err := m.scanMaxLSN()
	if err != nil {
		return nil, err
	}
	m.nextLSN = maxLSN + 1
	m.flushedLSN = maxLSN

	return m, nil
}

func existingSegmentIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindIO, "failed to list WAL directory", err)
	}
	var ids []uint64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "seg-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		hex := strings.TrimSuffix(strings.TrimPrefix(name, "seg-"), ".log")
		id, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Manager) scanMaxLSN() (uint64, error) {
	records, err := m.allRecordsLocked()
	if err != nil {
		return 0, err
	}
	var max uint64
	for _, r := range records {
		if r.LSN > max {
			max = r.LSN
		}
	}
	return max, nil
}

// Append writes rec (whose LSN is assigned here) to the current segment,
// rolling over to a new segment first if the current one has grown past
// segmentSizeBytes. Returns the assigned LSN.
func (m *Manager) Append(rec Record) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.LSN = m.nextLSN
	m.nextLSN++

	if m.segmentSizeBytes > 0 && m.current.currentSize() >= m.segmentSizeBytes {
		if err := m.rollLocked(); err != nil {
			return 0, err
		}
	}

	frame := Encode(rec)
	if err := m.current.append(frame); err != nil {
		return 0, err
	}

	if rec.Op == OpCommit && m.fsyncOnCommit {
		if err := m.current.sync(); err != nil {
			return 0, err
		}
		m.flushedLSN = rec.LSN
	}
	return rec.LSN, nil
}

// Sync forces the current segment to disk and advances FlushedLSN to the
// last appended LSN.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.current.sync(); err != nil {
		return err
	}
	m.flushedLSN = m.nextLSN - 1
	return nil
}

// FlushedLSN returns the highest LSN known to be durable on disk.
func (m *Manager) FlushedLSN() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushedLSN
}

func (m *Manager) rollLocked() error {
	newID := m.segmentIDs[len(m.segmentIDs)-1] + 1
	if err := m.current.sync(); err != nil {
		return err
	}
	if err := m.current.close(); err != nil {
		return err
	}
	seg, err := openSegment(m.dir, newID)
	if err != nil {
		return err
	}
	m.current = seg
	m.segmentIDs = append(m.segmentIDs, newID)
	m.log.Infof("rolled over to WAL segment %d", newID)
	return nil
}

// AllRecords returns every record across every segment, in LSN order.
func (m *Manager) AllRecords() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allRecordsLocked()
}

func (m *Manager) allRecordsLocked() ([]Record, error) {
	var out []Record
	for _, id := range m.segmentIDs {
		data, err := readSegmentBytes(segmentPath(m.dir, id))
		if err != nil {
			return nil, err
		}
		off := 0
		for off < len(data) {
			rec, n, err := Decode(data[off:])
			if err != nil {
				return nil, dberrors.Wrap(dberrors.KindIntegrity, "corrupt WAL segment", err)
			}
			out = append(out, rec)
			off += n
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LSN < out[j].LSN })
	return out, nil
}

// Checkpoint writes a checkpoint record and truncates (deletes) every
// segment strictly older than the one containing it — spec.md §9 flags
// "no checkpointing" as a known gap in original_source; quiverdb adds
// this to bound recovery replay time.
func (m *Manager) Checkpoint() (uint64, error) {
	lsn, err := m.Append(Record{Op: OpCheckpoint})
	if err != nil {
		return 0, err
	}
	if err := m.Sync(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	keepFrom := len(m.segmentIDs) - 1 // keep the segment the checkpoint landed in
	var remaining []uint64
	for i, id := range m.segmentIDs {
		if i < keepFrom {
			path := segmentPath(m.dir, id)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return 0, dberrors.Wrap(dberrors.KindIO, "failed to truncate WAL segment", err)
			}
			m.log.Infof("truncated WAL segment %d at checkpoint lsn=%d", id, lsn)
			continue
		}
		remaining = append(remaining, id)
	}
	m.segmentIDs = remaining
	return lsn, nil
}

// Close syncs and closes the current segment.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.current.sync(); err != nil {
		return err
	}
	return m.current.close()
}

// Dir returns the WAL directory, for diagnostics/tests.
func (m *Manager) Dir() string { return filepath.Clean(m.dir) }
