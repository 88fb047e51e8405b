// Package filemanager implements spec.md §4.2's FileManager: one
// append-only heap file per table, addressed by a global page id that
// never collides across tables.
//
// Grounded in ShubhamNegi4-DaemonDB/storage_engine/disk_manager: the
// globalPageID = fileID<<32 | localPageNum encoding is taken directly
// from disk_manager's AllocatePage/getLocalPageID, since it gives every
// page a single int64 address without needing a separately persisted
// counter. Only the local page number is stable across restarts: fileIDs
// are handed out in OpenTable call order and hold for one FileManager's
// lifetime, so ReadPage re-stamps each page it loads with the current
// run's global id. quiverdb narrows the teacher's
// general-purpose multi-file disk manager (which also served WAL
// segments and B+tree index files) down to the one thing spec.md's
// FileManager owns: per-table heap files.
package filemanager

import (
	"fmt"
	"os"
	"sync"

	"quiverdb/pkg/dberrors"
	"quiverdb/pkg/logging"
	"quiverdb/pkg/page"
)

// fileIDBits is how many low bits of a global page id are reserved for
// the local page number within a table's file.
const fileIDBits = 32

// tableFile is one table's on-disk heap file.
type tableFile struct {
	fileID   uint32
	path     string
	file     *os.File
	nextPage int64
	mu       sync.RWMutex
}

// FileManager owns every table's heap file and the global page id space
// that spans them.
type FileManager struct {
	mu         sync.RWMutex
	dataDir    string
	tables     map[string]*tableFile // table name -> file
	byID       map[uint32]*tableFile // fileID -> file
	nextFileID uint32
	log        *logging.Logger
}

// New creates a FileManager rooted at dataDir. dataDir is created if it
// doesn't exist.
func New(dataDir string, log *logging.Logger) (*FileManager, error) {
	if log == nil {
		log = logging.Noop()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, dberrors.Wrap(dberrors.KindIO, "failed to create data directory", err)
	}
	return &FileManager{
		dataDir:    dataDir,
		tables:     make(map[string]*tableFile),
		byID:       make(map[uint32]*tableFile),
		nextFileID: 1,
		log:        log.With("component", "filemanager"),
	}, nil
}

func (fm *FileManager) tablePath(table string) string {
	return fmt.Sprintf("%s/%s.db", fm.dataDir, table)
}

// OpenTable opens (creating if necessary) the heap file backing table,
// returning its fileID. Calling OpenTable on an already-open table is a
// no-op that returns the existing fileID.
func (fm *FileManager) OpenTable(table string) (uint32, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if tf, ok := fm.tables[table]; ok {
		return tf.fileID, nil
	}

	path := fm.tablePath(table)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, dberrors.Wrap(dberrors.KindIO, fmt.Sprintf("failed to open table file %s", path), err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, dberrors.Wrap(dberrors.KindIO, "failed to stat table file", err)
	}

	fileID := fm.nextFileID
	fm.nextFileID++

	tf := &tableFile{
		fileID:   fileID,
		path:     path,
		file:     f,
		nextPage: stat.Size() / page.SerializedSize,
	}
	fm.tables[table] = tf
	fm.byID[fileID] = tf
	fm.log.Infof("opened table %q as file %d (%d existing pages)", table, fileID, tf.nextPage)
	return fileID, nil
}

// CloseTable syncs and closes table's heap file.
func (fm *FileManager) CloseTable(table string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	tf, ok := fm.tables[table]
	if !ok {
		return nil
	}
	tf.mu.Lock()
	defer tf.mu.Unlock()
	if tf.file != nil {
		if err := tf.file.Sync(); err != nil {
			return dberrors.Wrap(dberrors.KindIO, "failed to sync before close", err)
		}
		if err := tf.file.Close(); err != nil {
			return dberrors.Wrap(dberrors.KindIO, "failed to close table file", err)
		}
		tf.file = nil
	}
	delete(fm.tables, table)
	delete(fm.byID, tf.fileID)
	return nil
}

// AllocatePage reserves the next page id for table and writes a blank
// page at its offset, so the file grows (and a reopen counts the page)
// at once; the caller (BufferManager) writes the real contents back later
// when the page is evicted or flushed.
func (fm *FileManager) AllocatePage(table string) (int64, error) {
	fm.mu.RLock()
	tf, ok := fm.tables[table]
	fm.mu.RUnlock()
	if !ok {
		return 0, dberrors.Newf(dberrors.KindNotFound, "table %q is not open", table)
	}

	tf.mu.Lock()
	defer tf.mu.Unlock()
	local := tf.nextPage
	id := globalPageID(tf.fileID, local)
	if _, err := tf.file.WriteAt(page.New(uint64(id)).Serialize(), local*page.SerializedSize); err != nil {
		return 0, dberrors.Wrap(dberrors.KindIO, fmt.Sprintf("failed to write blank page %d", id), err)
	}
	tf.nextPage++
	return id, nil
}

// ReadPage reads and deserializes the page at globalPageID.
func (fm *FileManager) ReadPage(globalID int64) (*page.Page, error) {
	fileID := uint32(globalID >> fileIDBits)
	fm.mu.RLock()
	tf, ok := fm.byID[fileID]
	fm.mu.RUnlock()
	if !ok {
		return nil, dberrors.Newf(dberrors.KindNotFound, "file %d not found for page %d", fileID, globalID)
	}

	tf.mu.RLock()
	defer tf.mu.RUnlock()
	if tf.file == nil {
		return nil, dberrors.Newf(dberrors.KindState, "file %d is closed", fileID)
	}

	local := localPageNum(globalID)
	offset := local * page.SerializedSize
	buf := make([]byte, page.SerializedSize)
	n, err := tf.file.ReadAt(buf, offset)
	if err != nil && n != len(buf) {
		return nil, dberrors.Wrap(dberrors.KindIO, fmt.Sprintf("failed to read page %d", globalID), err)
	}

	pg, err := page.Deserialize(buf)
	if err != nil {
		return nil, err
	}
	// The id stored in the envelope carries the fileID of the run that
	// wrote it; address the page by this run's id instead.
	pg.ID = uint64(globalID)
	return pg, nil
}

// WritePage serializes and writes pg to its on-disk slot, derived from
// pg.ID.
func (fm *FileManager) WritePage(pg *page.Page) error {
	fileID := uint32(pg.ID >> fileIDBits)
	fm.mu.RLock()
	tf, ok := fm.byID[fileID]
	fm.mu.RUnlock()
	if !ok {
		return dberrors.Newf(dberrors.KindNotFound, "file %d not found for page %d", fileID, pg.ID)
	}

	tf.mu.Lock()
	defer tf.mu.Unlock()
	if tf.file == nil {
		return dberrors.Newf(dberrors.KindState, "file %d is closed", fileID)
	}

	local := localPageNum(int64(pg.ID))
	offset := local * page.SerializedSize
	if _, err := tf.file.WriteAt(pg.Serialize(), offset); err != nil {
		return dberrors.Wrap(dberrors.KindIO, fmt.Sprintf("failed to write page %d", pg.ID), err)
	}
	if local >= tf.nextPage {
		tf.nextPage = local + 1
	}
	return nil
}

// Sync fsyncs every open table file.
func (fm *FileManager) Sync() error {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	for _, tf := range fm.tables {
		tf.mu.RLock()
		if tf.file != nil {
			if err := tf.file.Sync(); err != nil {
				tf.mu.RUnlock()
				return dberrors.Wrap(dberrors.KindIO, "failed to sync table file", err)
			}
		}
		tf.mu.RUnlock()
	}
	return nil
}

// CloseAll syncs and closes every open table file.
func (fm *FileManager) CloseAll() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	var lastErr error
	for name, tf := range fm.tables {
		tf.mu.Lock()
		if tf.file != nil {
			if err := tf.file.Sync(); err != nil {
				lastErr = err
			}
			if err := tf.file.Close(); err != nil {
				lastErr = err
			}
			tf.file = nil
		}
		tf.mu.Unlock()
		delete(fm.tables, name)
		delete(fm.byID, tf.fileID)
	}
	return lastErr
}

// TotalPages reports the number of allocated pages for table.
func (fm *FileManager) TotalPages(table string) (int64, error) {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	tf, ok := fm.tables[table]
	if !ok {
		return 0, dberrors.Newf(dberrors.KindNotFound, "table %q is not open", table)
	}
	return tf.nextPage, nil
}

func globalPageID(fileID uint32, local int64) int64 {
	return int64(fileID)<<fileIDBits | local
}

func localPageNum(globalID int64) int64 {
	return globalID & 0xFFFFFFFF
}

// FileID returns the fileID component of a global page id, exported for
// callers (StorageEngine) that need to address a table's pages directly
// during recovery, without re-deriving the encoding themselves.
func FileID(globalID int64) uint32 { return uint32(globalID >> fileIDBits) }

// LocalPageNum exposes localPageNum for the same reason.
func LocalPageNum(globalID int64) int64 { return localPageNum(globalID) }

// GlobalPageID exposes globalPageID for the same reason.
func GlobalPageID(fileID uint32, local int64) int64 { return globalPageID(fileID, local) }

// DeleteTable closes (if open) and removes table's on-disk heap file
// entirely, for DROP TABLE.
func (fm *FileManager) DeleteTable(table string) error {
	path := fm.tablePath(table)
	if err := fm.CloseTable(table); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return dberrors.Wrap(dberrors.KindIO, fmt.Sprintf("failed to delete table file %s", path), err)
	}
	return nil
}
