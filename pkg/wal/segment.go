package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"quiverdb/pkg/dberrors"
)

// segment is one numbered WAL file, opened O_APPEND like DaemonDB's
// WALSegment — the OS guarantees each Append is atomic with respect to
// other appenders on the same file.
type segment struct {
	id   uint64
	path string
	file *os.File
	size int64
	mu   sync.Mutex
}

func segmentPath(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("seg-%016x.log", id))
}

func openSegment(dir string, id uint64) (*segment, error) {
	path := segmentPath(dir, id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindIO, fmt.Sprintf("failed to open WAL segment %s", path), err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberrors.Wrap(dberrors.KindIO, "failed to stat WAL segment", err)
	}
	return &segment{id: id, path: path, file: f, size: stat.Size()}, nil
}

func (s *segment) append(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.file.Write(frame)
	if err != nil {
		return dberrors.Wrap(dberrors.KindIO, "failed to append WAL frame", err)
	}
	s.size += int64(n)
	return nil
}

func (s *segment) sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		return dberrors.Wrap(dberrors.KindIO, "failed to fsync WAL segment", err)
	}
	return nil
}

func (s *segment) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *segment) currentSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// readSegmentBytes returns the raw bytes of a closed or open segment for
// recovery scanning.
func readSegmentBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.KindIO, fmt.Sprintf("failed to read WAL segment %s", path), err)
	}
	return data, nil
}
