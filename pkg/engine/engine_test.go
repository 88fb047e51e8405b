package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quiverdb/pkg/config"
	"quiverdb/pkg/logging"
	"quiverdb/pkg/recordid"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.WAL.FsyncOnCommit = false
	e, err := Open(cfg, logging.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestCreateTableInsertReadRecord(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("orders", []string{"id", "customer"}))

	id, err := e.InsertRecord(0, "orders", []string{"1", "ana"})
	require.NoError(t, err)

	fields, err := e.ReadRecord("orders", id)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "ana"}, fields)
}

func TestUpdateRecordInPlace(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("orders", []string{"id", "status"}))
	id, err := e.InsertRecord(0, "orders", []string{"1", "pending"})
	require.NoError(t, err)

	newID, err := e.UpdateRecord(0, "orders", id, []string{"1", "shipped"})
	require.NoError(t, err)
	require.Equal(t, id, newID)

	fields, err := e.ReadRecord("orders", newID)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "shipped"}, fields)
}

func TestUpdateRecordRelocatesWhenLarger(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("notes", []string{"body"}))
	id, err := e.InsertRecord(0, "notes", []string{"x"})
	require.NoError(t, err)

	big := make([]byte, 3000)
	for i := range big {
		big[i] = 'a'
	}
	newID, err := e.UpdateRecord(0, "notes", id, []string{string(big)})
	require.NoError(t, err)
	require.NotEqual(t, id, newID)

	fields, err := e.ReadRecord("notes", newID)
	require.NoError(t, err)
	require.Equal(t, string(big), fields[0])
}

func TestDeleteRecord(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("orders", []string{"id"}))
	id, err := e.InsertRecord(0, "orders", []string{"1"})
	require.NoError(t, err)

	require.NoError(t, e.DeleteRecord(0, "orders", id))
	_, err = e.ReadRecord("orders", id)
	require.Error(t, err)
}

func TestFirstInsertedRecordGetsIDZero(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("t", []string{"id", "name"}))

	id, err := e.InsertRecord(0, "t", []string{"1", "alice"})
	require.NoError(t, err)
	require.Equal(t, recordid.ID(0), id)

	fields, err := e.ReadRecord("t", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "alice"}, fields)
}

func TestScanTableVisitsEveryLiveRecord(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("items", []string{"name"}))
	for _, name := range []string{"a", "b", "c"} {
		_, err := e.InsertRecord(0, "items", []string{name})
		require.NoError(t, err)
	}

	var seen []string
	err := e.ScanTable("items", func(id recordid.ID, fields []string) error {
		seen = append(seen, fields[0])
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestIndexLifecycle(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("people", []string{"name", "email"}))
	id1, err := e.InsertRecord(0, "people", []string{"ana", "ana@example.com"})
	require.NoError(t, err)
	_, err = e.InsertRecord(0, "people", []string{"bo", "bo@example.com"})
	require.NoError(t, err)

	require.NoError(t, e.CreateIndex("people", "email"))
	ids, err := e.SearchIndex("people", "email", "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, []recordid.ID{id1}, ids)

	require.NoError(t, e.DropIndex("people", "email"))
	_, err = e.SearchIndex("people", "email", "ana@example.com")
	require.Error(t, err)
}

func TestTransactionCommit(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("t", []string{"v"}))

	txID, err := e.BeginTransaction()
	require.NoError(t, err)
	id, err := e.InsertRecord(txID, "t", []string{"v1"})
	require.NoError(t, err)
	require.NoError(t, e.CommitTransaction(txID))

	fields, err := e.ReadRecord("t", id)
	require.NoError(t, err)
	require.Equal(t, []string{"v1"}, fields)
}

func TestTransactionAbortUndoesInserts(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("t", []string{"v"}))

	txID, err := e.BeginTransaction()
	require.NoError(t, err)
	id, err := e.InsertRecord(txID, "t", []string{"v1"})
	require.NoError(t, err)
	require.NoError(t, e.AbortTransaction(txID))

	_, err = e.ReadRecord("t", id)
	require.Error(t, err)
}

func TestAuthCreateAndVerifyUser(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.CreateTable("secrets", []string{"v"}))
	require.NoError(t, e.CreateUser("ana", "hunter2"))

	ok, err := e.VerifyUser("ana", "hunter2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.VerifyUser("ana", "wrong")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, e.GrantTableAccess("ana", "secrets"))
	tables, err := e.UserTables("ana")
	require.NoError(t, err)
	require.Equal(t, []string{"secrets"}, tables)
}

func TestInstanceIDIsStableAndNonEmpty(t *testing.T) {
	e := newTestEngine(t)
	id := e.InstanceID()
	require.NotEmpty(t, id)
	require.Equal(t, id, e.InstanceID())
}

func TestCheckpointTruncatesWAL(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.WAL.FsyncOnCommit = false
	cfg.WAL.SegmentSizeBytes = 64 // small segments so the inserts span several
	e, err := Open(cfg, logging.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	require.NoError(t, e.CreateTable("t", []string{"v"}))
	for i := 0; i < 5; i++ {
		_, err := e.InsertRecord(0, "t", []string{"v"})
		require.NoError(t, err)
	}
	segPattern := filepath.Join(cfg.DataDir, "wal", "seg-*.log")
	before, err := filepath.Glob(segPattern)
	require.NoError(t, err)

	_, err = e.Checkpoint()
	require.NoError(t, err)

	after, err := filepath.Glob(segPattern)
	require.NoError(t, err)
	require.Less(t, len(after), len(before))
}

func TestReopenRecoversCommittedData(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.WAL.FsyncOnCommit = true

	e1, err := Open(cfg, logging.Noop())
	require.NoError(t, err)
	require.NoError(t, e1.CreateTable("t", []string{"v"}))
	id, err := e1.InsertRecord(0, "t", []string{"hello"})
	require.NoError(t, err)
	require.NoError(t, e1.Close())

	e2, err := Open(cfg, logging.Noop())
	require.NoError(t, err)
	defer e2.Close()

	fields, err := e2.ReadRecord("t", id)
	require.NoError(t, err)
	require.Equal(t, []string{"hello"}, fields)
}
