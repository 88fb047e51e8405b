// Package page implements the slotted-page record container described in
// spec.md §4.1, resolving the §9 "record-id encoding ambiguity" and
// "offset stability under compact" notes by giving every record a stable
// logical slot index instead of a raw byte offset that shifts under
// compaction.
//
// The in-page layout is grounded in
// ShubhamNegi4-DaemonDB/storage_engine/access/heapfile_manager/heap_page.go:
// records grow forward from a fixed header, a slot directory of
// (offset, length) pairs grows backward from the page tail, and deleting a
// slot tombstones it (length=0) without immediately shifting anything.
// quiverdb adds the compress/encrypt/checksum envelope original_source's
// Page class wraps around that raw byte buffer (spec.md §4.1).
package page

import (
	"encoding/binary"
	"fmt"

	"quiverdb/pkg/dberrors"
)

// Size is the fixed on-disk page size (spec.md §6 default 4096).
const Size = 4096

// headerSize is the fixed slotted-page header: RecordEnd(2) +
// SlotRegionStart(2) + NumSlots(2) + NumLive(2).
const headerSize = 8

// slotSize is one directory entry: Offset(2) + Length(2).
const slotSize = 4

// SlotsPerPage bounds the record-id packing formula from spec.md §4.7
// (record_id = (page_id-1)*(PageSize/8) + offset), with the slot index
// used as "offset" instead of a byte offset. Every record the engine
// stores is at least 4 bytes (its field count) plus a 4-byte slot entry,
// so an engine page holds at most (Size-headerSize)/8 = 511 slots, below
// this bound. The page itself accepts shorter payloads, with which a
// page can hold more than SlotsPerPage slots.
const SlotsPerPage = Size / 8

const (
	offRecordEnd       = 0
	offSlotRegionStart = 2
	offNumSlots        = 4
	offNumLive         = 6
)

// Page is a fixed-size unit of disk I/O holding a slotted sequence of
// records plus bookkeeping (spec.md §3 "Page").
type Page struct {
	ID         uint64
	Data       [Size]byte
	Compressed bool
	Encrypted  bool
	Checksum   uint32
	// CipherLen is the exact AES-GCM ciphertext length when Encrypted is
	// true (nonce + sealed payload + tag never fills the fixed Size
	// buffer, so the real length must travel with the page).
	CipherLen int
}

// New creates a fresh, empty page with the given id.
func New(id uint64) *Page {
	p := &Page{ID: id}
	binary.LittleEndian.PutUint16(p.Data[offRecordEnd:], headerSize)
	binary.LittleEndian.PutUint16(p.Data[offSlotRegionStart:], Size)
	p.updateChecksum()
	return p
}

// NewWithData wraps an existing raw (already decompressed/decrypted) page
// body, e.g. when a page is read back from disk via FileManager.
func NewWithData(id uint64, data []byte) (*Page, error) {
	if len(data) != Size {
		return nil, dberrors.Newf(dberrors.KindInvalidInput, "page data must be %d bytes, got %d", Size, len(data))
	}
	p := &Page{ID: id}
	copy(p.Data[:], data)
	p.updateChecksum()
	return p, nil
}

func (p *Page) recordEnd() uint16       { return binary.LittleEndian.Uint16(p.Data[offRecordEnd:]) }
func (p *Page) setRecordEnd(v uint16)   { binary.LittleEndian.PutUint16(p.Data[offRecordEnd:], v) }
func (p *Page) slotRegionStart() uint16 { return binary.LittleEndian.Uint16(p.Data[offSlotRegionStart:]) }
func (p *Page) setSlotRegionStart(v uint16) {
	binary.LittleEndian.PutUint16(p.Data[offSlotRegionStart:], v)
}
func (p *Page) numSlots() uint16     { return binary.LittleEndian.Uint16(p.Data[offNumSlots:]) }
func (p *Page) setNumSlots(v uint16) { binary.LittleEndian.PutUint16(p.Data[offNumSlots:], v) }
func (p *Page) numLive() uint16      { return binary.LittleEndian.Uint16(p.Data[offNumLive:]) }
func (p *Page) setNumLive(v uint16)  { binary.LittleEndian.PutUint16(p.Data[offNumLive:], v) }

func slotAt(p *Page, idx uint16) (offset, length uint16) {
	base := Size - (int(idx)+1)*slotSize
	offset = binary.LittleEndian.Uint16(p.Data[base:])
	length = binary.LittleEndian.Uint16(p.Data[base+2:])
	return
}

func setSlotAt(p *Page, idx uint16, offset, length uint16) {
	base := Size - (int(idx)+1)*slotSize
	binary.LittleEndian.PutUint16(p.Data[base:], offset)
	binary.LittleEndian.PutUint16(p.Data[base+2:], length)
}

// FreeSpace returns PAGE_SIZE minus bytes currently in use by record
// storage, the slot directory, and the header (spec.md §3 invariant
// free_space <= PAGE_SIZE). Bytes of deleted records stay counted as in
// use until Compact reclaims them.
func (p *Page) FreeSpace() int {
	if err := p.ensureDecompressed(); err != nil {
		return 0
	}
	return int(p.slotRegionStart()) - int(p.recordEnd())
}

// AddRecord writes payload into the next free slot and returns its stable
// slot index. Returns a Capacity error when there isn't room.
func (p *Page) AddRecord(payload []byte) (uint16, error) {
	if err := p.ensureDecompressed(); err != nil {
		return 0, err
	}

	recordLen := len(payload)
	if recordLen > 0xFFFF {
		return 0, dberrors.Newf(dberrors.KindInvalidInput, "record of %d bytes exceeds max slot length", recordLen)
	}

	// Reuse a tombstoned slot if one exists, to avoid growing the
	// directory — mirrors DaemonDB's heap_page.go InsertRecord.
	slotIdx := p.numSlots()
	reuse := false
	for i := uint16(0); i < p.numSlots(); i++ {
		if _, length := slotAt(p, i); length == 0 {
			slotIdx = i
			reuse = true
			break
		}
	}

	needed := recordLen
	if !reuse {
		needed += slotSize
	}
	if needed > p.FreeSpace() {
		return 0, dberrors.Newf(dberrors.KindCapacity, "page %d full: need %d bytes, have %d", p.ID, needed, p.FreeSpace())
	}

	offset := p.recordEnd()
	copy(p.Data[offset:], payload)
	p.setRecordEnd(offset + uint16(recordLen))
	setSlotAt(p, slotIdx, offset, uint16(recordLen))

	if !reuse {
		p.setSlotRegionStart(p.slotRegionStart() - slotSize)
		p.setNumSlots(p.numSlots() + 1)
	}
	p.setNumLive(p.numLive() + 1)
	p.updateChecksum()
	return slotIdx, nil
}

// GetRecord returns a copy of the record stored at slotIdx.
func (p *Page) GetRecord(slotIdx uint16) ([]byte, error) {
	if err := p.ensureDecompressed(); err != nil {
		return nil, err
	}
	if slotIdx >= p.numSlots() {
		return nil, dberrors.Newf(dberrors.KindNotFound, "slot %d out of range (count=%d)", slotIdx, p.numSlots())
	}
	offset, length := slotAt(p, slotIdx)
	if length == 0 {
		return nil, dberrors.Newf(dberrors.KindNotFound, "slot %d is deleted", slotIdx)
	}
	out := make([]byte, length)
	copy(out, p.Data[offset:offset+length])
	return out, nil
}

// UpdateRecord overwrites the record at slotIdx in place. It succeeds only
// if newPayload fits in the slot's current length (spec.md §4.1); a
// shrinking update lowers that length, and the bytes it frees are not
// available to later updates of the slot. If the payload doesn't fit, the
// slot is tombstoned and a Capacity error is returned so the caller can
// delete+insert elsewhere.
func (p *Page) UpdateRecord(slotIdx uint16, newPayload []byte) error {
	if err := p.ensureDecompressed(); err != nil {
		return err
	}
	if slotIdx >= p.numSlots() {
		return dberrors.Newf(dberrors.KindNotFound, "slot %d out of range (count=%d)", slotIdx, p.numSlots())
	}
	offset, length := slotAt(p, slotIdx)
	if length == 0 {
		return dberrors.Newf(dberrors.KindNotFound, "slot %d is deleted", slotIdx)
	}

	if len(newPayload) > int(length) {
		_ = p.DeleteRecord(slotIdx)
		return dberrors.Newf(dberrors.KindCapacity, "slot %d too small for updated record (%d > %d)", slotIdx, len(newPayload), length)
	}

	copy(p.Data[offset:], newPayload)
	setSlotAt(p, slotIdx, offset, uint16(len(newPayload)))
	p.updateChecksum()
	return nil
}

// DeleteRecord tombstones slotIdx: the record bytes are zeroed and the
// slot is marked length=0. The slot stays in the directory, and a later
// AddRecord may reuse its index for a new record; only Compact() reclaims
// the deleted record's storage.
func (p *Page) DeleteRecord(slotIdx uint16) error {
	if err := p.ensureDecompressed(); err != nil {
		return err
	}
	if slotIdx >= p.numSlots() {
		return dberrors.Newf(dberrors.KindNotFound, "slot %d out of range (count=%d)", slotIdx, p.numSlots())
	}
	offset, length := slotAt(p, slotIdx)
	if length == 0 {
		return dberrors.Newf(dberrors.KindNotFound, "slot %d already deleted", slotIdx)
	}
	for i := offset; i < offset+length; i++ {
		p.Data[i] = 0
	}
	setSlotAt(p, slotIdx, 0, 0)
	p.setNumLive(p.numLive() - 1)
	p.updateChecksum()
	return nil
}

// Compact defragments record storage, reclaiming space left by tombstoned
// slots, WITHOUT renumbering any live slot's index — this is the fix
// spec.md §9 asks for: "add a slot directory at the page tail so
// delete/compact does not shift external record ids."
func (p *Page) Compact() error {
	if err := p.ensureDecompressed(); err != nil {
		return err
	}

	type live struct {
		slot, offset, length uint16
	}
	var entries []live
	n := p.numSlots()
	for i := uint16(0); i < n; i++ {
		offset, length := slotAt(p, i)
		if length > 0 {
			entries = append(entries, live{i, offset, length})
		}
	}
	// Stable order by original offset preserves write order.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].offset > entries[j].offset; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}

	var buf [Size]byte
	write := uint16(headerSize)
	for _, e := range entries {
		copy(buf[write:], p.Data[e.offset:e.offset+e.length])
		setSlotAt(p, e.slot, write, e.length)
		write += e.length
	}
	for i := headerSize; i < int(write); i++ {
		p.Data[i] = buf[i]
	}
	for i := write; i < p.recordEnd(); i++ {
		p.Data[i] = 0
	}
	p.setRecordEnd(write)

	// Trim trailing tombstones only — never renumber a surviving slot.
	for n > 0 {
		if _, length := slotAt(p, n-1); length == 0 {
			setSlotAt(p, n-1, 0, 0)
			n--
			continue
		}
		break
	}
	p.setNumSlots(n)
	p.setSlotRegionStart(uint16(Size - int(n)*slotSize))

	p.updateChecksum()
	return nil
}

// SetRecordAt writes payload at the exact slot index slotIdx, extending
// the slot directory with tombstones if slotIdx doesn't exist yet. It
// never reuses another slot the way AddRecord does — it exists so
// RecoveryManager's redo/undo pass can restore a record to the precise
// slot its original record id named, rather than wherever the page
// would naturally place it.
func (p *Page) SetRecordAt(slotIdx uint16, payload []byte) error {
	if err := p.ensureDecompressed(); err != nil {
		return err
	}
	recordLen := len(payload)
	if recordLen > 0xFFFF {
		return dberrors.Newf(dberrors.KindInvalidInput, "record of %d bytes exceeds max slot length", recordLen)
	}

	n := p.numSlots()
	if slotIdx < n {
		offset, length := slotAt(p, slotIdx)
		if length > 0 {
			for i := offset; i < offset+length; i++ {
				p.Data[i] = 0
			}
			p.setNumLive(p.numLive() - 1)
		}
		if recordLen > p.FreeSpace() {
			return dberrors.Newf(dberrors.KindCapacity, "page %d full: need %d bytes, have %d", p.ID, recordLen, p.FreeSpace())
		}
		newOffset := p.recordEnd()
		copy(p.Data[newOffset:], payload)
		p.setRecordEnd(newOffset + uint16(recordLen))
		setSlotAt(p, slotIdx, newOffset, uint16(recordLen))
		p.setNumLive(p.numLive() + 1)
		p.updateChecksum()
		return nil
	}

	newSlots := int(slotIdx) - int(n) + 1
	needed := newSlots*slotSize + recordLen
	if needed > p.FreeSpace() {
		return dberrors.Newf(dberrors.KindCapacity, "page %d full: need %d bytes, have %d", p.ID, needed, p.FreeSpace())
	}
	for i := n; i < slotIdx; i++ {
		setSlotAt(p, i, 0, 0)
	}
	offset := p.recordEnd()
	copy(p.Data[offset:], payload)
	p.setRecordEnd(offset + uint16(recordLen))
	setSlotAt(p, slotIdx, offset, uint16(recordLen))
	p.setSlotRegionStart(p.slotRegionStart() - uint16(newSlots*slotSize))
	p.setNumSlots(slotIdx + 1)
	p.setNumLive(p.numLive() + 1)
	p.updateChecksum()
	return nil
}

// NumSlots reports the total directory size (live + tombstoned), useful
// for full-table scans that must walk every slot to find live records.
func (p *Page) NumSlots() uint16 { return p.numSlots() }

// NumLive reports the number of live (non-tombstoned) records on the page.
func (p *Page) NumLive() uint16 { return p.numLive() }

func (p *Page) String() string {
	return fmt.Sprintf("Page{id=%d, live=%d, slots=%d, free=%d, compressed=%v, encrypted=%v}",
		p.ID, p.numLive(), p.numSlots(), p.FreeSpace(), p.Compressed, p.Encrypted)
}
