// Package recordid packs and unpacks the (page_id, slot_index) pair that
// addresses a single record, per spec.md §4.7's record-id mapping policy
// and the slot-directory resolution recorded in SPEC_FULL.md §9.
//
// Pack/Unpack work in terms of a table-local page number, NOT
// FileManager's global page id (fileID<<32 | local) — quiverdb packs
// every table's pages into one global id space so FileManager can
// address any page with a single int64, but spec.md §4.7's addressing
// scheme ("page_id starts at 1, the first record is id 0") is defined
// per table. Callers convert to/from a global id at the FileManager
// boundary via filemanager.LocalPageNum/GlobalPageID; recordid itself
// never sees a fileID.
package recordid

import "quiverdb/pkg/page"

// ID is the arithmetic record address StorageEngine hands out to callers
// and stores inside secondary indexes.
type ID int64

// Pack computes the record id for a given table-local page number
// (0-based, as FileManager hands out) and slot index, using the formula
// from spec.md §4.7: record_id = (page_id-1)*slotsPerPage + slot_index,
// with slotsPerPage = PageSize/8 — large enough that no real page's slot
// count can collide across the page boundary. A 0-based local page
// number is exactly page_id-1, so it's used directly without converting
// to 1-based first: the first record on the first page of any table is
// id 0.
func Pack(localPage int64, slot uint16) ID {
	return ID(localPage*page.SlotsPerPage + int64(slot))
}

// Unpack reverses Pack, returning the same table-local page number Pack
// was given.
func Unpack(id ID) (localPage int64, slot uint16) {
	v := int64(id)
	localPage = v / page.SlotsPerPage
	slot = uint16(v % page.SlotsPerPage)
	return
}
