package engine

import (
	"encoding/binary"

	"quiverdb/pkg/dberrors"
)

// encodeFields serializes a record's field list as a u32 field count
// followed by an explicit length-prefixed encoding per field
// ([u32 length][bytes], repeated).
// spec.md §9 flags the obvious alternative — joining fields with a
// newline — as lossy whenever a field itself contains a newline; this
// format has no such restriction and round-trips empty fields too.
func encodeFields(fields []string) []byte {
	size := 4
	for _, f := range fields {
		size += 4 + len(f)
	}
	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(fields)))
	off += 4
	for _, f := range fields {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(f)))
		off += 4
		copy(buf[off:], f)
		off += len(f)
	}
	return buf
}

// decodeFields reverses encodeFields.
func decodeFields(data []byte) ([]string, error) {
	if len(data) < 4 {
		return nil, dberrors.New(dberrors.KindIntegrity, "record payload too short to contain a field count")
	}
	n := int(binary.LittleEndian.Uint32(data[0:4]))
	off := 4
	fields := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if off+4 > len(data) {
			return nil, dberrors.New(dberrors.KindIntegrity, "record payload truncated in field length")
		}
		flen := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if off+flen > len(data) {
			return nil, dberrors.New(dberrors.KindIntegrity, "record payload truncated in field value")
		}
		fields = append(fields, string(data[off:off+flen]))
		off += flen
	}
	return fields, nil
}
