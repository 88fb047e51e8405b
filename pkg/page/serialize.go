package page

import (
	"encoding/binary"

	"quiverdb/pkg/dberrors"
)

// envelopeSize is the fixed on-disk header FileManager writes ahead of
// every page's Size-byte body: PageID(8) + Compressed(1) + Encrypted(1) +
// CipherLen(4) + Checksum(4).
const envelopeSize = 18

// SerializedSize is the total number of bytes FileManager allocates per
// page slot on disk.
const SerializedSize = envelopeSize + Size

// Serialize produces the at-rest byte representation of the page: a
// small envelope (id, flags, checksum) followed by Data exactly as it
// currently sits in memory (compressed and/or encrypted or neither).
// spec.md §3 lists checksum/compression/encryption as page attributes
// that travel with the page, not computed lazily by the reader.
func (p *Page) Serialize() []byte {
	out := make([]byte, SerializedSize)
	binary.LittleEndian.PutUint64(out[0:8], p.ID)
	if p.Compressed {
		out[8] = 1
	}
	if p.Encrypted {
		out[9] = 1
	}
	binary.LittleEndian.PutUint32(out[10:14], uint32(p.CipherLen))
	binary.LittleEndian.PutUint32(out[14:18], p.Checksum)
	copy(out[envelopeSize:], p.Data[:])
	return out
}

// Deserialize parses bytes produced by Serialize and verifies the stored
// checksum against the stored (possibly compressed/encrypted) body.
func Deserialize(raw []byte) (*Page, error) {
	if len(raw) != SerializedSize {
		return nil, dberrors.Newf(dberrors.KindInvalidInput, "serialized page must be %d bytes, got %d", SerializedSize, len(raw))
	}

	p := &Page{
		ID:         binary.LittleEndian.Uint64(raw[0:8]),
		Compressed: raw[8] != 0,
		Encrypted:  raw[9] != 0,
		CipherLen:  int(binary.LittleEndian.Uint32(raw[10:14])),
		Checksum:   binary.LittleEndian.Uint32(raw[14:18]),
	}
	copy(p.Data[:], raw[envelopeSize:])

	if !p.VerifyChecksum() {
		return nil, dberrors.Newf(dberrors.KindIntegrity, "checksum mismatch for page %d: stored on-disk data has been corrupted", p.ID)
	}
	return p, nil
}
