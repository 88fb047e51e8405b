package page

import "quiverdb/pkg/dberrors"

// Compress run-length-encodes the page body in place. It is idempotent —
// calling it on an already-compressed page is a no-op, matching
// original_source/core/src/page.cpp's is_compressed_ guard.
//
// SPEC_FULL.md §9 fixes compression timing at the buffer manager's
// write-back path only: a Page stays mutable (AddRecord/GetRecord/...) at
// all times it's resident in memory, and is compressed only immediately
// before being handed to FileManager for a disk write.
func (p *Page) Compress() error {
	if p.Compressed {
		return nil
	}
	encoded := rleEncode(p.Data[:])
	if len(encoded) >= Size {
		// Not worth it; store raw but still mark compressed=false.
		p.updateChecksum()
		return nil
	}
	var buf [Size]byte
	copy(buf[:], encoded)
	p.Data = buf
	p.Compressed = true
	p.updateChecksum()
	return nil
}

// Decompress reverses Compress. Idempotent: a no-op on an uncompressed
// page.
func (p *Page) Decompress() error {
	if !p.Compressed {
		return nil
	}
	decoded, err := rleDecode(p.Data[:], Size)
	if err != nil {
		return dberrors.Wrap(dberrors.KindIntegrity, "rle decode failed", err)
	}
	var buf [Size]byte
	copy(buf[:], decoded)
	p.Data = buf
	p.Compressed = false
	p.updateChecksum()
	return nil
}

// ensureDecompressed transparently decompresses the page before any
// record-level mutation or read, mirroring original_source's
// ensure_decompressed() helper (spec.md §4.1).
func (p *Page) ensureDecompressed() error {
	if p.Encrypted {
		return dberrors.New(dberrors.KindState, "page is encrypted; decrypt before accessing records")
	}
	if p.Compressed {
		return p.Decompress()
	}
	return nil
}

// rleEncode implements byte run-length encoding: each run is emitted as
// [byte][runLength], where runLength is 1-255; longer runs split across
// multiple pairs.
func rleEncode(data []byte) []byte {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		b := data[i]
		run := 1
		for i+run < len(data) && data[i+run] == b && run < 255 {
			run++
		}
		out = append(out, b, byte(run))
		i += run
	}
	return out
}

// rleDecode reverses rleEncode, padding or truncating to exactly
// outLen bytes (a raw page body is always exactly Size bytes).
func rleDecode(data []byte, outLen int) ([]byte, error) {
	out := make([]byte, 0, outLen)
	for i := 0; i+1 < len(data) && len(out) < outLen; i += 2 {
		b, run := data[i], int(data[i+1])
		for j := 0; j < run && len(out) < outLen; j++ {
			out = append(out, b)
		}
	}
	if len(out) < outLen {
		padding := make([]byte, outLen-len(out))
		out = append(out, padding...)
	}
	return out, nil
}
