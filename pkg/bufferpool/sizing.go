package bufferpool

import (
	"github.com/dustin/go-humanize"

	"quiverdb/pkg/logging"
	"quiverdb/pkg/page"
)

// defaultBufferBytes is used when physical memory can't be detected and
// no explicit initial size was configured.
const defaultBufferBytes = 64 * 1024 * 1024

// DetermineBufferSize implements spec.md §6's buffer auto-sizing: an
// explicit initialSizeBytes wins outright; otherwise the pool is sized
// to memoryFraction of total physical RAM, falling back to
// defaultBufferBytes if physical memory can't be determined. The result
// is a page count, since Manager's capacity is measured in pages.
func DetermineBufferSize(initialSizeBytes int64, memoryFraction float64, log *logging.Logger) int {
	if log == nil {
		log = logging.Noop()
	}

	if initialSizeBytes > 0 {
		pages := int(initialSizeBytes / page.Size)
		if pages < 1 {
			pages = 1
		}
		log.Infof("buffer pool sized from explicit initial_size_bytes=%s (%d pages)", humanize.Bytes(uint64(initialSizeBytes)), pages)
		return pages
	}

	total, ok := totalPhysicalMemory()
	if !ok || total == 0 {
		pages := defaultBufferBytes / page.Size
		log.Infof("buffer pool sized from default %s (physical memory undetectable, %d pages)", humanize.Bytes(defaultBufferBytes), pages)
		return pages
	}

	budget := uint64(float64(total) * memoryFraction)
	pages := int(budget / page.Size)
	if pages < 1 {
		pages = 1
	}
	log.Infof("buffer pool sized from %s total RAM x %.2f fraction = %s (%d pages)",
		humanize.Bytes(total), memoryFraction, humanize.Bytes(budget), pages)
	return pages
}
