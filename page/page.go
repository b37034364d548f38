// Package page defines the fixed-size page abstraction the rest of
// the core is built on: identity by page number, a fixed byte size,
// and an alignment constraint on any buffer a transaction owns.
package page

// Size is the fixed page size in bytes (spec §3: PAGE_SIZE, 8 KiB).
const Size = 8192

// Alignment is the required alignment, in bytes, of every buffer a
// transaction allocates to hold a page or an overflow run (spec §3:
// PAGE_ALIGNMENT, 4 KiB).
const Alignment = 4096

func init() {
	if Size%Alignment != 0 {
		panic("page: Size must be a multiple of Alignment")
	}
}

// Page is a handle to one page or overflow run: a page number, the
// bytes backing it, and the logical overflow size in bytes. A Page
// returned from a read path points into the file's memory mapping and
// must not be mutated; a Page returned from a write path owns a
// freshly allocated, aligned buffer.
type Page struct {
	Num          uint64
	Address      []byte
	OverflowSize uint32
}

// PageCount returns ceil(overflowSize / Size), the number of pages an
// overflow run of the given byte size occupies. A zero overflowSize is
// treated as exactly one page.
func PageCount(overflowSize uint32) uint32 {
	if overflowSize == 0 {
		return 1
	}
	n := overflowSize / Size
	if overflowSize%Size != 0 {
		n++
	}
	return n
}

// ByteSize returns the aligned buffer size in bytes for an overflow
// run of the given byte size: PageCount(overflowSize) * Size.
func ByteSize(overflowSize uint32) int {
	return int(PageCount(overflowSize)) * Size
}
