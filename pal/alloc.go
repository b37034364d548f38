package pal

import (
	"unsafe"

	"github.com/govetachun/pagingdb/errs"
)

// Allocator hands out aligned, zero-filled buffers for transaction-
// owned page buffers (spec §4.1/§5: "aligned allocator, alignment =
// PAGE_ALIGNMENT, size = multiple of PAGE_SIZE"). It is an interface,
// not a bare function, so tests can inject a failing allocator to
// exercise the hard OOM path during modify_page (the table's soft OOM
// during Expand goes through pagetable.BucketAllocator instead) — none
// of the example repos in
// the retrieval pack show this pattern because none of them need to
// simulate allocation failure; it is the natural Go idiom for making
// an otherwise-unconditional code path (make() essentially never
// fails) testable.
type Allocator interface {
	AllocateAligned(alignment, size int) ([]byte, error)
}

// DefaultAllocator allocates via the Go runtime and hand-aligns the
// result using pointer arithmetic, since make([]byte, n) makes no
// alignment guarantee.
type DefaultAllocator struct{}

// AllocateAligned returns a zero-filled slice of exactly size bytes
// whose first byte sits at an address that is a multiple of alignment.
// It over-allocates by alignment bytes and slices into the aligned
// offset; the returned slice keeps the whole backing array reachable,
// so there is nothing further to free explicitly (the Go garbage
// collector reclaims it once the slice is dropped).
func (DefaultAllocator) AllocateAligned(alignment, size int) ([]byte, error) {
	if alignment <= 0 || size <= 0 {
		return nil, errs.New(errs.InvalidArgument, "invalid aligned-allocation request",
			"alignment", alignment, "size", size)
	}
	buf := make([]byte, size+alignment)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	offset := int((uintptr(alignment) - addr%uintptr(alignment)) % uintptr(alignment))
	return buf[offset : offset+size : offset+size], nil
}

// Default is the process-wide default allocator.
var Default Allocator = DefaultAllocator{}
