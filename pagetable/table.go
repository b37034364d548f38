// Package pagetable implements the modified-page table spec §3/§4.3
// describes: an open-addressed, linear-probing hash table keyed by
// page number, holding the dirty buffers a transaction owns, with
// amortised doubling.
//
// spec §9's design notes describe the C source's single contiguous
// allocation — "[transaction header | bucket[0..n-1]]" — and say the
// idiomatic replacement is "to keep the table inside the transaction
// object and use an owning handle that can swap its internal pointer."
// A Go slice already is that owning, swappable handle, so Table keeps
// its buckets in a plain []Entry and Expand reassigns it; there is no
// hand-rolled flexible-array layout to maintain, and no explicit free
// of the old backing array (the garbage collector reclaims it once
// the slice is replaced).
package pagetable

import (
	"github.com/govetachun/pagingdb/errs"
)

// initialBuckets is the table's starting size (spec §3: "n >= 8 initially").
const initialBuckets = 8

// Entry is one bucket's contents: a page number, its owned buffer, and
// the overflow size in bytes. A zero-value Entry (Address == nil) is
// an empty bucket.
type Entry struct {
	PageNum      uint64
	Address      []byte
	OverflowSize uint32
}

func (e Entry) empty() bool { return e.Address == nil }

// BucketAllocator is the general allocator the table's backing store
// uses (spec §5: "the table backing store uses the general
// allocator" — as opposed to the aligned allocator page buffers use).
// It is an interface for the same testability reason pal.Allocator is:
// nothing in the retrieval pack needs to simulate allocation failure,
// but spec's testable properties do (table Expand tolerating OOM).
type BucketAllocator interface {
	AllocateBuckets(n int) ([]Entry, error)
}

type defaultBucketAllocator struct{}

func (defaultBucketAllocator) AllocateBuckets(n int) ([]Entry, error) {
	return make([]Entry, n), nil
}

// DefaultBucketAllocator is the process-wide default.
var DefaultBucketAllocator BucketAllocator = defaultBucketAllocator{}

// resizeStatus mirrors the three-outcome enum (hash_resize_status) the
// original C expand_hash_table returns, named in spec §4.3's Expand
// operation.
type resizeStatus int

const (
	resizeOK resizeStatus = iota
	resizeNoMem
	resizeFail
)

// Table is the modified-page table. The zero value is not usable;
// construct one with New.
type Table struct {
	buckets  []Entry
	modified int
	alloc    BucketAllocator
}

// New returns a Table with the initial bucket count, using alloc for
// its backing store. A nil alloc uses DefaultBucketAllocator.
func New(alloc BucketAllocator) *Table {
	if alloc == nil {
		alloc = DefaultBucketAllocator
	}
	buckets, _ := alloc.AllocateBuckets(initialBuckets) // initial alloc never fails in practice
	return &Table{buckets: buckets, alloc: alloc}
}

// NumBuckets returns n, the current bucket count (always a power of two).
func (t *Table) NumBuckets() int { return len(t.buckets) }

// ModifiedPages returns the number of non-empty buckets.
func (t *Table) ModifiedPages() int { return t.modified }

// Lookup implements spec §4.3's Lookup operation: linear probing from
// pageNum mod n, stopping at the first empty bucket or after n steps.
func (t *Table) Lookup(pageNum uint64) (Entry, bool) {
	n := len(t.buckets)
	start := int(pageNum % uint64(n))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		b := t.buckets[idx]
		if b.empty() {
			return Entry{}, false
		}
		if b.PageNum == pageNum {
			return b, true
		}
	}
	return Entry{}, false
}

// Insert implements spec §4.3's Insert operation. It must only be
// called after Lookup has returned not-found for e.PageNum.
func (t *Table) Insert(e Entry) error {
	placed, err := t.tryPlace(e)
	if err != nil {
		return err
	}
	if placed {
		return t.afterInsertCheckLoadFactor()
	}
	// Table is at 100% capacity (step 5): expand, then retry placement.
	switch t.expand() {
	case resizeOK:
		return t.Insert(e)
	case resizeNoMem:
		return errs.New(errs.OutOfMemory, "modified-page table is full and cannot grow",
			"page_num", e.PageNum, "buckets", len(t.buckets))
	default:
		return errs.New(errs.InvalidArgument, "failed to grow modified-page table",
			"page_num", e.PageNum, "buckets", len(t.buckets))
	}
}

// tryPlace walks buckets from e.PageNum mod n and installs e in the
// first empty bucket found. It fails with invalid-argument if it
// encounters e.PageNum already present (spec §4.3 step 1 — Insert is
// only ever called after Lookup returned not-found, so this indicates
// a caller contract violation, surfaced as an error rather than a
// panic since it is still a spec-named failure mode, not a bug in
// this package). It returns placed == false if no empty bucket exists
// (the table has been scanned in full).
func (t *Table) tryPlace(e Entry) (placed bool, err error) {
	n := len(t.buckets)
	start := int(e.PageNum % uint64(n))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		b := &t.buckets[idx]
		if !b.empty() && b.PageNum == e.PageNum {
			return false, errs.New(errs.InvalidArgument,
				"attempted to allocate entry for page already present in table",
				"page_num", e.PageNum)
		}
		if b.empty() {
			*b = e
			t.modified++
			return true, nil
		}
	}
	return false, nil
}

// afterInsertCheckLoadFactor implements spec §4.3 steps 3-4: after a
// successful placement, expand if the load factor invariant demands
// it, tolerating OOM during that expansion.
//
// spec §9's design notes flag the source's threshold check — done
// against modified_pages + 1, after modified_pages has already been
// incremented for the just-placed entry — as an off-by-one to
// re-derive rather than copy. t.modified has already been incremented
// by tryPlace by the time this runs, so it already counts the entry
// just placed; comparing it directly against the load-factor bound
// is the correct, non-doubled-offset check.
func (t *Table) afterInsertCheckLoadFactor() error {
	n := len(t.buckets)
	maxPages := n * 3 / 4
	if t.modified < maxPages {
		return nil
	}
	switch t.expand() {
	case resizeOK, resizeNoMem:
		// Either the table grew, or it didn't and we deliberately let it
		// fill past 75% rather than fail an otherwise-successful insert.
		return nil
	default:
		return errs.New(errs.InvalidArgument, "failed to grow modified-page table after insert",
			"buckets", n)
	}
}

// expand implements spec §4.3's Expand operation.
func (t *Table) expand() resizeStatus {
	oldN := len(t.buckets)
	newN := oldN * 2
	newBuckets, err := t.alloc.AllocateBuckets(newN)
	if err != nil {
		return resizeNoMem
	}
	for _, b := range t.buckets {
		if b.empty() {
			continue
		}
		if !place(newBuckets, b) {
			// Sizing is supposed to make this impossible; abort without
			// mutating t.buckets so the caller's existing table survives.
			return resizeFail
		}
	}
	t.buckets = newBuckets
	return resizeOK
}

// place installs e into the first empty bucket found by linear probing
// from e.PageNum mod len(buckets), returning false if the table is
// completely full.
func place(buckets []Entry, e Entry) bool {
	n := len(buckets)
	start := int(e.PageNum % uint64(n))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if buckets[idx].empty() {
			buckets[idx] = e
			return true
		}
	}
	return false
}

// Range calls fn for every non-empty bucket, in bucket order. fn must
// not mutate the table; use Clear for that.
func (t *Table) Range(fn func(Entry)) {
	for _, b := range t.buckets {
		if !b.empty() {
			fn(b)
		}
	}
}

// Clear empties bucket idx found by page number, if present, without
// shrinking the table. Used by commit to release ownership of a
// buffer once it has been written out.
func (t *Table) Clear(pageNum uint64) {
	n := len(t.buckets)
	start := int(pageNum % uint64(n))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		b := &t.buckets[idx]
		if b.empty() {
			return
		}
		if b.PageNum == pageNum {
			*b = Entry{}
			t.modified--
			return
		}
	}
}
