// Package txn implements the transaction scope spec §3/§4.4 describes:
// a short-lived object that owns a modified-page table (pagetable),
// resolves reads against that table first and the underlying database
// otherwise, and materialises or discards its modifications on
// Commit/Close.
//
// Grounded on Govetachun-Go-DB's transaction/define.go (Begin/Commit/
// Abort against a shared KV) and concurrent-reader-writer/define.go
// (the KVReader snapshot a transaction copies out of the database at
// Begin) — generalised from that file's B-tree-specific page.updates
// map to spec's fixed open-addressed pagetable.Table, and from its
// single always-read-write KV to the narrow PageSource contract
// below, since this core's transactions are not themselves the
// B-tree's callback plumbing.
package txn

import (
	"github.com/google/uuid"
	"github.com/govetachun/pagingdb/errs"
	"github.com/govetachun/pagingdb/meta"
	"github.com/govetachun/pagingdb/obslog"
	"github.com/govetachun/pagingdb/page"
	"github.com/govetachun/pagingdb/pagetable"
	"github.com/govetachun/pagingdb/pal"
)

// Flags is the reserved flags word spec §6 describes. No bits are
// recognised in this core revision; txn_create rejects anything else
// to keep forward compatibility explicit.
type Flags uint32

// FlagsNone is the only flag value this core revision accepts.
const FlagsNone Flags = 0

const recognisedFlags Flags = 0 // {} in this revision

// PageSource is the subset of the database handle a transaction needs
// (spec §4.2's C2 contract, consumed rather than implemented here):
// read a run of pages from the mapping, and flush a dirty buffer to
// the file.
type PageSource interface {
	// GetPage returns a read-only view of numPages contiguous pages
	// starting at pageNum. numPages == 0 means exactly one page.
	GetPage(pageNum uint64, numPages uint32) (address []byte, err error)
	// WritePage writes address (sized for overflowSize, rounded up to
	// a page) to the file at pageNum.
	WritePage(pageNum uint64, address []byte, overflowSize uint32) error
}

// Txn is a transaction scope bound to one database. It is not
// thread-safe and must not be shared between goroutines (spec §5).
type Txn struct {
	ID    uuid.UUID
	db    PageSource
	flags Flags
	table *pagetable.Table
	errs  errs.Stack

	alloc pal.Allocator // overridable in tests to simulate hard OOM
}

// Create implements spec §4.4's txn_create: allocates the initial
// table state and binds the transaction to db. Fails only on an
// unrecognised flag.
func Create(db PageSource, flags Flags) (*Txn, error) {
	if flags&^recognisedFlags != 0 {
		return nil, errs.New(errs.InvalidArgument, "unrecognised transaction flags",
			"flags", uint32(flags))
	}
	t := &Txn{
		ID:    uuid.New(),
		db:    db,
		flags: flags,
		table: pagetable.New(nil),
		alloc: pal.Default,
	}
	obslog.Logger().WithFields(obslog.Fields{"txn_id": t.ID}).Debug("txn: created")
	return t, nil
}

// ModifiedPages returns the number of dirty pages currently owned by
// the transaction.
func (t *Txn) ModifiedPages() int { return t.table.ModifiedPages() }

// Drain returns and clears the transaction's accumulated diagnostic
// records (spec §4.6/§7's push/drain channel).
func (t *Txn) Drain() []*errs.Error { return t.errs.Drain() }

func (t *Txn) fail(err *errs.Error) error {
	t.errs.Push(err)
	return err
}

// GetPage implements spec §4.4's txn_get_page: resolve against the
// modified-page table first, falling back to the database's mapping
// and the metadata accessor for the overflow size. The returned
// buffer must not be mutated by the caller even when it happens to
// alias a dirty buffer this transaction owns.
func (t *Txn) GetPage(pageNum uint64) (address []byte, overflowSize uint32, err error) {
	t.errs.AssertEmpty()

	if e, found := t.table.Lookup(pageNum); found {
		return e.Address, e.OverflowSize, nil
	}

	resolved, merr := t.resolveOverflowSize(pageNum)
	if merr != nil {
		return nil, 0, t.fail(asStructured(merr, errs.IO, "failed to resolve overflow size", "page_num", pageNum))
	}

	addr, rerr := t.db.GetPage(pageNum, page.PageCount(resolved))
	if rerr != nil {
		return nil, 0, t.fail(asStructured(rerr, errs.IO, "failed to read page", "page_num", pageNum))
	}
	return addr, resolved, nil
}

// ModifyPage implements spec §4.4's txn_modify_page: returns the
// transaction's writable, owned buffer for pageNum, cloning the
// original page (or overflow run) into a freshly allocated aligned
// buffer on first access and returning the same buffer on every
// subsequent call within this transaction (idempotent — spec §8
// property 4).
//
// requestedOverflowSize is the caller's desired size in bytes; zero
// is treated as one page (page.Size). The buffer is sized to the larger
// of that request and the original page's recorded overflow size.
func (t *Txn) ModifyPage(pageNum uint64, requestedOverflowSize uint32) (address []byte, err error) {
	t.errs.AssertEmpty()

	if e, found := t.table.Lookup(pageNum); found {
		return e.Address, nil
	}

	if requestedOverflowSize == 0 {
		requestedOverflowSize = page.Size
	}

	originalOverflowSize, merr := t.resolveOverflowSize(pageNum)
	if merr != nil {
		return nil, t.fail(asStructured(merr, errs.IO, "failed to resolve overflow size", "page_num", pageNum))
	}

	wantOverflow := requestedOverflowSize
	if originalOverflowSize > wantOverflow {
		wantOverflow = originalOverflowSize
	}
	byteSize := page.ByteSize(wantOverflow)

	originalAddress, rerr := t.db.GetPage(pageNum, page.PageCount(wantOverflow))
	if rerr != nil {
		return nil, t.fail(asStructured(rerr, errs.IO, "failed to read original page", "page_num", pageNum))
	}

	buf, aerr := t.alloc.AllocateAligned(page.Alignment, byteSize)
	if aerr != nil {
		return nil, t.fail(asStructured(aerr, errs.OutOfMemory,
			"failed to allocate copy-on-write page buffer", "page_num", pageNum, "bytes", byteSize))
	}
	copy(buf, originalAddress[:byteSize])

	if ierr := t.table.Insert(pagetable.Entry{
		PageNum:      pageNum,
		Address:      buf,
		OverflowSize: wantOverflow,
	}); ierr != nil {
		// Partial-failure rule (spec §4.4): the buffer we just allocated
		// is adopted by the table or dropped here — never left half-wired.
		return nil, t.fail(asStructured(ierr, errs.InvalidArgument,
			"failed to record modified page", "page_num", pageNum))
	}

	obslog.Logger().WithFields(obslog.Fields{
		"txn_id": t.ID, "page_num": pageNum, "bytes": byteSize,
	}).Trace("txn: modified page")
	return buf, nil
}

// Commit implements spec §4.4's txn_commit: write every dirty buffer
// to the database, stopping at the first I/O failure. On success, each
// written buffer's ownership transfers away and its bucket is cleared.
// The transaction remains open either way; the caller must still Close.
func (t *Txn) Commit() error {
	t.errs.AssertEmpty()

	var writeErr *errs.Error
	var written []uint64
	t.table.Range(func(e pagetable.Entry) {
		if writeErr != nil {
			return
		}
		if err := t.db.WritePage(e.PageNum, e.Address, e.OverflowSize); err != nil {
			writeErr = asStructured(err, errs.IO, "failed to write page during commit", "page_num", e.PageNum)
			return
		}
		written = append(written, e.PageNum)
	})
	for _, pageNum := range written {
		t.table.Clear(pageNum)
	}
	if writeErr != nil {
		return t.fail(writeErr)
	}
	obslog.Logger().WithFields(obslog.Fields{
		"txn_id": t.ID, "pages_written": len(written),
	}).Debug("txn: committed")
	return nil
}

// Close implements spec §4.4's txn_close: idempotent release of every
// remaining owned buffer. It never retries I/O and does not clear any
// previously drained diagnostics — it is a pure release.
func (t *Txn) Close() error {
	if t.table == nil {
		return nil
	}
	t.table = nil
	obslog.Logger().WithFields(obslog.Fields{"txn_id": t.ID}).Debug("txn: closed")
	return nil
}

func asStructured(err error, fallbackKind errs.Kind, msg string, kv ...any) *errs.Error {
	if se, ok := err.(*errs.Error); ok {
		return se
	}
	return errs.Wrap(err, fallbackKind, msg, kv...)
}

// resolveOverflowSize implements spec §4.5's self-recursion guard and
// otherwise defers to the metadata accessor.
func (t *Txn) resolveOverflowSize(pageNum uint64) (uint32, error) {
	if meta.IsMetaPage(pageNum) {
		return page.Size, nil
	}
	entry, err := t.GetMetadata(pageNum)
	if err != nil {
		return 0, err
	}
	return entry.OverflowSize, nil
}
