// Package meta defines the metadata-entry record spec §3/§4.5
// describes: a small fixed-size record, many per metadata page, used
// by the core only to resolve a page's overflow-run length. Anything
// beyond that (free-space bookkeeping, richer type tagging) belongs
// to a higher layer spec §1 explicitly defers.
package meta

// EntrySize is the on-disk size, in bytes, of one Entry: a 4-byte
// type tag and a 4-byte overflow size.
const EntrySize = 8

// PageTag identifies a page as a metadata page. The first Entry in a
// metadata page always carries this tag, describing the metadata page
// itself (spec §6: "the first entry carrying the type tag for the
// page itself").
const PageTag uint32 = 1

// EntriesPerPage is how many Entry records a single metadata page
// holds, and therefore how many pages (including itself) one metadata
// page groups: page.Size / EntrySize.
const EntriesPerPage = 1024 // keep in sync with page.Size/EntrySize below

func init() {
	// EntriesPerPage must track page.Size/EntrySize exactly; this
	// package does not import page, so the relationship is asserted
	// here against the literal.
	const pageSize = 8192
	if EntriesPerPage*EntrySize != pageSize {
		panic("meta: EntriesPerPage is out of sync with page.Size")
	}
}

// GroupMask is PAGES_IN_METADATA_MASK from spec §3: page_num & GroupMask
// yields the page number of the metadata page describing page_num, and
// page_num &^ GroupMask is the entry index within that metadata page.
const GroupMask = ^uint64(EntriesPerPage - 1)

// Entry is one metadata record: its Type tag and the OverflowSize, in
// bytes, of the page it describes.
type Entry struct {
	Type         uint32
	OverflowSize uint32
}

// MetaPageFor returns the page number of the metadata page that
// describes pageNum.
func MetaPageFor(pageNum uint64) uint64 {
	return pageNum & GroupMask
}

// IndexWithin returns pageNum's entry index within its metadata page.
func IndexWithin(pageNum uint64) uint64 {
	return pageNum &^ GroupMask
}

// IsMetaPage reports whether pageNum is itself a metadata page (i.e.
// it describes itself, per spec §4.5's self-recursion guard).
func IsMetaPage(pageNum uint64) bool {
	return MetaPageFor(pageNum) == pageNum
}

// Decode reads the Entry array out of a metadata page's raw bytes.
func Decode(raw []byte) []Entry {
	entries := make([]Entry, EntriesPerPage)
	for i := range entries {
		off := i * EntrySize
		entries[i] = Entry{
			Type:         leUint32(raw[off : off+4]),
			OverflowSize: leUint32(raw[off+4 : off+8]),
		}
	}
	return entries
}

// EncodeInto writes entry at index i of a metadata page's raw bytes.
func EncodeInto(raw []byte, i uint64, e Entry) {
	off := int(i) * EntrySize
	leuPut32(raw[off:off+4], e.Type)
	leuPut32(raw[off+4:off+8], e.OverflowSize)
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leuPut32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
