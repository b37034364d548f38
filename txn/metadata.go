package txn

import (
	"github.com/govetachun/pagingdb/errs"
	"github.com/govetachun/pagingdb/meta"
)

// GetMetadata implements spec §4.5's txn_get_metadata: locate the
// metadata page grouping pageNum (via the modified-page table first,
// then the database), verify it is tagged as a metadata page, and
// return the entry describing pageNum.
func (t *Txn) GetMetadata(pageNum uint64) (meta.Entry, error) {
	metaPageNum := meta.MetaPageFor(pageNum)

	address, err := t.fetchMetaPageAddress(metaPageNum)
	if err != nil {
		return meta.Entry{}, err
	}
	return decodeEntry(metaPageNum, pageNum, address)
}

// ModifyMetadata implements spec §4.5's txn_modify_metadata: ensures
// the metadata page itself is modified (via ModifyPage) so the caller
// may write through it, then returns the entry describing pageNum as
// it currently stands. Callers that want to change the entry call
// SetMetadata afterwards — the idiomatic replacement for a C caller
// mutating *metadata directly.
func (t *Txn) ModifyMetadata(pageNum uint64) (meta.Entry, error) {
	t.errs.AssertEmpty()

	metaPageNum := meta.MetaPageFor(pageNum)
	if _, err := t.ModifyPage(metaPageNum, 0); err != nil {
		return meta.Entry{}, err
	}
	e, _ := t.table.Lookup(metaPageNum)
	return decodeEntry(metaPageNum, pageNum, e.Address)
}

// SetMetadata writes entry into the metadata page describing pageNum.
// The metadata page must already be dirty in this transaction (call
// ModifyMetadata for pageNum first); otherwise this fails with
// invalid-argument, since there is no buffer to write through.
func (t *Txn) SetMetadata(pageNum uint64, entry meta.Entry) error {
	metaPageNum := meta.MetaPageFor(pageNum)
	e, found := t.table.Lookup(metaPageNum)
	if !found {
		return t.fail(errs.New(errs.InvalidArgument,
			"metadata page is not modified in this transaction; call ModifyMetadata first",
			"page_num", pageNum, "meta_page_num", metaPageNum))
	}
	meta.EncodeInto(e.Address, meta.IndexWithin(pageNum), entry)
	return nil
}

func (t *Txn) fetchMetaPageAddress(metaPageNum uint64) ([]byte, error) {
	if e, found := t.table.Lookup(metaPageNum); found {
		return e.Address, nil
	}
	return t.db.GetPage(metaPageNum, 1)
}

func decodeEntry(metaPageNum, pageNum uint64, address []byte) (meta.Entry, error) {
	entries := meta.Decode(address)
	if entries[0].Type != meta.PageTag {
		return meta.Entry{}, errs.New(errs.InvalidArgument,
			"attempted to get metadata page, but wasn't marked as metadata",
			"meta_page_num", metaPageNum, "type", entries[0].Type, "page_num", pageNum)
	}
	return entries[meta.IndexWithin(pageNum)], nil
}
