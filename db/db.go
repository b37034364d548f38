// Package db is the database handle spec §3's C1 component describes:
// the owner of the memory-mapped file and the entry point for starting
// transactions. It is grounded on Govetachun-Go-DB's
// concurrent-reader-writer/define.go KV struct — generalised from that
// file's reader/writer/freelist bookkeeping (a higher layer spec §1
// defers) down to the single-writer, no-locking contract spec §5
// requires: one DB, opened once, handing out Txn values that must not
// outlive a single goroutine's use of it.
package db

import (
	"github.com/govetachun/pagingdb/obslog"
	"github.com/govetachun/pagingdb/pal"
	"github.com/govetachun/pagingdb/txn"
)

// Options configures Open. The zero value is a usable default.
type Options struct {
	// MinBytes ensures the file is at least this large before any
	// page is addressed, avoiding a page-0 chicken/egg grow on first
	// use. Zero means "whatever the file already is."
	MinBytes int
}

// DB owns the memory-mapped file backing every transaction's pages. It
// is not safe for concurrent use (spec §5: single-writer, no
// page-level locking); callers serialise their own access.
type DB struct {
	file *pal.File
	path string
}

// Open opens or creates the database file at path and maps it.
func Open(path string, opts Options) (*DB, error) {
	f, err := pal.Open(path, opts.MinBytes)
	if err != nil {
		return nil, err
	}
	obslog.Logger().WithFields(obslog.Fields{"path": path}).Info("db: opened")
	return &DB{file: f, path: path}, nil
}

// Close unmaps the file and closes the handle. It does not flush any
// in-flight transaction; callers must Commit or Close every Txn first.
func (d *DB) Close() error {
	if err := d.file.Close(); err != nil {
		return err
	}
	obslog.Logger().WithFields(obslog.Fields{"path": d.path}).Info("db: closed")
	return nil
}

// Begin implements spec §4.4's txn_create entry point from the
// database's side: it hands d, as a txn.PageSource, to a freshly
// created transaction.
func (d *DB) Begin(flags txn.Flags) (*txn.Txn, error) {
	t, err := txn.Create(d, flags)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetPage implements txn.PageSource by delegating to the underlying
// mapped file.
func (d *DB) GetPage(pageNum uint64, numPages uint32) ([]byte, error) {
	return d.file.GetPage(pageNum, numPages)
}

// WritePage implements txn.PageSource by delegating to the underlying
// mapped file.
func (d *DB) WritePage(pageNum uint64, address []byte, overflowSize uint32) error {
	return d.file.WritePage(pageNum, address, overflowSize)
}

// Size returns the current file size in bytes, for tests and
// diagnostics.
func (d *DB) Size() int { return d.file.Size() }

// Sync flushes the file to stable storage. Not called by Commit (spec
// §9: commit writes bytes but provides no durability guarantee beyond
// that); exposed for a caller that wants one.
func (d *DB) Sync() error { return d.file.Sync() }
