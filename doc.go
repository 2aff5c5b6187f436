// Package blobkeep provides a small blob store that keeps each blob as a
// single file under one storage root, with a metadata index beside it.
//
// blobkeep implements the core blob operations (put, get, stat, delete,
// list) with atomic replacement, per-key serialization of writers and
// SHA256-based ETags.
//
// # Key Components
//
//   - BlobService: storage manager combining the metadata index and file storage
//   - MetaDataRepo: interface for metadata persistence (SQLite, PostgreSQL, bbolt)
//   - FileStorage: interface for blob file operations under the storage root
//
// # Keys
//
// A key is 1 to MaxKeyLength bytes of ASCII letters, digits, '.', '-' and
// '_', starting with a letter or digit and never containing "..". Keys that
// do not match are rejected with ErrInvalidKey before any file is touched.
//
// # Example Usage
//
//	service, err := blobkeep.NewBlobService(repo, storage, blobkeep.ServiceConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store a blob
//	info, created, err := service.Put(ctx, "report.pdf", reader)
//
//	// Read it back
//	info, content, err := service.Get(ctx, "report.pdf")
//	defer content.Close()
//
// See the http package for the REST API and the database packages for the
// metadata backends.
package blobkeep
