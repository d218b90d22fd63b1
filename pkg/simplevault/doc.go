// Package simplevault provides versioned, encrypted, access-controlled file
// storage with pluggable repository, object store and event bus backends.
//
// It exposes a single Service interface that orchestrates uploads (validate,
// sniff, version, encrypt, store, record, notify), deletes, renames, shares
// and downloads. Implementations of repositories (memory, Postgres), object
// stores (memory, S3) and event buses (in-process realtime hub, Kafka, memory
// log) live under subpackages.
//
// Versions
//
// Every upload to an existing (owner, name) pair adds a new FileVersion with
// the next version number. Numbers are assigned by an optimistic insert
// guarded by a uniqueness constraint on (file_id, version_number), so
// concurrent uploads from several processes never produce gaps or duplicates.
//
// Access
//
// A caller may see a file if they own it or hold a Permission on it. A file
// the caller cannot see is reported as ErrFileNotFound, exactly like a file
// that does not exist.
package simplevault
