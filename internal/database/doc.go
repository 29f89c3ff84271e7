// Package database provides the SQLite run archive of trustcrawl.
//
// The RunDB stores:
//   - Finished trust reports with their scores, one row per request
//   - The crawled edge list of each run, for later inspection
//
// SQLite comes from modernc.org/sqlite, which needs no cgo, so the archive is
// a single file under the XDG data directory. The HTTP service never writes
// to it; only `trustcrawl crawl --save` does.
package database
