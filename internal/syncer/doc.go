// Package syncer reconciles a local library with its remote copy.
//
// A library run (SyncBooks) compares the two manifests by content hash and
// timestamp. Rows newer on the remote are pulled: tombstones remove the
// local body and cover, live books get every small per-book file but not
// the body, which is fetched on demand (Ensure, EnsureBody). Rows newer
// locally are pushed. The pull phase is all-or-nothing with respect to
// errors; the push phase is best effort and reports ErrPartialSync through
// the notification sink, since running sync again completes it.
//
// Reading state lives in <hash>/config.json on both sides and is reconciled
// by SyncBook with merge.Config. Every read-merge-write of one book's config
// runs under a per-hash lock; concurrent library runs share one execution.
package syncer
