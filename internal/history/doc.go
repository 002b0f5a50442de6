// Package history records every render attempt made by manimate.
//
// A Record is written after each attempt (the primary scene and, when it
// fails, the fallback). Stores are append-only; nothing in the request path
// reads them back, so a broken store degrades to a logged warning rather than
// a failed request.
//
// Two backends exist: SQLite via modernc.org/sqlite (the default, a single
// file next to the work directory) and Postgres via pgx for deployments that
// run several servers against one ledger. Open selects between them by
// driver name.
package history
