// Package sqlite stores the chunk half of a saved index in chunks.db,
// using the pure Go modernc.org/sqlite driver.
//
// Each chunk row keeps its text, its position in the source document, its
// metadata as JSON, and an ordinal. Ordinals follow the order of the
// vector payload, so row i pairs with vector i; indexdir checks this on
// load. Documents are stored once and referenced by their chunks.
//
// The schema lives in migrations/*.sql and is applied in version order
// when a database is opened. The journal is deleted on commit so that a
// closed database is a single file that can be moved with its directory.
package sqlite
