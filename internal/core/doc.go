// Package core provides the dataview backend logic: turning an uploaded
// file into a typed dataset, serving it page by page and changing column
// types on request. It has no HTTP or storage dependencies of its own;
// persistence goes through the [Store] interface.
//
// # Ingest
//
// [Service.Ingest] runs under an [UploadLimiter] slot:
//
//  1. The file is parsed by [ReadTable] (CSV through a BOM-stripping,
//     UTF-8 repairing reader, or the first sheet of an XLSX workbook).
//  2. The [Inferrer] splits the rows into chunks, analyses the chunks
//     concurrently and lets each chunk vote on a type tag per column.
//  3. Cells are converted with [ConvertCell]; cells that do not fit the
//     winning tag become null.
//  4. The dataset replaces the current one in the store.
//
// # Type tags
//
// Columns are typed with backend tags (int64, float64, bool,
// datetime64[ns], timedelta64[ns], complex128, category, object). Clients
// see them through schema.MapRawType; user overrides arrive as display
// types and are stored as schema.RawTag.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError].
// Each message carries a code for support reference (FILE, VAL, DATA, UPL,
// DB, RATE, ERR000).
package core
