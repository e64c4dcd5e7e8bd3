// Package core provides the business logic for CSV transaction import and export.
//
// The package has no transport or storage dependencies. Web handlers, the
// CLI and tests drive it through [Service], or through [Importer] when the
// caller already holds parsed rows.
//
// # Import pipeline
//
// An import runs these steps in order:
//
//  1. [Resolver.Decode] picks the first encoding that decodes the bytes
//     (UTF-8, Windows-1252, ISO-8859-1, US-ASCII) and strips a BOM
//  2. [SplitLines] and [ParseLine] tokenize the text
//  3. [ValidateHeader] checks the header row and locates each column
//  4. [Importer.ImportRows] validates each row, creates missing categories,
//     resolves assets, drops duplicates via [Reconciler] and inserts the rest
//
// File-level problems stop the import before anything is written. Row-level
// problems are collected into [RowErrors] while the remaining rows are still
// processed; rows inserted before a bad row stay committed.
//
// # Matching names
//
// Category, asset and operation names are compared through [Normalize], so
// "💰 Savings" and "savings" refer to the same asset. Accented letters are
// significant: "Sávings" is a different asset.
//
// # Preview and audit
//
// [Service.Preview] runs the same checks without writing, and also reports
// rows that repeat each other inside the file. When an [AuditLog] is
// configured every import attempt is recorded, and
// [Service.StartAuditRetention] expires old entries.
//
// # Export
//
// [Export] writes the same CSV format the importer reads, so an exported
// file re-imports as all duplicates.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: File errors (size, encoding, missing, empty)
//   - HDR001-HDR002: Header errors
//   - ROW001, DUP001: Row errors and skipped duplicates
//   - DB001-DB006: Database errors
//   - UPL002-UPL005: Import slot and cancellation errors
//   - REQ001: Invalid query parameter
package core
