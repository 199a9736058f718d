// Package store provides SQLite-backed durable storage for session records.
//
// Store implements persist.Storage. Each puzzle identity maps to one row
// holding the record's exported JSON; a Put replaces the row wholesale and
// bumps its revision.
//
// # Deterministic Listings
//
// Identities and summaries are always returned ORDER BY identity COLLATE
// BINARY so listings match across runs and across storage backends.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
