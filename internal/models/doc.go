// Package models defines the core domain models for the party ledger.
//
// # Documents
//
// Four document kinds live in the replicated store:
//   - Party: participants plus the ordered list of chunk references
//   - ExpenseChunk: a bounded segment of a party's expense history
//   - ExpenseChunkBalances: precomputed balances for one chunk
//   - PartyList: the party ids known to one device
//
// Each persisted document carries an optional integer schema version
// (absent means version 0). Versions only move forward; the migration
// runner enforces that.
//
// # Design principles
//
// 1. All monetary values are integer cents. No floating amounts are persisted.
// 2. Models are plain data; behavior lives in the balance, ledger and
//    migrate packages.
// 3. Relationships use id strings, never pointers, so documents stay
//    serializable as flat JSON-like trees.
package models
