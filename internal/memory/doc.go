// Package memory owns the agent's durable learning state.
//
// State is the aggregate root: run history, the append-only mistake log,
// and the learned rules. FileStore persists it as a single JSON document
// using write-to-temp-then-rename so a crash mid-save leaves the previous
// file intact.
//
// Load distinguishes "never initialized" (missing or empty file, returns a
// fresh State) from "damaged" (ErrStorageCorrupt). Write failures surface as
// ErrStorageIO.
//
// Processes sharing a file serialize through FileStore.Lock and must reload
// after taking it.
package memory
