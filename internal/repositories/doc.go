// Package repositories implements SQLite persistence for the console's local client state.
//
// Key Implementations:
//   - [KeyValueRepository] : fixed-key string storage backing the durable credential store
//   - [SessionEventRepository] : append-only audit trail of session transitions
//
// Both operate on tables created by the embedded migrations in the shared package.
package repositories
