// Package postgres provides the PostgreSQL implementation of store.TaskStore
// together with the embedded schema migrations. Status changes are a single
// conditional UPDATE, which gives row-level compare-and-set semantics without
// holding locks across statements.
package postgres
