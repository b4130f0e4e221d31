// Package store defines interfaces for the relational quotes store. The
// implementations live in internal/storage; this package must not import
// database drivers or concrete clients.
package store
