// Package store provides the persistent alias store.
//
// Operators name chord progressions and controller presets once and replay
// them by name from chat. Aliases live in SQLite with WAL mode so lookups
// stay cheap while the bot writes. Names are Unicode case-folded, so
// "MySong" and "mysong" are the same alias.
package store
