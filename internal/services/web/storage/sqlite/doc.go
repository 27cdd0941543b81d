// Package sqlite stores browser-session tokens and new-user hints in SQLite.
package sqlite
