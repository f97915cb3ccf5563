//go:build cgo_sqlite

package sqlite

import (
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

const (
	driverName = "sqlite3"
	driverType = "cgo"
)
