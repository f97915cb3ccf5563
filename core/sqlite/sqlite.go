// Package sqlite selects the SQLite driver for the statistics store.
// The default build uses the pure Go modernc.org/sqlite driver; building
// with -tags cgo_sqlite (and CGO_ENABLED=1) swaps in mattn/go-sqlite3.
// Use Open rather than sql.Open so the registered driver name matches
// the build mode.
package sqlite

import (
	"database/sql"
	"fmt"
)

// DriverName returns the registered SQL driver name for this build.
func DriverName() string {
	return driverName
}

// DriverType identifies the implementation: "purego" or "cgo".
func DriverType() string {
	return driverType
}

// IsCGO reports whether the mattn/go-sqlite3 driver is compiled in.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database with the build's driver.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenReadOnly opens a SQLite database in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	return Open(path + "?mode=ro")
}

// MustOpen opens a SQLite database and panics on error. Intended for
// tests and initialization where failure is unrecoverable.
func MustOpen(dataSourceName string) *sql.DB {
	db, err := Open(dataSourceName)
	if err != nil {
		panic(fmt.Sprintf("sqlite: failed to open %s: %v", dataSourceName, err))
	}
	return db
}
