// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init function of each concrete backend, which registers
// its factory with the storage package. The kinds made available are:
//
//   - "postgres" (csvmigrate/internal/storage/postgres)
//   - "mssql"    (csvmigrate/internal/storage/mssql)
//   - "mysql"    (csvmigrate/internal/storage/mysql)
//   - "sqlite"   (csvmigrate/internal/storage/sqlite)
//   - "memory"   (csvmigrate/internal/storage/memory)
//
// A binary that needs only a subset can import the backends it wants directly.
package all

import (
	_ "csvmigrate/internal/storage/memory"
	_ "csvmigrate/internal/storage/mssql"
	_ "csvmigrate/internal/storage/mysql"
	_ "csvmigrate/internal/storage/postgres"
	_ "csvmigrate/internal/storage/sqlite"
)
