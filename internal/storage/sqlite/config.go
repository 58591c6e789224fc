package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:migrate.db?_pragma=busy_timeout(5000)"
	//   "migrate.db" (interpreted by the driver)
	DSN string

	// Table is the target table name, e.g. "orders". "main.orders" is
	// accepted and quoted per segment.
	Table string

	// Columns is the ordered list of destination columns.
	Columns []string
}
