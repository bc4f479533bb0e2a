package store

import "strings"

// dialect captures the SQL differences between the supported backends.
type dialect interface {
	name() string
	// upsert renders the conflict clause that overwrites cols when key already exists.
	upsert(key string, cols []string) string
	tableExistsQuery() string
	schema() string
}

type sqliteDialect struct{}

func (sqliteDialect) name() string { return "sqlite" }

func (sqliteDialect) upsert(key string, cols []string) string {
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		sets = append(sets, col+" = excluded."+col)
	}
	return "ON CONFLICT(" + key + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

func (sqliteDialect) tableExistsQuery() string {
	return "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?"
}

func (sqliteDialect) schema() string { return sqliteSchemaSQL }

type mysqlDialect struct{}

func (mysqlDialect) name() string { return "mysql" }

func (mysqlDialect) upsert(_ string, cols []string) string {
	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		sets = append(sets, col+" = VALUES("+col+")")
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

func (mysqlDialect) tableExistsQuery() string {
	return "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

func (mysqlDialect) schema() string { return mysqlSchemaSQL }
