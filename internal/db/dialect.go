package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Dialect names as reported by the gorm dialectors in use.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// DialectName returns the active database dialect name, or "" when the
// connection carries no dialector.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == "sqlite"
}

// ContainsFold builds a case-insensitive substring match clause for column.
// SQLite LIKE is only case-insensitive for ASCII by default, so both sides
// are lowered there; PostgreSQL uses ILIKE.
func ContainsFold(conn *gorm.DB, column, needle string) (string, string) {
	if IsSQLite(conn) {
		return fmt.Sprintf("LOWER(%s) LIKE ?", column), "%" + strings.ToLower(needle) + "%"
	}
	return fmt.Sprintf("%s ILIKE ?", column), "%" + needle + "%"
}

// JSONFieldEquals builds an equality clause against a text field inside a
// JSON column, using json_extract on SQLite and ->> on PostgreSQL. The path
// is dot-separated relative to the column root.
func JSONFieldEquals(conn *gorm.DB, column, path string) string {
	if IsSQLite(conn) {
		return fmt.Sprintf("json_extract(%s, '$.%s') = ?", column, path)
	}
	parts := strings.Split(path, ".")
	expr := column
	for i, part := range parts {
		op := "->"
		if i == len(parts)-1 {
			op = "->>"
		}
		expr = fmt.Sprintf("%s%s'%s'", expr, op, part)
	}
	return expr + " = ?"
}
