package mysql

import "database/sql"

// nullString maps "" to SQL NULL so optional columns stay NULL until written.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func fromNull(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
