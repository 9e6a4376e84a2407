package db

import "strings"

// keywords that cannot appear bare as a table or column name.
var keywords = map[string]bool{
	"ABORT": true, "ACTION": true, "ADD": true, "AFTER": true, "ALL": true,
	"ALTER": true, "ANALYZE": true, "AND": true, "AS": true, "ASC": true,
	"ATTACH": true, "AUTOINCREMENT": true, "BEFORE": true, "BEGIN": true,
	"BETWEEN": true, "BY": true, "CASCADE": true, "CASE": true, "CAST": true,
	"CHECK": true, "COLLATE": true, "COLUMN": true, "COMMIT": true,
	"CONFLICT": true, "CONSTRAINT": true, "CREATE": true, "CROSS": true,
	"CURRENT_DATE": true, "CURRENT_TIME": true, "CURRENT_TIMESTAMP": true,
	"DATABASE": true, "DEFAULT": true, "DEFERRABLE": true, "DEFERRED": true,
	"DELETE": true, "DESC": true, "DETACH": true, "DISTINCT": true, "DROP": true,
	"EACH": true, "ELSE": true, "END": true, "ESCAPE": true, "EXCEPT": true,
	"EXCLUSIVE": true, "EXISTS": true, "EXPLAIN": true, "FAIL": true, "FOR": true,
	"FOREIGN": true, "FROM": true, "FULL": true, "GLOB": true, "GROUP": true,
	"HAVING": true, "IF": true, "IGNORE": true, "IMMEDIATE": true, "IN": true,
	"INDEX": true, "INDEXED": true, "INITIALLY": true, "INNER": true,
	"INSERT": true, "INSTEAD": true, "INTERSECT": true, "INTO": true, "IS": true,
	"ISNULL": true, "JOIN": true, "KEY": true, "LEFT": true, "LIKE": true,
	"LIMIT": true, "MATCH": true, "NATURAL": true, "NO": true, "NOT": true,
	"NOTNULL": true, "NULL": true, "OF": true, "OFFSET": true, "ON": true,
	"OR": true, "ORDER": true, "OUTER": true, "PLAN": true, "PRAGMA": true,
	"PRIMARY": true, "QUERY": true, "RAISE": true, "RECURSIVE": true,
	"REFERENCES": true, "REGEXP": true, "REINDEX": true, "RELEASE": true,
	"RENAME": true, "REPLACE": true, "RESTRICT": true, "RETURNING": true,
	"RIGHT": true, "ROLLBACK": true, "ROW": true, "ROWS": true, "SAVEPOINT": true,
	"SELECT": true, "SET": true, "TABLE": true, "TEMP": true, "TEMPORARY": true,
	"THEN": true, "TO": true, "TRANSACTION": true, "TRIGGER": true, "UNION": true,
	"UNIQUE": true, "UPDATE": true, "USING": true, "VACUUM": true, "VALUES": true,
	"VIEW": true, "VIRTUAL": true, "WHEN": true, "WHERE": true, "WINDOW": true,
	"WITH": true, "WITHOUT": true,
}

// QuoteIdent returns ident unchanged when it is a plain identifier and
// otherwise wraps it in double quotes, escaping embedded quotes.
func QuoteIdent(ident string) string {
	if isPlainIdent(ident) {
		return ident
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// QuoteIdents applies QuoteIdent to each name and joins them with ", ".
func QuoteIdents(idents []string) string {
	quoted := make([]string, len(idents))
	for i, ident := range idents {
		quoted[i] = QuoteIdent(ident)
	}
	return strings.Join(quoted, ", ")
}

func isPlainIdent(ident string) bool {
	if ident == "" || keywords[strings.ToUpper(ident)] {
		return false
	}
	for i := 0; i < len(ident); i++ {
		c := ident[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
