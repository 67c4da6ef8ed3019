package sql

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// reserved words never name a column or table.
var reserved = wordSet(
	"ALL", "AND", "ANY", "ARRAY", "AS", "ASC", "ASYMMETRIC", "BETWEEN", "BOTH", "BY",
	"CASE", "CAST", "CHECK", "COLLATE", "CONSTRAINT", "CREATE", "CROSS", "CUBE",
	"DEFAULT", "DESC", "DISTINCT", "DO", "ELSE", "END", "ESCAPE", "EXCEPT", "EXISTS",
	"FALSE", "FETCH", "FILTER", "FOR", "FROM", "FULL", "GROUP", "GROUPING", "HAVING",
	"ILIKE", "IN", "INNER", "INTERSECT", "INTERVAL", "INTO", "IS", "ISNULL", "JOIN",
	"LATERAL", "LEADING", "LEFT", "LIKE", "LIMIT", "MINUS", "NATURAL", "NOT", "NOTNULL",
	"NULL", "NULLS", "OFFSET", "ON", "ONLY", "OR", "ORDER", "OUTER", "OVER", "PARTITION",
	"QUALIFY", "RECURSIVE", "REGEXP", "RETURNING", "RIGHT", "RLIKE", "ROLLUP", "ROWS",
	"SELECT", "SETS", "SIMILAR", "SOME", "SYMMETRIC", "TABLE", "THEN", "TOP", "TRAILING",
	"TRUE", "UNION", "UNKNOWN", "USING", "VALUES", "WHEN", "WHERE", "WINDOW", "WITH",
	"WITHIN", "APPLY", "PIVOT", "UNPIVOT", "TABLESAMPLE", "RANGE", "GROUPS", "PRECEDING",
	"FOLLOWING", "UNBOUNDED", "CURRENT", "ROW", "EXCLUDE", "TIES", "NEXT", "FIRST", "LAST",
	"PERCENT", "MATERIALIZED", "INSERT", "UPDATE", "DELETE", "MERGE", "DROP", "ALTER",
	"TRUNCATE", "GRANT", "REVOKE", "REPLACE", "UPSERT", "COPY", "VACUUM", "EXEC", "EXECUTE",
	"CALL", "LOCK", "RENAME", "COMMENT", "ATTACH", "DETACH", "REINDEX", "CLUSTER",
	"REFRESH", "SET", "SHOW", "DECLARE", "BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT", "USE",
)

// soft words are type names, date parts and niladic functions. They are
// skipped when they do not resolve to a column in scope.
var soft = wordSet(
	// types
	"INT", "INTEGER", "SMALLINT", "BIGINT", "TINYINT", "DECIMAL", "NUMERIC", "REAL", "FLOAT",
	"DOUBLE", "PRECISION", "CHAR", "CHARACTER", "VARCHAR", "NVARCHAR", "NCHAR", "TEXT",
	"STRING", "BOOLEAN", "BOOL", "BIT", "DATE", "TIME", "TIMESTAMP", "TIMESTAMPTZ",
	"DATETIME", "DATETIME2", "DATETIMEOFFSET", "SMALLDATETIME", "INTERVAL", "JSON", "JSONB",
	"UUID", "UNIQUEIDENTIFIER", "MONEY", "BYTEA", "BLOB", "VARYING", "ZONE", "WITHOUT",
	"SIGNED", "UNSIGNED", "SERIAL", "BIGSERIAL", "REGCLASS", "MAX",
	// date parts
	"YEAR", "YEARS", "MONTH", "MONTHS", "DAY", "DAYS", "HOUR", "HOURS", "MINUTE", "MINUTES",
	"SECOND", "SECONDS", "WEEK", "WEEKS", "QUARTER", "DOW", "DOY", "EPOCH", "MILLISECOND",
	"MILLISECONDS", "MICROSECOND", "MICROSECONDS", "ISODOW", "ISOYEAR", "DECADE", "CENTURY",
	"MILLENNIUM", "DAYOFWEEK", "DAYOFYEAR", "DAYOFMONTH", "WEEKDAY", "DD", "MM", "YY",
	"YYYY", "HH", "MI", "SS", "MS", "DW", "DY", "WK", "QQ", "TIMEZONE",
	// niladic functions and literals
	"CURRENT_DATE", "CURRENT_TIME", "CURRENT_TIMESTAMP", "CURRENT_USER", "SESSION_USER",
	"LOCALTIME", "LOCALTIMESTAMP", "SYSDATE", "SYSTIMESTAMP", "USER", "NOW", "AT", "LOCAL",
	"DATA", "KEY", "BINARY", "COLLATION",
	// misc modifiers
	"NOLOCK", "READPAST", "ROWLOCK", "HOLDLOCK", "NOWAIT", "SKIP", "LOCKED", "SHARE",
	"ORDINALITY", "ASCENDING", "DESCENDING", "IGNORE", "RESPECT", "ERROR",
)

// mutating words start statements that change data or schema.
var mutating = wordSet(
	"INSERT", "UPDATE", "DELETE", "MERGE", "UPSERT", "REPLACE", "CREATE", "DROP", "ALTER",
	"TRUNCATE", "GRANT", "REVOKE", "COPY", "VACUUM", "EXEC", "EXECUTE", "CALL", "LOCK",
	"RENAME", "COMMENT", "ATTACH", "DETACH", "REINDEX", "CLUSTER", "REFRESH", "SET",
	"DECLARE", "BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT", "USE", "DO",
)

// setOperators combine two SELECTs.
var setOperators = wordSet("UNION", "INTERSECT", "EXCEPT", "MINUS")

// joinWords can precede JOIN.
var joinWords = wordSet("INNER", "LEFT", "RIGHT", "FULL", "OUTER", "CROSS", "NATURAL")
