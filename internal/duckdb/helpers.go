package duckdb

import (
	"fmt"
	"strings"
	"time"
)

// InterpolateQuery inlines args into query for debug logging. The result is
// not safe to execute.
func InterpolateQuery(query string, args []any) string {
	for _, arg := range args {
		query = strings.Replace(query, "?", literal(arg), 1)
	}
	return strings.Join(strings.Fields(query), " ")
}

func literal(arg any) string {
	switch v := arg.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case time.Time:
		return "'" + v.UTC().Format(time.RFC3339Nano) + "'"
	case fmt.Stringer:
		return "'" + strings.ReplaceAll(v.String(), "'", "''") + "'"
	default:
		return fmt.Sprintf("'%v'", v)
	}
}
