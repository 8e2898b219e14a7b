package migrator

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

const DefaultPageSize = 10000

type Row = map[string]any

// PaginatedQuery runs query page by page with LIMIT/OFFSET and calls fn for every row.
// The query needs a stable ORDER BY.
func PaginatedQuery(ctx context.Context, db *gorm.DB, query string, pageSize int, fn func(Row) error) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	for offset := 0; ; offset += pageSize {
		var rows []Row
		sql := fmt.Sprintf("%s LIMIT %d OFFSET %d", query, pageSize, offset)
		if err := db.WithContext(ctx).Raw(sql).Scan(&rows).Error; err != nil {
			return fmt.Errorf("paginated query at offset %d: %w", offset, err)
		}
		for _, row := range rows {
			if err := fn(row); err != nil {
				return err
			}
		}
		if len(rows) < pageSize {
			return nil
		}
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		i, _ := strconv.ParseInt(string(n), 10, 64)
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func asUint64(v any) uint64 {
	return uint64(asInt64(v))
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
