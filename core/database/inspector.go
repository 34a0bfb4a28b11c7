package database

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Field   string
	Type    string
	NotNull bool
	Default *string
	Pk      bool
}

// GetTableColumns retrieves the column definitions for a given table.
// A missing table yields an empty slice, not an error.
func GetTableColumns(db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	type sqliteColumn struct {
		Cid       int
		Name      string
		Type      string
		Notnull   int
		DfltValue *string
		Pk        int
	}

	var rows []sqliteColumn
	if err := db.Raw(fmt.Sprintf("PRAGMA table_info('%s')", strings.ReplaceAll(tableName, "'", "''"))).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
	}

	columns := make([]ColumnInfo, 0, len(rows))
	for _, col := range rows {
		columns = append(columns, ColumnInfo{
			Field:   strings.ToLower(col.Name),
			Type:    strings.ToLower(col.Type),
			NotNull: col.Notnull == 1,
			Default: col.DfltValue,
			Pk:      col.Pk > 0,
		})
	}
	return columns, nil
}

// SchemaError lists the tables and columns a database is missing.
type SchemaError struct {
	// Missing maps a table to its missing columns. A table missing entirely maps to nil.
	Missing map[string][]string
}

func (e *SchemaError) Error() string {
	tables := make([]string, 0, len(e.Missing))
	for t := range e.Missing {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		if e.Missing[t] == nil {
			parts = append(parts, t+" (table)")
			continue
		}
		parts = append(parts, t+"."+strings.Join(e.Missing[t], ","))
	}
	return "schema mismatch: missing " + strings.Join(parts, "; ")
}

// RequireColumns verifies that each table exists with at least the given columns.
// It returns a *SchemaError describing everything missing.
func RequireColumns(db *gorm.DB, required map[string][]string) error {
	missing := make(map[string][]string)

	for table, cols := range required {
		columns, err := GetTableColumns(db, table)
		if err != nil {
			return err
		}
		if len(columns) == 0 {
			missing[table] = nil
			continue
		}

		have := make(map[string]struct{}, len(columns))
		for _, c := range columns {
			have[c.Field] = struct{}{}
		}
		for _, c := range cols {
			if _, ok := have[strings.ToLower(c)]; !ok {
				missing[table] = append(missing[table], c)
			}
		}
	}

	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}
