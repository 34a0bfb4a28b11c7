package checks

import (
	"fmt"
	"sort"
	"strings"

	"marvin-sync/core/database"

	"gorm.io/gorm"
)

// LibraryReport is the result of a library schema check.
type LibraryReport struct {
	Matched bool                   `json:"matched"`
	Tables  map[string]TableReport `json:"tables"`
	Fields  FieldReport            `json:"fields"`
	Errors  []string               `json:"errors"`
}

// TableReport lists the missing columns of one table.
type TableReport struct {
	MissingColumns []string `json:"missing_columns"`
	Status         string   `json:"status"` // "ok", "missing", "error"
}

// FieldReport lists the configured custom fields and those the library lacks.
type FieldReport struct {
	Required []string `json:"required"`
	Missing  []string `json:"missing"`
}

// CheckLibrary verifies that the library database has every table and column
// in required, and that each label in fields is a custom column.
func CheckLibrary(db *gorm.DB, required map[string][]string, fields []string) (*LibraryReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	report := &LibraryReport{
		Matched: true,
		Tables:  make(map[string]TableReport, len(required)),
		Fields:  FieldReport{Required: []string{}, Missing: []string{}},
		Errors:  []string{},
	}

	tables := make([]string, 0, len(required))
	for t := range required {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, table := range tables {
		tbl := TableReport{MissingColumns: []string{}, Status: "ok"}

		actual, err := database.GetTableColumns(db, table)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to inspect table %s: %v", table, err))
			report.Matched = false
			tbl.Status = "error"
			report.Tables[table] = tbl
			continue
		}
		if len(actual) == 0 {
			tbl.Status = "missing"
			tbl.MissingColumns = append(tbl.MissingColumns, required[table]...)
			report.Matched = false
			report.Tables[table] = tbl
			continue
		}

		have := make(map[string]struct{}, len(actual))
		for _, col := range actual {
			have[col.Field] = struct{}{}
		}
		for _, col := range required[table] {
			if _, ok := have[strings.ToLower(col)]; !ok {
				tbl.MissingColumns = append(tbl.MissingColumns, col)
				tbl.Status = "error"
				report.Matched = false
			}
		}
		report.Tables[table] = tbl
	}

	for _, label := range fields {
		if label == "" {
			continue
		}
		report.Fields.Required = append(report.Fields.Required, label)

		var count int64
		if err := db.Table("custom_columns").Where("label = ?", label).Count(&count).Error; err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to look up custom field %s: %v", label, err))
			report.Matched = false
			continue
		}
		if count == 0 {
			report.Fields.Missing = append(report.Fields.Missing, label)
			report.Matched = false
		}
	}

	return report, nil
}
