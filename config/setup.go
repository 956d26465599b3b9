package config

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"

	"gorm.io/gorm"
)

var dbNamePattern = regexp.MustCompile(`^[A-Za-z0-9_$]{1,64}$`)

// CreateDatabase creates the schema with a utf8mb4 default charset if it does
// not exist yet. The name is validated since identifiers cannot be bound as
// query parameters.
func CreateDatabase(ctx context.Context, db *sql.DB, name string) error {
	if !dbNamePattern.MatchString(name) {
		return fmt.Errorf("invalid database name %q", name)
	}
	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", name)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

// TableInfo is one line of the setup report.
type TableInfo struct {
	Name string
	Rows int64
}

// TableReport lists the tables of the current schema with their row counts.
func TableReport(db *gorm.DB) ([]TableInfo, error) {
	names, err := db.Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	sort.Strings(names)

	report := make([]TableInfo, 0, len(names))
	for _, name := range names {
		var n int64
		if err := db.Table(name).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		report = append(report, TableInfo{Name: name, Rows: n})
	}
	return report, nil
}
