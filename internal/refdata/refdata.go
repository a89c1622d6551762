// Package refdata exposes the reference-data lookup tables stored as config rows.
package refdata

import (
	"fmt"
	"strings"

	"github.com/zulandar/changeboard/internal/models"
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// List returns config rows of one type ordered by display order, then name.
func List(db *gorm.DB, rowType string) ([]models.ConfigRow, error) {
	var rows []models.ConfigRow
	if err := db.Where("type = ?", rowType).Order("display_order ASC, name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("refdata: list %s: %w", rowType, err)
	}
	return rows, nil
}

// Names returns only the names of config rows of one type.
func Names(db *gorm.DB, rowType string) ([]string, error) {
	rows, err := List(db, rowType)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	return names, nil
}

// Canonical returns the stored spelling of name within names, matching
// case-insensitively. ok is false when there is no match.
func Canonical(names []string, name string) (string, bool) {
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(name))
	for _, n := range names {
		if fold.String(n) == want {
			return n, true
		}
	}
	return "", false
}

// Contains reports whether name is a known entry of the given type.
func Contains(db *gorm.DB, rowType, name string) (bool, error) {
	names, err := Names(db, rowType)
	if err != nil {
		return false, err
	}
	_, ok := Canonical(names, name)
	return ok, nil
}

// SplitList parses a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList is the inverse of SplitList.
func JoinList(items []string) string {
	return strings.Join(items, ", ")
}
