package bcr

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/zulandar/changeboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var numberPattern = regexp.MustCompile(`^BCR-(\d{4})-(\d{4,})$`)

// FormatNumber renders a BCR number such as BCR-2026-0007.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("BCR-%d-%04d", year, seq)
}

// ParseNumber splits a BCR number into its year and sequence.
func ParseNumber(number string) (year, seq int, err error) {
	m := numberPattern.FindStringSubmatch(number)
	if m == nil {
		return 0, 0, fmt.Errorf("bcr: malformed number %q", number)
	}
	year, _ = strconv.Atoi(m[1])
	seq, _ = strconv.Atoi(m[2])
	return year, seq, nil
}

// GenerateNumber issues the next BCR number for now's year. It must run
// inside the transaction that creates the BCR: the sequence row stays
// locked by the UPDATE until that transaction ends.
func GenerateNumber(tx *gorm.DB, now time.Time) (string, error) {
	year := now.Year()

	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.BcrSequence{Year: year}).Error; err != nil {
		return "", fmt.Errorf("bcr: init sequence %d: %w", year, err)
	}
	if err := tx.Model(&models.BcrSequence{}).
		Where("year = ?", year).
		UpdateColumn("last_number", gorm.Expr("last_number + ?", 1)).Error; err != nil {
		return "", fmt.Errorf("bcr: advance sequence %d: %w", year, err)
	}
	var seq models.BcrSequence
	if err := tx.Where("year = ?", year).First(&seq).Error; err != nil {
		return "", fmt.Errorf("bcr: read sequence %d: %w", year, err)
	}
	return FormatNumber(year, seq.LastNumber), nil
}

// ReserveNumber makes sure the year's sequence is at least seq, so numbers
// imported from elsewhere are never issued again.
func ReserveNumber(tx *gorm.DB, number string) error {
	year, seq, err := ParseNumber(number)
	if err != nil {
		return err
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.BcrSequence{Year: year}).Error; err != nil {
		return fmt.Errorf("bcr: init sequence %d: %w", year, err)
	}
	if err := tx.Model(&models.BcrSequence{}).
		Where("year = ? AND last_number < ?", year, seq).
		UpdateColumn("last_number", seq).Error; err != nil {
		return fmt.Errorf("bcr: reserve %s: %w", number, err)
	}
	return nil
}
