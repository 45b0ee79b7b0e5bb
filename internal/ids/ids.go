// Package ids produces the short record IDs and the human-readable
// project/invoice numbers used throughout the system.
package ids

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/models"
)

// New returns prefix + 8 random hex chars (32 bits of entropy). Collision
// resistance is probabilistic only, which is acceptable at this record
// volume; the unique index on invoice_number catches the one place where a
// collision would corrupt data.
func New(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + hex[:8]
}

// NextProjectNumber returns "YY-NNN": two-digit year plus a zero-padded
// sequence that resets each calendar year. MAX-based so deleted projects
// never cause a number to be reissued. Callers must serialize concurrent
// assignment (see Locks).
func NextProjectNumber(tx *gorm.DB, now time.Time) (string, error) {
	yy := now.Format("06")
	var numbers []string
	if err := tx.Unscoped().Model(&models.Project{}).
		Where("project_number LIKE ?", yy+"-%").
		Pluck("project_number", &numbers).Error; err != nil {
		return "", fmt.Errorf("scan project numbers: %w", err)
	}
	max := 0
	for _, n := range numbers {
		suffix := strings.TrimPrefix(n, yy+"-")
		if v, err := strconv.Atoi(suffix); err == nil && v > max {
			max = v
		}
	}
	return fmt.Sprintf("%s-%03d", yy, max+1), nil
}

var numberSuffix = regexp.MustCompile(`-(\d+)$`)

// NextInvoiceNumber returns "{prefix}-{N}" where prefix is the project's job
// code, falling back to project_number, falling back to the project id.
// N is one past the highest numeric suffix among ALL of the project's
// invoices including soft-deleted ones: a COUNT-based scheme reissues
// numbers after a deletion and collides on the unique index.
func NextInvoiceNumber(tx *gorm.DB, project *models.Project) (string, error) {
	prefix := project.JobCode
	if prefix == "" {
		prefix = project.ProjectNumber
	}
	if prefix == "" {
		prefix = project.ID
	}
	var numbers []string
	if err := tx.Unscoped().Model(&models.Invoice{}).
		Where("project_id = ?", project.ID).
		Pluck("invoice_number", &numbers).Error; err != nil {
		return "", fmt.Errorf("scan invoice numbers: %w", err)
	}
	max := 0
	for _, n := range numbers {
		m := numberSuffix.FindStringSubmatch(n)
		if m == nil {
			continue
		}
		if v, err := strconv.Atoi(m[1]); err == nil && v > max {
			max = v
		}
	}
	return fmt.Sprintf("%s-%d", prefix, max+1), nil
}
