package persistence

import (
	"strings"
	"time"

	"github.com/erp/shopledger/internal/domain/sales"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL rendition of sales.Classify. Keep the two in step; ledger_scopes_test.go
// checks that both put the same fixture rows into the same buckets.
const (
	// effectiveOutstandingSQL may be negative for overpaid legacy rows; only its sign is compared.
	effectiveOutstandingSQL = "(CASE WHEN recovery_status IS NULL" +
		" THEN grand_total - amount_paid - COALESCE(total_recovered, 0)" +
		" ELSE COALESCE(outstanding_amount, grand_total - amount_paid - COALESCE(total_recovered, 0)) END)"

	pastDueSQL = "((due_date IS NOT NULL AND due_date < @now)" +
		" OR (due_date IS NULL AND sale_date < @cutoff)" +
		" OR COALESCE(recovery_status, '') = 'overdue')"
)

var bucketSQL = map[sales.Bucket]string{
	sales.BucketSettled: effectiveOutstandingSQL + " <= 0",
	sales.BucketOpen:    effectiveOutstandingSQL + " > 0 AND NOT " + pastDueSQL,
	sales.BucketOverdue: effectiveOutstandingSQL + " > 0 AND " + pastDueSQL,
}

// bucketScope restricts a sales query to the union of the given buckets at now
func bucketScope(buckets []sales.Bucket, now time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(buckets) == 0 {
			return db
		}
		conds := make([]string, 0, len(buckets))
		for _, b := range buckets {
			if cond, ok := bucketSQL[b]; ok {
				conds = append(conds, "("+cond+")")
			}
		}
		if len(conds) == 0 {
			return db.Where("1 = 0")
		}
		// The settled condition has no @ placeholder; a bare map argument would be
		// bound positionally, so it goes through NamedExpr.
		now = now.UTC()
		return db.Where(clause.NamedExpr{
			SQL: "(" + strings.Join(conds, " OR ") + ")",
			Vars: []any{map[string]any{
				"now":    now,
				"cutoff": now.Add(-sales.GracePeriod),
			}},
		})
	}
}

// SaleSortFields maps API sort keys to SQL expressions
var SaleSortFields = map[string]string{
	"sale_date":   "sale_date",
	"due_date":    "COALESCE(due_date, sale_date)",
	"grand_total": "grand_total",
	"outstanding": effectiveOutstandingSQL,
	"created_at":  "created_at",
}

// saleOrder falls back to sale_date and DESC for unknown keys. id breaks ties
// so page boundaries stay stable.
func saleOrder(orderBy, orderDir string) string {
	expr, ok := SaleSortFields[strings.TrimSpace(orderBy)]
	if !ok {
		expr = SaleSortFields["sale_date"]
	}
	dir := "DESC"
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		dir = "ASC"
	}
	return expr + " " + dir + ", id " + dir
}
