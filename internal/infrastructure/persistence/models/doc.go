// Package models contains GORM persistence models that map to database tables.
// Domain entities stay free of ORM tags; each model converts with ToDomain and
// a <Name>ModelFromDomain constructor.
//
// Ledger columns that legacy rows leave NULL (recovery_status, outstanding_amount,
// total_recovered, due_date) are nullable here and map onto the domain's empty
// recovery status, decimal.NullDecimal and *time.Time.
package models
