package sales

import (
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventTypeSaleCreated = "SaleCreated"

// SaleCreatedEvent is raised once when a sale is first recorded
type SaleCreatedEvent struct {
	shared.BaseDomainEvent
	SaleID            uuid.UUID       `json:"sale_id"`
	SaleNumber        string          `json:"sale_number"`
	CustomerID        uuid.UUID       `json:"customer_id"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	Items             []SaleItem      `json:"items"`
	SaleDate          time.Time       `json:"sale_date"`
}

// NewSaleCreatedEvent builds the creation event from a freshly derived sale
func NewSaleCreatedEvent(s *Sale) *SaleCreatedEvent {
	return &SaleCreatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeSaleCreated, AggregateTypeSale, s.ID),
		SaleID:            s.ID,
		SaleNumber:        s.SaleNumber,
		CustomerID:        s.CustomerID,
		GrandTotal:        s.GrandTotal,
		OutstandingAmount: s.OutstandingAmount.Decimal,
		Items:             s.Items,
		SaleDate:          s.SaleDate,
	}
}
