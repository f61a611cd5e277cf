package event

import (
	"github.com/erp/shopledger/internal/domain/recovery"
	"github.com/erp/shopledger/internal/domain/sales"
)

// RegisterLedgerEvents registers every ledger event with the serializer.
// The queue worker can only decode types registered here.
func RegisterLedgerEvents(serializer *EventSerializer) {
	serializer.Register(sales.EventTypeSaleCreated, &sales.SaleCreatedEvent{})
	serializer.Register(recovery.EventTypeRecoveryRecorded, &recovery.RecordedEvent{})
	serializer.Register(recovery.EventTypeRecoveryStatusChanged, &recovery.StatusChangedEvent{})
}

// NewLedgerSerializer returns a serializer with the ledger events registered
func NewLedgerSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterLedgerEvents(s)
	return s
}
