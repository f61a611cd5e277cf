package shared

import "time"

// BaseAggregateRoot is embedded by the ledger aggregates (sales and recovery
// transactions). Version is the optimistic lock token: repositories update
// WHERE version = Version-1 after Advance has run.
type BaseAggregateRoot struct {
	BaseEntity
	Version int           `gorm:"not null;default:1"`
	pending []DomainEvent `gorm:"-"`
}

// NewBaseAggregateRoot starts a new aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// Advance records one persisted change at the given time
func (a *BaseAggregateRoot) Advance(at time.Time) {
	a.Version++
	a.UpdatedAt = at
}

// Record queues an event to be published once the change commits
func (a *BaseAggregateRoot) Record(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// PendingEvents returns the queued events without clearing them
func (a *BaseAggregateRoot) PendingEvents() []DomainEvent {
	return a.pending
}

// PullEvents returns the queued events and clears the queue
func (a *BaseAggregateRoot) PullEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
