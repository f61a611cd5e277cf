package models

import (
	"time"

	"github.com/erp/shopledger/internal/domain/partner"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for a customer
type CustomerModel struct {
	BaseModel
	Name    string `gorm:"type:varchar(200);not null"`
	Phone   string `gorm:"type:varchar(50);index"`
	Email   string `gorm:"type:varchar(200)"`
	Address string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *partner.Customer {
	return &partner.Customer{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		Phone:      m.Phone,
		Email:      m.Email,
		Address:    m.Address,
	}
}

// CustomerModelFromDomain converts a domain Customer to its persistence model
func CustomerModelFromDomain(c *partner.Customer) *CustomerModel {
	m := &CustomerModel{Name: c.Name, Phone: c.Phone, Email: c.Email, Address: c.Address}
	m.FromDomainBaseEntity(c.BaseEntity)
	return m
}

// SupplierModel is the persistence model for a supplier
type SupplierModel struct {
	BaseModel
	Name  string `gorm:"type:varchar(200);not null"`
	Phone string `gorm:"type:varchar(50)"`
	Email string `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string {
	return "suppliers"
}

// ToDomain converts the persistence model to a domain Supplier
func (m *SupplierModel) ToDomain() *partner.Supplier {
	return &partner.Supplier{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		Phone:      m.Phone,
		Email:      m.Email,
	}
}

// SupplierModelFromDomain converts a domain Supplier to its persistence model
func SupplierModelFromDomain(s *partner.Supplier) *SupplierModel {
	m := &SupplierModel{Name: s.Name, Phone: s.Phone, Email: s.Email}
	m.FromDomainBaseEntity(s.BaseEntity)
	return m
}

// PriceHistoryModel stores what a customer paid for a product on a sale
type PriceHistoryModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID       `gorm:"type:uuid;not null;index:idx_price_history_customer_product"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_price_history_customer_product"`
	SaleID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_price_history_sale_product"`
	LineNo     int             `gorm:"not null;uniqueIndex:idx_price_history_sale_product"`
	Price      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Quantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RecordedAt time.Time       `gorm:"not null"`
	CreatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PriceHistoryModel) TableName() string {
	return "price_history"
}
