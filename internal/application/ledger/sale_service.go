package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/erp/shopledger/internal/domain/partner"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SaleService records sales and serves single-sale reads
type SaleService struct {
	scope          TransactionScope
	saleRepo       sales.SaleRepository
	customerRepo   partner.CustomerRepository
	supplierRepo   partner.SupplierRepository
	writer         *saleWriter
	eventPublisher shared.EventPublisher
	metrics        Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewSaleService creates a new SaleService
func NewSaleService(
	scope TransactionScope,
	saleRepo sales.SaleRepository,
	customerRepo partner.CustomerRepository,
	supplierRepo partner.SupplierRepository,
	locker Locker,
	opts Options,
) *SaleService {
	opts = opts.withDefaults()
	return &SaleService{
		scope:        scope,
		saleRepo:     saleRepo,
		customerRepo: customerRepo,
		supplierRepo: supplierRepo,
		writer:       newSaleWriter(scope, locker, opts.MaxRetries, opts.Metrics, opts.Logger),
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          opts.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *SaleService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CreateSale validates and records a new sale.
// Totals and the initial ledger state are derived once here and never re-derived.
func (s *SaleService) CreateSale(ctx context.Context, req CreateSaleRequest) (*SaleResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.supplierRepo.FindByID(ctx, req.SupplierID); err != nil {
		return nil, err
	}

	saleDate := s.now()
	if req.SaleDate != nil && !req.SaleDate.IsZero() {
		saleDate = *req.SaleDate
	}
	items := make([]sales.SaleItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = sales.SaleItem{
			ProductID:   it.ProductID,
			ProductName: strings.TrimSpace(it.ProductName),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			ActualPrice: it.ActualPrice,
			Total:       it.Total,
		}
	}
	input := sales.NewSaleInput{
		CustomerID:    req.CustomerID,
		SupplierID:    req.SupplierID,
		Items:         items,
		DiscountType:  sales.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		TaxRate:       req.TaxRate,
		AmountPaid:    req.AmountPaid,
		PaymentMethod: sales.PaymentMethod(req.PaymentMethod),
		SaleDate:      saleDate,
		DueDate:       req.DueDate,
		Notes:         strings.TrimSpace(req.Notes),
	}

	// Validate before a sale number is consumed
	sale, err := sales.NewSale(input)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		number, err := repos.SaleNumbers().Next(ctx, saleDate)
		if err != nil {
			return err
		}
		sale.AssignNumber(number)
		return repos.Sales().Create(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale recorded",
		zap.String("sale_id", sale.ID.String()),
		zap.String("sale_number", sale.SaleNumber),
		zap.String("customer_id", sale.CustomerID.String()),
		zap.String("grand_total", sale.GrandTotal.StringFixed(sales.MoneyPlaces)),
		zap.String("recovery_status", string(sale.RecoveryStatus)),
	)
	s.metrics.SaleCreated(ctx, sale.GrandTotal)
	s.publishDomainEvents(ctx, sale)

	resp := ToSaleResponse(sale, s.now())
	resp.CustomerName = customer.Name
	return &resp, nil
}

// GetSale returns one sale with its effective ledger state
func (s *SaleService) GetSale(ctx context.Context, saleID uuid.UUID) (*SaleResponse, error) {
	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	resp := ToSaleResponse(sale, s.now())
	if customer, err := s.customerRepo.FindByID(ctx, sale.CustomerID); err == nil {
		resp.CustomerName = customer.Name
	}
	return &resp, nil
}

// UpdateSaleNotes replaces the free-text notes. The financial fields are not touched.
func (s *SaleService) UpdateSaleNotes(ctx context.Context, saleID uuid.UUID, req UpdateSaleNotesRequest) (*SaleResponse, error) {
	var updated *sales.Sale
	err := s.writer.Mutate(ctx, "update_sale_notes", saleID, func(ctx context.Context, repos TransactionalRepositories, sale *sales.Sale) error {
		sale.UpdateNotes(strings.TrimSpace(req.Notes), s.now())
		if err := repos.Sales().SaveWithLock(ctx, sale); err != nil {
			return err
		}
		updated = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := ToSaleResponse(updated, s.now())
	return &resp, nil
}

// publishDomainEvents publishes the sale's events after commit.
// Handler failures are logged by the bus and never undo the sale.
func (s *SaleService) publishDomainEvents(ctx context.Context, sale *sales.Sale) {
	events := sale.PullEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish sale events",
			zap.String("sale_id", sale.ID.String()),
			zap.Error(err),
		)
	}
}
