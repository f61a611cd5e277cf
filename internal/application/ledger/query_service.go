package ledger

import (
	"context"
	"time"

	"github.com/erp/shopledger/internal/domain/partner"
	"github.com/erp/shopledger/internal/domain/recovery"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const recentRecoveriesLimit = 10

// QueryService serves the ledger list views and summaries.
// Every figure is derived through sales.Classify, so legacy sales are
// reported correctly before they are migrated.
type QueryService struct {
	saleRepo     sales.SaleRepository
	recoveryRepo recovery.Repository
	customerRepo partner.CustomerRepository
	batchSize    int
	logger       *zap.Logger
	now          func() time.Time
	dashboard    singleflight.Group
}

// NewQueryService creates a new QueryService
func NewQueryService(
	saleRepo sales.SaleRepository,
	recoveryRepo recovery.Repository,
	customerRepo partner.CustomerRepository,
	opts Options,
) *QueryService {
	opts = opts.withDefaults()
	return &QueryService{
		saleRepo:     saleRepo,
		recoveryRepo: recoveryRepo,
		customerRepo: customerRepo,
		batchSize:    opts.BatchSize,
		logger:       opts.Logger,
		now:          opts.Now,
	}
}

// ListOutstanding lists sales with a balance, overdue ones included
func (s *QueryService) ListOutstanding(ctx context.Context, filter ListFilter) (shared.Page[SaleResponse], error) {
	return s.list(ctx, sales.OutstandingBuckets, filter)
}

// ListOverdue lists sales with a balance past their due date
func (s *QueryService) ListOverdue(ctx context.Context, filter ListFilter) (shared.Page[SaleResponse], error) {
	return s.list(ctx, []sales.Bucket{sales.BucketOverdue}, filter)
}

// ListFullyPaid lists settled sales
func (s *QueryService) ListFullyPaid(ctx context.Context, filter ListFilter) (shared.Page[SaleResponse], error) {
	return s.list(ctx, []sales.Bucket{sales.BucketSettled}, filter)
}

func (s *QueryService) list(ctx context.Context, buckets []sales.Bucket, filter ListFilter) (shared.Page[SaleResponse], error) {
	now := s.now()
	req := shared.PageRequest{Page: filter.Page, Limit: filter.Limit}.Normalize()
	rows, total, err := s.saleRepo.FindByBucket(ctx, sales.BucketQuery{
		Buckets:    buckets,
		CustomerID: filter.CustomerID,
		Now:        now,
		Page:       req,
		OrderBy:    filter.OrderBy,
		OrderDir:   filter.OrderDir,
	})
	if err != nil {
		return shared.Page[SaleResponse]{}, err
	}

	names := s.customerNames(ctx, rows)
	data := make([]SaleResponse, len(rows))
	for i := range rows {
		data[i] = ToSaleResponse(&rows[i], now)
		data[i].CustomerName = names[rows[i].CustomerID]
	}
	return shared.NewPage(data, total, req), nil
}

// customerNames resolves names for a page of sales. A lookup failure only blanks the names.
func (s *QueryService) customerNames(ctx context.Context, rows []sales.Sale) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(rows))
	if len(rows) == 0 {
		return names
	}
	seen := make(map[uuid.UUID]struct{}, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		if _, ok := seen[rows[i].CustomerID]; ok {
			continue
		}
		seen[rows[i].CustomerID] = struct{}{}
		ids = append(ids, rows[i].CustomerID)
	}
	customers, err := s.customerRepo.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve customer names", zap.Error(err))
		return names
	}
	for id, c := range customers {
		names[id] = c.Name
	}
	return names
}

// GetSaleRecoveryHistory returns a sale with every recovery against it, newest first
func (s *QueryService) GetSaleRecoveryHistory(ctx context.Context, saleID uuid.UUID) (*SaleRecoveryHistory, error) {
	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	txs, err := s.recoveryRepo.FindBySale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	history := &SaleRecoveryHistory{
		Sale:       ToSaleResponse(sale, s.now()),
		Recoveries: ToRecoveryResponses(txs),
	}
	if customer, err := s.customerRepo.FindByID(ctx, sale.CustomerID); err == nil {
		c := ToCustomerResponse(customer)
		history.Customer = &c
		history.Sale.CustomerName = customer.Name
	} else if !shared.IsKind(err, shared.KindNotFound) {
		return nil, err
	}
	return history, nil
}

// GetCustomerRecoverySummary totals the ledger of one customer
func (s *QueryService) GetCustomerRecoverySummary(ctx context.Context, customerID uuid.UUID) (*CustomerRecoverySummary, error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	summary := &CustomerRecoverySummary{
		Customer:         ToCustomerResponse(customer),
		TotalAmount:      decimal.Zero,
		TotalCollected:   decimal.Zero,
		TotalRecovered:   decimal.Zero,
		TotalOutstanding: decimal.Zero,
		OverdueAmount:    decimal.Zero,
	}
	err = s.saleRepo.Scan(ctx, &customerID, s.batchSize, func(batch []sales.Sale) error {
		for i := range batch {
			sale := &batch[i]
			view := sales.Classify(sale, now)
			summary.TotalSales++
			summary.TotalAmount = summary.TotalAmount.Add(sale.GrandTotal)
			summary.TotalCollected = summary.TotalCollected.Add(sale.AmountPaid).Add(view.TotalRecovered)
			summary.TotalRecovered = summary.TotalRecovered.Add(view.TotalRecovered)
			if view.Kind == sales.LedgerKindLegacy {
				summary.LegacySalesIncluded++
			}
			switch view.Bucket {
			case sales.BucketOverdue:
				summary.OverdueSales++
				summary.OutstandingSales++
				summary.OverdueAmount = summary.OverdueAmount.Add(view.Outstanding)
				summary.TotalOutstanding = summary.TotalOutstanding.Add(view.Outstanding)
			case sales.BucketOpen:
				summary.OutstandingSales++
				summary.TotalOutstanding = summary.TotalOutstanding.Add(view.Outstanding)
			case sales.BucketSettled:
				summary.FullyPaidSales++
			}
			if sale.LastRecoveryDate != nil &&
				(summary.LastRecoveryDate == nil || sale.LastRecoveryDate.After(*summary.LastRecoveryDate)) {
				last := *sale.LastRecoveryDate
				summary.LastRecoveryDate = &last
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recent, err := s.recoveryRepo.FindRecent(ctx, &customerID, recentRecoveriesLimit)
	if err != nil {
		return nil, err
	}
	summary.RecentRecoveries = ToRecoveryResponses(recent)
	return summary, nil
}

// GetDashboardSummary returns the shop-wide ledger overview.
// Concurrent callers share one computation; it runs detached from the caller
// that started it, and each caller stops waiting when its own context ends.
func (s *QueryService) GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.dashboard.DoChan("dashboard", func() (interface{}, error) {
		return s.buildDashboard(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DashboardSummary), nil
	}
}

func (s *QueryService) buildDashboard(ctx context.Context) (*DashboardSummary, error) {
	now := s.now()
	summary := &DashboardSummary{
		Outstanding:        BucketTotals{Amount: decimal.Zero},
		Overdue:            BucketTotals{Amount: decimal.Zero},
		FullyPaid:          BucketTotals{Amount: decimal.Zero},
		TotalRecovered:     decimal.Zero,
		RecoveredThisMonth: decimal.Zero,
		GeneratedAt:        now,
	}
	err := s.saleRepo.Scan(ctx, nil, s.batchSize, func(batch []sales.Sale) error {
		for i := range batch {
			view := sales.Classify(&batch[i], now)
			summary.TotalRecovered = summary.TotalRecovered.Add(view.TotalRecovered)
			if view.Kind == sales.LedgerKindLegacy {
				summary.LegacySalesRemaining++
			}
			switch view.Bucket {
			case sales.BucketOverdue:
				summary.Overdue.Count++
				summary.Overdue.Amount = summary.Overdue.Amount.Add(view.Outstanding)
				summary.Outstanding.Count++
				summary.Outstanding.Amount = summary.Outstanding.Amount.Add(view.Outstanding)
			case sales.BucketOpen:
				summary.Outstanding.Count++
				summary.Outstanding.Amount = summary.Outstanding.Amount.Add(view.Outstanding)
			case sales.BucketSettled:
				summary.FullyPaid.Count++
				summary.FullyPaid.Amount = summary.FullyPaid.Amount.Add(batch[i].GrandTotal)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utc := now.UTC()
	monthStart := time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
	if summary.RecoveredThisMonth, err = s.recoveryRepo.SumConfirmedSince(ctx, monthStart); err != nil {
		return nil, err
	}
	recent, err := s.recoveryRepo.FindRecent(ctx, nil, recentRecoveriesLimit)
	if err != nil {
		return nil, err
	}
	summary.RecentRecoveries = ToRecoveryResponses(recent)
	return summary, nil
}
