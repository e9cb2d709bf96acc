package purchase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
)

// Service coordinates the purchase flow.
type Service struct {
	pool     *pgxpool.Pool
	repo     *Repository
	currency string
	logger   *slog.Logger
	audit    *shared.AuditLogger
}

// NewService constructs a purchase service.
func NewService(pool *pgxpool.Pool, baseCurrency string, logger *slog.Logger, audit *shared.AuditLogger) *Service {
	return &Service{
		pool:     pool,
		repo:     NewRepository(pool),
		currency: baseCurrency,
		logger:   logger,
		audit:    audit,
	}
}

// Create persists a draft purchase.
func (s *Service) Create(ctx context.Context, input CreateInput) (Purchase, error) {
	if input.CompanyID == 0 || input.SupplierID == 0 {
		return Purchase{}, shared.NewValidation("purchase: company and supplier required")
	}
	lines, total, err := LineTotals(input.Lines)
	if err != nil {
		return Purchase{}, err
	}

	p := Purchase{
		CompanyID:        input.CompanyID,
		SupplierID:       input.SupplierID,
		InvoiceNumber:    input.InvoiceNumber,
		Total:            total,
		Status:           StatusDraft,
		AffectsInventory: true,
		CreatedBy:        input.CreatedBy,
		Lines:            lines,
	}
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		p, err = Insert(ctx, tx, p)
		return err
	})
	if err != nil {
		return Purchase{}, err
	}
	return p, nil
}

// Approve commits a draft purchase: goods enter stock (when the purchase
// affects inventory), the supplier is credited, and a PENDING payable
// receipt opens for later settlement. All of it is one transaction.
func (s *Service) Approve(ctx context.Context, id, actorID int64) (Purchase, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Purchase{}, err
	}
	if p.IsAutoGenerated {
		origin := int64(0)
		if p.OriginSaleID != nil {
			origin = *p.OriginSaleID
		}
		return Purchase{}, shared.NewProtectedRecord("purchase", p.ID, origin)
	}
	if p.Status != StatusDraft {
		return Purchase{}, shared.NewPrecondition("wrong-status", "purchase %d is %s, expected DRAFT", p.ID, p.Status)
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		ok, err := NewRepository(tx).UpdateStatusIfDraft(ctx, p.ID, StatusApproved)
		if err != nil {
			return err
		}
		if !ok {
			return shared.NewPrecondition("already-approved", "purchase %d was approved concurrently", p.ID)
		}

		if p.AffectsInventory {
			for _, line := range p.Lines {
				if _, err := stock.Apply(ctx, tx, stock.MovementInput{
					CompanyID: p.CompanyID,
					ProductID: line.ProductID,
					Qty:       line.Qty,
					Direction: stock.DirectionIn,
					RefType:   stock.RefPurchase,
					RefID:     p.ID,
				}); err != nil {
					return err
				}
			}
		}

		if _, err := ledger.Post(ctx, tx, ledger.EntryInput{
			CompanyID:      p.CompanyID,
			Side:           ledger.SideSupplier,
			CounterpartyID: p.SupplierID,
			Type:           ledger.TypeCredit,
			Amount:         p.Total,
			RefType:        ledger.RefPurchase,
			RefID:          p.ID,
			Description:    fmt.Sprintf("purchase %s", p.InvoiceNumber),
		}); err != nil {
			return err
		}

		_, err = payments.CreateReceipt(ctx, tx, payments.IssueReceiptInput{
			CompanyID:      p.CompanyID,
			Kind:           payments.KindPurchase,
			Side:           payments.SideSupplier,
			CounterpartyID: p.SupplierID,
			RefID:          p.ID,
			Currency:       s.currency,
			Amount:         p.Total,
		})
		return err
	})
	if err != nil {
		return Purchase{}, err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "purchase:approve",
			Entity:   "purchase",
			EntityID: fmt.Sprintf("%d", p.ID),
			Meta:     map[string]any{"total": p.Total.String()},
		}); err != nil {
			s.logger.Warn("audit purchase approve", slog.Any("error", err))
		}
	}

	return s.repo.Get(ctx, id)
}

// Cancel voids a draft purchase. Auto-generated mirror purchases are
// protected from direct mutation.
func (s *Service) Cancel(ctx context.Context, id int64) (Purchase, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Purchase{}, err
	}
	if p.IsAutoGenerated {
		origin := int64(0)
		if p.OriginSaleID != nil {
			origin = *p.OriginSaleID
		}
		return Purchase{}, shared.NewProtectedRecord("purchase", p.ID, origin)
	}
	if p.Status != StatusDraft {
		return Purchase{}, shared.NewPrecondition("wrong-status", "purchase %d is %s, expected DRAFT", p.ID, p.Status)
	}

	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		ok, err := NewRepository(tx).UpdateStatusIfDraft(ctx, p.ID, StatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return shared.NewPrecondition("already-approved", "purchase %d was approved concurrently", p.ID)
		}
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	return s.repo.Get(ctx, id)
}

// Get retrieves a purchase.
func (s *Service) Get(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.Get(ctx, id)
}

// List returns purchases for a company.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	return s.repo.List(ctx, filter)
}
