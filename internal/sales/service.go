package sales

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
	"github.com/meridian-erp/meridian-erp/internal/treasury"
	"github.com/meridian-erp/meridian-erp/internal/warehouse"
)

// TxRepository is the transactional surface of the approval and return
// paths. Every mutation behind it commits or rolls back as one unit.
type TxRepository interface {
	ParentCompany(ctx context.Context, companyID int64) (*int64, error)
	ProductOwner(ctx context.Context, productID int64) (int64, decimal.Decimal, error)
	AvailableStock(ctx context.Context, companyID, productID int64) (decimal.Decimal, error)
	ApproveIfDraft(ctx context.Context, id int64, saleType SaleType, paymentMethod *string, paid, remaining decimal.Decimal, approvedBy int64) (bool, error)
	MarkLineFromParent(ctx context.Context, lineID int64) error
	ApplyStock(ctx context.Context, input stock.MovementInput) error
	CreateDispatch(ctx context.Context, saleID, companyID int64) error
	InsertOutbox(ctx context.Context, saleID, branchCompanyID, parentCompanyID int64) (uuid.UUID, error)
	AmountsForUpdate(ctx context.Context, saleID int64) (total, paid, remaining decimal.Decimal, err error)
	SetAmounts(ctx context.Context, saleID int64, total, paid, remaining decimal.Decimal) error
	ReplaceLines(ctx context.Context, saleID int64, lines []Line, total, discount decimal.Decimal) error
}

// RepositoryPort is the persistence surface of the sales service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, s Sale) (Sale, error)
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, error)
	ProductOwner(ctx context.Context, productID int64) (int64, decimal.Decimal, error)
	CancelIfDraft(ctx context.Context, id int64) (bool, error)
}

// LedgerPort posts journal entries after approval.
type LedgerPort interface {
	Post(ctx context.Context, input ledger.EntryInput) (ledger.Entry, error)
}

// TreasuryPort routes and records cash settlements.
type TreasuryPort interface {
	ResolveForMethod(ctx context.Context, companyID int64, method treasury.PaymentMethod, explicitID *int64) (treasury.Treasury, error)
	Post(ctx context.Context, input treasury.PostInput) (treasury.Transaction, error)
}

// ReceiptPort issues receivable headers.
type ReceiptPort interface {
	IssueReceipt(ctx context.Context, input payments.IssueReceiptInput) (payments.Receipt, error)
}

// DispatchPort reads warehouse fulfilment progress; the sales flow never
// writes it.
type DispatchPort interface {
	StatusForSale(ctx context.Context, saleID int64) (warehouse.DispatchStatus, error)
}

// Enqueuer hands settled-outbox work to the background worker.
type Enqueuer interface {
	EnqueueMirrorSettlement(ctx context.Context, outboxID uuid.UUID) error
}

// Service implements the sale lifecycle and the approval engine.
type Service struct {
	repo         RepositoryPort
	ledgers      LedgerPort
	treasuries   TreasuryPort
	receipts     ReceiptPort
	dispatches   DispatchPort
	enqueuer     Enqueuer
	baseCurrency string
	logger       *slog.Logger
	audit        *shared.AuditLogger
	validate     *validator.Validate
}

// NewService constructs a sales service.
func NewService(
	repo RepositoryPort,
	ledgers LedgerPort,
	treasuries TreasuryPort,
	receipts ReceiptPort,
	dispatches DispatchPort,
	enqueuer Enqueuer,
	baseCurrency string,
	logger *slog.Logger,
	audit *shared.AuditLogger,
) *Service {
	return &Service{
		repo:         repo,
		ledgers:      ledgers,
		treasuries:   treasuries,
		receipts:     receipts,
		dispatches:   dispatches,
		enqueuer:     enqueuer,
		baseCurrency: baseCurrency,
		logger:       logger,
		audit:        audit,
		validate:     validator.New(),
	}
}

// buildLines validates inputs and snapshots the owner-side price of every
// product into the line for margin tracking and mirror pricing.
func (s *Service) buildLines(ctx context.Context, inputs []LineInput) ([]Line, decimal.Decimal, decimal.Decimal, error) {
	if len(inputs) == 0 {
		return nil, decimal.Zero, decimal.Zero, shared.NewValidation("sales: at least one line required")
	}

	total, discount := decimal.Zero, decimal.Zero
	lines := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		if err := s.validate.Struct(in); err != nil {
			return nil, decimal.Zero, decimal.Zero, shared.NewValidation("sales: %v", err)
		}
		if !in.Qty.IsPositive() {
			return nil, decimal.Zero, decimal.Zero, shared.NewValidation("sales: qty must be positive")
		}
		if in.UnitPrice.IsNegative() || in.DiscountAmount.IsNegative() {
			return nil, decimal.Zero, decimal.Zero, shared.NewValidation("sales: negative amounts not allowed")
		}

		_, ownerPrice, err := s.repo.ProductOwner(ctx, in.ProductID)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, err
		}

		sub := in.Qty.Mul(in.UnitPrice).Sub(in.DiscountAmount)
		if sub.IsNegative() {
			return nil, decimal.Zero, decimal.Zero, shared.NewValidation("sales: discount exceeds line amount")
		}
		lines = append(lines, Line{
			ProductID:           in.ProductID,
			Qty:                 in.Qty,
			UnitPrice:           in.UnitPrice,
			ParentUnitPrice:     ownerPrice,
			DiscountAmount:      in.DiscountAmount,
			SubTotal:            sub,
			IsFromParentCompany: in.IsFromParentCompany,
		})
		total = total.Add(sub)
		discount = discount.Add(in.DiscountAmount)
	}
	return lines, total, discount, nil
}

// Create persists a draft sale.
func (s *Service) Create(ctx context.Context, input CreateInput) (Sale, error) {
	if input.CompanyID == 0 {
		return Sale{}, shared.NewValidation("sales: company required")
	}
	lines, total, discount, err := s.buildLines(ctx, input.Lines)
	if err != nil {
		return Sale{}, err
	}

	return s.repo.Insert(ctx, Sale{
		CompanyID:       input.CompanyID,
		CustomerID:      input.CustomerID,
		InvoiceNumber:   input.InvoiceNumber,
		Total:           total,
		DiscountAmount:  discount,
		Status:          StatusDraft,
		SaleType:        TypeCredit,
		PaidAmount:      decimal.Zero,
		RemainingAmount: total,
		CreatedBy:       input.CreatedBy,
		Lines:           lines,
	})
}

// ReplaceLines swaps the whole line set of a draft sale.
func (s *Service) ReplaceLines(ctx context.Context, saleID int64, inputs []LineInput) (Sale, error) {
	sale, err := s.repo.Get(ctx, saleID)
	if err != nil {
		return Sale{}, err
	}
	if err := s.guardMutable(sale); err != nil {
		return Sale{}, err
	}

	lines, total, discount, err := s.buildLines(ctx, inputs)
	if err != nil {
		return Sale{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.ReplaceLines(ctx, saleID, lines, total, discount)
	})
	if err != nil {
		return Sale{}, err
	}
	return s.repo.Get(ctx, saleID)
}

// Cancel voids a draft sale.
func (s *Service) Cancel(ctx context.Context, saleID int64) (Sale, error) {
	sale, err := s.repo.Get(ctx, saleID)
	if err != nil {
		return Sale{}, err
	}
	if err := s.guardMutable(sale); err != nil {
		return Sale{}, err
	}
	ok, err := s.repo.CancelIfDraft(ctx, saleID)
	if err != nil {
		return Sale{}, err
	}
	if !ok {
		return Sale{}, shared.NewAlreadyApproved(saleID)
	}
	return s.repo.Get(ctx, saleID)
}

func (s *Service) guardMutable(sale Sale) error {
	if sale.IsAutoGenerated {
		origin := int64(0)
		if sale.OriginSaleID != nil {
			origin = *sale.OriginSaleID
		}
		return shared.NewProtectedRecord("sale", sale.ID, origin)
	}
	if sale.Status != StatusDraft {
		if sale.Status == StatusApproved {
			return shared.NewAlreadyApproved(sale.ID)
		}
		return shared.NewPrecondition("wrong-status", "sale %d is %s, expected DRAFT", sale.ID, sale.Status)
	}
	return nil
}

// Approve transitions a draft sale into an approved, inventory-committed,
// financially-posted transaction. The status flip, the source corrections,
// every stock decrement, the dispatch order and the settlement outbox row
// commit in one transaction; a failure anywhere rolls back all of it.
// Ledger, treasury and receipt postings run after the commit and are
// logged on failure without revoking the approval.
func (s *Service) Approve(ctx context.Context, saleID int64, req ApproveRequest, identity shared.Identity) (Sale, error) {
	if err := s.validate.Struct(req); err != nil {
		return Sale{}, shared.NewValidation("sales: %v", err)
	}
	if req.SaleType == TypeCash && req.PaymentMethod == "" {
		return Sale{}, shared.NewValidation("sales: cash sales require a payment method")
	}

	sale, err := s.repo.Get(ctx, saleID)
	if err != nil {
		return Sale{}, err
	}
	if err := s.guardMutable(sale); err != nil {
		return Sale{}, err
	}
	if !identity.CanActOn(sale.CompanyID) {
		return Sale{}, shared.NewPrecondition("forbidden", "caller cannot act on company %d", sale.CompanyID)
	}

	// CASH settles the whole total at approval; CREDIT leaves it all
	// outstanding.
	paid, remaining := decimal.Zero, sale.Total
	if req.SaleType == TypeCash {
		paid, remaining = sale.Total, decimal.Zero
	}

	var (
		plan     AllocationPlan
		outboxID *uuid.UUID
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		parentID, err := tx.ParentCompany(ctx, sale.CompanyID)
		if err != nil {
			return err
		}

		owner := func(ctx context.Context, productID int64) (int64, error) {
			ownerID, _, err := tx.ProductOwner(ctx, productID)
			return ownerID, err
		}

		plan, err = BuildAllocationPlan(ctx, sale.Lines, sale.CompanyID, parentID, owner, tx.AvailableStock)
		if err != nil {
			return err
		}

		var method *string
		if req.SaleType == TypeCash {
			method = &req.PaymentMethod
		}
		flipped, err := tx.ApproveIfDraft(ctx, sale.ID, req.SaleType, method, paid, remaining, identity.UserID)
		if err != nil {
			return err
		}
		if !flipped {
			return shared.NewAlreadyApproved(sale.ID)
		}

		for _, alloc := range plan.Lines {
			if alloc.Corrected {
				if err := tx.MarkLineFromParent(ctx, alloc.LineID); err != nil {
					return err
				}
			}
			if err := tx.ApplyStock(ctx, stock.MovementInput{
				CompanyID: alloc.SourceCompanyID,
				ProductID: alloc.ProductID,
				Qty:       alloc.Qty,
				Direction: stock.DirectionOut,
				RefType:   stock.RefSale,
				RefID:     sale.ID,
			}); err != nil {
				return err
			}
		}

		if err := tx.CreateDispatch(ctx, sale.ID, sale.CompanyID); err != nil {
			return err
		}

		if plan.UsesParentStock() {
			id, err := tx.InsertOutbox(ctx, sale.ID, sale.CompanyID, *parentID)
			if err != nil {
				return err
			}
			outboxID = &id
		}
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	s.postApproval(ctx, sale, req, paid, outboxID)

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "sale:approve",
			Entity:   "sale",
			EntityID: fmt.Sprintf("%d", sale.ID),
			Meta: map[string]any{
				"sale_type": string(req.SaleType),
				"total":     sale.Total.String(),
			},
		}); err != nil {
			s.logger.Warn("audit sale approve", slog.Any("error", err))
		}
	}

	return s.repo.Get(ctx, saleID)
}

// postApproval runs the best-effort postings after the approval commit.
// The sale is approved and inventory is gone whatever happens here, so
// failures are logged, never propagated; the mirror settlement itself is
// durable in the outbox and the sweep job retries lost enqueues.
func (s *Service) postApproval(ctx context.Context, sale Sale, req ApproveRequest, paid decimal.Decimal, outboxID *uuid.UUID) {
	log := s.logger.With(slog.Int64("sale_id", sale.ID))

	if sale.CustomerID != nil {
		if _, err := s.ledgers.Post(ctx, ledger.EntryInput{
			CompanyID:      sale.CompanyID,
			Side:           ledger.SideCustomer,
			CounterpartyID: *sale.CustomerID,
			Type:           ledger.TypeDebit,
			Amount:         sale.Total,
			RefType:        ledger.RefSale,
			RefID:          sale.ID,
			Description:    fmt.Sprintf("sale %s", sale.InvoiceNumber),
		}); err != nil {
			log.Error("post-approval ledger debit", slog.Any("error", err))
		}
		if req.SaleType == TypeCash {
			if _, err := s.ledgers.Post(ctx, ledger.EntryInput{
				CompanyID:      sale.CompanyID,
				Side:           ledger.SideCustomer,
				CounterpartyID: *sale.CustomerID,
				Type:           ledger.TypeCredit,
				Amount:         sale.Total,
				RefType:        ledger.RefSale,
				RefID:          sale.ID,
				Description:    fmt.Sprintf("sale %s cash settlement", sale.InvoiceNumber),
			}); err != nil {
				log.Error("post-approval ledger credit", slog.Any("error", err))
			}
		}
	}

	if req.SaleType == TypeCash {
		t, err := s.treasuries.ResolveForMethod(ctx, sale.CompanyID, treasury.PaymentMethod(req.PaymentMethod), req.TreasuryID)
		if err != nil {
			log.Error("post-approval treasury routing", slog.Any("error", err))
		} else if _, err := s.treasuries.Post(ctx, treasury.PostInput{
			TreasuryID:  t.ID,
			Amount:      paid,
			Direction:   treasury.DirectionDeposit,
			Source:      treasury.SourceSaleCash,
			RefType:     treasury.RefSale,
			RefID:       sale.ID,
			Description: fmt.Sprintf("cash sale %s", sale.InvoiceNumber),
		}); err != nil {
			log.Error("post-approval treasury deposit", slog.Any("error", err))
		}
	}

	if sale.CustomerID != nil {
		if _, err := s.receipts.IssueReceipt(ctx, payments.IssueReceiptInput{
			CompanyID:      sale.CompanyID,
			Kind:           payments.KindSale,
			Side:           payments.SideCustomer,
			CounterpartyID: *sale.CustomerID,
			RefID:          sale.ID,
			Currency:       s.baseCurrency,
			Amount:         sale.Total,
			Paid:           req.SaleType == TypeCash,
		}); err != nil {
			log.Error("post-approval receipt", slog.Any("error", err))
		}
	}

	if outboxID != nil && s.enqueuer != nil {
		if err := s.enqueuer.EnqueueMirrorSettlement(ctx, *outboxID); err != nil {
			log.Error("enqueue mirror settlement",
				slog.String("outbox_id", outboxID.String()), slog.Any("error", err))
		}
	}
}

// Return credits boxes back to the stock source they were sold from and
// rebalances the sale so paid + remaining still equals the shrunk total:
// the credit consumes the outstanding remainder first and whatever was
// already settled is refunded out of the company cash box. Returns are
// legal only once the warehouse started fulfilling the sale.
func (s *Service) Return(ctx context.Context, input ReturnInput) (Return, error) {
	sale, err := s.repo.Get(ctx, input.SaleID)
	if err != nil {
		return Return{}, err
	}
	if sale.Status != StatusApproved {
		return Return{}, shared.NewPrecondition("wrong-status", "sale %d is %s, expected APPROVED", sale.ID, sale.Status)
	}

	status, err := s.dispatches.StatusForSale(ctx, sale.ID)
	if err != nil {
		return Return{}, err
	}
	if status == warehouse.DispatchPending {
		return Return{}, shared.NewPrecondition("dispatch-pending",
			"sale %d has not been dispatched, nothing to return", sale.ID)
	}

	if len(input.Lines) == 0 {
		return Return{}, shared.NewValidation("sales: at least one return line required")
	}
	byID := make(map[int64]Line, len(sale.Lines))
	for _, line := range sale.Lines {
		byID[line.ID] = line
	}

	total, refund := decimal.Zero, decimal.Zero
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		parentID, err := tx.ParentCompany(ctx, sale.CompanyID)
		if err != nil {
			return err
		}

		for _, ret := range input.Lines {
			line, ok := byID[ret.LineID]
			if !ok {
				return shared.NewValidation("sales: line %d does not belong to sale %d", ret.LineID, sale.ID)
			}
			if !ret.Qty.IsPositive() || ret.Qty.GreaterThan(line.Qty) {
				return shared.NewValidation("sales: return qty for line %d must be within the sold quantity", ret.LineID)
			}

			source := sale.CompanyID
			if line.IsFromParentCompany {
				if parentID == nil {
					return shared.NewPrecondition("missing-parent", "sale %d line %d was parent-sourced but company %d has no parent", sale.ID, line.ID, sale.CompanyID)
				}
				source = *parentID
			}
			if err := tx.ApplyStock(ctx, stock.MovementInput{
				CompanyID: source,
				ProductID: line.ProductID,
				Qty:       ret.Qty,
				Direction: stock.DirectionIn,
				RefType:   stock.RefReturn,
				RefID:     sale.ID,
			}); err != nil {
				return err
			}
			total = total.Add(ret.Qty.Mul(line.UnitPrice))
		}

		curTotal, curPaid, curRemaining, err := tx.AmountsForUpdate(ctx, sale.ID)
		if err != nil {
			return err
		}
		newTotal, newPaid, newRemaining, owed := settleReturn(curTotal, curPaid, curRemaining, total)
		refund = owed
		return tx.SetAmounts(ctx, sale.ID, newTotal, newPaid, newRemaining)
	})
	if err != nil {
		return Return{}, err
	}

	if sale.CustomerID != nil {
		if _, err := s.ledgers.Post(ctx, ledger.EntryInput{
			CompanyID:      sale.CompanyID,
			Side:           ledger.SideCustomer,
			CounterpartyID: *sale.CustomerID,
			Type:           ledger.TypeCredit,
			Amount:         total,
			RefType:        ledger.RefReturn,
			RefID:          sale.ID,
			Description:    fmt.Sprintf("return against sale %s", sale.InvoiceNumber),
		}); err != nil {
			s.logger.Error("post-return ledger credit",
				slog.Int64("sale_id", sale.ID), slog.Any("error", err))
		}
	}

	if refund.IsPositive() {
		t, err := s.treasuries.ResolveForMethod(ctx, sale.CompanyID, treasury.MethodCash, nil)
		if err != nil {
			s.logger.Error("post-return treasury routing",
				slog.Int64("sale_id", sale.ID), slog.Any("error", err))
		} else if _, err := s.treasuries.Post(ctx, treasury.PostInput{
			TreasuryID:  t.ID,
			Amount:      refund,
			Direction:   treasury.DirectionWithdrawal,
			Source:      treasury.SourceReturn,
			RefType:     treasury.RefReturn,
			RefID:       sale.ID,
			Description: fmt.Sprintf("refund for return against sale %s", sale.InvoiceNumber),
		}); err != nil {
			s.logger.Error("post-return treasury refund",
				slog.Int64("sale_id", sale.ID), slog.Any("error", err))
		}
	}

	return Return{SaleID: sale.ID, Total: total, Refund: refund}, nil
}

// Get retrieves a sale with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// List returns sales visible to the caller. Non-system callers are scoped
// to their own company.
func (s *Service) List(ctx context.Context, filter ListFilter, identity shared.Identity) ([]Sale, error) {
	if !identity.IsSystemUser {
		filter.CompanyID = identity.CompanyID
	}
	return s.repo.List(ctx, filter)
}
