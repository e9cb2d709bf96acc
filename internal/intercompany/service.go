package intercompany

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/purchase"
)

// MaxSettleAttempts is the retry budget before an outbox entry parks as
// FAILED and waits for operator attention.
const MaxSettleAttempts = 10

func mirrorTotal(lines []OriginLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Qty.Mul(line.ParentUnitPrice))
	}
	return total
}

// TxRepository is the settlement transaction surface: the locked outbox
// row, the mirror documents and the financial postings all ride one
// transaction behind it.
type TxRepository interface {
	GetOutboxForUpdate(ctx context.Context, id uuid.UUID) (OutboxEntry, error)
	OriginSale(ctx context.Context, saleID int64) (OriginSale, error)
	EnsureCounterparty(ctx context.Context, kind CounterpartyKind, ownerCompanyID, representsCompanyID int64, name string) (Counterparty, error)
	InsertMirrorSale(ctx context.Context, origin OriginSale, parentCompanyID, branchCustomerID int64) (int64, error)
	InsertMirrorPurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error)
	LinkOriginSale(ctx context.Context, saleID, parentSaleID, branchPurchaseID int64) error
	CreateReceipt(ctx context.Context, input payments.IssueReceiptInput) (payments.Receipt, error)
	PostLedger(ctx context.Context, input ledger.EntryInput) (ledger.Entry, error)
	MarkSettled(ctx context.Context, id uuid.UUID) error
}

// RepositoryPort is the persistence surface of the settlement service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOutbox(ctx context.Context, id uuid.UUID) (OutboxEntry, error)
	MarkFailed(ctx context.Context, id uuid.UUID, cause string, exhausted bool) error
	ListPending(ctx context.Context, limit int) ([]OutboxEntry, error)
	EnsureCounterparty(ctx context.Context, kind CounterpartyKind, ownerCompanyID, representsCompanyID int64, name string) (Counterparty, error)
}

// Service settles inter-company liabilities recorded in the outbox.
type Service struct {
	repo         RepositoryPort
	baseCurrency string
	logger       *slog.Logger
}

// NewService constructs an intercompany service.
func NewService(repo RepositoryPort, baseCurrency string, logger *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		baseCurrency: baseCurrency,
		logger:       logger,
	}
}

// Settle processes one outbox entry: it creates the parent-company mirror
// sale at parent prices, the inventory-neutral branch purchase, the
// MAIN_PURCHASE receivable, and the ledger postings that balance both
// companies' books. The whole settlement is one transaction keyed by the
// locked outbox row, so reprocessing an already settled entry is a no-op.
func (s *Service) Settle(ctx context.Context, outboxID uuid.UUID) (Settlement, error) {
	var result Settlement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetOutboxForUpdate(ctx, outboxID)
		if err != nil {
			return err
		}
		if entry.Status != OutboxPending {
			result = Settlement{OutboxID: entry.ID, OriginSaleID: entry.SaleID}
			return nil
		}

		origin, err := tx.OriginSale(ctx, entry.SaleID)
		if err != nil {
			return err
		}
		if len(origin.Lines) == 0 {
			// Approval recorded the intent but every line ended up
			// locally sourced; nothing to mirror.
			return tx.MarkSettled(ctx, entry.ID)
		}

		branchCustomer, err := tx.EnsureCounterparty(ctx, KindBranchCustomer,
			entry.ParentCompanyID, entry.BranchCompanyID,
			fmt.Sprintf("Branch %d", entry.BranchCompanyID))
		if err != nil {
			return err
		}
		parentSupplier, err := tx.EnsureCounterparty(ctx, KindParentSupplier,
			entry.BranchCompanyID, entry.ParentCompanyID,
			fmt.Sprintf("Parent %d", entry.ParentCompanyID))
		if err != nil {
			return err
		}

		total := mirrorTotal(origin.Lines)

		parentSaleID, err := tx.InsertMirrorSale(ctx, origin, entry.ParentCompanyID, branchCustomer.ID)
		if err != nil {
			return err
		}

		lines := make([]purchase.LineInput, 0, len(origin.Lines))
		for _, line := range origin.Lines {
			lines = append(lines, purchase.LineInput{
				ProductID: line.ProductID,
				Qty:       line.Qty,
				UnitPrice: line.ParentUnitPrice,
			})
		}
		purchaseLines, purchaseTotal, err := purchase.LineTotals(lines)
		if err != nil {
			return err
		}
		originID := origin.ID
		branchPurchase, err := tx.InsertMirrorPurchase(ctx, purchase.Purchase{
			CompanyID:        entry.BranchCompanyID,
			SupplierID:       parentSupplier.ID,
			InvoiceNumber:    "IC-" + origin.InvoiceNumber,
			Total:            purchaseTotal,
			Status:           purchase.StatusApproved,
			AffectsInventory: false,
			IsAutoGenerated:  true,
			OriginSaleID:     &originID,
			Lines:            purchaseLines,
		})
		if err != nil {
			return err
		}

		if err := tx.LinkOriginSale(ctx, origin.ID, parentSaleID, branchPurchase.ID); err != nil {
			return err
		}

		if _, err := tx.CreateReceipt(ctx, payments.IssueReceiptInput{
			CompanyID:      entry.BranchCompanyID,
			Kind:           payments.KindMainPurchase,
			Side:           payments.SideSupplier,
			CounterpartyID: parentSupplier.ID,
			RefID:          branchPurchase.ID,
			Currency:       s.baseCurrency,
			Amount:         total,
		}); err != nil {
			return err
		}

		if _, err := tx.PostLedger(ctx, ledger.EntryInput{
			CompanyID:      entry.ParentCompanyID,
			Side:           ledger.SideCustomer,
			CounterpartyID: branchCustomer.ID,
			Type:           ledger.TypeDebit,
			Amount:         total,
			RefType:        ledger.RefSale,
			RefID:          parentSaleID,
			Description:    fmt.Sprintf("inter-company sale %s", origin.InvoiceNumber),
		}); err != nil {
			return err
		}
		if _, err := tx.PostLedger(ctx, ledger.EntryInput{
			CompanyID:      entry.BranchCompanyID,
			Side:           ledger.SideSupplier,
			CounterpartyID: parentSupplier.ID,
			Type:           ledger.TypeCredit,
			Amount:         total,
			RefType:        ledger.RefPurchase,
			RefID:          branchPurchase.ID,
			Description:    fmt.Sprintf("inter-company purchase %s", origin.InvoiceNumber),
		}); err != nil {
			return err
		}

		if err := tx.MarkSettled(ctx, entry.ID); err != nil {
			return err
		}

		result = Settlement{
			OutboxID:         entry.ID,
			OriginSaleID:     origin.ID,
			ParentSaleID:     parentSaleID,
			BranchPurchaseID: branchPurchase.ID,
			Total:            total,
		}
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, outboxID, err)
		return Settlement{}, err
	}
	return result, nil
}

// recordFailure bumps the attempt counter outside the rolled-back
// settlement transaction.
func (s *Service) recordFailure(ctx context.Context, outboxID uuid.UUID, cause error) {
	entry, err := s.repo.GetOutbox(ctx, outboxID)
	if err != nil {
		s.logger.Error("intercompany: load outbox after failure",
			slog.String("outbox_id", outboxID.String()), slog.Any("error", err))
		return
	}
	exhausted := entry.Attempts+1 >= MaxSettleAttempts
	if err := s.repo.MarkFailed(ctx, outboxID, cause.Error(), exhausted); err != nil {
		s.logger.Error("intercompany: record settlement failure",
			slog.String("outbox_id", outboxID.String()), slog.Any("error", err))
		return
	}
	if exhausted {
		s.logger.Error("intercompany: settlement retry budget exhausted",
			slog.String("outbox_id", outboxID.String()),
			slog.Int64("sale_id", entry.SaleID),
			slog.String("cause", cause.Error()))
	}
}

// Pending lists unsettled outbox entries for the sweep job.
func (s *Service) Pending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	return s.repo.ListPending(ctx, limit)
}

// Counterparty resolves (creating on first use) the registry row for a
// company pair.
func (s *Service) Counterparty(ctx context.Context, kind CounterpartyKind, ownerCompanyID, representsCompanyID int64) (Counterparty, error) {
	return s.repo.EnsureCounterparty(ctx, kind, ownerCompanyID, representsCompanyID,
		fmt.Sprintf("Company %d", representsCompanyID))
}
