package payments

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/treasury"
)

// TxRepository exposes the transactional operations of one settlement.
type TxRepository interface {
	GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error)
	InsertInstallment(ctx context.Context, ins Installment) (int64, error)
	UpdateReceiptAmounts(ctx context.Context, rec Receipt) error
	ResolveTreasury(ctx context.Context, companyID int64, method treasury.PaymentMethod, explicitID *int64) (treasury.Treasury, error)
	PostTreasury(ctx context.Context, input treasury.PostInput) (treasury.Transaction, error)
	PostLedger(ctx context.Context, input ledger.EntryInput) (ledger.Entry, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateReceipt(ctx context.Context, input IssueReceiptInput) (Receipt, error)
	GetReceipt(ctx context.Context, id int64) (Receipt, error)
	ListReceipts(ctx context.Context, filter ListFilter) ([]Receipt, error)
	ListInstallments(ctx context.Context, receiptID int64) ([]Installment, error)
}

// Service implements the receipt/installment engine.
type Service struct {
	repo         RepositoryPort
	baseCurrency string
	logger       *slog.Logger
	validate     *validator.Validate
}

// NewService constructs a payments service.
func NewService(repo RepositoryPort, baseCurrency string, logger *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		baseCurrency: baseCurrency,
		logger:       logger,
		validate:     validator.New(),
	}
}

// IssueReceipt creates a receivable/payable header.
func (s *Service) IssueReceipt(ctx context.Context, input IssueReceiptInput) (Receipt, error) {
	return s.repo.CreateReceipt(ctx, input)
}

// AddInstallment records a partial settlement. The installment insert, the
// receipt recomputation, the treasury leg and the ledger entry commit in one
// transaction, so a rejected installment leaves no partial write.
func (s *Service) AddInstallment(ctx context.Context, receiptID int64, req InstallmentRequest, actorID int64) (Installment, error) {
	if err := s.validate.Struct(req); err != nil {
		return Installment{}, shared.NewValidation("payments: %v", err)
	}
	if !req.Amount.IsPositive() {
		return Installment{}, shared.NewValidation("payments: amount must be positive")
	}

	var result Installment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetReceiptForUpdate(ctx, receiptID)
		if err != nil {
			return err
		}
		switch rec.Status {
		case StatusPaid:
			return shared.NewAlreadySettled(rec.ID)
		case StatusCancelled:
			return shared.NewPrecondition("receipt-cancelled", "receipt %d is cancelled", rec.ID)
		}

		if req.Amount.GreaterThan(rec.RemainingAmount) {
			return shared.NewOverpayment(rec.ID, req.Amount, rec.RemainingAmount)
		}

		// Foreign-currency receipts convert the treasury leg at the
		// caller-supplied rate; receipt bookkeeping stays in the
		// original currency.
		baseAmount := req.Amount
		if rec.Currency != s.baseCurrency {
			if req.ExchangeRate == nil || !req.ExchangeRate.IsPositive() {
				return shared.NewValidation("payments: exchange rate required for %s receipt", rec.Currency)
			}
			baseAmount = req.Amount.Mul(*req.ExchangeRate)
		} else if req.ExchangeRate != nil {
			return shared.NewValidation("payments: exchange rate only applies to foreign-currency receipts")
		}

		t, err := tx.ResolveTreasury(ctx, rec.CompanyID, treasury.PaymentMethod(req.Method), req.TreasuryID)
		if err != nil {
			return err
		}

		direction := treasury.DirectionDeposit
		source := treasury.SourceInstallment
		if rec.Side == SideSupplier {
			direction = treasury.DirectionWithdrawal
		}

		ins := Installment{
			ReceiptID:    rec.ID,
			Amount:       req.Amount,
			ExchangeRate: req.ExchangeRate,
			BaseAmount:   baseAmount,
			TreasuryID:   t.ID,
			CreatedBy:    actorID,
		}
		insID, err := tx.InsertInstallment(ctx, ins)
		if err != nil {
			return err
		}
		ins.ID = insID

		rec.PaidAmount = rec.PaidAmount.Add(req.Amount)
		rec.RemainingAmount = rec.RemainingAmount.Sub(req.Amount)
		if !rec.RemainingAmount.IsPositive() {
			rec.Status = StatusPaid
		}
		if err := tx.UpdateReceiptAmounts(ctx, rec); err != nil {
			return err
		}

		if _, err := tx.PostTreasury(ctx, treasury.PostInput{
			TreasuryID:  t.ID,
			Amount:      baseAmount,
			Direction:   direction,
			Source:      source,
			RefType:     treasury.RefInstallment,
			RefID:       insID,
			Description: "receipt installment",
		}); err != nil {
			return err
		}

		ledgerType := ledger.TypeCredit
		if rec.Side == SideSupplier {
			ledgerType = ledger.TypeDebit
		}
		if _, err := tx.PostLedger(ctx, ledger.EntryInput{
			CompanyID:      rec.CompanyID,
			Side:           ledger.Side(rec.Side),
			CounterpartyID: rec.CounterpartyID,
			Type:           ledgerType,
			Amount:         baseAmount,
			RefType:        ledger.RefPayment,
			RefID:          rec.ID,
			Description:    "receipt installment",
		}); err != nil {
			return err
		}

		result = ins
		return nil
	})
	if err != nil {
		return Installment{}, err
	}
	return result, nil
}

// Pay settles the full remainder of a receipt through the installment path,
// so the same invariants and postings apply.
func (s *Service) Pay(ctx context.Context, receiptID int64, req PayRequest, actorID int64) (Receipt, error) {
	if err := s.validate.Struct(req); err != nil {
		return Receipt{}, shared.NewValidation("payments: %v", err)
	}

	rec, err := s.repo.GetReceipt(ctx, receiptID)
	if err != nil {
		return Receipt{}, err
	}
	if rec.Status == StatusPaid {
		return Receipt{}, shared.NewAlreadySettled(rec.ID)
	}

	if _, err := s.AddInstallment(ctx, receiptID, InstallmentRequest{
		Amount:       rec.RemainingAmount,
		ExchangeRate: req.ExchangeRate,
		Method:       req.Method,
		TreasuryID:   req.TreasuryID,
	}, actorID); err != nil {
		return Receipt{}, err
	}

	return s.repo.GetReceipt(ctx, receiptID)
}

// Cancel voids a receipt that has no settlements yet.
func (s *Service) Cancel(ctx context.Context, receiptID int64) (Receipt, error) {
	var out Receipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetReceiptForUpdate(ctx, receiptID)
		if err != nil {
			return err
		}
		if rec.Status == StatusPaid {
			return shared.NewAlreadySettled(rec.ID)
		}
		if rec.Status == StatusCancelled {
			return shared.NewPrecondition("receipt-cancelled", "receipt %d is already cancelled", rec.ID)
		}
		if rec.PaidAmount.IsPositive() {
			return shared.NewPrecondition("receipt-partially-paid",
				"receipt %d has recorded installments and cannot be cancelled", rec.ID)
		}
		rec.Status = StatusCancelled
		if err := tx.UpdateReceiptAmounts(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return out, nil
}

// Get retrieves a receipt.
func (s *Service) Get(ctx context.Context, id int64) (Receipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// List returns receipts for a company.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, filter)
}

// Installments lists a receipt's settlements.
func (s *Service) Installments(ctx context.Context, receiptID int64) ([]Installment, error) {
	return s.repo.ListInstallments(ctx, receiptID)
}
