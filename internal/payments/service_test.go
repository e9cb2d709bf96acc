package payments

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/treasury"
)

const baseCurrency = "USD"

type mockRepository struct {
	receipts     map[int64]*Receipt
	installments map[int64][]Installment
	nextID       int64

	treasuries map[int64]treasury.Treasury

	treasuryPosts []treasury.PostInput
	ledgerPosts   []ledger.EntryInput

	txError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		receipts:     make(map[int64]*Receipt),
		installments: make(map[int64][]Installment),
		treasuries: map[int64]treasury.Treasury{
			1: {ID: 1, Name: "Main Cash", Type: treasury.TypeCompany, Currency: baseCurrency},
		},
		nextID: 1,
	}
}

func (m *mockRepository) addReceipt(rec Receipt) *Receipt {
	rec.ID = m.nextID
	m.nextID++
	m.receipts[rec.ID] = &rec
	return m.receipts[rec.ID]
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, m)
}

func (m *mockRepository) CreateReceipt(_ context.Context, input IssueReceiptInput) (Receipt, error) {
	rec := Receipt{
		CompanyID:       input.CompanyID,
		Kind:            input.Kind,
		Side:            input.Side,
		CounterpartyID:  input.CounterpartyID,
		RefID:           input.RefID,
		Currency:        input.Currency,
		Amount:          input.Amount,
		Status:          StatusPending,
		RemainingAmount: input.Amount,
	}
	if input.Paid {
		rec.Status = StatusPaid
		rec.PaidAmount = input.Amount
		rec.RemainingAmount = decimal.Zero
	}
	return *m.addReceipt(rec), nil
}

func (m *mockRepository) GetReceipt(_ context.Context, id int64) (Receipt, error) {
	rec, ok := m.receipts[id]
	if !ok {
		return Receipt{}, shared.NewNotFound("receipt", id)
	}
	return *rec, nil
}

func (m *mockRepository) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	return m.GetReceipt(ctx, id)
}

func (m *mockRepository) ListReceipts(_ context.Context, filter ListFilter) ([]Receipt, error) {
	var out []Receipt
	for _, rec := range m.receipts {
		if rec.CompanyID == filter.CompanyID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *mockRepository) ListInstallments(_ context.Context, receiptID int64) ([]Installment, error) {
	return m.installments[receiptID], nil
}

func (m *mockRepository) InsertInstallment(_ context.Context, ins Installment) (int64, error) {
	ins.ID = m.nextID
	m.nextID++
	m.installments[ins.ReceiptID] = append(m.installments[ins.ReceiptID], ins)
	return ins.ID, nil
}

func (m *mockRepository) UpdateReceiptAmounts(_ context.Context, rec Receipt) error {
	stored, ok := m.receipts[rec.ID]
	if !ok {
		return shared.NewNotFound("receipt", rec.ID)
	}
	stored.PaidAmount = rec.PaidAmount
	stored.RemainingAmount = rec.RemainingAmount
	stored.Status = rec.Status
	return nil
}

func (m *mockRepository) ResolveTreasury(_ context.Context, companyID int64, method treasury.PaymentMethod, explicitID *int64) (treasury.Treasury, error) {
	if explicitID != nil {
		t, ok := m.treasuries[*explicitID]
		if !ok {
			return treasury.Treasury{}, shared.NewNotFound("treasury", *explicitID)
		}
		return t, nil
	}
	if method == treasury.MethodCash {
		return m.treasuries[1], nil
	}
	return treasury.Treasury{}, shared.NewTreasuryMisconfigured(companyID, string(method))
}

func (m *mockRepository) PostTreasury(_ context.Context, input treasury.PostInput) (treasury.Transaction, error) {
	m.treasuryPosts = append(m.treasuryPosts, input)
	return treasury.Transaction{TreasuryID: input.TreasuryID, Amount: input.Amount, Direction: input.Direction}, nil
}

func (m *mockRepository) PostLedger(_ context.Context, input ledger.EntryInput) (ledger.Entry, error) {
	m.ledgerPosts = append(m.ledgerPosts, input)
	return ledger.Entry{CompanyID: input.CompanyID, Amount: input.Amount, Type: input.Type}, nil
}

func newTestService(repo *mockRepository) *Service {
	return NewService(repo, baseCurrency, slog.Default())
}

func creditSaleReceipt(repo *mockRepository, amount string) *Receipt {
	return repo.addReceipt(Receipt{
		CompanyID:       2,
		Kind:            KindSale,
		Side:            SideCustomer,
		CounterpartyID:  5,
		RefID:           100,
		Currency:        baseCurrency,
		Amount:          decimal.RequireFromString(amount),
		RemainingAmount: decimal.RequireFromString(amount),
		Status:          StatusPending,
	})
}

func TestAddInstallmentPartialThenPaid(t *testing.T) {
	repo := newMockRepository()
	rec := creditSaleReceipt(repo, "400")
	svc := newTestService(repo)

	ins, err := svc.AddInstallment(context.Background(), rec.ID,
		InstallmentRequest{Amount: decimal.RequireFromString("150"), Method: "CASH"}, 9)
	require.NoError(t, err)
	assert.True(t, ins.BaseAmount.Equal(decimal.RequireFromString("150")))
	assert.Equal(t, int64(9), ins.CreatedBy)

	got, _ := repo.GetReceipt(context.Background(), rec.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.True(t, got.PaidAmount.Equal(decimal.RequireFromString("150")))
	assert.True(t, got.RemainingAmount.Equal(decimal.RequireFromString("250")))

	_, err = svc.AddInstallment(context.Background(), rec.ID,
		InstallmentRequest{Amount: decimal.RequireFromString("250"), Method: "CASH"}, 9)
	require.NoError(t, err)

	got, _ = repo.GetReceipt(context.Background(), rec.ID)
	assert.Equal(t, StatusPaid, got.Status)
	assert.True(t, got.RemainingAmount.IsZero())

	// Each installment posts one treasury deposit and one customer CREDIT.
	require.Len(t, repo.treasuryPosts, 2)
	assert.Equal(t, treasury.DirectionDeposit, repo.treasuryPosts[0].Direction)
	require.Len(t, repo.ledgerPosts, 2)
	assert.Equal(t, ledger.TypeCredit, repo.ledgerPosts[0].Type)
}

func TestAddInstallmentRejectsOverpayment(t *testing.T) {
	repo := newMockRepository()
	rec := creditSaleReceipt(repo, "100")
	svc := newTestService(repo)

	_, err := svc.AddInstallment(context.Background(), rec.ID,
		InstallmentRequest{Amount: decimal.RequireFromString("100.01"), Method: "CASH"}, 9)
	assert.Equal(t, shared.KindOverpayment, shared.KindOf(err))

	// Nothing was written.
	assert.Empty(t, repo.installments[rec.ID])
	assert.Empty(t, repo.treasuryPosts)
	got, _ := repo.GetReceipt(context.Background(), rec.ID)
	assert.True(t, got.PaidAmount.IsZero())
}

func TestAddInstallmentRejectsSettledReceipt(t *testing.T) {
	repo := newMockRepository()
	rec := creditSaleReceipt(repo, "100")
	rec.Status = StatusPaid
	svc := newTestService(repo)

	_, err := svc.AddInstallment(context.Background(), rec.ID,
		InstallmentRequest{Amount: decimal.RequireFromString("10"), Method: "CASH"}, 9)
	assert.Equal(t, shared.KindAlreadySettled, shared.KindOf(err))
}

func TestAddInstallmentRejectsCancelledReceipt(t *testing.T) {
	repo := newMockRepository()
	rec := creditSaleReceipt(repo, "100")
	rec.Status = StatusCancelled
	svc := newTestService(repo)

	_, err := svc.AddInstallment(context.Background(), rec.ID,
		InstallmentRequest{Amount: decimal.RequireFromString("10"), Method: "CASH"}, 9)
	assert.Equal(t, shared.KindPrecondition, shared.KindOf(err))
}

func TestAddInstallmentForeignCurrencyRequiresRate(t *testing.T) {
	repo := newMockRepository()
	rec := creditSaleReceipt(repo, "100")
	rec.Currency = "EUR"
	svc := newTestService(repo)

	_, err := svc.AddInstallment(context.Background(), rec.ID,
		InstallmentRequest{Amount: decimal.RequireFromString("10"), Method: "CASH"}, 9)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestAddInstallmentForeignCurrencyConvertsTreasuryLeg(t *testing.T) {
	repo := newMockRepository()
	rec := creditSaleReceipt(repo, "100")
	rec.Currency = "EUR"
	svc := newTestService(repo)

	rate := decimal.RequireFromString("1.1")
	ins, err := svc.AddInstallment(context.Background(), rec.ID,
		InstallmentRequest{Amount: decimal.RequireFromString("50"), ExchangeRate: &rate, Method: "CASH"}, 9)
	require.NoError(t, err)

	// Receipt bookkeeping stays in EUR; the treasury leg converts.
	assert.True(t, ins.BaseAmount.Equal(decimal.RequireFromString("55")))
	got, _ := repo.GetReceipt(context.Background(), rec.ID)
	assert.True(t, got.RemainingAmount.Equal(decimal.RequireFromString("50")))
	require.Len(t, repo.treasuryPosts, 1)
	assert.True(t, repo.treasuryPosts[0].Amount.Equal(decimal.RequireFromString("55")))
}

func TestAddInstallmentRejectsRateOnBaseCurrency(t *testing.T) {
	repo := newMockRepository()
	rec := creditSaleReceipt(repo, "100")
	svc := newTestService(repo)

	rate := decimal.RequireFromString("1.1")
	_, err := svc.AddInstallment(context.Background(), rec.ID,
		InstallmentRequest{Amount: decimal.RequireFromString("10"), ExchangeRate: &rate, Method: "CASH"}, 9)
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestAddInstallmentSupplierSideWithdraws(t *testing.T) {
	repo := newMockRepository()
	rec := repo.addReceipt(Receipt{
		CompanyID:       2,
		Kind:            KindPurchase,
		Side:            SideSupplier,
		CounterpartyID:  8,
		Currency:        baseCurrency,
		Amount:          decimal.RequireFromString("60"),
		RemainingAmount: decimal.RequireFromString("60"),
		Status:          StatusPending,
	})
	svc := newTestService(repo)

	_, err := svc.AddInstallment(context.Background(), rec.ID,
		InstallmentRequest{Amount: decimal.RequireFromString("60"), Method: "CASH"}, 9)
	require.NoError(t, err)

	require.Len(t, repo.treasuryPosts, 1)
	assert.Equal(t, treasury.DirectionWithdrawal, repo.treasuryPosts[0].Direction)
	require.Len(t, repo.ledgerPosts, 1)
	assert.Equal(t, ledger.TypeDebit, repo.ledgerPosts[0].Type)
}

func TestPaySettlesRemainder(t *testing.T) {
	repo := newMockRepository()
	rec := creditSaleReceipt(repo, "400")
	rec.PaidAmount = decimal.RequireFromString("150")
	rec.RemainingAmount = decimal.RequireFromString("250")
	svc := newTestService(repo)

	got, err := svc.Pay(context.Background(), rec.ID, PayRequest{Method: "CASH"}, 9)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)
	assert.True(t, got.RemainingAmount.IsZero())

	_, err = svc.Pay(context.Background(), rec.ID, PayRequest{Method: "CASH"}, 9)
	assert.Equal(t, shared.KindAlreadySettled, shared.KindOf(err))
}

func TestCancelReceipt(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo)

	t.Run("pending cancels", func(t *testing.T) {
		rec := creditSaleReceipt(repo, "100")
		got, err := svc.Cancel(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
	})

	t.Run("partially paid is protected", func(t *testing.T) {
		rec := creditSaleReceipt(repo, "100")
		rec.PaidAmount = decimal.RequireFromString("30")
		rec.RemainingAmount = decimal.RequireFromString("70")
		_, err := svc.Cancel(context.Background(), rec.ID)
		assert.Equal(t, shared.KindPrecondition, shared.KindOf(err))
	})

	t.Run("settled is final", func(t *testing.T) {
		rec := creditSaleReceipt(repo, "100")
		rec.Status = StatusPaid
		_, err := svc.Cancel(context.Background(), rec.ID)
		assert.Equal(t, shared.KindAlreadySettled, shared.KindOf(err))
	})
}

func TestAddInstallmentUnknownMethodFailsResolution(t *testing.T) {
	repo := newMockRepository()
	rec := creditSaleReceipt(repo, "100")
	svc := newTestService(repo)

	_, err := svc.AddInstallment(context.Background(), rec.ID,
		InstallmentRequest{Amount: decimal.RequireFromString("10"), Method: "BANK"}, 9)
	assert.Equal(t, shared.KindTreasuryMisconfigured, shared.KindOf(err))
}
