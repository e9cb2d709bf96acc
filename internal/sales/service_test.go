package sales

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
	"github.com/meridian-erp/meridian-erp/internal/treasury"
	"github.com/meridian-erp/meridian-erp/internal/warehouse"
)

type productOwner struct {
	companyID int64
	price     decimal.Decimal
}

// mockRepository backs both RepositoryPort and TxRepository with maps. It
// is mutex-guarded so approval races can be exercised from goroutines.
type mockRepository struct {
	mu      sync.Mutex
	sales   map[int64]*Sale
	parents map[int64]*int64
	owners  map[int64]productOwner
	stock   map[[2]int64]decimal.Decimal

	movements  []stock.MovementInput
	dispatched []int64
	outboxes   [][3]int64
	nextID     int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		sales:   make(map[int64]*Sale),
		parents: make(map[int64]*int64),
		owners:  make(map[int64]productOwner),
		stock:   make(map[[2]int64]decimal.Decimal),
		nextID:  100,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Insert(_ context.Context, s Sale) (Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	m.sales[s.ID] = &s
	return s, nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok {
		return Sale{}, shared.NewNotFound("sale", id)
	}
	out := *s
	out.Lines = append([]Line(nil), s.Lines...)
	return out, nil
}

func (m *mockRepository) List(_ context.Context, filter ListFilter) ([]Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sale
	for _, s := range m.sales {
		if filter.CompanyID == 0 || s.CompanyID == filter.CompanyID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockRepository) ProductOwner(_ context.Context, productID int64) (int64, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.owners[productID]
	if !ok {
		return 0, decimal.Zero, shared.NewNotFound("product", productID)
	}
	return o.companyID, o.price, nil
}

func (m *mockRepository) CancelIfDraft(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok || s.Status != StatusDraft {
		return false, nil
	}
	s.Status = StatusCancelled
	return true, nil
}

func (m *mockRepository) ParentCompany(_ context.Context, companyID int64) (*int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parents[companyID], nil
}

func (m *mockRepository) AvailableStock(_ context.Context, companyID, productID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[[2]int64{companyID, productID}], nil
}

func (m *mockRepository) ApproveIfDraft(_ context.Context, id int64, saleType SaleType, paymentMethod *string, paid, remaining decimal.Decimal, approvedBy int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[id]
	if !ok || s.Status != StatusDraft {
		return false, nil
	}
	s.Status = StatusApproved
	s.SaleType = saleType
	s.PaymentMethod = paymentMethod
	s.PaidAmount = paid
	s.RemainingAmount = remaining
	s.ApprovedBy = &approvedBy
	return true, nil
}

func (m *mockRepository) MarkLineFromParent(_ context.Context, lineID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sales {
		for i := range s.Lines {
			if s.Lines[i].ID == lineID {
				s.Lines[i].IsFromParentCompany = true
				return nil
			}
		}
	}
	return shared.NewNotFound("sale line", lineID)
}

func (m *mockRepository) ApplyStock(_ context.Context, input stock.MovementInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{input.CompanyID, input.ProductID}
	balance := m.stock[key]
	if input.Direction == stock.DirectionOut {
		if balance.LessThan(input.Qty) {
			return &shared.InsufficientStockError{
				CompanyID: input.CompanyID,
				ProductID: input.ProductID,
				Available: balance,
				Required:  input.Qty,
			}
		}
		m.stock[key] = balance.Sub(input.Qty)
	} else {
		m.stock[key] = balance.Add(input.Qty)
	}
	m.movements = append(m.movements, input)
	return nil
}

func (m *mockRepository) CreateDispatch(_ context.Context, saleID, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched = append(m.dispatched, saleID)
	return nil
}

func (m *mockRepository) InsertOutbox(_ context.Context, saleID, branchCompanyID, parentCompanyID int64) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outboxes = append(m.outboxes, [3]int64{saleID, branchCompanyID, parentCompanyID})
	return uuid.New(), nil
}

func (m *mockRepository) AmountsForUpdate(_ context.Context, saleID int64) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[saleID]
	if !ok {
		return decimal.Zero, decimal.Zero, decimal.Zero, shared.NewNotFound("sale", saleID)
	}
	return s.Total, s.PaidAmount, s.RemainingAmount, nil
}

func (m *mockRepository) SetAmounts(_ context.Context, saleID int64, total, paid, remaining decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[saleID]
	if !ok {
		return shared.NewNotFound("sale", saleID)
	}
	s.Total = total
	s.PaidAmount = paid
	s.RemainingAmount = remaining
	return nil
}

func (m *mockRepository) ReplaceLines(_ context.Context, saleID int64, lines []Line, total, discount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sales[saleID]
	if !ok {
		return shared.NewNotFound("sale", saleID)
	}
	s.Lines = lines
	s.Total = total
	s.DiscountAmount = discount
	s.RemainingAmount = total
	return nil
}

type stubLedger struct {
	mu    sync.Mutex
	posts []ledger.EntryInput
}

func (l *stubLedger) Post(_ context.Context, input ledger.EntryInput) (ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.posts = append(l.posts, input)
	return ledger.Entry{}, nil
}

type stubTreasury struct {
	mu       sync.Mutex
	treasury treasury.Treasury
	posts    []treasury.PostInput
}

func (t *stubTreasury) ResolveForMethod(context.Context, int64, treasury.PaymentMethod, *int64) (treasury.Treasury, error) {
	return t.treasury, nil
}

func (t *stubTreasury) Post(_ context.Context, input treasury.PostInput) (treasury.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.posts = append(t.posts, input)
	return treasury.Transaction{}, nil
}

type stubReceipts struct {
	mu     sync.Mutex
	issued []payments.IssueReceiptInput
}

func (r *stubReceipts) IssueReceipt(_ context.Context, input payments.IssueReceiptInput) (payments.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = append(r.issued, input)
	return payments.Receipt{}, nil
}

type stubDispatches struct {
	status warehouse.DispatchStatus
}

func (d *stubDispatches) StatusForSale(context.Context, int64) (warehouse.DispatchStatus, error) {
	return d.status, nil
}

type stubEnqueuer struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (e *stubEnqueuer) EnqueueMirrorSettlement(_ context.Context, outboxID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, outboxID)
	return nil
}

type testEnv struct {
	repo       *mockRepository
	ledgers    *stubLedger
	treasuries *stubTreasury
	receipts   *stubReceipts
	dispatches *stubDispatches
	enqueuer   *stubEnqueuer
}

func newTestService() (*Service, *testEnv) {
	env := &testEnv{
		repo:    newMockRepository(),
		ledgers: &stubLedger{},
		treasuries: &stubTreasury{
			treasury: treasury.Treasury{ID: 9, Name: "Branch Cash", Type: treasury.TypeCompany},
		},
		receipts:   &stubReceipts{},
		dispatches: &stubDispatches{status: warehouse.DispatchInProgress},
		enqueuer:   &stubEnqueuer{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(env.repo, env.ledgers, env.treasuries, env.receipts, env.dispatches, env.enqueuer, "USD", logger, nil)
	return svc, env
}

func TestGuardMutable(t *testing.T) {
	svc := &Service{}

	t.Run("draft passes", func(t *testing.T) {
		assert.NoError(t, svc.guardMutable(Sale{ID: 1, Status: StatusDraft}))
	})

	t.Run("auto-generated is protected", func(t *testing.T) {
		origin := int64(7)
		err := svc.guardMutable(Sale{ID: 2, Status: StatusApproved, IsAutoGenerated: true, OriginSaleID: &origin})
		assert.Equal(t, shared.KindProtectedRecord, shared.KindOf(err))
	})

	t.Run("approved reports already approved", func(t *testing.T) {
		err := svc.guardMutable(Sale{ID: 3, Status: StatusApproved})
		assert.Equal(t, shared.KindAlreadyApproved, shared.KindOf(err))
	})

	t.Run("cancelled is a precondition failure", func(t *testing.T) {
		err := svc.guardMutable(Sale{ID: 4, Status: StatusCancelled})
		assert.Equal(t, shared.KindPrecondition, shared.KindOf(err))
	})
}

func TestSettleReturnKeepsAmountsBalanced(t *testing.T) {
	cases := []struct {
		name                                   string
		total, paid, remaining, amount         string
		wantTotal, wantPaid, wantRem, wantOwed string
	}{
		{"cash fully paid", "500", "500", "0", "100", "400", "400", "0", "100"},
		{"credit untouched", "500", "0", "500", "100", "400", "0", "400", "0"},
		{"partially paid, credit exceeds remainder", "500", "200", "300", "400", "100", "100", "0", "100"},
		{"full return of cash sale", "500", "500", "0", "500", "0", "0", "0", "500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total, paid, remaining, refund := settleReturn(dec(tc.total), dec(tc.paid), dec(tc.remaining), dec(tc.amount))
			assert.True(t, total.Equal(dec(tc.wantTotal)), "total %s", total)
			assert.True(t, paid.Equal(dec(tc.wantPaid)), "paid %s", paid)
			assert.True(t, remaining.Equal(dec(tc.wantRem)), "remaining %s", remaining)
			assert.True(t, refund.Equal(dec(tc.wantOwed)), "refund %s", refund)
			assert.True(t, paid.Add(remaining).Equal(total), "paid+remaining must equal total")
		})
	}
}

func seedDraftSale(repo *mockRepository) *Sale {
	customer := int64(55)
	sale := &Sale{
		ID:              1,
		CompanyID:       2,
		CustomerID:      &customer,
		InvoiceNumber:   "INV-1",
		Status:          StatusDraft,
		SaleType:        TypeCredit,
		Total:           dec("500"),
		RemainingAmount: dec("500"),
		Lines: []Line{
			{ID: 11, SaleID: 1, ProductID: 10, Qty: dec("10"), UnitPrice: dec("50"), SubTotal: dec("500")},
		},
	}
	repo.sales[sale.ID] = sale
	repo.owners[10] = productOwner{companyID: 2, price: dec("40")}
	repo.stock[[2]int64{2, 10}] = dec("20")
	return sale
}

func TestApproveSecondApproverLoses(t *testing.T) {
	svc, env := newTestService()
	seedDraftSale(env.repo)
	identity := shared.Identity{UserID: 3, CompanyID: 2}
	req := ApproveRequest{SaleType: TypeCredit}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(context.Background(), 1, req, identity)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.Equal(t, shared.KindAlreadyApproved, shared.KindOf(err))
		lost++
	}
	assert.Equal(t, 1, won, "exactly one approver wins")
	assert.Equal(t, 1, lost, "the other gets already-approved")

	// The loser's transaction must not have decremented stock twice.
	require.Len(t, env.repo.movements, 1)
	assert.True(t, env.repo.stock[[2]int64{2, 10}].Equal(dec("10")))
}

func TestApproveStockDecrementsMatchOrderedQuantities(t *testing.T) {
	svc, env := newTestService()
	repo := env.repo

	parent := int64(1)
	repo.parents[2] = &parent
	customer := int64(55)
	repo.sales[1] = &Sale{
		ID:              1,
		CompanyID:       2,
		CustomerID:      &customer,
		InvoiceNumber:   "INV-1",
		Status:          StatusDraft,
		Total:           dec("560"),
		RemainingAmount: dec("560"),
		Lines: []Line{
			{ID: 11, SaleID: 1, ProductID: 10, Qty: dec("6"), UnitPrice: dec("60"), SubTotal: dec("360")},
			{ID: 12, SaleID: 1, ProductID: 11, Qty: dec("4"), UnitPrice: dec("50"), ParentUnitPrice: dec("40"), SubTotal: dec("200")},
		},
	}
	repo.owners[10] = productOwner{companyID: 2, price: dec("45")}
	repo.owners[11] = productOwner{companyID: 1, price: dec("40")}
	repo.stock[[2]int64{2, 10}] = dec("10")
	repo.stock[[2]int64{1, 11}] = dec("5")

	sale, err := svc.Approve(context.Background(), 1, ApproveRequest{SaleType: TypeCredit}, shared.Identity{UserID: 3, CompanyID: 2})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, sale.Status)

	// One outbound movement per line, each drawn from its planned source.
	require.Len(t, repo.movements, 2)
	assert.Equal(t, int64(2), repo.movements[0].CompanyID)
	assert.True(t, repo.movements[0].Qty.Equal(dec("6")))
	assert.Equal(t, int64(1), repo.movements[1].CompanyID)
	assert.True(t, repo.movements[1].Qty.Equal(dec("4")))

	// Balances shrank by exactly the ordered quantities.
	assert.True(t, repo.stock[[2]int64{2, 10}].Equal(dec("4")))
	assert.True(t, repo.stock[[2]int64{1, 11}].Equal(dec("1")))

	// The short local line was flipped to parent sourcing and recorded in
	// the settlement outbox, and the settlement was enqueued.
	assert.True(t, sale.Lines[1].IsFromParentCompany)
	require.Len(t, repo.outboxes, 1)
	assert.Equal(t, [3]int64{1, 2, 1}, repo.outboxes[0])
	assert.Len(t, env.enqueuer.ids, 1)
	assert.Equal(t, []int64{1}, repo.dispatched)
}

func TestReturnRefundsSettledPortion(t *testing.T) {
	svc, env := newTestService()
	repo := env.repo

	method := "CASH"
	customer := int64(55)
	repo.sales[1] = &Sale{
		ID:              1,
		CompanyID:       2,
		CustomerID:      &customer,
		InvoiceNumber:   "INV-1",
		Status:          StatusApproved,
		SaleType:        TypeCash,
		PaymentMethod:   &method,
		Total:           dec("500"),
		PaidAmount:      dec("500"),
		RemainingAmount: dec("0"),
		Lines: []Line{
			{ID: 11, SaleID: 1, ProductID: 10, Qty: dec("10"), UnitPrice: dec("50"), SubTotal: dec("500")},
		},
	}
	repo.stock[[2]int64{2, 10}] = dec("0")

	ret, err := svc.Return(context.Background(), ReturnInput{
		SaleID: 1,
		Lines:  []ReturnLine{{LineID: 11, Qty: dec("2")}},
	})
	require.NoError(t, err)
	assert.True(t, ret.Total.Equal(dec("100")))
	assert.True(t, ret.Refund.Equal(dec("100")))

	sale := repo.sales[1]
	assert.True(t, sale.Total.Equal(dec("400")), "total %s", sale.Total)
	assert.True(t, sale.PaidAmount.Equal(dec("400")), "paid %s", sale.PaidAmount)
	assert.True(t, sale.RemainingAmount.IsZero())
	assert.True(t, sale.PaidAmount.Add(sale.RemainingAmount).Equal(sale.Total))

	// Boxes came back and the settled portion left the cash box.
	assert.True(t, repo.stock[[2]int64{2, 10}].Equal(dec("2")))
	require.Len(t, env.treasuries.posts, 1)
	refund := env.treasuries.posts[0]
	assert.Equal(t, treasury.DirectionWithdrawal, refund.Direction)
	assert.Equal(t, treasury.SourceReturn, refund.Source)
	assert.Equal(t, treasury.RefReturn, refund.RefType)
	assert.True(t, refund.Amount.Equal(dec("100")))

	require.Len(t, env.ledgers.posts, 1)
	assert.Equal(t, ledger.TypeCredit, env.ledgers.posts[0].Type)
	assert.True(t, env.ledgers.posts[0].Amount.Equal(dec("100")))
}

func TestReturnAgainstPartiallyPaidSale(t *testing.T) {
	svc, env := newTestService()
	repo := env.repo

	customer := int64(55)
	repo.sales[1] = &Sale{
		ID:              1,
		CompanyID:       2,
		CustomerID:      &customer,
		InvoiceNumber:   "INV-1",
		Status:          StatusApproved,
		SaleType:        TypeCredit,
		Total:           dec("500"),
		PaidAmount:      dec("200"),
		RemainingAmount: dec("300"),
		Lines: []Line{
			{ID: 11, SaleID: 1, ProductID: 10, Qty: dec("10"), UnitPrice: dec("50"), SubTotal: dec("500")},
		},
	}

	ret, err := svc.Return(context.Background(), ReturnInput{
		SaleID: 1,
		Lines:  []ReturnLine{{LineID: 11, Qty: dec("8")}},
	})
	require.NoError(t, err)
	assert.True(t, ret.Total.Equal(dec("400")))
	assert.True(t, ret.Refund.Equal(dec("100")))

	// The credit eats the open remainder first; only the settled overlap
	// is refunded, and the identity still holds.
	sale := repo.sales[1]
	assert.True(t, sale.Total.Equal(dec("100")))
	assert.True(t, sale.PaidAmount.Equal(dec("100")))
	assert.True(t, sale.RemainingAmount.IsZero())
	assert.True(t, sale.PaidAmount.Add(sale.RemainingAmount).Equal(sale.Total))
}

func TestReturnBeforeDispatchRejected(t *testing.T) {
	svc, env := newTestService()
	env.dispatches.status = warehouse.DispatchPending

	customer := int64(55)
	env.repo.sales[1] = &Sale{
		ID:         1,
		CompanyID:  2,
		CustomerID: &customer,
		Status:     StatusApproved,
		Total:      dec("500"),
		Lines:      []Line{{ID: 11, SaleID: 1, ProductID: 10, Qty: dec("10"), UnitPrice: dec("50")}},
	}

	_, err := svc.Return(context.Background(), ReturnInput{
		SaleID: 1,
		Lines:  []ReturnLine{{LineID: 11, Qty: dec("2")}},
	})
	assert.Equal(t, shared.KindPrecondition, shared.KindOf(err))
	assert.Empty(t, env.repo.movements)
}
