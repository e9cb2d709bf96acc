package intercompany

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/payments"
	"github.com/meridian-erp/meridian-erp/internal/purchase"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestMirrorTotal(t *testing.T) {
	// A branch sold 10 boxes of parent stock priced at 40 each: the mirror
	// invoice bills the branch 400, regardless of the retail price the
	// branch charged its customer.
	lines := []OriginLine{
		{ProductID: 10, Qty: decimal.RequireFromString("10"), ParentUnitPrice: decimal.RequireFromString("40")},
	}
	assert.True(t, mirrorTotal(lines).Equal(decimal.RequireFromString("400")))
}

func TestMirrorTotalSumsLines(t *testing.T) {
	lines := []OriginLine{
		{Qty: decimal.RequireFromString("2"), ParentUnitPrice: decimal.RequireFromString("7.50")},
		{Qty: decimal.RequireFromString("3"), ParentUnitPrice: decimal.RequireFromString("10")},
	}
	assert.True(t, mirrorTotal(lines).Equal(decimal.RequireFromString("45")))

	assert.True(t, mirrorTotal(nil).IsZero())
}

type mirrorLink struct {
	saleID, parentSaleID, branchPurchaseID int64
}

type mockRepository struct {
	outbox  map[uuid.UUID]*OutboxEntry
	origins map[int64]OriginSale

	counterparties map[string]Counterparty
	nextID         int64

	mirrorSales []OriginSale
	purchases   []purchase.Purchase
	receipts    []payments.IssueReceiptInput
	ledgerPosts []ledger.EntryInput
	links       []mirrorLink

	ledgerErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		outbox:         make(map[uuid.UUID]*OutboxEntry),
		origins:        make(map[int64]OriginSale),
		counterparties: make(map[string]Counterparty),
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) GetOutbox(_ context.Context, id uuid.UUID) (OutboxEntry, error) {
	entry, ok := m.outbox[id]
	if !ok {
		return OutboxEntry{}, shared.NewNotFound("outbox entry", id)
	}
	return *entry, nil
}

func (m *mockRepository) GetOutboxForUpdate(ctx context.Context, id uuid.UUID) (OutboxEntry, error) {
	return m.GetOutbox(ctx, id)
}

func (m *mockRepository) OriginSale(_ context.Context, saleID int64) (OriginSale, error) {
	origin, ok := m.origins[saleID]
	if !ok {
		return OriginSale{}, shared.NewNotFound("sale", saleID)
	}
	return origin, nil
}

func (m *mockRepository) EnsureCounterparty(_ context.Context, kind CounterpartyKind, ownerCompanyID, representsCompanyID int64, name string) (Counterparty, error) {
	key := fmt.Sprintf("%s:%d:%d", kind, ownerCompanyID, representsCompanyID)
	if cp, ok := m.counterparties[key]; ok {
		return cp, nil
	}
	m.nextID++
	cp := Counterparty{
		ID:                  m.nextID,
		Kind:                kind,
		OwnerCompanyID:      ownerCompanyID,
		RepresentsCompanyID: representsCompanyID,
		Name:                name,
	}
	m.counterparties[key] = cp
	return cp, nil
}

func (m *mockRepository) InsertMirrorSale(_ context.Context, origin OriginSale, _, _ int64) (int64, error) {
	m.mirrorSales = append(m.mirrorSales, origin)
	m.nextID++
	return m.nextID, nil
}

func (m *mockRepository) InsertMirrorPurchase(_ context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	m.nextID++
	p.ID = m.nextID
	m.purchases = append(m.purchases, p)
	return p, nil
}

func (m *mockRepository) LinkOriginSale(_ context.Context, saleID, parentSaleID, branchPurchaseID int64) error {
	m.links = append(m.links, mirrorLink{saleID, parentSaleID, branchPurchaseID})
	return nil
}

func (m *mockRepository) CreateReceipt(_ context.Context, input payments.IssueReceiptInput) (payments.Receipt, error) {
	m.receipts = append(m.receipts, input)
	return payments.Receipt{Amount: input.Amount}, nil
}

func (m *mockRepository) PostLedger(_ context.Context, input ledger.EntryInput) (ledger.Entry, error) {
	if m.ledgerErr != nil {
		return ledger.Entry{}, m.ledgerErr
	}
	m.ledgerPosts = append(m.ledgerPosts, input)
	return ledger.Entry{Amount: input.Amount}, nil
}

func (m *mockRepository) MarkSettled(_ context.Context, id uuid.UUID) error {
	entry, ok := m.outbox[id]
	if !ok {
		return shared.NewNotFound("outbox entry", id)
	}
	entry.Status = OutboxSettled
	return nil
}

func (m *mockRepository) MarkFailed(_ context.Context, id uuid.UUID, cause string, exhausted bool) error {
	entry, ok := m.outbox[id]
	if !ok {
		return shared.NewNotFound("outbox entry", id)
	}
	entry.Attempts++
	entry.LastError = &cause
	if exhausted {
		entry.Status = OutboxFailed
	}
	return nil
}

func (m *mockRepository) ListPending(_ context.Context, limit int) ([]OutboxEntry, error) {
	var pending []OutboxEntry
	for _, entry := range m.outbox {
		if entry.Status == OutboxPending {
			pending = append(pending, *entry)
		}
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func newTestService(repo *mockRepository) *Service {
	return NewService(repo, "USD", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSettleMirrorsParentSourcedSale(t *testing.T) {
	repo := newMockRepository()
	outboxID := uuid.New()
	repo.outbox[outboxID] = &OutboxEntry{
		ID: outboxID, SaleID: 7, BranchCompanyID: 2, ParentCompanyID: 1, Status: OutboxPending,
	}
	repo.origins[7] = OriginSale{
		ID: 7, CompanyID: 2, InvoiceNumber: "INV-7",
		Lines: []OriginLine{
			{ProductID: 10, Qty: decimal.RequireFromString("10"), ParentUnitPrice: decimal.RequireFromString("40")},
		},
	}

	result, err := newTestService(repo).Settle(context.Background(), outboxID)
	require.NoError(t, err)
	assert.True(t, result.Total.Equal(decimal.RequireFromString("400")))
	assert.Equal(t, int64(7), result.OriginSaleID)

	// The parent books a mirror sale at parent prices.
	require.Len(t, repo.mirrorSales, 1)
	assert.Equal(t, "INV-7", repo.mirrorSales[0].InvoiceNumber)

	// The branch books an inventory-neutral auto purchase against the
	// parent-supplier counterparty.
	require.Len(t, repo.purchases, 1)
	p := repo.purchases[0]
	assert.Equal(t, int64(2), p.CompanyID)
	assert.Equal(t, "IC-INV-7", p.InvoiceNumber)
	assert.Equal(t, purchase.StatusApproved, p.Status)
	assert.False(t, p.AffectsInventory)
	assert.True(t, p.IsAutoGenerated)
	require.NotNil(t, p.OriginSaleID)
	assert.Equal(t, int64(7), *p.OriginSaleID)
	assert.True(t, p.Total.Equal(decimal.RequireFromString("400")))

	// The receivable rides a MAIN_PURCHASE receipt in the branch's books.
	require.Len(t, repo.receipts, 1)
	r := repo.receipts[0]
	assert.Equal(t, payments.KindMainPurchase, r.Kind)
	assert.Equal(t, payments.SideSupplier, r.Side)
	assert.Equal(t, int64(2), r.CompanyID)
	assert.Equal(t, "USD", r.Currency)
	assert.True(t, r.Amount.Equal(decimal.RequireFromString("400")))

	// Both companies' books balance: parent debits the branch customer,
	// branch credits the parent supplier, same amount.
	require.Len(t, repo.ledgerPosts, 2)
	debit, credit := repo.ledgerPosts[0], repo.ledgerPosts[1]
	assert.Equal(t, int64(1), debit.CompanyID)
	assert.Equal(t, ledger.SideCustomer, debit.Side)
	assert.Equal(t, ledger.TypeDebit, debit.Type)
	assert.Equal(t, ledger.RefSale, debit.RefType)
	assert.True(t, debit.Amount.Equal(decimal.RequireFromString("400")))
	assert.Equal(t, int64(2), credit.CompanyID)
	assert.Equal(t, ledger.SideSupplier, credit.Side)
	assert.Equal(t, ledger.TypeCredit, credit.Type)
	assert.Equal(t, ledger.RefPurchase, credit.RefType)
	assert.True(t, credit.Amount.Equal(decimal.RequireFromString("400")))

	require.Len(t, repo.links, 1)
	assert.Equal(t, int64(7), repo.links[0].saleID)
	assert.Equal(t, result.ParentSaleID, repo.links[0].parentSaleID)
	assert.Equal(t, result.BranchPurchaseID, repo.links[0].branchPurchaseID)

	assert.Equal(t, OutboxSettled, repo.outbox[outboxID].Status)
}

func TestSettleSettledEntryIsNoOp(t *testing.T) {
	repo := newMockRepository()
	outboxID := uuid.New()
	repo.outbox[outboxID] = &OutboxEntry{
		ID: outboxID, SaleID: 7, BranchCompanyID: 2, ParentCompanyID: 1, Status: OutboxSettled,
	}

	result, err := newTestService(repo).Settle(context.Background(), outboxID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.OriginSaleID)
	assert.Empty(t, repo.mirrorSales)
	assert.Empty(t, repo.purchases)
	assert.Empty(t, repo.receipts)
	assert.Empty(t, repo.ledgerPosts)
}

func TestSettleLocallySourcedSaleJustSettles(t *testing.T) {
	repo := newMockRepository()
	outboxID := uuid.New()
	repo.outbox[outboxID] = &OutboxEntry{
		ID: outboxID, SaleID: 7, BranchCompanyID: 2, ParentCompanyID: 1, Status: OutboxPending,
	}
	repo.origins[7] = OriginSale{ID: 7, CompanyID: 2, InvoiceNumber: "INV-7"}

	_, err := newTestService(repo).Settle(context.Background(), outboxID)
	require.NoError(t, err)
	assert.Equal(t, OutboxSettled, repo.outbox[outboxID].Status)
	assert.Empty(t, repo.mirrorSales)
	assert.Empty(t, repo.ledgerPosts)
}

func TestSettleFailureCountsAttempts(t *testing.T) {
	repo := newMockRepository()
	outboxID := uuid.New()
	repo.outbox[outboxID] = &OutboxEntry{
		ID: outboxID, SaleID: 7, BranchCompanyID: 2, ParentCompanyID: 1, Status: OutboxPending,
	}
	repo.origins[7] = OriginSale{
		ID: 7, CompanyID: 2, InvoiceNumber: "INV-7",
		Lines: []OriginLine{
			{ProductID: 10, Qty: decimal.RequireFromString("1"), ParentUnitPrice: decimal.RequireFromString("40")},
		},
	}
	repo.ledgerErr = shared.NewValidation("ledger down")

	_, err := newTestService(repo).Settle(context.Background(), outboxID)
	require.Error(t, err)

	entry := repo.outbox[outboxID]
	assert.Equal(t, OutboxPending, entry.Status)
	assert.Equal(t, 1, entry.Attempts)
	require.NotNil(t, entry.LastError)
	assert.Contains(t, *entry.LastError, "ledger down")
}

func TestSettleExhaustedRetriesParkAsFailed(t *testing.T) {
	repo := newMockRepository()
	outboxID := uuid.New()
	repo.outbox[outboxID] = &OutboxEntry{
		ID: outboxID, SaleID: 7, BranchCompanyID: 2, ParentCompanyID: 1,
		Status: OutboxPending, Attempts: MaxSettleAttempts - 1,
	}
	repo.origins[7] = OriginSale{
		ID: 7, CompanyID: 2, InvoiceNumber: "INV-7",
		Lines: []OriginLine{
			{ProductID: 10, Qty: decimal.RequireFromString("1"), ParentUnitPrice: decimal.RequireFromString("40")},
		},
	}
	repo.ledgerErr = shared.NewValidation("ledger down")

	_, err := newTestService(repo).Settle(context.Background(), outboxID)
	require.Error(t, err)
	assert.Equal(t, OutboxFailed, repo.outbox[outboxID].Status)
	assert.Equal(t, MaxSettleAttempts, repo.outbox[outboxID].Attempts)
}
