package treasury

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository is the locked posting surface used inside a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Treasury, error)
	Apply(ctx context.Context, txn Transaction) (Transaction, error)
}

// RepositoryPort is the persistence surface of the treasury service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Treasury, error)
	FindCompanyTreasury(ctx context.Context, companyID int64) (Treasury, error)
	ListTransactions(ctx context.Context, treasuryID int64, limit, offset int) ([]Transaction, error)
}

// treasuryReader is the lookup slice shared by the routing rule.
type treasuryReader interface {
	Get(ctx context.Context, id int64) (Treasury, error)
	FindCompanyTreasury(ctx context.Context, companyID int64) (Treasury, error)
}

// Service exposes the treasury ledger.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a treasury service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// buildTransaction applies the direction to the locked balance and shapes
// the append-only log row with its balanceBefore/balanceAfter pair.
func buildTransaction(t Treasury, input PostInput) (Transaction, error) {
	after := t.Balance
	switch input.Direction {
	case DirectionDeposit:
		after = after.Add(input.Amount)
	case DirectionWithdrawal, DirectionTransfer:
		after = after.Sub(input.Amount)
	default:
		return Transaction{}, shared.NewValidation("treasury: unknown direction %q", input.Direction)
	}
	return Transaction{
		TreasuryID:    t.ID,
		Direction:     input.Direction,
		Source:        input.Source,
		Amount:        input.Amount,
		BalanceBefore: t.Balance,
		BalanceAfter:  after,
		RefType:       input.RefType,
		RefID:         input.RefID,
		Description:   input.Description,
	}, nil
}

// post locks the treasury, guards the balance and applies one posting.
func post(ctx context.Context, repo TxRepository, input PostInput) (Transaction, error) {
	if input.TreasuryID == 0 {
		return Transaction{}, shared.NewValidation("treasury: treasury id required")
	}
	if !input.Amount.IsPositive() {
		return Transaction{}, shared.NewValidation("treasury: amount must be positive")
	}

	t, err := repo.GetForUpdate(ctx, input.TreasuryID)
	if err != nil {
		return Transaction{}, err
	}
	if input.Direction != DirectionDeposit && t.Balance.LessThan(input.Amount) {
		return Transaction{}, shared.NewPrecondition("insufficient-treasury-balance",
			"treasury %d holds %s, cannot withdraw %s", t.ID, t.Balance, input.Amount)
	}
	txn, err := buildTransaction(t, input)
	if err != nil {
		return Transaction{}, err
	}
	return repo.Apply(ctx, txn)
}

// Post applies a single posting in its own transaction.
func (s *Service) Post(ctx context.Context, input PostInput) (Transaction, error) {
	var txn Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		txn, err = post(ctx, tx, input)
		return err
	})
	return txn, err
}

// Transfer moves an amount between treasuries as two paired legs in one
// transaction; either both legs commit or neither does. Rows are locked in
// ascending id order so concurrent opposite transfers cannot deadlock.
func (s *Service) Transfer(ctx context.Context, fromID, toID int64, amount decimal.Decimal, description string) (Transaction, Transaction, error) {
	if fromID == toID {
		return Transaction{}, Transaction{}, shared.NewValidation("treasury: transfer requires two distinct treasuries")
	}
	if !amount.IsPositive() {
		return Transaction{}, Transaction{}, shared.NewValidation("treasury: amount must be positive")
	}

	var out, in Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}
		locked := map[int64]Treasury{}
		for _, id := range []int64{first, second} {
			t, err := tx.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = t
		}

		from, to := locked[fromID], locked[toID]
		if from.Balance.LessThan(amount) {
			return shared.NewPrecondition("insufficient-treasury-balance",
				"treasury %d holds %s, cannot transfer %s", from.ID, from.Balance, amount)
		}

		outTxn, err := buildTransaction(from, PostInput{
			TreasuryID:  from.ID,
			Amount:      amount,
			Direction:   DirectionTransfer,
			Source:      SourceTransfer,
			RefType:     RefTransfer,
			RefID:       to.ID,
			Description: description,
		})
		if err != nil {
			return err
		}
		if out, err = tx.Apply(ctx, outTxn); err != nil {
			return err
		}

		inTxn, err := buildTransaction(to, PostInput{
			TreasuryID:  to.ID,
			Amount:      amount,
			Direction:   DirectionDeposit,
			Source:      SourceTransfer,
			RefType:     RefTransfer,
			RefID:       from.ID,
			Description: description,
		})
		if err != nil {
			return err
		}
		in, err = tx.Apply(ctx, inTxn)
		return err
	})
	if err != nil {
		return Transaction{}, Transaction{}, err
	}
	return out, in, nil
}

// ResolveForMethod applies the routing rule: CASH settles into the paying
// company's COMPANY treasury; BANK and CARD require an explicit BANK
// treasury from the caller.
func (s *Service) ResolveForMethod(ctx context.Context, companyID int64, method PaymentMethod, explicitID *int64) (Treasury, error) {
	return resolveForMethod(ctx, s.repo, companyID, method, explicitID)
}

// ResolveForMethodTx is the transaction-scoped variant.
func ResolveForMethodTx(ctx context.Context, conn db.DBTX, companyID int64, method PaymentMethod, explicitID *int64) (Treasury, error) {
	return resolveForMethod(ctx, NewRepository(conn), companyID, method, explicitID)
}

func resolveForMethod(ctx context.Context, repo treasuryReader, companyID int64, method PaymentMethod, explicitID *int64) (Treasury, error) {
	switch method {
	case MethodCash:
		t, err := repo.FindCompanyTreasury(ctx, companyID)
		if err != nil {
			if shared.KindOf(err) == shared.KindNotFound {
				return Treasury{}, shared.NewTreasuryMisconfigured(companyID, string(method))
			}
			return Treasury{}, err
		}
		return t, nil
	case MethodBank, MethodCard:
		if explicitID == nil {
			return Treasury{}, shared.NewValidation("treasury: %s payments require an explicit bank treasury", method)
		}
		t, err := repo.Get(ctx, *explicitID)
		if err != nil {
			return Treasury{}, err
		}
		if t.Type != TypeBank {
			return Treasury{}, shared.NewTreasuryMisconfigured(companyID, string(method))
		}
		return t, nil
	default:
		return Treasury{}, shared.NewValidation("treasury: unknown payment method %q", method)
	}
}

// Get retrieves a treasury.
func (s *Service) Get(ctx context.Context, id int64) (Treasury, error) {
	return s.repo.Get(ctx, id)
}

// Transactions lists the append-only transaction log.
func (s *Service) Transactions(ctx context.Context, treasuryID int64, limit, offset int) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, treasuryID, limit, offset)
}
