package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Service exposes the account ledger for postings and statement reads.
type Service struct {
	pool  *pgxpool.Pool
	repo  *Repository
	cache *Cache
}

// NewService constructs a ledger service. cache may be nil.
func NewService(pool *pgxpool.Pool, cache *Cache) *Service {
	return &Service{pool: pool, repo: NewRepository(pool), cache: cache}
}

// Post appends one entry in its own transaction.
func (s *Service) Post(ctx context.Context, input EntryInput) (Entry, error) {
	var entry Entry
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		entry, err = Post(ctx, tx, input)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	s.cache.Invalidate(ctx, input.CompanyID, input.Side, input.CounterpartyID)
	return entry, nil
}

// Reverse appends an explicit opposite entry referencing the original
// document. Entries themselves are never mutated.
func (s *Service) Reverse(ctx context.Context, original Entry, description string) (Entry, error) {
	typ := TypeCredit
	if original.Type == TypeCredit {
		typ = TypeDebit
	}
	return s.Post(ctx, EntryInput{
		CompanyID:      original.CompanyID,
		Side:           original.Side,
		CounterpartyID: original.CounterpartyID,
		Type:           typ,
		Amount:         original.Amount,
		RefType:        RefAdjust,
		RefID:          original.RefID,
		Description:    description,
	})
}

// ReverseByID reverses the entry with the given id.
func (s *Service) ReverseByID(ctx context.Context, entryID int64, description string) (Entry, error) {
	original, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	return s.Reverse(ctx, original, description)
}

// Balance reads the current counterparty balance.
func (s *Service) Balance(ctx context.Context, companyID int64, side Side, counterpartyID int64) (decimal.Decimal, error) {
	return s.repo.Balance(ctx, companyID, side, counterpartyID)
}

// Statement returns the counterparty's journal, read through the cache.
func (s *Service) Statement(ctx context.Context, filter StatementFilter) ([]Entry, error) {
	if filter.CompanyID == 0 || filter.CounterpartyID == 0 {
		return nil, shared.NewValidation("ledger: company and counterparty required")
	}
	// Cache only whole default-page statements.
	cacheable := filter.Limit == 0 && filter.Offset == 0
	if cacheable {
		if entries, ok := s.cache.GetStatement(ctx, filter.CompanyID, filter.Side, filter.CounterpartyID); ok {
			return entries, nil
		}
	}
	entries, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cache.SetStatement(ctx, filter.CompanyID, filter.Side, filter.CounterpartyID, entries)
	}
	return entries, nil
}
