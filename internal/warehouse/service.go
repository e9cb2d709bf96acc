package warehouse

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Service exposes the dispatch read model and its two legal transitions.
type Service struct {
	repo *Repository
}

// NewService constructs a warehouse service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{repo: NewRepository(pool)}
}

// StatusForSale reports how far dispatch of a sale has progressed.
func (s *Service) StatusForSale(ctx context.Context, saleID int64) (DispatchStatus, error) {
	d, err := s.repo.GetBySale(ctx, saleID)
	if err != nil {
		return "", err
	}
	return d.Status, nil
}

// Start moves a PENDING dispatch order to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, id int64) (DispatchOrder, error) {
	return s.transition(ctx, id, DispatchPending, DispatchInProgress)
}

// Complete moves an IN_PROGRESS dispatch order to COMPLETED, which is the
// point goods are considered physically handed over.
func (s *Service) Complete(ctx context.Context, id int64) (DispatchOrder, error) {
	return s.transition(ctx, id, DispatchInProgress, DispatchCompleted)
}

func (s *Service) transition(ctx context.Context, id int64, from, to DispatchStatus) (DispatchOrder, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return DispatchOrder{}, err
	}
	if d.Status != from {
		return DispatchOrder{}, shared.NewPrecondition("dispatch-wrong-status",
			"dispatch order %d is %s, expected %s", id, d.Status, from)
	}
	if err := s.repo.UpdateStatus(ctx, id, to); err != nil {
		return DispatchOrder{}, err
	}
	return s.repo.Get(ctx, id)
}

// Get retrieves a dispatch order.
func (s *Service) Get(ctx context.Context, id int64) (DispatchOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns dispatch orders for a company.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]DispatchOrder, error) {
	return s.repo.List(ctx, filter)
}
