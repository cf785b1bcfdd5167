package service

import (
	"context"
	"time"

	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
)

func (s *Service) Borrow(ctx context.Context, userID int64, req model.BorrowRequest) (model.Loan, error) {
	if req.CopyID <= 0 {
		return model.Loan{}, errs.Invalid("copy_id is required")
	}
	if req.DueAt.IsZero() {
		return model.Loan{}, errs.Invalid("due_at is required")
	}
	if !req.DueAt.After(time.Now()) {
		return model.Loan{}, errs.Invalid("due_at must be in the future")
	}
	loan, err := s.repo.Borrow(ctx, userID, req.CopyID, req.DueAt.Time)
	if err != nil {
		return model.Loan{}, err
	}
	s.publish(ctx, kafka.EventActivity{Type: kafka.LoanBorrowed, UserID: userID, CopyID: loan.CopyID, LoanID: loan.ID})
	return loan, nil
}

// Return is a no-op for unknown or already returned loans.
func (s *Service) Return(ctx context.Context, loanID int64) error {
	loan, returned, err := s.repo.Return(ctx, loanID)
	if err != nil {
		return err
	}
	if returned {
		s.publish(ctx, kafka.EventActivity{Type: kafka.LoanReturned, CopyID: loan.CopyID, LoanID: loan.ID})
	}
	return nil
}

func (s *Service) ListLoans(ctx context.Context, userID int64) ([]model.Loan, error) {
	return s.repo.ListLoans(ctx, userID)
}
