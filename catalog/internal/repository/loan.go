package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type Loans interface {
	Borrow(ctx context.Context, userID, copyID int64, dueAt time.Time) (model.Loan, error)
	Return(ctx context.Context, loanID int64) (loan model.Loan, returned bool, err error)
	ListLoans(ctx context.Context, userID int64) ([]model.Loan, error)
}

var loanColumns = []string{"id", "user_id", "copy_id", "loaned_at", "due_at", "status", "returned_at"}

// Borrow flips the copy to BORROWED and records the loan in one transaction.
func (r *repository) Borrow(ctx context.Context, userID, copyID int64, dueAt time.Time) (model.Loan, error) {
	var loan model.Loan
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		q, args, err := qb.Update(copiesTableName).
			Set("status", model.CopyBorrowed).
			Where(sq.Eq{"id": copyID, "status": model.CopyAvailable}).
			ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return errors.Wrap(err, "update copy")
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return copyMissingOrBusy(ctx, tx, copyID)
		}

		q, args, err = qb.Insert(loansTableName).
			Columns("user_id", "copy_id", "due_at", "status").
			Values(userID, copyID, dueAt, model.LoanBorrowed).
			Suffix("returning " + strings.Join(loanColumns, ", ")).
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &loan, q, args...); err != nil {
			if isUniqueViolation(err) {
				return errs.ErrCopyUnavailable
			}
			return errors.Wrap(err, "insert loan")
		}
		return nil
	})
	if err != nil {
		return model.Loan{}, classify(err)
	}
	return loan, nil
}

func copyMissingOrBusy(ctx context.Context, tx *sqlx.Tx, copyID int64) error {
	q, args, err := qb.Select("status").
		From(copiesTableName).
		Where(sq.Eq{"id": copyID}).
		ToSql()
	if err != nil {
		return err
	}
	var status model.CopyStatus
	if err := tx.QueryRowxContext(ctx, q, args...).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrNotFound
		}
		return errors.Wrap(err, "select copy")
	}
	return errs.ErrCopyUnavailable
}

// Return closes an open loan and frees its copy. A loan that is unknown or
// already returned is left alone and reported with returned=false.
func (r *repository) Return(ctx context.Context, loanID int64) (model.Loan, bool, error) {
	var (
		loan     model.Loan
		returned bool
	)
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		q, args, err := qb.Update(loansTableName).
			Set("status", model.LoanReturned).
			Set("returned_at", sq.Expr("now()")).
			Where(sq.Eq{"id": loanID}).
			Where(sq.NotEq{"status": model.LoanReturned}).
			Suffix("returning " + strings.Join(loanColumns, ", ")).
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &loan, q, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return errors.Wrap(err, "update loan")
		}

		q, args, err = qb.Update(copiesTableName).
			Set("status", model.CopyAvailable).
			Where(sq.Eq{"id": loan.CopyID}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return errors.Wrap(err, "update copy")
		}
		returned = true
		return nil
	})
	if err != nil {
		return model.Loan{}, false, classify(err)
	}
	return loan, returned, nil
}

func (r *repository) ListLoans(ctx context.Context, userID int64) ([]model.Loan, error) {
	q, args, err := qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("loaned_at desc", "id desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	loans := make([]model.Loan, 0)
	if err := r.db.SelectContext(ctx, &loans, q, args...); err != nil {
		return nil, classify(err)
	}
	return loans, nil
}
