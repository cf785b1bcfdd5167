package repository

import (
	"context"
	"net"
	"syscall"

	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:generate go run github.com/golang/mock/mockgen -destination=mocks/mock.go -package=mocks . Repository

type Repository interface {
	Users
	Books
	Loans
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	usersTableName          = `users`
	authorsTableName        = `authors`
	categoriesTableName     = `categories`
	booksTableName          = `books`
	booksOverviewViewName   = `v_books_overview`
	bookAuthorsTableName    = `book_authors`
	bookCategoriesTableName = `book_categories`
	copiesTableName         = `copies`
	loansTableName          = `loans`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// withTx runs fn in one transaction: commit when fn returns nil,
// rollback on error or panic.
func (r *repository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Error("rollback", zap.Error(rbErr))
			}
			return
		}
		err = errors.Wrap(tx.Commit(), "commit")
	}()
	return fn(tx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// classify turns driver failures into errs values the handlers understand.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ForeignKeyViolation:
			return errors.Wrap(errs.ErrInvalidReference, pgErr.ConstraintName)
		case pgerrcode.UndefinedTable:
			return &errs.StoreError{Diagnostic: errs.DiagTableMissing, Err: err}
		case pgerrcode.InvalidCatalogName:
			return &errs.StoreError{Diagnostic: errs.DiagDatabaseMissing, Err: err}
		}
		return err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.Is(err, syscall.ECONNREFUSED) {
		return &errs.StoreError{Diagnostic: errs.DiagCannotConnect, Err: err}
	}
	return err
}
