package repository

import (
	"context"
	"database/sql"

	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Books interface {
	ListBooks(ctx context.Context) ([]model.BookOverview, error)
	GetBook(ctx context.Context, id int64) (model.BookOverview, error)
	BookAuthorIDs(ctx context.Context, id int64) ([]int64, error)
	BookCategoryIDs(ctx context.Context, id int64) ([]int64, error)
	ListCopies(ctx context.Context, bookID int64) ([]model.Copy, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest, cover *string) (int64, error)
	UpdateBook(ctx context.Context, id int64, req model.UpdateBookRequest, cover *string) (oldCover *string, err error)
	DeleteBook(ctx context.Context, id int64) (cover *string, err error)
	ListAuthors(ctx context.Context) ([]model.Reference, error)
	ListCategories(ctx context.Context) ([]model.Reference, error)
}

var overviewColumns = []string{"id", "title", "description", "cover_file", "main_author"}

func (r *repository) ListBooks(ctx context.Context) ([]model.BookOverview, error) {
	q, args, err := qb.Select(overviewColumns...).
		From(booksOverviewViewName).
		OrderBy("title", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	books := make([]model.BookOverview, 0)
	if err := r.db.SelectContext(ctx, &books, q, args...); err != nil {
		return nil, classify(err)
	}
	return books, nil
}

func (r *repository) GetBook(ctx context.Context, id int64) (model.BookOverview, error) {
	q, args, err := qb.Select(overviewColumns...).
		From(booksOverviewViewName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.BookOverview{}, err
	}
	var book model.BookOverview
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BookOverview{}, errs.ErrNotFound
		}
		return model.BookOverview{}, classify(err)
	}
	return book, nil
}

func (r *repository) BookAuthorIDs(ctx context.Context, id int64) ([]int64, error) {
	q, args, err := qb.Select("author_id").
		From(bookAuthorsTableName).
		Where(sq.Eq{"book_id": id}).
		OrderBy("position", "author_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0)
	if err := r.db.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

func (r *repository) BookCategoryIDs(ctx context.Context, id int64) ([]int64, error) {
	q, args, err := qb.Select("category_id").
		From(bookCategoriesTableName).
		Where(sq.Eq{"book_id": id}).
		OrderBy("category_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0)
	if err := r.db.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

func (r *repository) ListCopies(ctx context.Context, bookID int64) ([]model.Copy, error) {
	q, args, err := qb.Select("id", "book_id", "status").
		From(copiesTableName).
		Where(sq.Eq{"book_id": bookID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	copies := make([]model.Copy, 0)
	if err := r.db.SelectContext(ctx, &copies, q, args...); err != nil {
		return nil, classify(err)
	}
	return copies, nil
}

// CreateBook inserts the book and its author and category relations in one transaction.
func (r *repository) CreateBook(ctx context.Context, req model.CreateBookRequest, cover *string) (int64, error) {
	var bookID int64
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		q, args, err := qb.Insert(booksTableName).
			Columns("title", "description", "cover_file").
			Values(req.Title, req.Description, cover).
			Suffix("returning id").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRowxContext(ctx, q, args...).Scan(&bookID); err != nil {
			return errors.Wrap(err, "insert book")
		}

		if len(req.Authors) > 0 {
			ins := qb.Insert(bookAuthorsTableName).Columns("book_id", "author_id", "position")
			for i, authorID := range req.Authors {
				ins = ins.Values(bookID, authorID, i)
			}
			if err := execTx(ctx, tx, ins); err != nil {
				return errors.Wrap(err, "insert book authors")
			}
		}

		if len(req.Categories) > 0 {
			ins := qb.Insert(bookCategoriesTableName).Columns("book_id", "category_id")
			for _, categoryID := range req.Categories {
				ins = ins.Values(bookID, categoryID)
			}
			if err := execTx(ctx, tx, ins); err != nil {
				return errors.Wrap(err, "insert book categories")
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("CreateBook", zap.Error(err))
		return 0, classify(err)
	}
	return bookID, nil
}

// UpdateBook applies the non-nil fields and returns the cover the row pointed at before.
func (r *repository) UpdateBook(ctx context.Context, id int64, req model.UpdateBookRequest, cover *string) (*string, error) {
	var oldCover *string
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		q, args, err := qb.Select("cover_file").
			From(booksTableName).
			Where(sq.Eq{"id": id}).
			Suffix("for update").
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRowxContext(ctx, q, args...).Scan(&oldCover); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrNotFound
			}
			return errors.Wrap(err, "select book")
		}

		upd := qb.Update(booksTableName).
			Set("title", sq.Expr("coalesce(?, title)", req.Title)).
			Set("description", sq.Expr("coalesce(?, description)", req.Description)).
			Where(sq.Eq{"id": id})
		if cover != nil {
			upd = upd.Set("cover_file", *cover)
		}
		if err := execTx(ctx, tx, upd); err != nil {
			return errors.Wrap(err, "update book")
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return oldCover, nil
}

func (r *repository) DeleteBook(ctx context.Context, id int64) (*string, error) {
	q, args, err := qb.Delete(booksTableName).
		Where(sq.Eq{"id": id}).
		Suffix("returning cover_file").
		ToSql()
	if err != nil {
		return nil, err
	}
	var cover *string
	if err := r.db.QueryRowxContext(ctx, q, args...).Scan(&cover); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, classify(err)
	}
	return cover, nil
}

func (r *repository) ListAuthors(ctx context.Context) ([]model.Reference, error) {
	return r.listReferences(ctx, authorsTableName)
}

func (r *repository) ListCategories(ctx context.Context) ([]model.Reference, error) {
	return r.listReferences(ctx, categoriesTableName)
}

func (r *repository) listReferences(ctx context.Context, table string) ([]model.Reference, error) {
	q, args, err := qb.Select("id", "name").
		From(table).
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	refs := make([]model.Reference, 0)
	if err := r.db.SelectContext(ctx, &refs, q, args...); err != nil {
		return nil, classify(err)
	}
	return refs, nil
}

func execTx(ctx context.Context, tx *sqlx.Tx, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, q, args...)
	return err
}
