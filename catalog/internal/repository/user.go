package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Users interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

var userColumns = []string{"id", "name", "email", "password_hash", "role", "created_at"}

func (r *repository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	q, args, err := qb.Insert(usersTableName).
		Columns("name", "email", "password_hash", "role").
		Values(user.Name, user.Email, user.PasswordHash, user.Role).
		Suffix("returning " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var created model.User
	if err := r.db.GetContext(ctx, &created, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, errs.ErrEmailTaken
		}
		r.log.Error("CreateUser", zap.String("q", q), zap.Error(err))
		return model.User{}, classify(err)
	}
	return created, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	q, args, err := qb.Select(userColumns...).
		From(usersTableName).
		Where(sq.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, classify(err)
	}
	return user, nil
}
