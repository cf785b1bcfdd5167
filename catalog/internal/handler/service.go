package handler

import (
	"context"

	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	"github.com/Astemirdum/library-catalog/catalog/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.RegisterResponse, error)
	Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error)
}

type BookService interface {
	ListBooks(ctx context.Context) ([]model.BookOverview, error)
	GetBook(ctx context.Context, id int64) (model.Book, error)
	ListCopies(ctx context.Context, bookID int64) ([]model.Copy, error)
	ListAuthors(ctx context.Context) ([]model.Reference, error)
	ListCategories(ctx context.Context) ([]model.Reference, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, id int64, req model.UpdateBookRequest) error
	DeleteBook(ctx context.Context, id int64) error
}

type LoanService interface {
	Borrow(ctx context.Context, userID int64, req model.BorrowRequest) (model.Loan, error)
	Return(ctx context.Context, loanID int64) error
	ListLoans(ctx context.Context, userID int64) ([]model.Loan, error)
}

var (
	_ AuthService = (*service.Service)(nil)
	_ BookService = (*service.Service)(nil)
	_ LoanService = (*service.Service)(nil)
)
