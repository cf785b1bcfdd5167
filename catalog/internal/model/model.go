package model

import (
	"io"
	"strings"
	"time"

	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/pkg/errors"
)

type User struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         auth.Role `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type RegisterResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginUser struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	Role auth.Role `json:"role"`
}

type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

type BookOverview struct {
	ID          int64   `json:"id" db:"id"`
	Title       string  `json:"title" db:"title"`
	Description string  `json:"description" db:"description"`
	CoverFile   *string `json:"cover_file" db:"cover_file"`
	CoverURL    string  `json:"cover_url" db:"-"`
	MainAuthor  *string `json:"main_author" db:"main_author"`
}

type Book struct {
	BookOverview
	Authors    []int64 `json:"authors"`
	Categories []int64 `json:"categories"`
}

// Upload is a cover image received with a create or update request.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type CreateBookRequest struct {
	Title       string  `validate:"required,max=255"`
	Description string  `validate:"max=10000"`
	Authors     []int64 `validate:"dive,gt=0"`
	Categories  []int64 `validate:"dive,gt=0"`
	Cover       *Upload `validate:"-"`
}

// UpdateBookRequest leaves a field untouched when it is nil.
type UpdateBookRequest struct {
	Title       *string `validate:"omitempty,max=255"`
	Description *string `validate:"omitempty,max=10000"`
	Cover       *Upload `validate:"-"`
}

type Reference struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyBorrowed  CopyStatus = "BORROWED"
)

type Copy struct {
	ID     int64      `json:"id" db:"id"`
	BookID int64      `json:"book_id" db:"book_id"`
	Status CopyStatus `json:"status" db:"status"`
}

type LoanStatus string

const (
	LoanBorrowed LoanStatus = "BORROWED"
	LoanReturned LoanStatus = "RETURNED"
)

type Loan struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	CopyID     int64      `json:"copy_id" db:"copy_id"`
	LoanedAt   time.Time  `json:"loaned_at" db:"loaned_at"`
	DueAt      time.Time  `json:"due_at" db:"due_at"`
	Status     LoanStatus `json:"status" db:"status"`
	ReturnedAt *time.Time `json:"returned_at" db:"returned_at"`
}

type BorrowRequest struct {
	CopyID int64 `json:"copy_id" validate:"required,gt=0"`
	DueAt  Date  `json:"due_at"`
}

type BorrowResponse struct {
	Borrowed bool `json:"borrowed"`
	Loan     Loan `json:"loan"`
}

// Date accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return errors.Errorf("invalid date %q", s)
}
