package service_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	repo_mocks "github.com/Astemirdum/library-catalog/catalog/internal/repository/mocks"
	"github.com/Astemirdum/library-catalog/catalog/internal/service"
	"github.com/Astemirdum/library-catalog/pkg/assets"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	events []kafka.EventActivity
}

func (r *recorder) Publish(_ context.Context, ev kafka.EventActivity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []kafka.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]kafka.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type env struct {
	svc    *service.Service
	repo   *repo_mocks.MockRepository
	creds  *auth.Credentials
	events *recorder
	dir    string
}

func newEnv(t *testing.T) env {
	t.Helper()
	c := gomock.NewController(t)
	repo := repo_mocks.NewMockRepository(c)
	dir := filepath.Join(t.TempDir(), "assets")
	store, err := assets.NewStore(assets.Config{Dir: dir, MaxFileSizeMB: 1}, zap.NewNop())
	require.NoError(t, err)
	creds := auth.NewCredentials(auth.Config{Secret: "test-secret", BcryptCost: bcrypt.MinCost})
	rec := &recorder{}
	return env{
		svc:    service.NewService(repo, creds, store, rec, zap.NewNop()),
		repo:   repo,
		creds:  creds,
		events: rec,
		dir:    dir,
	}
}

func pngUpload(t *testing.T) *model.Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))))
	return &model.Upload{Filename: "cover.png", ContentType: "image/png", Body: &buf}
}

func files(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func adminCtx() context.Context {
	return auth.SetIdentity(context.Background(), auth.Identity{ID: 1, Role: auth.RoleAdmin, Email: "admin@example.com"})
}

func TestService_Register(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.repo.EXPECT().
		CreateUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u model.User) (model.User, error) {
			require.Equal(t, "ann@example.com", u.Email)
			require.Equal(t, auth.RoleMember, u.Role)
			require.True(t, e.creds.Verify("secret1", u.PasswordHash))
			u.ID = 3
			return u, nil
		})

	resp, err := e.svc.Register(context.Background(), model.RegisterRequest{
		Name: " Ann ", Email: " Ann@Example.com", Password: "secret1",
	})
	require.NoError(t, err)
	require.Equal(t, model.RegisterResponse{ID: 3, Name: "Ann", Email: "ann@example.com"}, resp)

	e.repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(model.User{}, errs.ErrEmailTaken)
	_, err = e.svc.Register(context.Background(), model.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	require.ErrorIs(t, err, errs.ErrEmailTaken)
}

func TestService_Register_PasswordBytes(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	// 40 runes, 80 bytes
	_, err := e.svc.Register(context.Background(), model.RegisterRequest{
		Name: "Ann", Email: "ann@example.com", Password: strings.Repeat("ж", 40),
	})
	require.ErrorIs(t, err, errs.ErrValidation)
	require.EqualError(t, err, "password must be at most 72 bytes")

	e.repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(model.User{ID: 4, Name: "Ann", Email: "ann@example.com"}, nil)
	_, err = e.svc.Register(context.Background(), model.RegisterRequest{
		Name: "Ann", Email: "ann@example.com", Password: strings.Repeat("ж", 36),
	})
	require.NoError(t, err)
}

type countingCreds struct {
	*auth.Credentials
	hashes int
}

func (c *countingCreds) Hash(password string) (string, error) {
	c.hashes++
	return c.Credentials.Hash(password)
}

func TestService_Login_DummyHashPerService(t *testing.T) {
	t.Parallel()
	newSvc := func() (*service.Service, *countingCreds) {
		c := gomock.NewController(t)
		repo := repo_mocks.NewMockRepository(c)
		repo.EXPECT().GetUserByEmail(gomock.Any(), "ghost@example.com").Return(model.User{}, errs.ErrNotFound).Times(2)
		creds := &countingCreds{Credentials: auth.NewCredentials(auth.Config{Secret: "s", BcryptCost: bcrypt.MinCost})}
		return service.NewService(repo, creds, nil, nil, zap.NewNop()), creds
	}
	first, firstCreds := newSvc()
	second, secondCreds := newSvc()

	for _, svc := range []*service.Service{first, second} {
		for i := 0; i < 2; i++ {
			_, err := svc.Login(context.Background(), model.LoginRequest{Email: "ghost@example.com", Password: "secret1"})
			require.ErrorIs(t, err, errs.ErrInvalidCredentials)
		}
	}
	require.Equal(t, 1, firstCreds.hashes)
	require.Equal(t, 1, secondCreds.hashes)
}

func TestService_Login(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	hash, err := e.creds.Hash("secret1")
	require.NoError(t, err)
	user := model.User{ID: 3, Name: "Ann", Email: "ann@example.com", PasswordHash: hash, Role: auth.RoleAdmin}

	tests := []struct {
		name     string
		email    string
		password string
		repo     func()
		wantErr  error
	}{
		{
			name: "ok", email: "ANN@example.com", password: "secret1",
			repo: func() { e.repo.EXPECT().GetUserByEmail(gomock.Any(), "ann@example.com").Return(user, nil) },
		},
		{
			name: "wrong password", email: "ann@example.com", password: "secret2",
			repo:    func() { e.repo.EXPECT().GetUserByEmail(gomock.Any(), "ann@example.com").Return(user, nil) },
			wantErr: errs.ErrInvalidCredentials,
		},
		{
			name: "unknown email", email: "bob@example.com", password: "secret1",
			repo:    func() { e.repo.EXPECT().GetUserByEmail(gomock.Any(), "bob@example.com").Return(model.User{}, errs.ErrNotFound) },
			wantErr: errs.ErrInvalidCredentials,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.repo()
			resp, err := e.svc.Login(context.Background(), model.LoginRequest{Email: tt.email, Password: tt.password})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, model.LoginUser{ID: 3, Name: "Ann", Role: auth.RoleAdmin}, resp.User)
			id, err := e.creds.VerifyToken(resp.Token)
			require.NoError(t, err)
			require.Equal(t, auth.Identity{ID: 3, Role: auth.RoleAdmin, Email: "ann@example.com"}, id)
		})
	}
}

func TestService_GetBook(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.repo.EXPECT().GetBook(gomock.Any(), int64(4)).Return(model.BookOverview{ID: 4, Title: "Dune"}, nil)
	e.repo.EXPECT().BookAuthorIDs(gomock.Any(), int64(4)).Return([]int64{2, 1}, nil)
	e.repo.EXPECT().BookCategoryIDs(gomock.Any(), int64(4)).Return([]int64{}, nil)

	book, err := e.svc.GetBook(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, "/assets/fallback.png", book.CoverURL)
	require.Equal(t, []int64{2, 1}, book.Authors)

	e.repo.EXPECT().GetBook(gomock.Any(), int64(5)).Return(model.BookOverview{}, errs.ErrNotFound)
	e.repo.EXPECT().BookAuthorIDs(gomock.Any(), int64(5)).Return([]int64{}, nil).AnyTimes()
	e.repo.EXPECT().BookCategoryIDs(gomock.Any(), int64(5)).Return([]int64{}, nil).AnyTimes()
	_, err = e.svc.GetBook(context.Background(), 5)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_ListCopies_UnknownBook(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.repo.EXPECT().GetBook(gomock.Any(), int64(9)).Return(model.BookOverview{}, errs.ErrNotFound)

	_, err := e.svc.ListCopies(context.Background(), 9)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_CreateBook(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		var saved string
		e.repo.EXPECT().
			CreateBook(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req model.CreateBookRequest, cover *string) (int64, error) {
				require.Equal(t, []int64{3, 1}, req.Authors)
				require.Equal(t, []int64{2}, req.Categories)
				require.NotNil(t, cover)
				saved = *cover
				return 7, nil
			})
		e.repo.EXPECT().GetBook(gomock.Any(), int64(7)).DoAndReturn(func(context.Context, int64) (model.BookOverview, error) {
			return model.BookOverview{ID: 7, Title: "Dune", CoverFile: &saved}, nil
		})
		e.repo.EXPECT().BookAuthorIDs(gomock.Any(), int64(7)).Return([]int64{3, 1}, nil)
		e.repo.EXPECT().BookCategoryIDs(gomock.Any(), int64(7)).Return([]int64{2}, nil)

		book, err := e.svc.CreateBook(adminCtx(), model.CreateBookRequest{
			Title:      "Dune",
			Authors:    []int64{3, 1, 3},
			Categories: []int64{2, 2},
			Cover:      pngUpload(t),
		})
		require.NoError(t, err)
		require.Equal(t, "/assets/"+saved, book.CoverURL)
		require.Equal(t, []string{saved}, files(t, e.dir))
		require.Equal(t, []kafka.EventType{kafka.BookCreated}, e.events.types())
		require.Equal(t, int64(1), e.events.events[0].UserID)
	})

	t.Run("db failure removes the cover", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.repo.EXPECT().
			CreateBook(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(int64(0), errs.ErrInvalidReference)

		_, err := e.svc.CreateBook(adminCtx(), model.CreateBookRequest{Title: "Dune", Authors: []int64{99}, Cover: pngUpload(t)})
		require.ErrorIs(t, err, errs.ErrInvalidReference)
		require.Empty(t, files(t, e.dir))
		require.Empty(t, e.events.types())
	})

	t.Run("unsupported cover never reaches the db", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		up := &model.Upload{Filename: "a.gif", ContentType: "image/gif", Body: bytes.NewReader([]byte("GIF89a"))}

		_, err := e.svc.CreateBook(adminCtx(), model.CreateBookRequest{Title: "Dune", Cover: up})
		require.ErrorIs(t, err, assets.ErrUnsupportedMediaType)
		require.Empty(t, files(t, e.dir))
	})
}

func TestService_UpdateBook(t *testing.T) {
	t.Parallel()
	const old = "1-old.png"

	t.Run("replaces the old cover after commit", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		require.NoError(t, os.WriteFile(filepath.Join(e.dir, old), []byte("x"), 0o644))
		var saved string
		e.repo.EXPECT().
			UpdateBook(gomock.Any(), int64(4), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ int64, _ model.UpdateBookRequest, cover *string) (*string, error) {
				saved = *cover
				prev := old
				return &prev, nil
			})

		require.NoError(t, e.svc.UpdateBook(adminCtx(), 4, model.UpdateBookRequest{Cover: pngUpload(t)}))
		require.Equal(t, []string{saved}, files(t, e.dir))
		require.Equal(t, []kafka.EventType{kafka.BookUpdated}, e.events.types())
	})

	t.Run("failed update keeps the old cover", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		require.NoError(t, os.WriteFile(filepath.Join(e.dir, old), []byte("x"), 0o644))
		e.repo.EXPECT().
			UpdateBook(gomock.Any(), int64(4), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("db down"))

		require.Error(t, e.svc.UpdateBook(adminCtx(), 4, model.UpdateBookRequest{Cover: pngUpload(t)}))
		require.Equal(t, []string{old}, files(t, e.dir))
		require.Empty(t, e.events.types())
	})

	t.Run("without a new cover the old one stays", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		require.NoError(t, os.WriteFile(filepath.Join(e.dir, old), []byte("x"), 0o644))
		title := "Dune Messiah"
		prev := old
		e.repo.EXPECT().
			UpdateBook(gomock.Any(), int64(4), model.UpdateBookRequest{Title: &title}, nil).
			Return(&prev, nil)

		require.NoError(t, e.svc.UpdateBook(adminCtx(), 4, model.UpdateBookRequest{Title: &title}))
		require.Equal(t, []string{old}, files(t, e.dir))
	})
}

func TestService_DeleteBook(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	const cover = "1-cover.png"
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, cover), []byte("x"), 0o644))
	name := cover
	e.repo.EXPECT().DeleteBook(gomock.Any(), int64(4)).Return(&name, nil)
	e.repo.EXPECT().DeleteBook(gomock.Any(), int64(5)).Return(nil, errs.ErrNotFound)

	require.NoError(t, e.svc.DeleteBook(adminCtx(), 4))
	require.Empty(t, files(t, e.dir))
	require.ErrorIs(t, e.svc.DeleteBook(adminCtx(), 5), errs.ErrNotFound)
	require.Equal(t, []kafka.EventType{kafka.BookDeleted}, e.events.types())
}

func TestService_Borrow(t *testing.T) {
	t.Parallel()
	due := time.Now().Add(48 * time.Hour)

	tests := []struct {
		name    string
		req     model.BorrowRequest
		repo    func(r *repo_mocks.MockRepository)
		wantErr error
	}{
		{
			name: "ok",
			req:  model.BorrowRequest{CopyID: 7, DueAt: model.Date{Time: due}},
			repo: func(r *repo_mocks.MockRepository) {
				r.EXPECT().Borrow(gomock.Any(), int64(1), int64(7), due).
					Return(model.Loan{ID: 5, UserID: 1, CopyID: 7, Status: model.LoanBorrowed}, nil)
			},
		},
		{
			name:    "due date in the past",
			req:     model.BorrowRequest{CopyID: 7, DueAt: model.Date{Time: time.Now().Add(-time.Hour)}},
			repo:    func(r *repo_mocks.MockRepository) {},
			wantErr: errs.ErrValidation,
		},
		{
			name:    "missing due date",
			req:     model.BorrowRequest{CopyID: 7},
			repo:    func(r *repo_mocks.MockRepository) {},
			wantErr: errs.ErrValidation,
		},
		{
			name: "copy busy",
			req:  model.BorrowRequest{CopyID: 7, DueAt: model.Date{Time: due}},
			repo: func(r *repo_mocks.MockRepository) {
				r.EXPECT().Borrow(gomock.Any(), int64(1), int64(7), due).Return(model.Loan{}, errs.ErrCopyUnavailable)
			},
			wantErr: errs.ErrCopyUnavailable,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEnv(t)
			tt.repo(e.repo)

			loan, err := e.svc.Borrow(context.Background(), 1, tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Empty(t, e.events.types())
				return
			}
			require.NoError(t, err)
			require.Equal(t, int64(5), loan.ID)
			require.Equal(t, []kafka.EventType{kafka.LoanBorrowed}, e.events.types())
		})
	}
}

func TestService_Return(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.repo.EXPECT().Return(gomock.Any(), int64(5)).Return(model.Loan{ID: 5, CopyID: 7}, true, nil)
	e.repo.EXPECT().Return(gomock.Any(), int64(5)).Return(model.Loan{}, false, nil)

	require.NoError(t, e.svc.Return(context.Background(), 5))
	require.NoError(t, e.svc.Return(context.Background(), 5))
	require.Equal(t, []kafka.EventType{kafka.LoanReturned}, e.events.types())
}
