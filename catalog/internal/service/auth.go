package service

import (
	"context"
	"strings"

	"github.com/Astemirdum/library-catalog/catalog/internal/errs"
	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// bcrypt ignores input past this many bytes.
const maxPasswordBytes = 72

func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (model.RegisterResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.RegisterResponse{}, errs.Invalid("name is required")
	}
	if len(req.Password) > maxPasswordBytes {
		return model.RegisterResponse{}, errs.Invalid("password must be at most 72 bytes")
	}
	hash, err := s.creds.Hash(req.Password)
	if err != nil {
		return model.RegisterResponse{}, errors.Wrap(err, "hash password")
	}
	user, err := s.repo.CreateUser(ctx, model.User{
		Name:         name,
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         auth.RoleMember,
	})
	if err != nil {
		return model.RegisterResponse{}, err
	}
	s.log.Info("registered", zap.Int64("user_id", user.ID))
	return model.RegisterResponse{ID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// Login answers unknown emails and wrong passwords with the same error,
// and spends a hash comparison on both paths.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.creds.Verify(req.Password, s.dummyHash())
			return model.LoginResponse{}, errs.ErrInvalidCredentials
		}
		return model.LoginResponse{}, err
	}
	if !s.creds.Verify(req.Password, user.PasswordHash) {
		return model.LoginResponse{}, errs.ErrInvalidCredentials
	}
	token, err := s.creds.IssueToken(auth.Identity{ID: user.ID, Role: user.Role, Email: user.Email})
	if err != nil {
		return model.LoginResponse{}, errors.Wrap(err, "issue token")
	}
	return model.LoginResponse{
		Token: token,
		User:  model.LoginUser{ID: user.ID, Name: user.Name, Role: user.Role},
	}, nil
}

func (s *Service) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.creds.Hash("not-a-real-password")
		if err != nil {
			s.log.Error("dummy hash", zap.Error(err))
		}
		s.dummy = h
	})
	return s.dummy
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
