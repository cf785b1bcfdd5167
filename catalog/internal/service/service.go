package service

import (
	"context"
	"io"
	"sync"

	"github.com/Astemirdum/library-catalog/catalog/internal/events"
	"github.com/Astemirdum/library-catalog/catalog/internal/repository"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"go.uber.org/zap"
)

type Credentials interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	IssueToken(id auth.Identity) (string, error)
}

type AssetStore interface {
	Save(r io.Reader, declaredType string) (string, error)
	Delete(name string) error
}

type Service struct {
	log    *zap.Logger
	repo   repository.Repository
	creds  Credentials
	files  AssetStore
	events events.Publisher

	dummyOnce sync.Once
	dummy     string
}

func NewService(
	repo repository.Repository,
	creds Credentials,
	files AssetStore,
	publisher events.Publisher,
	log *zap.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Nop()
	}
	return &Service{
		log:    log.Named("service"),
		repo:   repo,
		creds:  creds,
		files:  files,
		events: publisher,
	}
}

func (s *Service) publish(ctx context.Context, ev kafka.EventActivity) {
	if id, ok := auth.FromContext(ctx); ok && ev.UserID == 0 {
		ev.UserID = id.ID
	}
	s.events.Publish(ctx, ev)
}

// dropFile removes a stored cover, logging instead of failing.
func (s *Service) dropFile(name string) {
	if err := s.files.Delete(name); err != nil {
		s.log.Warn("delete cover", zap.String("file", name), zap.Error(err))
	}
}
