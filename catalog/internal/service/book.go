package service

import (
	"context"

	"github.com/Astemirdum/library-catalog/catalog/internal/model"
	"github.com/Astemirdum/library-catalog/pkg/assets"
	"github.com/Astemirdum/library-catalog/pkg/kafka"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func (s *Service) ListBooks(ctx context.Context) ([]model.BookOverview, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range books {
		withCoverURL(&books[i])
	}
	return books, nil
}

func (s *Service) GetBook(ctx context.Context, id int64) (model.Book, error) {
	var book model.Book
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		book.BookOverview, err = s.repo.GetBook(gCtx, id)
		return err
	})
	g.Go(func() (err error) {
		book.Authors, err = s.repo.BookAuthorIDs(gCtx, id)
		return err
	})
	g.Go(func() (err error) {
		book.Categories, err = s.repo.BookCategoryIDs(gCtx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Book{}, err
	}
	withCoverURL(&book.BookOverview)
	return book, nil
}

func (s *Service) ListCopies(ctx context.Context, bookID int64) ([]model.Copy, error) {
	if _, err := s.repo.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	return s.repo.ListCopies(ctx, bookID)
}

func (s *Service) ListAuthors(ctx context.Context) ([]model.Reference, error) {
	return s.repo.ListAuthors(ctx)
}

func (s *Service) ListCategories(ctx context.Context) ([]model.Reference, error) {
	return s.repo.ListCategories(ctx)
}

// CreateBook stores the cover first and removes it again if the book cannot be written.
func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	req.Authors = dedup(req.Authors)
	req.Categories = dedup(req.Categories)

	cover, err := s.saveCover(req.Cover)
	if err != nil {
		return model.Book{}, err
	}
	id, err := s.repo.CreateBook(ctx, req, cover)
	if err != nil {
		if cover != nil {
			s.dropFile(*cover)
		}
		return model.Book{}, err
	}
	s.publish(ctx, kafka.EventActivity{Type: kafka.BookCreated, BookID: id})
	return s.GetBook(ctx, id)
}

// UpdateBook replaces the stored cover only after the row is committed.
func (s *Service) UpdateBook(ctx context.Context, id int64, req model.UpdateBookRequest) error {
	cover, err := s.saveCover(req.Cover)
	if err != nil {
		return err
	}
	oldCover, err := s.repo.UpdateBook(ctx, id, req, cover)
	if err != nil {
		if cover != nil {
			s.dropFile(*cover)
		}
		return err
	}
	if cover != nil && oldCover != nil && *oldCover != *cover {
		s.dropFile(*oldCover)
	}
	s.publish(ctx, kafka.EventActivity{Type: kafka.BookUpdated, BookID: id})
	return nil
}

func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	cover, err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		return err
	}
	if cover != nil {
		s.dropFile(*cover)
	}
	s.publish(ctx, kafka.EventActivity{Type: kafka.BookDeleted, BookID: id})
	return nil
}

func (s *Service) saveCover(up *model.Upload) (*string, error) {
	if up == nil {
		return nil, nil
	}
	name, err := s.files.Save(up.Body, up.ContentType)
	if err != nil {
		if errors.Is(err, assets.ErrUnsupportedMediaType) || errors.Is(err, assets.ErrFileTooLarge) {
			return nil, err
		}
		s.log.Error("save cover", zap.Error(err))
		return nil, errors.Wrap(err, "save cover")
	}
	return &name, nil
}

func withCoverURL(b *model.BookOverview) {
	var name string
	if b.CoverFile != nil {
		name = *b.CoverFile
	}
	b.CoverURL = assets.URLFor(name)
}

func dedup(ids []int64) []int64 {
	if len(ids) == 0 {
		return ids
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
